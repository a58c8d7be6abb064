package mailchimp

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlSchemeRe   = regexp.MustCompile(`(?i)^https?://`)
	dataCenterRe  = regexp.MustCompile(`(?i)^[a-z]{2}\d{1,2}$`)
	dataCenterAny = regexp.MustCompile(`(?i)[a-z]{2}\d{1,2}`)
)

// ResolveDataCenter returns the data center token (e.g. "us15") used to build
// the API base URL. The server prefix may be a full URL such as
// https://us15.admin.mailchimp.com, a bare token, or any string containing a
// token. When the prefix yields nothing, the suffix of the API key
// ("<key>-us15") is used. It reports false when no rule matches.
func ResolveDataCenter(serverPrefix, apiKey string) (string, bool) {
	if prefix := strings.TrimSpace(serverPrefix); prefix != "" {
		if urlSchemeRe.MatchString(prefix) {
			if u, err := url.Parse(prefix); err == nil {
				host := strings.ToLower(u.Hostname())
				if sub, _, _ := strings.Cut(host, "."); sub != "" {
					return sub, true
				}
			}
		}
		if dataCenterRe.MatchString(prefix) {
			return prefix, true
		}
		if token := dataCenterAny.FindString(prefix); token != "" {
			return token, true
		}
	}

	if strings.Contains(apiKey, "-") {
		parts := strings.Split(apiKey, "-")
		if dc := parts[len(parts)-1]; dataCenterRe.MatchString(dc) {
			return dc, true
		}
	}

	return "", false
}
