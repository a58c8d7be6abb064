package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/jaseci-labs/newsletter-api/pkg/metrics"
)

// Member statuses accepted by the list members endpoints.
const (
	StatusSubscribed = "subscribed"
	StatusPending    = "pending"
)

var memberExistsRe = regexp.MustCompile(`(?i)member exists`)

// Client defines the list member operations used by the subscription flow
type Client interface {
	AddListMember(ctx context.Context, listID string, member Member) error
	UpsertListMember(ctx context.Context, listID, subscriberHash string, member Member) error
}

// Member is the request body for the list members endpoints.
type Member struct {
	EmailAddress string      `json:"email_address"`
	Status       string      `json:"status,omitempty"`
	StatusIfNew  string      `json:"status_if_new,omitempty"`
	MergeFields  MergeFields `json:"merge_fields"`
}

// MergeFields holds the default audience name fields.
type MergeFields struct {
	FirstName string `json:"FNAME"`
	LastName  string `json:"LNAME"`
}

// APIError is the problem document returned with non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("mailchimp API error %d: %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("mailchimp API error %d: %s", e.StatusCode, e.Title)
}

// IsMemberExists reports whether err is the 400 returned when adding an
// address that is already on the list.
func IsMemberExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest && memberExistsRe.MatchString(apiErr.Title)
}

// Option configures a RestClient.
type Option func(*RestClient)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RestClient) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the data center base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *RestClient) {
		c.baseURL = baseURL
	}
}

// RestClient talks to the Marketing API v3 of a single data center.
type RestClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Mailchimp client for the given data center
func NewClient(apiKey, dataCenter string, opts ...Option) *RestClient {
	c := &RestClient{
		apiKey:     apiKey,
		baseURL:    fmt.Sprintf("https://%s.api.mailchimp.com/3.0", dataCenter),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddListMember adds a new member to the list.
func (c *RestClient) AddListMember(ctx context.Context, listID string, member Member) error {
	endpoint := fmt.Sprintf("%s/lists/%s/members", c.baseURL, url.PathEscape(listID))
	if err := c.do(ctx, "add_member", http.MethodPost, endpoint, member); err != nil {
		return fmt.Errorf("error adding list member: %w", err)
	}
	return nil
}

// UpsertListMember adds or updates the member identified by subscriberHash.
func (c *RestClient) UpsertListMember(ctx context.Context, listID, subscriberHash string, member Member) error {
	endpoint := fmt.Sprintf("%s/lists/%s/members/%s", c.baseURL, url.PathEscape(listID), url.PathEscape(subscriberHash))
	if err := c.do(ctx, "upsert_member", http.MethodPut, endpoint, member); err != nil {
		return fmt.Errorf("error upserting list member: %w", err)
	}
	return nil
}

func (c *RestClient) do(ctx context.Context, operation, method, endpoint string, payload any) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	// Any username is accepted, the key is the password.
	req.SetBasicAuth("anystring", c.apiKey)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.MailchimpRequestDuration.WithLabelValues(operation, "error").Observe(time.Since(start).Seconds())
		return err
	}
	defer resp.Body.Close()
	metrics.MailchimpRequestDuration.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		slog.Default().DebugContext(ctx, "mailchimp request succeeded",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	}

	// The title is optional for callers, so an unreadable body still yields an APIError.
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(resp.Body)
	if err == nil {
		err = json.Unmarshal(body, apiErr)
	}
	if err != nil {
		slog.Default().WarnContext(ctx, "unreadable mailchimp error body",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
		)
	}
	return apiErr
}
