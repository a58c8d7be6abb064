package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaseci-labs/newsletter-api/pkg/clients/mailchimp"
	"github.com/jaseci-labs/newsletter-api/pkg/config"
	"github.com/jaseci-labs/newsletter-api/pkg/metrics"
	"github.com/jaseci-labs/newsletter-api/pkg/models"
)

type addCall struct {
	listID string
	member mailchimp.Member
}

type upsertCall struct {
	listID string
	hash   string
	member mailchimp.Member
}

// mockListClient records calls and returns canned errors.
type mockListClient struct {
	addErr    error
	upsertErr error

	adds    []addCall
	upserts []upsertCall
}

func (m *mockListClient) AddListMember(ctx context.Context, listID string, member mailchimp.Member) error {
	m.adds = append(m.adds, addCall{listID, member})
	return m.addErr
}

func (m *mockListClient) UpsertListMember(ctx context.Context, listID, hash string, member mailchimp.Member) error {
	m.upserts = append(m.upserts, upsertCall{listID, hash, member})
	return m.upsertErr
}

type factoryCall struct {
	apiKey     string
	dataCenter string
}

func newTestService(cfg config.MailchimpConfig, client *mockListClient) (*SubscriptionService, *[]factoryCall) {
	var calls []factoryCall
	factory := func(apiKey, dataCenter string) mailchimp.Client {
		calls = append(calls, factoryCall{apiKey, dataCenter})
		return client
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSubscriptionService(cfg, factory, log), &calls
}

func validConfig() config.MailchimpConfig {
	return config.MailchimpConfig{
		APIKey:     "abcd1234-us6",
		AudienceID: "aud123",
	}
}

func memberExistsErr() error {
	return fmt.Errorf("error adding list member: %w", &mailchimp.APIError{
		StatusCode: http.StatusBadRequest,
		Title:      "Member Exists",
		Detail:     "test@example.com is already a list member.",
	})
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     models.SubscriptionRequest
		wantMsg string
	}{
		{"missing email", models.SubscriptionRequest{FirstName: "Ada"}, "Email is required"},
		{"whitespace email", models.SubscriptionRequest{Email: "   "}, "Email is required"},
		{"no at sign", models.SubscriptionRequest{Email: "ada.example.com"}, "Invalid email format"},
		{"no dot in domain", models.SubscriptionRequest{Email: "ada@example"}, "Invalid email format"},
		{"nothing before at", models.SubscriptionRequest{Email: "@example.com"}, "Invalid email format"},
		{"nothing after dot", models.SubscriptionRequest{Email: "ada@example."}, "Invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockListClient{}
			svc, factoryCalls := newTestService(validConfig(), client)

			res, err := svc.Subscribe(context.Background(), tt.req)
			assert.Nil(t, res)

			subErr, ok := AsSubscribeError(err)
			require.True(t, ok)
			assert.Equal(t, models.OutcomeValidationError, subErr.Outcome)
			assert.Equal(t, http.StatusBadRequest, subErr.StatusCode)
			assert.Equal(t, tt.wantMsg, subErr.Message)

			assert.Empty(t, *factoryCalls)
			assert.Empty(t, client.adds)
			assert.Empty(t, client.upserts)
		})
	}
}

func TestSubscribeConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MailchimpConfig
		wantMsg string
	}{
		{
			name:    "missing api key",
			cfg:     config.MailchimpConfig{AudienceID: "aud123", ServerPrefix: "us6"},
			wantMsg: "Server is misconfigured: missing API key.",
		},
		{
			name:    "missing audience",
			cfg:     config.MailchimpConfig{APIKey: "abcd1234-us6"},
			wantMsg: "Server is misconfigured: missing audience/list ID.",
		},
		{
			name:    "unresolvable data center",
			cfg:     config.MailchimpConfig{APIKey: "abcd1234", AudienceID: "aud123", ServerPrefix: "notaurl"},
			wantMsg: "Server is misconfigured: unable to determine Mailchimp data center.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockListClient{}
			svc, factoryCalls := newTestService(tt.cfg, client)

			_, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{Email: "test@example.com"})

			subErr, ok := AsSubscribeError(err)
			require.True(t, ok)
			assert.Equal(t, models.OutcomeConfigError, subErr.Outcome)
			assert.Equal(t, http.StatusInternalServerError, subErr.StatusCode)
			assert.Equal(t, tt.wantMsg, subErr.Message)
			assert.Empty(t, *factoryCalls)
			assert.Empty(t, client.adds)
		})
	}
}

func TestSubscribeCreated(t *testing.T) {
	tests := []struct {
		name        string
		doubleOptIn string
		wantOutcome models.Outcome
		wantStatus  int
		wantMsg     string
		wantMember  string
	}{
		{"single opt-in", "", models.OutcomeCreated, http.StatusCreated, "Success! You are now subscribed.", "subscribed"},
		{"explicit false", "false", models.OutcomeCreated, http.StatusCreated, "Success! You are now subscribed.", "subscribed"},
		{"double opt-in", "true", models.OutcomePending, http.StatusAccepted, "Please check your email to confirm your subscription.", "pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.DoubleOptIn = tt.doubleOptIn
			client := &mockListClient{}
			svc, factoryCalls := newTestService(cfg, client)

			res, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{
				Email:     " test@example.com ",
				FirstName: " Ada",
				LastName:  "Lovelace ",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, tt.wantMsg, res.Message)

			assert.Equal(t, []factoryCall{{"abcd1234-us6", "us6"}}, *factoryCalls)
			require.Len(t, client.adds, 1)
			assert.Equal(t, addCall{
				listID: "aud123",
				member: mailchimp.Member{
					EmailAddress: "test@example.com",
					Status:       tt.wantMember,
					MergeFields:  mailchimp.MergeFields{FirstName: "Ada", LastName: "Lovelace"},
				},
			}, client.adds[0])
			assert.Empty(t, client.upserts)
		})
	}
}

func TestSubscribeUsesServerPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.ServerPrefix = "https://us15.admin.mailchimp.com"
	svc, factoryCalls := newTestService(cfg, &mockListClient{})

	_, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{Email: "test@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []factoryCall{{"abcd1234-us6", "us15"}}, *factoryCalls)
}

func TestSubscribeMemberExists(t *testing.T) {
	tests := []struct {
		name        string
		doubleOptIn string
		upsertErr   error
		wantOutcome models.Outcome
		wantMsg     string
		wantIfNew   string
	}{
		{
			name:        "update ok",
			wantOutcome: models.OutcomeUpdated,
			wantMsg:     "You are already subscribed. Details updated.",
			wantIfNew:   "subscribed",
		},
		{
			name:        "update ok double opt-in",
			doubleOptIn: "TRUE",
			wantOutcome: models.OutcomeUpdated,
			wantMsg:     "You are on our list. If you haven't confirmed before, please check your email to confirm.",
			wantIfNew:   "pending",
		},
		{
			name:        "update rejected",
			upsertErr:   &mailchimp.APIError{StatusCode: http.StatusBadRequest, Title: "Invalid Resource"},
			wantOutcome: models.OutcomeAlreadySubscribed,
			wantMsg:     "You are already subscribed.",
			wantIfNew:   "subscribed",
		},
		{
			name:        "update network failure double opt-in",
			doubleOptIn: "true",
			upsertErr:   errors.New("connection reset by peer"),
			wantOutcome: models.OutcomeAlreadySubscribed,
			wantMsg:     "You are already on our list.",
			wantIfNew:   "pending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.DoubleOptIn = tt.doubleOptIn
			client := &mockListClient{addErr: memberExistsErr(), upsertErr: tt.upsertErr}
			svc, _ := newTestService(cfg, client)

			res, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{
				Email:     "Test@Example.com",
				FirstName: "Ada",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tt.wantMsg, res.Message)

			require.Len(t, client.upserts, 1)
			assert.Equal(t, upsertCall{
				listID: "aud123",
				hash:   "55502f40dc8b7c769880b10874abc9d0",
				member: mailchimp.Member{
					EmailAddress: "Test@Example.com",
					StatusIfNew:  tt.wantIfNew,
					MergeFields:  mailchimp.MergeFields{FirstName: "Ada"},
				},
			}, client.upserts[0])
		})
	}
}

func TestSubscribeUpstreamRejected(t *testing.T) {
	tests := []struct {
		name    string
		addErr  error
		wantMsg string
	}{
		{
			name:    "title is surfaced",
			addErr:  &mailchimp.APIError{StatusCode: http.StatusBadRequest, Title: "Invalid Resource"},
			wantMsg: "Invalid Resource",
		},
		{
			name:    "member exists on another status is not a conflict",
			addErr:  &mailchimp.APIError{StatusCode: http.StatusForbidden, Title: "Member Exists"},
			wantMsg: "Member Exists",
		},
		{
			name:    "missing title",
			addErr:  &mailchimp.APIError{StatusCode: http.StatusInternalServerError},
			wantMsg: "There was an error subscribing to the newsletter.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockListClient{addErr: tt.addErr}
			svc, _ := newTestService(validConfig(), client)

			_, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{Email: "test@example.com"})

			subErr, ok := AsSubscribeError(err)
			require.True(t, ok)
			assert.Equal(t, models.OutcomeUpstreamError, subErr.Outcome)
			assert.Equal(t, http.StatusBadRequest, subErr.StatusCode)
			assert.Equal(t, tt.wantMsg, subErr.Message)
			assert.ErrorIs(t, err, tt.addErr)
			assert.Empty(t, client.upserts)
		})
	}
}

func TestSubscribeTransportFailure(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	tests := []struct {
		name    string
		addErr  error
		wantMsg string
	}{
		{
			name: "url error is unwrapped",
			addErr: fmt.Errorf("error adding list member: %w", &url.Error{
				Op:  "Post",
				URL: "https://us6.api.mailchimp.com/3.0/lists/aud123/members",
				Err: dialErr,
			}),
			wantMsg: dialErr.Error(),
		},
		{
			name:    "plain error",
			addErr:  errors.New("tls: handshake failure"),
			wantMsg: "tls: handshake failure",
		},
		{
			name:    "empty message",
			addErr:  errors.New(""),
			wantMsg: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockListClient{addErr: tt.addErr}
			svc, _ := newTestService(validConfig(), client)

			_, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{Email: "test@example.com"})

			subErr, ok := AsSubscribeError(err)
			require.True(t, ok)
			assert.Equal(t, models.OutcomeUpstreamError, subErr.Outcome)
			assert.Equal(t, http.StatusInternalServerError, subErr.StatusCode)
			assert.Equal(t, tt.wantMsg, subErr.Message)
			assert.NotContains(t, subErr.Message, "aud123")
		})
	}
}

func TestSubscribeTwiceIsSuccess(t *testing.T) {
	client := &mockListClient{}
	svc, _ := newTestService(validConfig(), client)
	req := models.SubscriptionRequest{Email: "test@example.com", FirstName: "Ada"}

	first, err := svc.Subscribe(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, first.StatusCode)

	// The provider now knows the address.
	client.addErr = memberExistsErr()

	second, err := svc.Subscribe(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Len(t, client.adds, 2)
	assert.Len(t, client.upserts, 1)
}

func TestSubscribeRecordsOutcomeMetric(t *testing.T) {
	created := metrics.SubscriptionOutcomes.WithLabelValues("created")
	invalid := metrics.SubscriptionOutcomes.WithLabelValues("validation_error")
	beforeCreated := testutil.ToFloat64(created)
	beforeInvalid := testutil.ToFloat64(invalid)

	svc, _ := newTestService(validConfig(), &mockListClient{})
	_, err := svc.Subscribe(context.Background(), models.SubscriptionRequest{Email: "test@example.com"})
	require.NoError(t, err)
	_, err = svc.Subscribe(context.Background(), models.SubscriptionRequest{Email: "nope"})
	require.Error(t, err)

	assert.Equal(t, beforeCreated+1, testutil.ToFloat64(created))
	assert.Equal(t, beforeInvalid+1, testutil.ToFloat64(invalid))
}

func TestSubscribeErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := upstreamError(http.StatusInternalServerError, "boom", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom: boom", err.Error())
	assert.Equal(t, "Email is required", validationError("Email is required").Error())

	_, ok := AsSubscribeError(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorResponse(t *testing.T) {
	status, msg := ErrorResponse(fmt.Errorf("wrapped: %w", validationError(msgEmailInvalid)))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, msgEmailInvalid, msg)

	status, msg = ErrorResponse(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", msg)
}
