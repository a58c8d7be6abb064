package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/jaseci-labs/newsletter-api/pkg/clients/mailchimp"
	"github.com/jaseci-labs/newsletter-api/pkg/config"
	"github.com/jaseci-labs/newsletter-api/pkg/logger"
	"github.com/jaseci-labs/newsletter-api/pkg/metrics"
	"github.com/jaseci-labs/newsletter-api/pkg/models"
	"github.com/jaseci-labs/newsletter-api/pkg/utils"
)

const (
	msgMissingAPIKey     = "Server is misconfigured: missing API key."
	msgMissingAudience   = "Server is misconfigured: missing audience/list ID."
	msgUnknownDataCenter = "Server is misconfigured: unable to determine Mailchimp data center."

	msgSubscribed      = "Success! You are now subscribed."
	msgConfirmEmail    = "Please check your email to confirm your subscription."
	msgUpdated         = "You are already subscribed. Details updated."
	msgUpdatedPending  = "You are on our list. If you haven't confirmed before, please check your email to confirm."
	msgAlreadySub      = "You are already subscribed."
	msgAlreadyOnList   = "You are already on our list."
	msgUpstreamGeneric = "There was an error subscribing to the newsletter."
	msgInternalError   = "Internal Server Error"
)

// ClientFactory builds a list client for an API key and resolved data center.
type ClientFactory func(apiKey, dataCenter string) mailchimp.Client

// NewClientFactory returns a ClientFactory producing REST clients that share hc.
func NewClientFactory(hc *http.Client) ClientFactory {
	return func(apiKey, dataCenter string) mailchimp.Client {
		return mailchimp.NewClient(apiKey, dataCenter, mailchimp.WithHTTPClient(hc))
	}
}

// SubscriptionService adds newsletter signups to the configured audience
type SubscriptionService struct {
	config    config.MailchimpConfig
	newClient ClientFactory
	validate  *validator.Validate
	log       *slog.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(cfg config.MailchimpConfig, newClient ClientFactory, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		config:    cfg,
		newClient: newClient,
		validate:  newValidator(),
		log:       log.With(logger.Scope("subscription")),
	}
}

// Subscribe validates req and adds it to the audience. Success-family outcomes
// are returned as a SubscriptionResult; failures as a *SubscribeError.
func (s *SubscriptionService) Subscribe(ctx context.Context, req models.SubscriptionRequest) (*models.SubscriptionResult, error) {
	res, subErr := s.subscribe(ctx, req.Normalize())
	if subErr != nil {
		metrics.SubscriptionOutcomes.WithLabelValues(subErr.Outcome.String()).Inc()
		return nil, subErr
	}
	metrics.SubscriptionOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	return res, nil
}

func (s *SubscriptionService) subscribe(ctx context.Context, req models.SubscriptionRequest) (*models.SubscriptionResult, *SubscribeError) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	if s.config.APIKey == "" {
		return nil, configError(msgMissingAPIKey)
	}
	if s.config.AudienceID == "" {
		return nil, configError(msgMissingAudience)
	}
	dataCenter, ok := mailchimp.ResolveDataCenter(s.config.ServerPrefix, s.config.APIKey)
	if !ok {
		s.log.ErrorContext(ctx, "unable to determine data center")
		return nil, configError(msgUnknownDataCenter)
	}

	doubleOptIn := s.config.DoubleOptInEnabled()
	status := mailchimp.StatusSubscribed
	if doubleOptIn {
		status = mailchimp.StatusPending
	}

	hash := utils.SubscriberHash(req.Email)
	log := s.log.With(slog.String("subscriber", hash), slog.String("data_center", dataCenter))
	client := s.newClient(s.config.APIKey, dataCenter)

	err := client.AddListMember(ctx, s.config.AudienceID, mailchimp.Member{
		EmailAddress: req.Email,
		Status:       status,
		MergeFields:  mailchimp.MergeFields{FirstName: req.FirstName, LastName: req.LastName},
	})
	if err == nil {
		log.InfoContext(ctx, "subscriber added", slog.String("status", status))
		if doubleOptIn {
			return &models.SubscriptionResult{Outcome: models.OutcomePending, StatusCode: http.StatusAccepted, Message: msgConfirmEmail}, nil
		}
		return &models.SubscriptionResult{Outcome: models.OutcomeCreated, StatusCode: http.StatusCreated, Message: msgSubscribed}, nil
	}

	if mailchimp.IsMemberExists(err) {
		return s.updateExisting(ctx, log, client, hash, req, status, doubleOptIn), nil
	}

	var apiErr *mailchimp.APIError
	if errors.As(err, &apiErr) {
		log.WarnContext(ctx, "subscriber rejected", slog.Int("status", apiErr.StatusCode), slog.String("title", apiErr.Title))
		msg := apiErr.Title
		if msg == "" {
			msg = msgUpstreamGeneric
		}
		return nil, upstreamError(http.StatusBadRequest, msg, err)
	}

	log.ErrorContext(ctx, "mailchimp request failed", logger.Error(err))
	return nil, upstreamError(http.StatusInternalServerError, transportMessage(err), err)
}

// transportMessage describes a failed call without the request URL.
func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return msgInternalError
}

// updateExisting refreshes the name fields of an address that is already on
// the list. status_if_new only applies to new members, so an existing status is
// never changed. Failures are logged and reported as already subscribed.
func (s *SubscriptionService) updateExisting(
	ctx context.Context,
	log *slog.Logger,
	client mailchimp.Client,
	hash string,
	req models.SubscriptionRequest,
	status string,
	doubleOptIn bool,
) *models.SubscriptionResult {
	err := client.UpsertListMember(ctx, s.config.AudienceID, hash, mailchimp.Member{
		EmailAddress: req.Email,
		StatusIfNew:  status,
		MergeFields:  mailchimp.MergeFields{FirstName: req.FirstName, LastName: req.LastName},
	})
	if err != nil {
		// TODO: confirm with product whether a failed update should still read as success.
		log.WarnContext(ctx, "existing subscriber update failed", logger.Error(err))
		msg := msgAlreadySub
		if doubleOptIn {
			msg = msgAlreadyOnList
		}
		return &models.SubscriptionResult{Outcome: models.OutcomeAlreadySubscribed, StatusCode: http.StatusOK, Message: msg}
	}

	log.InfoContext(ctx, "existing subscriber updated")
	msg := msgUpdated
	if doubleOptIn {
		msg = msgUpdatedPending
	}
	return &models.SubscriptionResult{Outcome: models.OutcomeUpdated, StatusCode: http.StatusOK, Message: msg}
}
