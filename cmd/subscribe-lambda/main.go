package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jaseci-labs/newsletter-api/pkg/config"
	"github.com/jaseci-labs/newsletter-api/pkg/logger"
	"github.com/jaseci-labs/newsletter-api/pkg/serverless"
	"github.com/jaseci-labs/newsletter-api/pkg/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("configuration error", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	svc := services.NewSubscriptionService(
		cfg.Mailchimp,
		services.NewClientFactory(&http.Client{Timeout: cfg.Mailchimp.HTTPTimeout}),
		log,
	)

	h := serverless.New(svc, log)

	lambda.Start(h.Subscribe)
}
