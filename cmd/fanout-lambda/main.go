package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/account-batch-fetcher/internal/config"
	"github.com/Sternrassler/account-batch-fetcher/pkg/batch"
	"github.com/Sternrassler/account-batch-fetcher/pkg/handler"
	"github.com/Sternrassler/account-batch-fetcher/pkg/logging"
	"github.com/Sternrassler/account-batch-fetcher/pkg/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Output: os.Stdout,
	})

	// The Lambda runs without the Redis payload cache.
	upstreamClient, err := upstream.New(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	h := handler.New(batch.NewFetcher(upstreamClient, batch.Config{
		ConcurrencyLimit: cfg.Batch.ConcurrencyLimit,
	}))

	lambda.Start(gatewayHandler(h))
}

// gatewayHandler adapts API Gateway proxy events to the handler contract.
func gatewayHandler(h *handler.Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		event := handler.Event{}
		if req.Body != "" {
			body := req.Body
			if req.IsBase64Encoded {
				decoded, err := base64.StdEncoding.DecodeString(req.Body)
				if err != nil {
					// Let the handler report the undecodable body as a parse failure.
					log.Warn().Err(err).Msg("Failed to decode base64 body")
				} else {
					body = string(decoded)
				}
			}
			event.Body = &body
		}

		resp := h.Handle(ctx, event)

		return events.APIGatewayProxyResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		}, nil
	}
}
