package main

import (
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/classify"
	"github.com/sells-group/deal-enricher/internal/config"
	"github.com/sells-group/deal-enricher/internal/extract"
	"github.com/sells-group/deal-enricher/internal/pipeline"
	"github.com/sells-group/deal-enricher/internal/resilience"
	"github.com/sells-group/deal-enricher/pkg/anthropic"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// initPipeline validates the config for mode and builds the clients and
// the Pipeline. The LLM backend is only created for modes that classify.
func initPipeline(c *config.Config, mode string) (*pipeline.Pipeline, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	crm := newHubSpotClient(c.HubSpot)
	extractor := extract.NewRegistry(c.Extract.PdfToTextPath)

	var backend classify.Backend
	if c.Anthropic.Key != "" {
		backend = classify.NewAnthropicBackend(newAnthropicClient(c.Anthropic))
	} else {
		zap.L().Debug("anthropic key not set, classification disabled")
	}

	return pipeline.New(c, crm, backend, extractor), nil
}

func newHubSpotClient(c config.HubSpotConfig) hubspot.Client {
	opts := []hubspot.Option{
		hubspot.WithRetry(resilience.FromRetryConfig(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.Backoff)),
	}
	if c.BaseURL != "" {
		opts = append(opts, hubspot.WithBaseURL(c.BaseURL))
	}
	if c.RateLimitRPS > 0 {
		opts = append(opts, hubspot.WithRateLimit(c.RateLimitRPS, max(1, int(c.RateLimitRPS))))
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, hubspot.WithTimeout(c.Timeout()))
	}
	return hubspot.NewClient(c.APIKey, opts...)
}

func newAnthropicClient(c config.AnthropicConfig) anthropic.Client {
	var opts []option.RequestOption
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return anthropic.NewClient(c.Key, opts...)
}
