package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-enricher/internal/config"
)

func TestNewHubSpotClient_UsesConfig(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := newHubSpotClient(config.HubSpotConfig{
		APIKey:           "pat-test",
		BaseURL:          ts.URL,
		MaxAttempts:      2,
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
		RateLimitRPS:     100,
		TimeoutSecs:      5,
	})

	_, err := client.GetOwner(context.Background(), "7")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInitPipeline_ValidatesMode(t *testing.T) {
	c := &config.Config{}
	c.HubSpot.APIKey = "pat-test"
	c.Enrich.Scheduling = "batched"
	c.Stage.UnknownLabel = "drop"
	c.Classify.MalformedLines = "skip"

	p, err := initPipeline(c, "export")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = initPipeline(c, "recommend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")
}
