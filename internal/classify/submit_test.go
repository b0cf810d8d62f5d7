package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-enricher/internal/model"
)

func testDeals(names ...string) []*model.Deal {
	out := make([]*model.Deal, len(names))
	for i, n := range names {
		out[i] = &model.Deal{
			ID:         fmt.Sprintf("%d", 100+i),
			Properties: model.Properties{model.PropDealName: n},
		}
	}
	return out
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

func TestSubmitter_Build(t *testing.T) {
	s := NewSubmitter(nil, SubmitterConfig{Prompt: "Classify.", Model: "claude-sonnet", Temperature: 0.5})
	s.newID = seqIDs()

	reqs, ids, err := s.Build(testDeals("Alpha", "Beta"))
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, "req-1", reqs[0].CustomID)
	assert.Equal(t, "Classify.", reqs[0].System)
	assert.Equal(t, "claude-sonnet", reqs[0].Model)
	assert.Equal(t, int64(2500), reqs[0].MaxTokens)
	assert.InDelta(t, 0.5, reqs[0].Temperature, 0.0001)
	assert.True(t, strings.HasPrefix(reqs[0].User, "Deal info: {"))
	assert.Contains(t, reqs[1].User, `"dealname":"Beta"`)

	assert.Equal(t, map[string]string{"req-1": "100", "req-2": "101"}, ids)
}

func TestSubmitter_DefaultsPrompt(t *testing.T) {
	s := NewSubmitter(nil, SubmitterConfig{})
	reqs, _, err := s.Build(testDeals("Alpha"))
	require.NoError(t, err)
	assert.Equal(t, FallbackPrompt, reqs[0].System)
}

func TestSubmitter_Submit(t *testing.T) {
	backend := new(mockBackend)
	backend.On("Submit", mock.Anything, mock.MatchedBy(func(reqs []Request) bool {
		return len(reqs) == 3
	}), mock.MatchedBy(func(opts SubmitOptions) bool {
		lines := bytes.Split(bytes.TrimSpace(opts.Input), []byte("\n"))
		return opts.CompletionWindow == "24h" &&
			opts.Description == "deal data recommendation generator" &&
			len(lines) == 3 && bytes.Contains(lines[0], []byte(`"custom_id":"req-1"`))
	})).Return(&Job{ID: "batch_1", Status: StatusPending}, nil)

	s := NewSubmitter(backend, SubmitterConfig{Model: "m"})
	s.newID = seqIDs()

	h, err := s.Submit(context.Background(), testDeals("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, "batch_1", h.Job.ID)
	assert.Len(t, h.CustomIDs, 3)
	backend.AssertExpectations(t)
}

func TestSubmitter_SubmitEmpty(t *testing.T) {
	backend := new(mockBackend)
	_, err := NewSubmitter(backend, SubmitterConfig{}).Submit(context.Background(), nil)
	require.Error(t, err)
	backend.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitter_SubmitError(t *testing.T) {
	backend := new(mockBackend)
	backend.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	_, err := NewSubmitter(backend, SubmitterConfig{}).Submit(context.Background(), testDeals("A"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestSubmitter_SubmitInputTooLarge(t *testing.T) {
	backend := new(mockBackend)
	s := NewSubmitter(backend, SubmitterConfig{Model: "m", MaxInputBytes: 64})

	_, err := s.Submit(context.Background(), testDeals("A", "B"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit 64")
	backend.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestEncodeRequests(t *testing.T) {
	data, err := EncodeRequests([]Request{
		{CustomID: "a", System: "sys", User: "Deal info: {}", Model: "m", MaxTokens: 10, Temperature: 0.5},
		{CustomID: "b", System: "sys", User: "Deal info: {}", Model: "m", MaxTokens: 10},
	})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "a", first["custom_id"])
	params := first["params"].(map[string]any)
	assert.Equal(t, "sys", params["system"])
	assert.InDelta(t, 10, params["max_tokens"], 0)
	msgs := params["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "prompt.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("system: |\n  You are a deal analyst.\n"), 0o600))
	textPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("  Plain prompt.\n"), 0o600))
	emptyPath := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"yaml", yamlPath, "You are a deal analyst."},
		{"text", textPath, "Plain prompt."},
		{"empty file", emptyPath, FallbackPrompt},
		{"missing file", filepath.Join(dir, "nope.txt"), FallbackPrompt},
		{"no path", "", FallbackPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadPrompt(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadPrompt_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yml")
	require.NoError(t, os.WriteFile(path, []byte("system: [unclosed"), 0o600))

	_, err := LoadPrompt(path)
	require.Error(t, err)
}
