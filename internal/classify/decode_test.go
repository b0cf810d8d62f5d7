package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResults = `{"custom_id":"r1","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"{\"dealname\":\"Alpha\","},{"type":"text","text":"\"recommendation\":\"Buy\"}"}]}}}

{"custom_id":"r2","result":{"type":"errored","error":{"type":"overloaded_error","message":"overloaded"}}}
`

func TestDecode(t *testing.T) {
	results, err := Decode([]byte(sampleResults), SkipMalformed)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "r1", results[0].CustomID)
	assert.True(t, results[0].Succeeded())
	assert.Equal(t, `{"dealname":"Alpha","recommendation":"Buy"}`, results[0].Text)

	assert.False(t, results[1].Succeeded())
	assert.Equal(t, "overloaded", results[1].Error)
}

func TestDecode_MalformedPolicy(t *testing.T) {
	raw := []byte(sampleResults + "not json\n" + `{"result":{"type":"succeeded"}}` + "\n")

	results, err := Decode(raw, SkipMalformed)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = Decode(raw, AbortOnMalformed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}

func TestDecode_Empty(t *testing.T) {
	results, err := Decode(nil, AbortOnMalformed)
	require.NoError(t, err)
	assert.Empty(t, results)
}
