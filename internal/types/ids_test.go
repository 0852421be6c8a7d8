package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	require.NoError(t, id1.Validate())
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "uuid", input: "550e8400-e29b-41d4-a716-446655440000", wantErr: false},
		{name: "catalog slug", input: "slack-post-message", wantErr: false},
		{name: "slug with dots", input: "http.request.v2", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "embedded space", input: "slack message", wantErr: true},
		{name: "tab", input: "slack\tmessage", wantErr: true},
		{name: "newline", input: "slack\n", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxIDLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestIDIsZero(t *testing.T) {
	var zero ID
	assert.True(t, zero.IsZero())
	assert.False(t, NewID().IsZero())
}

func TestIDJSONRoundTrip(t *testing.T) {
	id := ID("webhook-trigger")

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"webhook-trigger"`, string(data))

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIDJSONNull(t *testing.T) {
	var zero ID
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var decoded ID
	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsZero())
}

func TestIDJSONRejectsInvalid(t *testing.T) {
	var decoded ID
	err := json.Unmarshal([]byte(`"has space"`), &decoded)
	assert.Error(t, err)
}
