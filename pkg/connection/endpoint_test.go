package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{name: "ws passthrough", endpoint: "ws://x/a", want: "ws://x/a"},
		{name: "wss passthrough", endpoint: "wss://x/a", want: "wss://x/a"},
		{name: "http rewritten", endpoint: "http://x/a", want: "ws://x/a"},
		{name: "https rewritten", endpoint: "https://x/a", want: "wss://x/a"},
		{
			name:     "port path and query preserved",
			endpoint: "https://feed.example:8443/streams/tasks?cursor=7",
			want:     "wss://feed.example:8443/streams/tasks?cursor=7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{name: "empty", endpoint: ""},
		{name: "unsupported scheme", endpoint: "tcp://x/a"},
		{name: "no scheme", endpoint: "x/a"},
		{name: "missing host", endpoint: "http://"},
		{name: "unparseable", endpoint: "http://bad host/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.endpoint)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestCloseEventNormal(t *testing.T) {
	assert.True(t, CloseEvent{Code: CloseNormalClosure, Clean: true}.Normal())
	assert.False(t, CloseEvent{Code: CloseNormalClosure, Clean: false}.Normal())
	assert.False(t, CloseEvent{Code: 1001, Clean: true}.Normal())
	assert.False(t, CloseEvent{Code: CloseAbnormalClosure}.Normal())
}
