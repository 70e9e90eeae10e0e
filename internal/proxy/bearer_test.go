package proxy

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"BEARER abc123", "abc123"},
		{"  Bearer abc123  ", "abc123"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"abc123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBearer(tt.header), "header %q", tt.header)
	}
}

func TestHTTPContextFunc(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "http://localhost/mcp", nil)
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer tok-1")

	ctx := httpContextFunc(context.Background(), r)
	assert.Equal(t, "tok-1", BearerFromContext(ctx))
}

func TestBearerFromContextWithoutHeader(t *testing.T) {
	assert.Empty(t, BearerFromContext(context.Background()))
}
