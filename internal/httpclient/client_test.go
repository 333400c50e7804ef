package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"models":["a"]}}`))
		case "/conflict":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"error":"conflict"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}
	}))
	defer srv.Close()

	headers := map[string]string{"Authorization": "Bearer secret"}
	ctx := context.Background()

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Models []string `json:"models"`
		} `json:"data"`
	}
	err := SendJSON(ctx, srv.Client(), Request{Method: http.MethodPost, URL: srv.URL + "/ok", Headers: headers, Body: map[string]string{"a": "b"}}, &out)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"a"}, out.Data.Models)

	err = SendJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/conflict", Headers: headers}, nil)
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusConflict, upstream.StatusCode)
	assert.Equal(t, "conflict", upstream.Message())

	err = SendJSON(ctx, srv.Client(), Request{Method: http.MethodGet, URL: srv.URL + "/other", Headers: headers}, nil)
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "bad gateway", upstream.Message())
}

func TestThrottledClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewThrottledClient(srv.Client(), 1, 1)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	// the bucket is empty and the deadline is shorter than the refill
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.Error(t, err)
}
