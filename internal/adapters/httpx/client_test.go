package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/internal/adapters/httpx"
)

type payload struct {
	Value int `json:"value"`
}

func TestGetJSON_SendsParamsAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D", r.URL.Query().Get("granularity"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"value": 7}`))
	}))
	defer srv.Close()

	c := httpx.New(httpx.Config{Headers: map[string]string{"Authorization": "Bearer secret"}})
	var out payload
	err := c.GetJSON(context.Background(), srv.URL, url.Values{"granularity": {"D"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Value)
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value": 1}`))
	}))
	defer srv.Close()

	c := httpx.New(httpx.Config{}).WithRetryWait(time.Millisecond)
	var out payload
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"value": 2}`))
	}))
	defer srv.Close()

	c := httpx.New(httpx.Config{}).WithRetryWait(time.Millisecond)
	var out payload
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Equal(t, 2, out.Value)
}

func TestGetJSON_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessage":"bad token"}`))
	}))
	defer srv.Close()

	c := httpx.New(httpx.Config{}).WithRetryWait(time.Millisecond)
	err := c.GetJSON(context.Background(), srv.URL, nil, &payload{})
	assert.ErrorIs(t, err, httpx.ErrClient)
	assert.Contains(t, err.Error(), "bad token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSON_GivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := httpx.New(httpx.Config{}).WithRetryWait(time.Millisecond)
	err := c.GetJSON(context.Background(), srv.URL, nil, &payload{})
	assert.ErrorContains(t, err, "server error 500")
}
