package propcore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsync/internal/domain"
)

type staticCreds struct {
	err error
}

func (c staticCreds) Apply(req *http.Request) error {
	if c.err != nil {
		return c.err
	}
	req.SetBasicAuth("client-id", "secret")
	return nil
}

func newTestClient(baseURL string, maxRetries int) (*Client, *[]time.Duration) {
	conn := &domain.Connection{
		ID:              1,
		Name:            "propcore",
		BaseURL:         baseURL,
		ClientID:        "client-id",
		EncryptedSecret: []byte("sealed"),
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := New(conn, staticCreds{}, Config{
		PageSize:   100,
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	}, logger)

	var delays []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	return client, &delays
}

func TestFetchPage_Success(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/v1/properties", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"id": 101}, {"id": 102}], "page": 1, "per_page": 100, "total_pages": 3}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL, 1)

	page, err := client.FetchPage(context.Background(), domain.ResourceProperties, 1, nil)
	require.NoError(t, err)

	assert.Len(t, page.Data, 2)
	assert.True(t, page.HasMore())
	assert.Equal(t, []string{"1"}, gotQuery["page"])
	assert.Equal(t, []string{"100"}, gotQuery["per_page"])
	assert.NotContains(t, gotQuery, "modified_since")
}

func TestFetchPage_ModifiedSince(t *testing.T) {
	var gotModifiedSince string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotModifiedSince = r.URL.Query().Get("modified_since")
		w.Write([]byte(`{"data": [], "page": 1, "per_page": 100, "total_pages": 0}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL, 1)
	since := time.Date(2026, 3, 1, 6, 30, 0, 0, time.FixedZone("CET", 3600))

	_, err := client.FetchPage(context.Background(), domain.ResourceUnits, 1, &since)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01T05:30:00Z", gotModifiedSince)
}

func TestFetchPage_RateLimitedThenSucceeds(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data": [{"id": 101}], "page": 1, "per_page": 100, "total_pages": 1}`))
	}))
	defer server.Close()

	client, delays := newTestClient(server.URL, 1)

	page, err := client.FetchPage(context.Background(), domain.ResourceProperties, 1, nil)
	require.NoError(t, err)

	assert.Len(t, page.Data, 1)
	assert.Equal(t, int32(2), requests.Load())
	require.Len(t, *delays, 1)
	assert.Equal(t, time.Second, (*delays)[0])
}

func TestFetchPage_ServerErrorExhaustsRetries(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, delays := newTestClient(server.URL, 1)

	_, err := client.FetchPage(context.Background(), domain.ResourceLeases, 1, nil)
	require.Error(t, err)

	// One retry means two attempts total.
	assert.Equal(t, int32(2), requests.Load())
	assert.Len(t, *delays, 1)
	assert.Contains(t, err.Error(), "after 2 attempts")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestFetchPage_ClientErrorIsFatal(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, delays := newTestClient(server.URL, 1)

	_, err := client.FetchPage(context.Background(), domain.ResourceExpenses, 1, nil)
	require.Error(t, err)

	assert.Equal(t, int32(1), requests.Load())
	assert.Empty(t, *delays)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFetchPage_CredentialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL, 0)
	client.creds = staticCreds{err: errors.New("key rotated")}

	_, err := client.FetchPage(context.Background(), domain.ResourceProperties, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply credentials")
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL, 1)
	assert.True(t, client.TestConnection(context.Background()))
}

func TestTestConnection_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL, 1)
	assert.False(t, client.TestConnection(context.Background()))
}

func TestTestConnection_Unconfigured(t *testing.T) {
	client, _ := newTestClient("https://api.propcore.test", 1)
	client.conn = &domain.Connection{Name: "propcore"}

	assert.False(t, client.IsConfigured())
	assert.False(t, client.TestConnection(context.Background()))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.Greater(t, got, 80*time.Second)

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}

func TestPage_HasMore(t *testing.T) {
	assert.True(t, (&Page{Page: 1, TotalPages: 3}).HasMore())
	assert.False(t, (&Page{Page: 3, TotalPages: 3}).HasMore())
	assert.False(t, (&Page{Page: 1, TotalPages: 0}).HasMore())
}
