package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/refine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(endpoint string) *CustomSearch {
	return NewCustomSearch(&config.SearchConfig{
		Endpoint: endpoint,
		APIKey:   "secret",
		EngineID: "engine",
		Timeout:  2 * time.Second,
	})
}

func TestCustomSearch_Search(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{"key": q.Get("key"), "cx": q.Get("cx"), "q": q.Get("q"), "num": q.Get("num")}
		items := make([]Item, 0, 12)
		for i := 1; i <= 12; i++ {
			items = append(items, Item{
				Title:   fmt.Sprintf("Result %d", i),
				Link:    fmt.Sprintf("https://example.com/%d", i),
				Snippet: "chocolate bars",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{Items: items})
	}))
	defer srv.Close()

	results, err := newClient(srv.URL).Search(context.Background(), "milky way")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"key": "secret", "cx": "engine", "q": "milky way", "num": "10"}, got)
	require.Len(t, results, 10)
	assert.Equal(t, "Result 1", results[0].Title)
	assert.Equal(t, "https://example.com/1", results[0].URL)
	assert.Equal(t, "chocolate bars", results[0].Snippet)
}

func TestCustomSearch_noItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"kind":"customsearch#search"}`))
	}))
	defer srv.Close()

	results, err := newClient(srv.URL).Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCustomSearch_apiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Daily Limit Exceeded"}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Search(context.Background(), "milky way")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Code)
	assert.Contains(t, err.Error(), "Daily Limit Exceeded")
}

func TestCustomSearch_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Search(context.Background(), "milky way")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCustomSearch_canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(srv.URL).Search(ctx, "milky way")
	assert.Error(t, err)
}

func TestNewCustomSearch_defaults(t *testing.T) {
	c := NewCustomSearch(&config.SearchConfig{})
	assert.Equal(t, config.DefaultEndpoint, c.endpoint)
}
