package imagelookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/mindtrail/internal/domain"
)

const testKeyEnv = "MINDTRAIL_TEST_LOOKUP_KEY"

func newTestClient(t *testing.T, endpoint string) *UnsplashClient {
	t.Helper()
	t.Setenv(testKeyEnv, "secret")
	return NewUnsplashClient(domain.LookupSettings{
		Endpoint:      endpoint,
		AccessKeyEnv:  testKeyEnv,
		PerPage:       3,
		RatePerSecond: 100,
	}, time.Second)
}

func TestSearchParsesRegularURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID secret", r.Header.Get("Authorization"))
		assert.Equal(t, "calm sea", r.URL.Query().Get("query"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`{"total":2,"results":[
			{"id":"a","urls":{"regular":"https://img/a.jpg","small":"https://img/a-s.jpg"}},
			{"id":"b","urls":{"small":"https://img/b-s.jpg"}},
			{"id":"c","urls":{"regular":"https://img/c.jpg"}}
		]}`))
	}))
	defer srv.Close()

	refs, err := newTestClient(t, srv.URL).Search(context.Background(), "calm sea")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/c.jpg"}, refs)
}

func TestSearchReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Search(context.Background(), "calm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSearchRejectsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Search(context.Background(), "calm")
	require.Error(t, err)
}

func TestSearchWithoutAccessKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	c := NewUnsplashClient(domain.LookupSettings{AccessKeyEnv: testKeyEnv}, time.Second)
	assert.False(t, c.Configured())
	_, err := c.Search(context.Background(), "calm")
	assert.ErrorIs(t, err, ErrNoAccessKey)
}

func TestSearchHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "calm")
	require.Error(t, err)
}
