package browser

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

func TestSession_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><body><h1 class="name">Jane Roe</h1></body></html>`))
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("<html><body><h1>Jos\xe9</h1></body></html>"))
		case "/redirect":
			http.Redirect(w, r, "/ok", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	pool := NewPool(Options{UserAgent: "test-agent", Timeout: 5 * time.Second, Sessions: 2})
	sess, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	t.Run("ok", func(t *testing.T) {
		page, err := sess.Fetch(context.Background(), server.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, "Jane Roe", page.Doc.Find("h1.name").Text())
		assert.Contains(t, string(page.HTML), "Jane Roe")
	})

	t.Run("charset decoded", func(t *testing.T) {
		page, err := sess.Fetch(context.Background(), server.URL+"/latin1")
		require.NoError(t, err)
		assert.Equal(t, "José", page.Doc.Find("h1").Text())
	})

	t.Run("redirect keeps final url", func(t *testing.T) {
		page, err := sess.Fetch(context.Background(), server.URL+"/redirect")
		require.NoError(t, err)
		assert.Equal(t, "/ok", page.URL.Path)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := sess.Fetch(context.Background(), server.URL+"/missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStatus))
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := sess.Fetch(context.Background(), "not-a-url")
		require.Error(t, err)
	})
}

func TestPool_AcquireRelease(t *testing.T) {
	pool := NewPool(Options{Sessions: 1})

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.InUse())

	// second acquire blocks until the context expires
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s1.Release()
	s1.Release() // second release is a no-op
	assert.Equal(t, 0, pool.InUse())

	s2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	s2.Release()
	assert.Equal(t, 0, pool.InUse())
}

func TestPool_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	pool := NewPool(Options{Sessions: 1, RateLimit: 10})
	sess, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	start := time.Now()
	for range 3 {
		_, err := sess.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}
	// burst of one at 10 rps, third request waits at least ~200ms
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
