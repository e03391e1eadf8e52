package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/profscout/pkg/browser"
	"github.com/umputun/profscout/pkg/discovery/mocks"
	"github.com/umputun/profscout/pkg/domain"
)

func TestDiscoverer_PageURL(t *testing.T) {
	d := New(nil, "%s/page/%d")
	assert.Equal(t, "https://example.com/list", d.PageURL("https://example.com/list", 1))
	assert.Equal(t, "https://example.com/list/page/3", d.PageURL("https://example.com/list", 3))

	d = New(nil, "")
	assert.Equal(t, "https://example.com/list?page=2", d.PageURL("https://example.com/list", 2))
}

func TestDiscoverer_StopsOnEmptyPage(t *testing.T) {
	pages := map[string][]string{
		"root":        {"a", "b"},
		"root?page=2": {},
		"root?page=3": {"c"},
	}
	src := &mocks.LinkSourceMock{LinksFunc: func(_ context.Context, pageURL string) ([]string, error) {
		return pages[pageURL], nil
	}}

	groups := New(src, "").Discover(context.Background(), "root", 3)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Page)
	assert.Equal(t, []string{"a", "b"}, keys(Flatten(groups)))

	calls := src.LinksCalls()
	require.Len(t, calls, 2, "page 3 must never be fetched")
	assert.Equal(t, "root", calls[0].PageURL)
	assert.Equal(t, "root?page=2", calls[1].PageURL)
}

func TestDiscoverer_Dedup(t *testing.T) {
	pages := map[string][]string{
		"r":        {"a", "b", "c"},
		"r?page=2": {"b", "c"},
		"r?page=3": {"c", "d", "a", "e"},
		"r?page=4": {"f"},
	}
	src := &mocks.LinkSourceMock{LinksFunc: func(_ context.Context, pageURL string) ([]string, error) {
		return pages[pageURL], nil
	}}

	groups := New(src, "").Discover(context.Background(), "r", 4)

	// page 2 contributes nothing new, it is omitted but the walk goes on
	require.Len(t, groups, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{groups[0].Page, groups[1].Page, groups[2].Page})

	all := keys(Flatten(groups))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, all)
	seen := map[string]bool{}
	for _, k := range all {
		assert.False(t, seen[k], "duplicate %s", k)
		seen[k] = true
	}
	for _, it := range groups[1].Items {
		assert.Equal(t, 3, it.Page)
	}
	assert.Len(t, src.LinksCalls(), 4)
}

func TestDiscoverer_SkipsFailedPage(t *testing.T) {
	src := &mocks.LinkSourceMock{LinksFunc: func(_ context.Context, pageURL string) ([]string, error) {
		switch pageURL {
		case "r":
			return []string{"a"}, nil
		case "r?page=2":
			return nil, errors.New("connection reset")
		default:
			return []string{"b"}, nil
		}
	}}

	groups := New(src, "").Discover(context.Background(), "r", 3)
	assert.Equal(t, []string{"a", "b"}, keys(Flatten(groups)))
	assert.Len(t, src.LinksCalls(), 3)
}

func TestDiscoverer_AllPagesFail(t *testing.T) {
	src := &mocks.LinkSourceMock{LinksFunc: func(context.Context, string) ([]string, error) {
		return nil, errors.New("down")
	}}
	groups := New(src, "").Discover(context.Background(), "r", 5)
	assert.Empty(t, groups)
	assert.NotNil(t, groups)
	assert.Len(t, src.LinksCalls(), 5)
}

func TestDiscoverer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &mocks.LinkSourceMock{LinksFunc: func(_ context.Context, pageURL string) ([]string, error) {
		cancel()
		return []string{pageURL}, nil
	}}
	groups := New(src, "").Discover(ctx, "r", 5)
	assert.Len(t, groups, 1)
	assert.Len(t, src.LinksCalls(), 1)
}

func TestHTMLSource_Links(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := r.URL.Query().Get("page")
		switch page {
		case "", "1":
			fmt.Fprint(w, `<html><body>
				<a class="card" href="/profile/alice/">Alice</a>
				<a class="card" href="/profile/bob#reviews">Bob</a>
				<a class="card" href="/profile/alice">Alice again</a>
				<a class="nav" href="/about">About</a>
				<a class="card" href="mailto:someone@example.com">mail</a>
				</body></html>`)
		case "2":
			fmt.Fprint(w, `<html><body>
				<a class="card" href="/profile/bob">Bob</a>
				<a class="card" href="/profile/carol">Carol</a>
				</body></html>`)
		default:
			fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
		}
	}))
	defer ts.Close()

	pool := browser.NewPool(browser.Options{Sessions: 2, Timeout: 5 * time.Second})
	src, err := NewHTMLSource(pool, []string{"a.card"}, "/profile/")
	require.NoError(t, err)

	root := ts.URL + "/therapists"
	groups := New(src, "").Discover(context.Background(), root, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{ts.URL + "/profile/alice", ts.URL + "/profile/bob"}, keys(groups[0].Items))
	assert.Equal(t, []string{ts.URL + "/profile/carol"}, keys(groups[1].Items))
	assert.Equal(t, int32(3), hits.Load(), "walk stops at the first page without links")
	assert.Equal(t, 0, pool.InUse(), "sessions released")
}

func TestNewHTMLSource_BadPattern(t *testing.T) {
	_, err := NewHTMLSource(nil, nil, "([a-z")
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	base, err := url.Parse("https://Example.com/list/?page=2")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{href: "/profile/1/", want: "https://example.com/profile/1", ok: true},
		{href: "profile/2#top", want: "https://example.com/list/profile/2", ok: true},
		{href: "https://EXAMPLE.com/p?id=3", want: "https://example.com/p?id=3", ok: true},
		{href: "/", want: "https://example.com/", ok: true},
		{href: "#section", ok: false},
		{href: "", ok: false},
		{href: "javascript:void(0)", ok: false},
		{href: "mailto:a@b.c", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := Canonical(base, tt.href)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func keys(items []domain.WorkItem) []string {
	res := make([]string, 0, len(items))
	for _, it := range items {
		res = append(res, it.Key)
	}
	return res
}
