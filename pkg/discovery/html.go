package discovery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/profscout/pkg/browser"
)

// HTMLSource finds profile links on listing pages with CSS selectors
type HTMLSource struct {
	pool      *browser.Pool
	selectors []string
	pattern   *regexp.Regexp
}

// NewHTMLSource makes a link source, pattern is optional and filters resolved links
func NewHTMLSource(pool *browser.Pool, selectors []string, pattern string) (*HTMLSource, error) {
	if len(selectors) == 0 {
		selectors = []string{"a[href]"}
	}
	src := &HTMLSource{pool: pool, selectors: selectors}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile link pattern: %w", err)
		}
		src.pattern = re
	}
	return src, nil
}

// Links fetches the page and returns its unique profile links in document order
func (h *HTMLSource) Links(ctx context.Context, pageURL string) ([]string, error) {
	sess, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	page, err := sess.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return h.extract(page.URL, page.Doc), nil
}

func (h *HTMLSource) extract(base *url.URL, doc *goquery.Document) []string {
	var res []string
	local := map[string]struct{}{}
	for _, sel := range h.selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			link, ok := Canonical(base, href)
			if !ok {
				return
			}
			if h.pattern != nil && !h.pattern.MatchString(link) {
				return
			}
			if _, dup := local[link]; dup {
				return
			}
			local[link] = struct{}{}
			res = append(res, link)
		})
	}
	return res
}

// Canonical resolves href against base and normalizes it.
// The fragment is dropped, the host is lowercased and a trailing slash is trimmed from non-root paths.
// Only http and https links are accepted.
func Canonical(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), true
}
