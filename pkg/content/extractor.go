// Package content extracts profile fields from detail pages.
// Every field has its own ordered chain of strategies, a field nobody finds stays empty
// and never fails the whole profile. Only a page that cannot be loaded is an error.
package content

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/umputun/profscout/pkg/browser"
	"github.com/umputun/profscout/pkg/config"
	"github.com/umputun/profscout/pkg/domain"
)

// Extractor loads detail pages and fills profiles
type Extractor struct {
	pool *browser.Pool
	opts config.ExtractionConfig

	name, rating, reviews, about, extended, avatar Chain
}

// New makes an extractor with configured selectors first and generic fallbacks after them
func New(pool *browser.Pool, opts config.ExtractionConfig) *Extractor {
	if opts.RevealAttr == "" {
		opts.RevealAttr = "href"
	}
	if opts.RevealTimeout == 0 {
		opts.RevealTimeout = 5 * time.Second
	}
	sel := opts.Selectors

	e := &Extractor{pool: pool, opts: opts}
	e.name = append(textChain(sel.Name), metaContent("og:title"), selectorText("h1"), selectorText("title"))
	e.rating = append(textChain(sel.Rating), selectorText(`[itemprop="ratingValue"]`))
	e.reviews = append(textChain(sel.ReviewCount),
		selectorText(`[itemprop="reviewCount"]`), selectorText(`[itemprop="ratingCount"]`))
	e.about = append(textChain(sel.About), selectorText(`[itemprop="description"]`))
	if !opts.NoReadability {
		e.about = append(e.about, readability(opts.MinTextLength))
	}
	e.about = append(e.about, metaContent("og:description"), metaContent("description"))
	e.extended = textChain(sel.ExtendedAbout)
	e.avatar = make(Chain, 0, len(sel.Avatar)+2)
	for _, css := range sel.Avatar {
		e.avatar = append(e.avatar, selectorAttr(css, "src", "data-src", "content", "href"))
	}
	e.avatar = append(e.avatar, metaContent("og:image"), selectorAttr(`img[itemprop="image"]`, "src", "data-src"))
	return e
}

func textChain(selectors []string) Chain {
	res := make(Chain, 0, len(selectors))
	for _, css := range selectors {
		res = append(res, selectorText(css))
	}
	return res
}

// Extract loads the profile page and extracts all fields.
// The browsing session is held for the whole extraction, the optional reveal fetch included.
func (e *Extractor) Extract(ctx context.Context, profileURL string) (*domain.Profile, error) {
	sess, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	page, err := sess.Fetch(ctx, profileURL)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	res := &domain.Profile{}
	if v, ok := e.field(page, "name", e.name); ok {
		res.Name = v
	}
	if v, ok := e.field(page, "rating", e.rating); ok {
		res.Rating = parseRating(v)
	}
	if v, ok := e.field(page, "review count", e.reviews); ok {
		res.ReviewCount = parseCount(v)
	}
	if v, ok := e.field(page, "about", e.about); ok {
		res.AboutText = v
	}
	if v, ok := e.field(page, "avatar", e.avatar); ok {
		res.Avatar = &v
	}
	if v, ok := e.field(page, "extended about", e.extended); ok {
		res.ExtendedAbout = &v
	} else if v, ok := e.reveal(ctx, sess, page); ok {
		res.ExtendedAbout = &v
	}

	return res, nil
}

func (e *Extractor) field(page *browser.Page, name string, chain Chain) (string, bool) {
	v, by, ok := chain.Run(page)
	if !ok {
		log.Printf("[DEBUG] %s not found on %s", name, page.URL)
		return "", false
	}
	log.Printf("[DEBUG] %s found on %s by %s", name, page.URL, by)
	return v, true
}

// reveal follows the element holding hidden extended text and waits for it at most RevealTimeout.
// Any failure leaves the extended text absent.
func (e *Extractor) reveal(ctx context.Context, sess *browser.Session, page *browser.Page) (string, bool) {
	if e.opts.RevealSelector == "" {
		return "", false
	}
	target := strings.TrimSpace(page.Doc.Find(e.opts.RevealSelector).First().AttrOr(e.opts.RevealAttr, ""))
	if target == "" || strings.HasPrefix(target, "#") || strings.HasPrefix(target, "javascript:") {
		log.Printf("[DEBUG] nothing to reveal on %s", page.URL)
		return "", false
	}
	target = resolve(page, target)

	revealCtx, cancel := context.WithTimeout(ctx, e.opts.RevealTimeout)
	defer cancel()
	revealed, err := sess.Fetch(revealCtx, target)
	if err != nil {
		log.Printf("[DEBUG] extended text of %s not revealed: %v", page.URL, err)
		return "", false
	}

	if v, _, ok := e.extended.Run(revealed); ok {
		return v, true
	}
	v := plainText(revealed.Doc.Find("body"))
	return v, v != ""
}
