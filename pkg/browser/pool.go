// Package browser provides scoped browsing sessions over one shared HTTP engine.
// A Pool owns the transport and request pacing, every Session has its own cookie jar
// and must be released by the caller once the page work is done.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// ErrStatus is returned for pages answered with a non-2xx status
var ErrStatus = errors.New("unexpected status")

// maxPageSize limits the body read from a single page
const maxPageSize = 8 * 1024 * 1024

// Options configure the pool
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Sessions  int     // maximum sessions acquired at the same time
	RateLimit float64 // requests per second shared by all sessions, 0 disables pacing
}

// Pool hands out browsing sessions sharing one transport
type Pool struct {
	opts      Options
	transport http.RoundTripper
	limiter   *rate.Limiter
	slots     chan struct{}
}

// NewPool makes a pool with the given options
func NewPool(opts Options) *Pool {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Sessions <= 0 {
		opts.Sessions = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; Profscout/1.0)"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = opts.Sessions

	p := &Pool{opts: opts, transport: transport, slots: make(chan struct{}, opts.Sessions)}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return p
}

// Acquire blocks until a session slot is available or the context is done
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire session: %w", ctx.Err())
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("make cookie jar: %w", err)
	}
	return &Session{
		pool:   p,
		client: &http.Client{Transport: p.transport, Jar: jar, Timeout: p.opts.Timeout},
	}, nil
}

// InUse returns the number of sessions currently acquired
func (p *Pool) InUse() int { return len(p.slots) }

// Session is a scoped browsing context owned by a single caller
type Session struct {
	pool   *Pool
	client *http.Client
	once   sync.Once
}

// Release returns the session slot to the pool, safe to call more than once
func (s *Session) Release() {
	s.once.Do(func() { <-s.pool.slots })
}

// Page is a fetched and parsed HTML page
type Page struct {
	URL  *url.URL // final URL after redirects
	HTML []byte
	Doc  *goquery.Document
}

// Fetch loads the page, decodes its charset and parses the document
func (s *Session) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", pageURL)
	}

	if s.pool.limiter != nil {
		if err := s.pool.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, s.pool.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d for URL %s", ErrStatus, resp.StatusCode, pageURL)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxPageSize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode charset of %s: %w", pageURL, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", pageURL, err)
	}
	doc.Url = resp.Request.URL

	return &Page{URL: resp.Request.URL, HTML: body, Doc: doc}, nil
}
