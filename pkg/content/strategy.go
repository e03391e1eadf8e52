package content

import (
	"bytes"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/profscout/pkg/browser"
)

// Strategy is a named way to find one field on a page, Find returns false when nothing was found
type Strategy struct {
	Name string
	Find func(p *browser.Page) (string, bool)
}

// Chain is an ordered list of strategies, the first one finding a value wins
type Chain []Strategy

// Run tries strategies in order and returns the value and the name of the strategy that found it
func (c Chain) Run(p *browser.Page) (value, by string, ok bool) {
	for _, s := range c {
		if v, found := s.Find(p); found {
			return v, s.Name, true
		}
	}
	return "", "", false
}

var (
	blockEnd   = regexp.MustCompile(`(?i)<(br|/p|/div|/li|/h[1-6]|/section|/blockquote)\b[^>]*>`)
	spaces     = regexp.MustCompile(`[ \t\r\f\v\p{Zs}]+`)
	decimalNum = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countNum   = regexp.MustCompile(`\d{1,3}(?:[,.\s]\d{3})+|\d+`)
)

// textPolicy drops every tag, script and style bodies included
var textPolicy = bluemonday.StrictPolicy()

// plainText renders a selection as text keeping line breaks at block boundaries
func plainText(s *goquery.Selection) string {
	raw, err := goquery.OuterHtml(s)
	if err != nil {
		return normalizeSpace(s.Text())
	}
	raw = blockEnd.ReplaceAllString(raw, "\n$0")
	return normalizeSpace(html.UnescapeString(textPolicy.Sanitize(raw)))
}

// normalizeSpace collapses runs of spaces and drops empty lines
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	res := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(spaces.ReplaceAllString(l, " "))
		if l != "" {
			res = append(res, l)
		}
	}
	return strings.Join(res, "\n")
}

// selectorText finds the first element matching css with non-empty text or content attribute
func selectorText(css string) Strategy {
	return Strategy{Name: "selector " + css, Find: func(p *browser.Page) (string, bool) {
		var res string
		p.Doc.Find(css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v := plainText(s); v != "" {
				res = v
				return false
			}
			if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
				res = strings.TrimSpace(v)
				return false
			}
			// leaf elements like <title> are skipped by the sanitizer
			if s.Children().Length() == 0 {
				if v := normalizeSpace(s.Text()); v != "" {
					res = v
					return false
				}
			}
			return true
		})
		return res, res != ""
	}}
}

// selectorAttr finds the first element matching css with one of the attributes set, relative URLs are resolved
func selectorAttr(css string, attrs ...string) Strategy {
	return Strategy{Name: "selector " + css, Find: func(p *browser.Page) (string, bool) {
		var res string
		p.Doc.Find(css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, a := range attrs {
				v, ok := s.Attr(a)
				if !ok || strings.TrimSpace(v) == "" || strings.HasPrefix(v, "data:") {
					continue
				}
				res = resolve(p, strings.TrimSpace(v))
				return false
			}
			return true
		})
		return res, res != ""
	}}
}

// metaContent reads a <meta> tag by property or name
func metaContent(key string) Strategy {
	return Strategy{Name: "meta " + key, Find: func(p *browser.Page) (string, bool) {
		sel := p.Doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
		v := strings.TrimSpace(sel.AttrOr("content", ""))
		return v, v != ""
	}}
}

// readability extracts the main text of the page with trafilatura
func readability(minLength int) Strategy {
	return Strategy{Name: "readability", Find: func(p *browser.Page) (string, bool) {
		opts := trafilatura.Options{
			EnableFallback:  true,
			ExcludeComments: true,
			Deduplicate:     true,
			OriginalURL:     p.URL,
		}
		result, err := trafilatura.Extract(bytes.NewReader(p.HTML), opts)
		if err != nil || result == nil {
			return "", false
		}
		text := normalizeSpace(result.ContentText)
		if len([]rune(text)) < minLength {
			return "", false
		}
		return text, true
	}}
}

func resolve(p *browser.Page, ref string) string {
	if p.URL == nil {
		return ref
	}
	u, err := p.URL.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// parseRating returns the first decimal number in s, comma decimal separators are accepted
func parseRating(s string) *float64 {
	m := decimalNum.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseCount returns the first integer in s, thousands separators are accepted
func parseCount(s string) *int {
	m := countNum.FindString(s)
	if m == "" {
		return nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	v, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &v
}
