// Package discovery walks a paginated listing and collects profile identifiers.
// Identifiers are deduplicated across all pages and grouped by the page where they were first seen.
package discovery

import (
	"context"
	"fmt"
	"log"

	"github.com/umputun/profscout/pkg/domain"
)

//go:generate moq -out mocks/link_source.go -pkg mocks -skip-ensure -fmt goimports . LinkSource

// LinkSource returns candidate identifiers found on a single listing page
type LinkSource interface {
	Links(ctx context.Context, pageURL string) ([]string, error)
}

// PageGroup holds identifiers first discovered on a page
type PageGroup struct {
	Page  int
	Items []domain.WorkItem
}

// Discoverer walks listing pages in order
type Discoverer struct {
	source     LinkSource
	pageFormat string
}

// New makes a discoverer, pageFormat gets the root URL and the page number, e.g. "%s?page=%d"
func New(source LinkSource, pageFormat string) *Discoverer {
	if pageFormat == "" {
		pageFormat = "%s?page=%d"
	}
	return &Discoverer{source: source, pageFormat: pageFormat}
}

// PageURL returns the address of the listing page, page 1 is the root itself
func (d *Discoverer) PageURL(root string, page int) string {
	if page <= 1 {
		return root
	}
	return fmt.Sprintf(d.pageFormat, root, page)
}

// Discover walks pages 1..maxPages and returns new identifiers grouped by page.
// A page without any raw links ends the walk, a page that fails to load is skipped.
// Pages contributing nothing new are omitted from the result.
func (d *Discoverer) Discover(ctx context.Context, root string, maxPages int) []PageGroup {
	seen := map[string]struct{}{}
	res := []PageGroup{}

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			log.Printf("[WARN] discovery interrupted at page %d: %v", page, ctx.Err())
			break
		}

		pageURL := d.PageURL(root, page)
		links, err := d.source.Links(ctx, pageURL)
		if err != nil {
			log.Printf("[WARN] failed to load listing page %d (%s): %v", page, pageURL, err)
			continue
		}
		if len(links) == 0 {
			log.Printf("[INFO] listing page %d has no links, stopping at %s", page, pageURL)
			break
		}

		group := PageGroup{Page: page}
		for _, link := range links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			group.Items = append(group.Items, domain.WorkItem{Key: link, Page: page})
		}
		log.Printf("[INFO] listing page %d: %d links, %d new", page, len(links), len(group.Items))
		if len(group.Items) > 0 {
			res = append(res, group)
		}
	}

	return res
}

// Flatten returns the items of all groups in page order
func Flatten(groups []PageGroup) []domain.WorkItem {
	var res []domain.WorkItem
	for _, g := range groups {
		res = append(res, g.Items...)
	}
	return res
}
