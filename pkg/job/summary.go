package job

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Summary describes one run of a job
type Summary struct {
	RunID     string
	Job       string
	Total     int // distinct input items
	Skipped   int // items already checkpointed before the run
	Processed int
	Succeeded int
	Failed    int
	Batches   int
	Pages     map[int]*PageStats
	Duration  time.Duration
}

// PageStats counts outcomes of items first discovered on one listing page
type PageStats struct {
	Succeeded int
	Failed    int
}

func newSummary(job string) *Summary {
	return &Summary{RunID: newRunID(), Job: job, Pages: map[int]*PageStats{}}
}

func (s *Summary) add(page int, ok bool) {
	ps, found := s.Pages[page]
	if !found {
		ps = &PageStats{}
		s.Pages[page] = ps
	}
	s.Processed++
	if ok {
		s.Succeeded++
		ps.Succeeded++
		return
	}
	s.Failed++
	ps.Failed++
}

func (s *Summary) done(started time.Time) *Summary {
	s.Duration = time.Since(started)
	return s
}

// String returns a multi-line report with per-page counts, page 0 means unknown page
func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s run %s: %d items, %d skipped, %d processed (%d ok, %d failed) in %d batches, %v",
		s.Job, s.RunID, s.Total, s.Skipped, s.Processed, s.Succeeded, s.Failed, s.Batches, s.Duration.Round(time.Millisecond))

	pages := make([]int, 0, len(s.Pages))
	for p := range s.Pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	for _, p := range pages {
		ps := s.Pages[p]
		if p == 0 {
			fmt.Fprintf(&sb, "\n  unknown page: %d ok, %d failed", ps.Succeeded, ps.Failed)
			continue
		}
		fmt.Fprintf(&sb, "\n  page %d: %d ok, %d failed", p, ps.Succeeded, ps.Failed)
	}
	return sb.String()
}
