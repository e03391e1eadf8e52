// Package harvest wires the two pipeline stages.
// Harvester discovers profile links and extracts every profile, Evaluator scores extracted
// profiles against the rubric. Both run on top of the checkpointed job runner so each stage
// resumes from its own snapshot.
package harvest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/umputun/profscout/pkg/discovery"
	"github.com/umputun/profscout/pkg/domain"
	"github.com/umputun/profscout/pkg/job"
	"github.com/umputun/profscout/pkg/llm"
)

//go:generate moq -out mocks/discoverer.go -pkg mocks -skip-ensure -fmt goimports . Discoverer
//go:generate moq -out mocks/extractor.go -pkg mocks -skip-ensure -fmt goimports . Extractor
//go:generate moq -out mocks/scorer.go -pkg mocks -skip-ensure -fmt goimports . Scorer

// Discoverer walks the listing
type Discoverer interface {
	Discover(ctx context.Context, root string, maxPages int) []discovery.PageGroup
}

// Extractor loads one profile
type Extractor interface {
	Extract(ctx context.Context, profileURL string) (*domain.Profile, error)
}

// Scorer evaluates one profile
type Scorer interface {
	Score(ctx context.Context, req llm.Request) (*domain.Evaluation, error)
}

// Harvester runs the extraction stage
type Harvester struct {
	Discoverer Discoverer
	Extractor  Extractor
	Store      job.Snapshot[domain.ExtractionRecord]
	Job        job.Config
	Observer   job.Observer
	RootURL    string
	MaxPages   int
}

// Run discovers profiles and extracts the ones missing in the snapshot
func (h *Harvester) Run(ctx context.Context) (*job.Summary, error) {
	groups := h.Discoverer.Discover(ctx, h.RootURL, h.MaxPages)
	items := discovery.Flatten(groups)
	if len(items) == 0 {
		log.Printf("[WARN] no profiles discovered at %s", h.RootURL)
	} else {
		log.Printf("[INFO] discovered %d profiles on %d pages", len(items), len(groups))
	}

	runner := &job.Runner[*domain.Profile, domain.ExtractionRecord]{
		Name:   "extract",
		Store:  h.Store,
		Config: h.Job,
		Op: func(ctx context.Context, item domain.WorkItem) (*domain.Profile, error) {
			return h.Extractor.Extract(ctx, item.Key)
		},
		Success: func(item domain.WorkItem, p *domain.Profile, attempts int) domain.ExtractionRecord {
			return domain.ExtractionRecord{URL: item.Key, Data: p, PageNumber: item.Page, Attempts: attempts}
		},
		Failure:  domain.FailedExtraction,
		Observer: h.Observer,
	}
	_, summary, err := runner.Run(ctx, items)
	return summary, err
}

// Evaluator runs the scoring stage
type Evaluator struct {
	Profiles job.Snapshot[domain.ExtractionRecord]
	Scores   job.Snapshot[domain.ScoreRecord]
	Scorer   Scorer
	Rubric   *llm.Rubric
	Job      job.Config
	Observer job.Observer
}

// Run scores extracted profiles missing in the scores snapshot, final order is by score descending
func (e *Evaluator) Run(ctx context.Context) (*job.Summary, error) {
	if e.Rubric == nil {
		return nil, fmt.Errorf("rubric is not set")
	}
	records, err := e.Profiles.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	// profiles with nothing to render, e.g. only an avatar, are never sent to the scorer
	texts := make(map[string]string, len(records))
	items := make([]domain.WorkItem, 0, len(records))
	skipped := 0
	for _, r := range records {
		if r.Failed() {
			skipped++
			continue
		}
		text := ProfileText(r.Data)
		if text == "" {
			skipped++
			continue
		}
		texts[r.URL] = text
		items = append(items, domain.WorkItem{Key: r.URL, Page: r.PageNumber})
	}
	log.Printf("[INFO] %d extracted profiles to score, %d without text skipped", len(items), skipped)

	runner := &job.Runner[*domain.Evaluation, domain.ScoreRecord]{
		Name:   "score",
		Store:  e.Scores,
		Config: e.Job,
		Op: func(ctx context.Context, item domain.WorkItem) (*domain.Evaluation, error) {
			return e.Scorer.Score(ctx, llm.Request{
				ProfileText:    texts[item.Key],
				PatientProfile: e.Rubric.PatientProfile,
				Criteria:       e.Rubric.Criteria,
			})
		},
		Success: func(item domain.WorkItem, ev *domain.Evaluation, attempts int) domain.ScoreRecord {
			return domain.NewScoreRecord(item.Key, *ev, attempts)
		},
		Failure:  domain.FailedScore,
		Rank:     func(r domain.ScoreRecord) float64 { return r.Score },
		Observer: e.Observer,
	}
	_, summary, err := runner.Run(ctx, items)
	return summary, err
}

// ProfileText renders profile fields as plain text for the scorer
func ProfileText(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&sb, "Name: %s\n", p.Name)
	}
	switch {
	case p.Rating != nil && p.ReviewCount != nil:
		fmt.Fprintf(&sb, "Rating: %.1f (%d reviews)\n", *p.Rating, *p.ReviewCount)
	case p.Rating != nil:
		fmt.Fprintf(&sb, "Rating: %.1f\n", *p.Rating)
	case p.ReviewCount != nil:
		fmt.Fprintf(&sb, "Reviews: %d\n", *p.ReviewCount)
	}
	if p.AboutText != "" {
		fmt.Fprintf(&sb, "\nAbout:\n%s\n", p.AboutText)
	}
	if p.ExtendedAbout != nil && *p.ExtendedAbout != "" {
		fmt.Fprintf(&sb, "\nMore about:\n%s\n", *p.ExtendedAbout)
	}
	return strings.TrimSpace(sb.String())
}
