package server

import (
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/profscout/pkg/domain"
)

// Result is a score joined with the extracted profile, fields of a missing profile are null
type Result struct {
	URL         string            `json:"url"`
	Score       float64           `json:"score"`
	Confidence  domain.Confidence `json:"confidence"`
	Reasoning   domain.Reasoning  `json:"reasoning"`
	Error       *string           `json:"error"`
	Name        *string           `json:"name"`
	Rating      *float64          `json:"rating"`
	ReviewCount *int              `json:"reviewCount"`
	Avatar      *string           `json:"avatar"`
	PageNumber  *int              `json:"pageNumber"`
}

// statusHandler returns server status with checkpoint counts
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.Load(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't load profiles")
		return
	}
	scores, err := s.scores.Load(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't load scores")
		return
	}

	failedProfiles, failedScores := 0, 0
	for _, p := range profiles {
		if p.Failed() {
			failedProfiles++
		}
	}
	for _, sc := range scores {
		if sc.Failed() {
			failedScores++
		}
	}

	rest.RenderJSON(w, rest.JSON{
		"status":   "ok",
		"version":  s.opts.Version,
		"time":     time.Now().UTC(),
		"profiles": rest.JSON{"total": len(profiles), "failed": failedProfiles},
		"scores":   rest.JSON{"total": len(scores), "failed": failedScores},
	})
}

// resultsHandler returns scores left-joined with profiles, best first.
// Query params: min_score filters out lower scores, limit caps the number of rows.
func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	minScore, limit, err := parseFilter(r)
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusBadRequest, err, err.Error())
		return
	}

	scores, err := s.scores.Load(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't load scores")
		return
	}
	profiles, err := s.profiles.Load(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't load profiles")
		return
	}

	results := joinResults(scores, profiles)
	filtered := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Score < minScore {
			continue
		}
		filtered = append(filtered, res)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	rest.RenderJSON(w, filtered)
}

// profilesHandler returns extraction records as stored
func (s *Server) profilesHandler(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.Load(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't load profiles")
		return
	}
	rest.RenderJSON(w, profiles)
}

// scoresHandler returns score records as stored
func (s *Server) scoresHandler(w http.ResponseWriter, r *http.Request) {
	scores, err := s.scores.Load(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't load scores")
		return
	}
	rest.RenderJSON(w, scores)
}

// joinResults merges profile fields into score rows and sorts them by score descending
func joinResults(scores []domain.ScoreRecord, profiles []domain.ExtractionRecord) []Result {
	byURL := make(map[string]domain.ExtractionRecord, len(profiles))
	for _, p := range profiles {
		if _, ok := byURL[p.URL]; !ok {
			byURL[p.URL] = p
		}
	}

	res := make([]Result, 0, len(scores))
	for _, sc := range scores {
		row := Result{URL: sc.URL, Score: sc.Score, Confidence: sc.Confidence, Reasoning: sc.Reasoning}
		if sc.Error != "" {
			row.Error = &sc.Error
		}
		if p, ok := byURL[sc.URL]; ok {
			if p.PageNumber > 0 {
				page := p.PageNumber
				row.PageNumber = &page
			}
			if p.Data != nil {
				name := p.Data.Name
				row.Name = &name
				row.Rating = p.Data.Rating
				row.ReviewCount = p.Data.ReviewCount
				row.Avatar = p.Data.Avatar
			}
		}
		res = append(res, row)
	}

	sort.SliceStable(res, func(i, j int) bool { return res[i].Score > res[j].Score })
	return res
}

func parseFilter(r *http.Request) (minScore float64, limit int, err error) {
	if v := r.URL.Query().Get("min_score"); v != "" {
		if minScore, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid min_score %q", v)
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
	}
	log.Printf("[DEBUG] results filter: min_score=%v, limit=%d", minScore, limit)
	return minScore, limit, nil
}
