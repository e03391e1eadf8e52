package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// score range accepted for evaluations
const (
	MinScore = 0
	MaxScore = 100
)

// Confidence is an ordered confidence level of an evaluation
type Confidence string

// confidence levels, ordered from low to high
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank returns the position of the level in the low < medium < high order, -1 for unknown values
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the confidence is one of the known levels
func (c Confidence) Valid() bool { return c.Rank() >= 0 }

// ParseConfidence converts a free-form value to a known level, case-insensitive
func ParseConfidence(s string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown confidence %q", s)
	}
	return c, nil
}

// UnmarshalJSON rejects unknown confidence levels
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("confidence must be a string: %w", err)
	}
	parsed, err := ParseConfidence(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Reasoning is the structured rationale behind a score
type Reasoning struct {
	Summary             string   `json:"summary"`
	GreenFlagsFound     []string `json:"greenFlagsFound"`
	RedFlagsFound       []string `json:"redFlagsFound"`
	MissingElements     []string `json:"missingElements,omitempty"`
	UnexpectedPositives []string `json:"unexpectedPositives,omitempty"`
}

// Evaluation is a validated result returned by the remote scorer
type Evaluation struct {
	Score      float64    `json:"score"`
	Reasoning  Reasoning  `json:"reasoning"`
	Confidence Confidence `json:"confidence"`
}

// Validate checks score bounds, confidence level and presence of the summary
func (e *Evaluation) Validate() error {
	if e.Score < MinScore || e.Score > MaxScore {
		return fmt.Errorf("score %v out of range [%d,%d]", e.Score, MinScore, MaxScore)
	}
	if !e.Confidence.Valid() {
		return fmt.Errorf("invalid confidence %q", e.Confidence)
	}
	if strings.TrimSpace(e.Reasoning.Summary) == "" {
		return fmt.Errorf("empty reasoning summary")
	}
	return nil
}

// ScoreRecord is the stage two outcome for a single profile URL.
// Score is always set, failed evaluations carry score 0 and the failure in the rationale.
type ScoreRecord struct {
	URL        string     `json:"url"`
	Score      float64    `json:"score"`
	Reasoning  Reasoning  `json:"reasoning"`
	Confidence Confidence `json:"confidence"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts,omitempty"`
}

// Key returns the record identifier
func (r ScoreRecord) Key() string { return r.URL }

// Failed reports whether the evaluation failed
func (r ScoreRecord) Failed() bool { return r.Error != "" }

// NewScoreRecord makes a successful record from a validated evaluation, score is clamped to the allowed range
func NewScoreRecord(url string, ev Evaluation, attempts int) ScoreRecord {
	score := ev.Score
	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	return ScoreRecord{URL: url, Score: score, Reasoning: ev.Reasoning, Confidence: ev.Confidence, Attempts: attempts}
}

// FailedScore makes a zero-score record explaining why the evaluation failed
func FailedScore(item WorkItem, err error, attempts int) ScoreRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ScoreRecord{
		URL:   item.Key,
		Score: 0,
		Reasoning: Reasoning{
			Summary:         fmt.Sprintf("evaluation failed after %d attempt(s): %s", attempts, msg),
			GreenFlagsFound: []string{},
			RedFlagsFound:   []string{},
		},
		Confidence: ConfidenceLow,
		Error:      msg,
		Attempts:   attempts,
	}
}
