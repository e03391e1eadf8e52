// Package llm scores profiles with an OpenAI-compatible chat completion API.
// Responses are parsed strictly: anything not matching the evaluation shape is ErrMalformed
// so the caller's retry policy treats it like any other remote failure.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/sashabaranov/go-openai"

	"github.com/umputun/profscout/pkg/config"
	"github.com/umputun/profscout/pkg/domain"
)

// ErrMalformed is returned when the model response does not match the evaluation shape
var ErrMalformed = errors.New("malformed evaluation")

// Scorer evaluates profile text against a rubric
type Scorer struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string
	format    *openai.ChatCompletionResponseFormat
}

// Request holds everything needed to score one profile
type Request struct {
	ProfileText    string
	PatientProfile json.RawMessage
	Criteria       json.RawMessage
}

// default system prompt for profile evaluation
const defaultSystemPrompt = `You evaluate therapist profiles for fit with a specific patient.
You get the patient profile, the evaluation criteria with green and red flags, and the text of one therapist profile.

Score the fit from 0 to 100 where:
- 0-20: clear mismatch or several red flags
- 21-50: weak fit, important elements missing
- 51-75: reasonable fit
- 76-100: strong fit, most green flags present and no red flags

Respond with a single JSON object and nothing else:
{
  "score": number from 0 to 100,
  "reasoning": {
    "summary": "two or three sentences explaining the score",
    "greenFlagsFound": ["green flags present in the profile"],
    "redFlagsFound": ["red flags present in the profile"],
    "missingElements": ["important criteria the profile says nothing about"],
    "unexpectedPositives": ["strengths not listed in the criteria"]
  },
  "confidence": "high" | "medium" | "low"
}

Use "low" confidence when the profile text is too short to judge. Quote flags in the words of the criteria.`

// evaluationResponse describes the expected response for the json_schema response format
type evaluationResponse struct {
	Score      float64          `json:"score" jsonschema:"minimum=0,maximum=100"`
	Reasoning  domain.Reasoning `json:"reasoning"`
	Confidence string           `json:"confidence" jsonschema:"enum=high,enum=medium,enum=low"`
}

// NewScorer creates a scorer for the configured endpoint and model
func NewScorer(cfg config.LLMConfig) *Scorer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	// use custom system prompt if provided, otherwise use default
	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	s := &Scorer{client: openai.NewClientWithConfig(clientConfig), config: cfg, systemMsg: systemMsg}
	switch cfg.ResponseFormat {
	case "json_object":
		s.format = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	case "json_schema":
		s.format = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "profile_evaluation",
				Schema: ResponseSchema(),
			},
		}
	}
	return s
}

// ResponseSchema reflects the JSON schema of the expected evaluation
func ResponseSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	return r.Reflect(&evaluationResponse{})
}

// Score asks the model to evaluate one profile and returns the validated evaluation
func (s *Scorer) Score(ctx context.Context, req Request) (*domain.Evaluation, error) {
	if strings.TrimSpace(req.ProfileText) == "" {
		return nil, errors.New("empty profile text")
	}
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: float32(s.config.Temperature),
		MaxTokens:   s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: s.buildPrompt(req)},
		},
		ResponseFormat: s.format,
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrMalformed)
	}

	return ParseEvaluation(resp.Choices[0].Message.Content)
}

// buildPrompt creates the user message with rubric and profile text
func (s *Scorer) buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Patient profile:\n")
	sb.WriteString(rawOrEmpty(req.PatientProfile))
	sb.WriteString("\n\nEvaluation criteria:\n")
	sb.WriteString(rawOrEmpty(req.Criteria))
	sb.WriteString("\n\nTherapist profile:\n")
	sb.WriteString(Truncate(req.ProfileText, s.config.MaxTextLength))
	sb.WriteString("\n\nRespond with the JSON evaluation object.")
	return sb.String()
}

func rawOrEmpty(data json.RawMessage) string {
	if len(data) == 0 {
		return "{}"
	}
	return string(data)
}

// Truncate cuts text to at most limit runes, limit <= 0 disables truncation
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// ParseEvaluation extracts the evaluation object from the model output and validates it
func ParseEvaluation(content string) (*domain.Evaluation, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("%w: no json object found in response", ErrMalformed)
	}

	var raw struct {
		Score     *float64 `json:"score"`
		Reasoning *struct {
			Summary             *string  `json:"summary"`
			GreenFlagsFound     []string `json:"greenFlagsFound"`
			RedFlagsFound       []string `json:"redFlagsFound"`
			MissingElements     []string `json:"missingElements"`
			UnexpectedPositives []string `json:"unexpectedPositives"`
		} `json:"reasoning"`
		Confidence *string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case raw.Score == nil:
		return nil, fmt.Errorf("%w: missing score", ErrMalformed)
	case raw.Reasoning == nil:
		return nil, fmt.Errorf("%w: missing reasoning", ErrMalformed)
	case raw.Reasoning.Summary == nil:
		return nil, fmt.Errorf("%w: missing reasoning.summary", ErrMalformed)
	case raw.Reasoning.GreenFlagsFound == nil:
		return nil, fmt.Errorf("%w: missing reasoning.greenFlagsFound", ErrMalformed)
	case raw.Reasoning.RedFlagsFound == nil:
		return nil, fmt.Errorf("%w: missing reasoning.redFlagsFound", ErrMalformed)
	case raw.Confidence == nil:
		return nil, fmt.Errorf("%w: missing confidence", ErrMalformed)
	}

	confidence, err := domain.ParseConfidence(*raw.Confidence)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	res := &domain.Evaluation{
		Score: *raw.Score,
		Reasoning: domain.Reasoning{
			Summary:             *raw.Reasoning.Summary,
			GreenFlagsFound:     raw.Reasoning.GreenFlagsFound,
			RedFlagsFound:       raw.Reasoning.RedFlagsFound,
			MissingElements:     raw.Reasoning.MissingElements,
			UnexpectedPositives: raw.Reasoning.UnexpectedPositives,
		},
		Confidence: confidence,
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return res, nil
}
