package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rubric is the patient profile and the evaluation criteria, both normalized to JSON
type Rubric struct {
	PatientProfile json.RawMessage
	Criteria       json.RawMessage
}

// LoadRubric reads both rubric files, YAML and JSON are accepted
func LoadRubric(patientPath, criteriaPath string) (*Rubric, error) {
	patient, err := loadDocument(patientPath)
	if err != nil {
		return nil, fmt.Errorf("load patient profile: %w", err)
	}
	criteria, err := loadDocument(criteriaPath)
	if err != nil {
		return nil, fmt.Errorf("load criteria: %w", err)
	}
	return &Rubric{PatientProfile: patient, Criteria: criteria}, nil
}

// loadDocument parses a YAML or JSON file and re-encodes it as compact JSON
func loadDocument(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, errors.New("file is not set")
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s is empty", path)
	}

	res, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	return res, nil
}

// normalize converts maps with non-string keys, which json can't encode
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		res := make(map[string]any, len(t))
		for k, val := range t {
			res[fmt.Sprint(k)] = normalize(val)
		}
		return res
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
