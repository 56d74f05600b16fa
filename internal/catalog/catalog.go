// Package catalog embeds the seed quiz questions.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"greenplay-service/internal/domain"
)

//go:embed questions.yaml
var questionsYAML []byte

type document struct {
	Questions []domain.Question `yaml:"questions"`
}

// Questions decodes and validates the embedded catalog.
func Questions() ([]domain.Question, error) {
	return Parse(questionsYAML)
}

// Parse decodes a catalog document. Ids must be positive and unique.
func Parse(data []byte) ([]domain.Question, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[int64]struct{}, len(doc.Questions))
	for _, q := range doc.Questions {
		if q.ID <= 0 {
			return nil, domain.Validation("question id %d must be positive", q.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, domain.Validation("duplicate question id %d", q.ID)
		}
		seen[q.ID] = struct{}{}
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Questions, nil
}
