package ner

import (
	"context"
	"sort"
	"strings"

	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/rules"
	"go.uber.org/zap"
)

// Model findings rank below every structured pattern, so a regex hit on the
// same span always wins overlap resolution.
const detectorPriority = 20

// labelCategories maps model label names to rule categories.
var labelCategories = map[string]string{
	"PER":    rules.CategoryPersonal,
	"PERSON": rules.CategoryPersonal,
	"LOC":    rules.CategoryPersonal,
	"ORG":    rules.CategoryPersonal,
	"MED":    rules.CategoryMedical,
}

// Detector adapts a Backend to the engine's Matcher interface, producing
// raw match candidates from model entities.
type Detector struct {
	backend       Backend
	minConfidence float32
	logger        *zap.Logger
}

// NewDetector wraps a backend. Findings below minConfidence are dropped.
func NewDetector(backend Backend, minConfidence float32, logger *zap.Logger) *Detector {
	return &Detector{
		backend:       backend,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Match implements engine.Matcher.
func (d *Detector) Match(ctx context.Context, text string) ([]engine.RawMatch, error) {
	if d.backend == nil || !d.backend.IsReady() {
		return nil, nil
	}

	entities, err := d.backend.DetectEntities(ctx, text)
	if err != nil {
		return nil, err
	}

	matches := make([]engine.RawMatch, 0, len(entities))
	for _, ent := range entities {
		if ent.Confidence < d.minConfidence {
			continue
		}
		if ent.ByteStart < 0 || ent.ByteEnd > len(text) || ent.ByteStart >= ent.ByteEnd {
			continue
		}
		category, ok := labelCategories[strings.ToUpper(ent.Label)]
		if !ok {
			category = rules.CategoryPersonal
		}
		matches = append(matches, engine.RawMatch{
			RuleID:    "ner." + strings.ToLower(ent.Label),
			Category:  category,
			Priority:  detectorPriority,
			ByteStart: ent.ByteStart,
			ByteEnd:   ent.ByteEnd,
			Text:      text[ent.ByteStart:ent.ByteEnd],
		})
	}

	// Model output order is not guaranteed; keep candidates deterministic.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ByteStart != matches[j].ByteStart {
			return matches[i].ByteStart < matches[j].ByteStart
		}
		return matches[i].ByteEnd < matches[j].ByteEnd
	})

	d.logger.Debug("model detector produced candidates",
		zap.Int("entities", len(entities)),
		zap.Int("accepted", len(matches)))

	return matches, nil
}
