package usecase

import (
	"slices"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
)

// Policy is the immutable, injected orchestration configuration shared by all runs.
type Policy struct {
	Thresholds map[domain.StrategyHint]float64

	// PartialFloor is the minimum confidence a rejected candidate needs to be
	// reported as partial instead of fallback.
	PartialFloor float64

	AttemptTimeout      time.Duration
	EngineTimeouts      map[string]time.Duration
	MaxAttempts         int
	MaxRetriesPerEngine int
	Scoring             ScoringConfig
}

func DefaultPolicy() Policy {
	return Policy{
		Thresholds: map[domain.StrategyHint]float64{
			domain.StrategyTextNative: 0.9,
			domain.StrategyScanOnly:   0.7,
			domain.StrategyHybrid:     0.5,
			domain.StrategyUnknown:    0.5,
		},
		PartialFloor:        0.5,
		AttemptTimeout:      2 * time.Minute,
		MaxAttempts:         16,
		MaxRetriesPerEngine: 0,
		Scoring:             DefaultScoringConfig(),
	}
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()

	thresholds := make(map[domain.StrategyHint]float64, len(def.Thresholds))
	for hint, v := range def.Thresholds {
		thresholds[hint] = v
	}
	for hint, v := range p.Thresholds {
		thresholds[hint] = clamp01(v)
	}
	out.Thresholds = thresholds

	timeouts := make(map[string]time.Duration, len(p.EngineTimeouts))
	for id, d := range p.EngineTimeouts {
		if d > 0 {
			timeouts[id] = d
		}
	}
	out.EngineTimeouts = timeouts

	if out.PartialFloor < 0 || out.PartialFloor > 1 {
		out.PartialFloor = def.PartialFloor
	}
	if out.AttemptTimeout <= 0 {
		out.AttemptTimeout = def.AttemptTimeout
	}
	if out.MaxAttempts < 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.MaxRetriesPerEngine < 0 {
		out.MaxRetriesPerEngine = 0
	}
	out.Scoring = out.Scoring.normalize()
	return out
}

// Threshold returns the acceptance threshold for a profile class.
func (p Policy) Threshold(hint domain.StrategyHint) float64 {
	if v, ok := p.Thresholds[hint]; ok {
		return v
	}
	return p.Thresholds[domain.StrategyUnknown]
}

func (p Policy) timeoutFor(engineID string) time.Duration {
	if d, ok := p.EngineTimeouts[engineID]; ok {
		return d
	}
	return p.AttemptTimeout
}

// OrderChain reorders, never filters, the configured chain for a strategy hint.
// SCAN_ONLY puts OCR engines ahead of text-layer engines; TEXT_NATIVE moves OCR to the tail.
func OrderChain(chain []ports.EngineAdapter, hint domain.StrategyHint) []ports.EngineAdapter {
	ordered := slices.Clone(chain)

	var rank func(domain.EngineKind) int
	switch hint {
	case domain.StrategyScanOnly:
		rank = func(k domain.EngineKind) int {
			switch k {
			case domain.EngineKindUnified:
				return 0
			case domain.EngineKindOCR:
				return 1
			default:
				return 2
			}
		}
	case domain.StrategyTextNative:
		rank = func(k domain.EngineKind) int {
			switch k {
			case domain.EngineKindOCR:
				return 2
			case domain.EngineKindTextLayer:
				return 1
			default:
				return 0
			}
		}
	default:
		return ordered
	}

	slices.SortStableFunc(ordered, func(a, b ports.EngineAdapter) int {
		return rank(a.Kind()) - rank(b.Kind())
	})
	return ordered
}
