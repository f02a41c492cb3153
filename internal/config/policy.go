package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/usecase"
)

// PolicyFile is the YAML override of the orchestration policy. Absent keys keep the env value.
type PolicyFile struct {
	Chain               []string                 `yaml:"chain"`
	Thresholds          map[string]float64       `yaml:"thresholds"`
	PartialFloor        *float64                 `yaml:"partial_floor"`
	AttemptTimeout      time.Duration            `yaml:"attempt_timeout"`
	EngineTimeouts      map[string]time.Duration `yaml:"engine_timeouts"`
	MaxAttempts         *int                     `yaml:"max_attempts"`
	MaxRetriesPerEngine *int                     `yaml:"max_retries_per_engine"`
	Scoring             *usecase.ScoringConfig   `yaml:"scoring"`
}

func LoadPolicyFile(path string) (PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PolicyFile{}, fmt.Errorf("read policy file: %w", err)
	}
	// Scoring keys missing from the file keep their defaults.
	file := PolicyFile{Scoring: ptr(usecase.DefaultScoringConfig())}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return PolicyFile{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	for hint := range file.Thresholds {
		if _, ok := hintsByKey[hint]; !ok {
			return PolicyFile{}, fmt.Errorf("parse policy file %s: unknown threshold class %q", path, hint)
		}
	}
	return file, nil
}

var hintsByKey = map[string]domain.StrategyHint{
	"text_native": domain.StrategyTextNative,
	"scan_only":   domain.StrategyScanOnly,
	"hybrid":      domain.StrategyHybrid,
	"unknown":     domain.StrategyUnknown,
}

// Policy builds the orchestration policy and engine chain from env values, then applies the
// policy file when one is configured.
func (c Config) Policy() (usecase.Policy, []string, error) {
	policy := usecase.DefaultPolicy()
	policy.Thresholds = map[domain.StrategyHint]float64{
		domain.StrategyTextNative: c.ThresholdTextNative,
		domain.StrategyScanOnly:   c.ThresholdScanOnly,
		domain.StrategyHybrid:     c.ThresholdHybrid,
		domain.StrategyUnknown:    c.ThresholdUnknown,
	}
	policy.PartialFloor = c.PartialFloor
	policy.AttemptTimeout = c.AttemptTimeout
	policy.MaxAttempts = c.MaxAttempts
	policy.MaxRetriesPerEngine = c.MaxRetriesPerEngine
	chain := c.EngineChain

	if c.PolicyFile == "" {
		return policy, chain, nil
	}
	file, err := LoadPolicyFile(c.PolicyFile)
	if err != nil {
		return usecase.Policy{}, nil, err
	}
	if len(file.Chain) > 0 {
		chain = file.Chain
	}
	for key, v := range file.Thresholds {
		policy.Thresholds[hintsByKey[key]] = v
	}
	if file.PartialFloor != nil {
		policy.PartialFloor = *file.PartialFloor
	}
	if file.AttemptTimeout > 0 {
		policy.AttemptTimeout = file.AttemptTimeout
	}
	if len(file.EngineTimeouts) > 0 {
		policy.EngineTimeouts = file.EngineTimeouts
	}
	if file.MaxAttempts != nil {
		policy.MaxAttempts = *file.MaxAttempts
	}
	if file.MaxRetriesPerEngine != nil {
		policy.MaxRetriesPerEngine = *file.MaxRetriesPerEngine
	}
	if file.Scoring != nil {
		policy.Scoring = *file.Scoring
	}
	return policy, chain, nil
}

func ptr[T any](v T) *T {
	return &v
}
