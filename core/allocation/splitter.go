// Package allocation converts funding amounts into category token amounts.
package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/grantvest/core/model"
)

// ratioTolerance bounds how far the configured ratios may drift from 1.0.
const ratioTolerance = 1e-9

var (
	// ErrRatioSum is returned when the category ratios do not add up to 1.0.
	ErrRatioSum = errors.New("category ratios must sum to 1.0")
	// ErrInvalidRate is returned for a non-positive token conversion rate.
	ErrInvalidRate = errors.New("token conversion rate must be positive")
)

// Config defines the category ratios and the USD to token conversion rate.
type Config struct {
	ProjectRatio        float64 `json:"project_ratio" yaml:"project_ratio"`
	ParticipantRatio    float64 `json:"participant_ratio" yaml:"participant_ratio"`
	AuditorRatio        float64 `json:"auditor_ratio" yaml:"auditor_ratio"`
	TokenConversionRate float64 `json:"token_conversion_rate" yaml:"token_conversion_rate"`
}

// DefaultConfig returns the 50/30/20 split at one token per USD.
func DefaultConfig() Config {
	return Config{
		ProjectRatio:        0.50,
		ParticipantRatio:    0.30,
		AuditorRatio:        0.20,
		TokenConversionRate: 1.0,
	}
}

// Ratios returns the category ratios as a CategorySplit.
func (c Config) Ratios() model.CategorySplit {
	return model.CategorySplit{Project: c.ProjectRatio, Participant: c.ParticipantRatio, Auditor: c.AuditorRatio}
}

// Validate checks that ratios are non-negative and sum to 1.0 and that the
// conversion rate is positive.
func (c Config) Validate() error {
	for _, r := range []struct {
		name string
		v    float64
	}{
		{"project_ratio", c.ProjectRatio},
		{"participant_ratio", c.ParticipantRatio},
		{"auditor_ratio", c.AuditorRatio},
	} {
		if math.IsNaN(r.v) || math.IsInf(r.v, 0) || r.v < 0 {
			return fmt.Errorf("%w: %s is %v", ErrRatioSum, r.name, r.v)
		}
	}
	if sum := c.Ratios().Total(); math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("%w: got %v", ErrRatioSum, sum)
	}
	if math.IsNaN(c.TokenConversionRate) || math.IsInf(c.TokenConversionRate, 0) || c.TokenConversionRate <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, c.TokenConversionRate)
	}
	return nil
}

// Splitter applies a validated Config to funding amounts.
type Splitter struct {
	cfg Config
}

// NewSplitter validates cfg once and returns a Splitter.
func NewSplitter(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// Config returns the splitter configuration.
func (s *Splitter) Config() Config { return s.cfg }

// Tokens converts a USD amount into tokens. Negative or non-finite amounts
// count as 0.
func (s *Splitter) Tokens(amountUSD float64) float64 {
	if math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) || amountUSD < 0 {
		return 0
	}
	return amountUSD * s.cfg.TokenConversionRate
}

// Split divides the tokens for amountUSD across the three categories.
func (s *Splitter) Split(amountUSD float64) model.CategorySplit {
	return s.cfg.Ratios().Scale(s.Tokens(amountUSD))
}
