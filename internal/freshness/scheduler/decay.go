package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// Step maps an inactivity age threshold to a cadence multiplier. A domain
// inactive for at least After gets its revalidation interval scaled by
// Factor.
type Step struct {
	After  time.Duration `yaml:"after"`
	Factor float64       `yaml:"factor"`
}

// Curve is one section's decay table: multiplier steps plus a hard
// inactivity cutoff beyond which no task is ever submitted.
type Curve struct {
	Steps  []Step        `yaml:"steps"`
	Cutoff time.Duration `yaml:"cutoff"`
}

// FactorFor returns the multiplier for an inactivity age: the factor of the
// largest step whose threshold the age has reached, 1 when none.
func (c Curve) FactorFor(inactivity time.Duration) float64 {
	factor := 1.0
	for _, s := range c.Steps {
		if inactivity >= s.After {
			factor = s.Factor
		}
	}
	return factor
}

// validate checks the curve invariants: steps sorted by age with
// monotonically non-decreasing factors >= 1, and a positive cutoff at or
// past the last step.
func (c Curve) validate(section domain.Section) error {
	if c.Cutoff <= 0 {
		return fmt.Errorf("scheduler: section %q: cutoff must be positive", section)
	}
	if !sort.SliceIsSorted(c.Steps, func(i, j int) bool {
		return c.Steps[i].After < c.Steps[j].After
	}) {
		return fmt.Errorf("scheduler: section %q: steps must be sorted by age", section)
	}
	prev := 0.0
	for i, s := range c.Steps {
		if s.Factor < 1 {
			return fmt.Errorf("scheduler: section %q step %d: factor must be >= 1", section, i)
		}
		if s.Factor < prev {
			return fmt.Errorf("scheduler: section %q step %d: factors must not decrease", section, i)
		}
		prev = s.Factor
	}
	return nil
}

const day = 24 * time.Hour

// DefaultCurves returns the production decay tables. Fast-changing sections
// slow down (and cut off) sooner than slow-changing ones.
func DefaultCurves() map[domain.Section]Curve {
	return map[domain.Section]Curve{
		domain.SectionDNS: {
			Steps: []Step{
				{After: day, Factor: 2},
				{After: 3 * day, Factor: 3},
				{After: 7 * day, Factor: 6},
				{After: 30 * day, Factor: 12},
				{After: 90 * day, Factor: 24},
			},
			Cutoff: 180 * day,
		},
		domain.SectionHeaders: {
			Steps: []Step{
				{After: day, Factor: 2},
				{After: 3 * day, Factor: 4},
				{After: 7 * day, Factor: 8},
				{After: 30 * day, Factor: 16},
			},
			Cutoff: 120 * day,
		},
		domain.SectionCertificates: {
			Steps: []Step{
				{After: 7 * day, Factor: 1.5},
				{After: 30 * day, Factor: 2},
				{After: 90 * day, Factor: 3},
			},
			Cutoff: 365 * day,
		},
		domain.SectionRegistration: {
			Steps: []Step{
				{After: 30 * day, Factor: 1.5},
				{After: 60 * day, Factor: 2},
				{After: 120 * day, Factor: 3},
			},
			Cutoff: 730 * day,
		},
		domain.SectionSEO: {
			Steps: []Step{
				{After: day, Factor: 2},
				{After: 7 * day, Factor: 4},
				{After: 30 * day, Factor: 8},
			},
			Cutoff: 90 * day,
		},
	}
}
