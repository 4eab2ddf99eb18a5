// Package rules implements the SKU validation rule set.
//
// A RuleSet is loaded once at startup (from a YAML file or built-in
// defaults) and is immutable afterwards; Validate is a pure function over
// it and is safe for concurrent use. Rules are checked in a fixed order:
// length bounds first, then the allowed character class, then accepted
// prefixes (only when prefix enforcement is enabled). The first failing
// rule determines the reason.
package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Failure reasons reported by Validate.
const (
	ReasonLength  = "length"
	ReasonCharset = "charset"
	ReasonPrefix  = "prefix"
)

// Default bounds applied when the rule file does not specify them.
const (
	DefaultMinLength = 3
	DefaultMaxLength = 64
)

// DefaultAllowedPattern matches the SKU shapes the marketplaces emit:
// letters, digits, dot, underscore and hyphen.
const DefaultAllowedPattern = `^[A-Za-z0-9._-]+$`

// Outcome is the result of validating a single SKU.
type Outcome struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// RuleSet holds the compiled validation rules.
// Immutable after construction; shared read-only by all mapping operations.
type RuleSet struct {
	minLength       int
	maxLength       int
	allowed         *regexp.Regexp
	prefixes        []string
	enforcePrefixes bool
}

// Params describes a rule set before compilation.
// Zero values fall back to the package defaults.
type Params struct {
	MinLength        int
	MaxLength        int
	AllowedPattern   string
	AcceptedPrefixes []string
	EnforcePrefixes  bool
}

// New compiles a rule set from params.
// Returns an error if the bounds are inconsistent or the pattern is invalid.
func New(p Params) (*RuleSet, error) {
	if p.MinLength == 0 {
		p.MinLength = DefaultMinLength
	}
	if p.MaxLength == 0 {
		p.MaxLength = DefaultMaxLength
	}
	if p.MinLength < 1 {
		return nil, fmt.Errorf("min_length must be positive, got %d", p.MinLength)
	}
	if p.MaxLength < p.MinLength {
		return nil, fmt.Errorf("max_length (%d) must be >= min_length (%d)", p.MaxLength, p.MinLength)
	}
	if p.AllowedPattern == "" {
		p.AllowedPattern = DefaultAllowedPattern
	}
	re, err := regexp.Compile(p.AllowedPattern)
	if err != nil {
		return nil, fmt.Errorf("compile allowed_pattern: %w", err)
	}
	if p.EnforcePrefixes && len(p.AcceptedPrefixes) == 0 {
		return nil, fmt.Errorf("enforce_prefixes is set but accepted_prefixes is empty")
	}

	prefixes := make([]string, 0, len(p.AcceptedPrefixes))
	for _, pre := range p.AcceptedPrefixes {
		pre = strings.TrimSpace(pre)
		if pre != "" {
			prefixes = append(prefixes, pre)
		}
	}

	return &RuleSet{
		minLength:       p.MinLength,
		maxLength:       p.MaxLength,
		allowed:         re,
		prefixes:        prefixes,
		enforcePrefixes: p.EnforcePrefixes,
	}, nil
}

// MustNew compiles a rule set and panics on error. For tests and defaults.
func MustNew(p Params) *RuleSet {
	rs, err := New(p)
	if err != nil {
		panic(fmt.Sprintf("rules: %v", err))
	}
	return rs
}

// Default returns the built-in rule set: default length bounds, default
// character class, no prefix enforcement.
func Default() *RuleSet {
	return MustNew(Params{})
}

// Validate checks a SKU against the rule set.
// Pure function; no side effects.
func (r *RuleSet) Validate(sku string) Outcome {
	if len(sku) < r.minLength || len(sku) > r.maxLength {
		return Outcome{Valid: false, Reason: ReasonLength}
	}
	if !r.allowed.MatchString(sku) {
		return Outcome{Valid: false, Reason: ReasonCharset}
	}
	if r.enforcePrefixes {
		matched := false
		for _, pre := range r.prefixes {
			if strings.HasPrefix(sku, pre) {
				matched = true
				break
			}
		}
		if !matched {
			return Outcome{Valid: false, Reason: ReasonPrefix}
		}
	}
	return Outcome{Valid: true}
}

// Bounds returns the configured length bounds, for the dashboard.
func (r *RuleSet) Bounds() (min, max int) {
	return r.minLength, r.maxLength
}

// Prefixes returns a copy of the accepted prefixes and whether they are enforced.
func (r *RuleSet) Prefixes() ([]string, bool) {
	out := make([]string, len(r.prefixes))
	copy(out, r.prefixes)
	return out, r.enforcePrefixes
}
