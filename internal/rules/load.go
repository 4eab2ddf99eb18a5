package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk YAML shape of the rule set.
//
//	sku_validation_rules:
//	  min_length: 3
//	  max_length: 64
//	  allowed_pattern: "^[A-Za-z0-9._-]+$"
//	  accepted_prefixes: ["GLD", "SLV"]
//	  enforce_prefixes: false
type ruleFile struct {
	SkuValidationRules struct {
		MinLength        int      `yaml:"min_length"`
		MaxLength        int      `yaml:"max_length"`
		AllowedPattern   string   `yaml:"allowed_pattern"`
		AcceptedPrefixes []string `yaml:"accepted_prefixes"`
		EnforcePrefixes  bool     `yaml:"enforce_prefixes"`
	} `yaml:"sku_validation_rules"`
}

// LoadFile reads a rule set from a YAML file.
// A missing file is not an error: the built-in defaults apply, matching
// deployments that never customize validation.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse builds a rule set from YAML bytes.
func Parse(data []byte) (*RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	rs, err := New(Params{
		MinLength:        f.SkuValidationRules.MinLength,
		MaxLength:        f.SkuValidationRules.MaxLength,
		AllowedPattern:   f.SkuValidationRules.AllowedPattern,
		AcceptedPrefixes: f.SkuValidationRules.AcceptedPrefixes,
		EnforcePrefixes:  f.SkuValidationRules.EnforcePrefixes,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid rules file: %w", err)
	}
	return rs, nil
}
