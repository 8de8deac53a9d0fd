package automation

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RuleFile is the YAML document used to export and import rules.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// EncodeRulesYAML renders rules as a RuleFile document.
func EncodeRulesYAML(rules []Rule) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(RuleFile{Rules: cloneRules(rules)}); err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRulesYAML parses a RuleFile document. Unknown keys are rejected so
// typos do not silently drop conditions or actions. Rules are not validated
// here; see Engine.ImportRules.
func DecodeRulesYAML(data []byte) ([]Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file RuleFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return cloneRules(file.Rules), nil
}
