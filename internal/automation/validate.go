package automation

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports the first structural problem found in rule data.
// Index is the position of the offending rule, or -1 for the collection.
type ValidationError struct {
	Index int
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid rules: %s", e.Msg)
	}
	if e.Field == "" {
		return fmt.Sprintf("invalid rule %d: %s", e.Index, e.Msg)
	}
	return fmt.Sprintf("invalid rule %d: %s: %s", e.Index, e.Field, e.Msg)
}

// ParseRules decodes a persisted blob and validates it against the registry.
// The whole collection is rejected on the first violation.
func ParseRules(blob string, reg *Registry) ([]Rule, error) {
	var raw any
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := validateCollection(raw, reg); err != nil {
		return nil, err
	}

	var rules []Rule
	if err := json.Unmarshal([]byte(blob), &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return cloneRules(rules), nil
}

// ValidateRule checks a single rule with the same contract used on load.
func ValidateRule(r Rule, reg *Registry) error {
	data, err := json.Marshal(r.Clone())
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}
	return validateRule(0, raw, reg)
}

func validateCollection(raw any, reg *Registry) error {
	list, ok := raw.([]any)
	if !ok {
		return &ValidationError{Index: -1, Msg: "expected an array"}
	}
	for i, item := range list {
		if err := validateRule(i, item, reg); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(i int, raw any, reg *Registry) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		return &ValidationError{Index: i, Msg: "expected an object"}
	}
	if _, ok := obj["id"].(string); !ok {
		return &ValidationError{Index: i, Field: "id", Msg: "expected a string"}
	}
	if _, ok := obj["name"].(string); !ok {
		return &ValidationError{Index: i, Field: "name", Msg: "expected a string"}
	}
	if _, ok := obj["isEnabled"].(bool); !ok {
		return &ValidationError{Index: i, Field: "isEnabled", Msg: "expected a boolean"}
	}

	trigger, ok := obj["trigger"].(map[string]any)
	if !ok {
		return &ValidationError{Index: i, Field: "trigger", Msg: "expected an object"}
	}
	ttype, ok := trigger["type"].(string)
	if !ok {
		return &ValidationError{Index: i, Field: "trigger.type", Msg: "expected a string"}
	}
	if _, known := reg.Trigger(ttype); !known {
		return &ValidationError{Index: i, Field: "trigger.type", Msg: fmt.Sprintf("unknown trigger %q", ttype)}
	}
	if TriggerType(ttype) == TriggerTimeBased {
		if _, ok := trigger["value"].(string); !ok {
			return &ValidationError{Index: i, Field: "trigger.value", Msg: "timeBased trigger requires a time"}
		}
	}

	if err := validateSteps(i, "conditions", obj["conditions"], func(id string) bool {
		_, ok := reg.Condition(id)
		return ok
	}); err != nil {
		return err
	}
	return validateSteps(i, "actions", obj["actions"], func(id string) bool {
		_, ok := reg.Action(id)
		return ok
	})
}

// validateSteps checks a conditions or actions array: every element needs a
// known string type and a string value.
func validateSteps(i int, field string, raw any, known func(string) bool) error {
	list, ok := raw.([]any)
	if !ok {
		return &ValidationError{Index: i, Field: field, Msg: "expected an array"}
	}
	for j, item := range list {
		path := fmt.Sprintf("%s[%d]", field, j)
		obj, ok := item.(map[string]any)
		if !ok {
			return &ValidationError{Index: i, Field: path, Msg: "expected an object"}
		}
		typ, ok := obj["type"].(string)
		if !ok {
			return &ValidationError{Index: i, Field: path + ".type", Msg: "expected a string"}
		}
		if !known(typ) {
			return &ValidationError{Index: i, Field: path + ".type", Msg: fmt.Sprintf("unknown type %q", typ)}
		}
		if _, ok := obj["value"].(string); !ok {
			return &ValidationError{Index: i, Field: path + ".value", Msg: "expected a string"}
		}
	}
	return nil
}
