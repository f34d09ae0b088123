package restkit

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
)

// Rules maps field names to rule expressions ("required|string|max:255").
type Rules map[string]string

// RuleSeparator joins individual rules inside one expression.
const RuleSeparator = "|"

// ruleConfig is the tagged store/update rule variant a descriptor carries:
// either the legacy flat field list (implicit presence-only) or role-keyed
// buckets of field -> presence-rule.
type ruleConfig struct {
	flat   []string
	byRole map[string]Rules
}

func (rc ruleConfig) empty() bool {
	return len(rc.flat) == 0 && len(rc.byRole) == 0
}

// bucket selects the effective presence bucket for a caller role:
// the caller's bucket, else the "*" fallback, else none. The legacy flat
// form normalizes to a single role-independent bucket of required fields.
func (rc ruleConfig) bucket(role string) Rules {
	if len(rc.flat) > 0 {
		rules := make(Rules, len(rc.flat))
		for _, field := range rc.flat {
			rules[field] = "required"
		}
		return rules
	}
	if rc.byRole == nil {
		return nil
	}
	if rules, ok := rc.byRole[role]; ok && role != "" {
		return rules
	}
	return rc.byRole["*"]
}

// Validator validates one payload against an effective per-field rule set.
// Validated output contains only fields of the selected bucket; payload
// fields outside it are dropped, not merely unchecked.
type Validator struct {
	rules   map[string]string
	payload Row
	checked bool
	errs    map[string][]string
}

// ResolveValidator builds the effective validator for one operation.
// The effective rule per field is presence-rule + base-format-rule
// concatenated, unless the presence rule is already a full compound rule
// (contains the separator), in which case it replaces the base entirely.
func ResolveValidator(d *Descriptor, action Action, payload Row, roleSlug string) *Validator {
	var cfg ruleConfig
	switch action {
	case ActionStore:
		cfg = d.storeRules
	case ActionUpdate:
		cfg = d.updateRules
	}

	bucket := cfg.bucket(roleSlug)
	effective := make(map[string]string, len(bucket))
	for field, presence := range bucket {
		base := d.baseRules[field]
		switch {
		case presence == "":
			effective[field] = base
		case strings.Contains(presence, RuleSeparator) || base == "":
			effective[field] = presence
		default:
			effective[field] = presence + RuleSeparator + base
		}
	}

	return &Validator{
		rules:   effective,
		payload: payload,
	}
}

// Passes runs validation and reports whether the payload satisfied every
// effective rule.
func (v *Validator) Passes() bool {
	v.run()
	return len(v.errs) == 0
}

// Errors returns per-field validation messages.
func (v *Validator) Errors() map[string][]string {
	v.run()
	return v.errs
}

// Validated returns only the payload fields present in the selected bucket.
func (v *Validator) Validated() Row {
	v.run()
	out := make(Row)
	for field := range v.rules {
		if value, ok := v.payload[field]; ok {
			out[field] = value
		}
	}
	return out
}

func (v *Validator) run() {
	if v.checked {
		return
	}
	v.checked = true
	v.errs = make(map[string][]string)

	for field, expr := range v.rules {
		v.checkField(field, expr)
	}
}

func (v *Validator) checkField(field, expr string) {
	value, present := v.payload[field]
	rules := strings.Split(expr, RuleSeparator)

	nullable := false
	for _, r := range rules {
		if r == "nullable" {
			nullable = true
		}
	}

	for _, rule := range rules {
		name, param := rule, ""
		if i := strings.Index(rule, ":"); i >= 0 {
			name, param = rule[:i], rule[i+1:]
		}

		switch name {
		case "required":
			if !present || value == nil || value == "" {
				v.fail(field, "field is required")
				return
			}
		case "sometimes", "nullable":
			// Presence modifiers; no value check of their own.
		default:
			if !present {
				continue
			}
			if value == nil {
				if !nullable {
					v.fail(field, "field must not be null")
					return
				}
				continue
			}
			v.checkValue(field, name, param, value)
		}
	}
}

func (v *Validator) checkValue(field, name, param string, value any) {
	switch name {
	case "string":
		if _, ok := value.(string); !ok {
			v.fail(field, "field must be a string")
		}
	case "integer":
		if !isInteger(value) {
			v.fail(field, "field must be an integer")
		}
	case "numeric":
		if _, ok := asFloat(value); !ok {
			v.fail(field, "field must be numeric")
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			v.fail(field, "field must be a boolean")
		}
	case "email":
		s, ok := value.(string)
		if !ok {
			v.fail(field, "field must be an email address")
			return
		}
		if _, err := mail.ParseAddress(s); err != nil {
			v.fail(field, "field must be an email address")
		}
	case "min":
		if limit, err := strconv.ParseFloat(param, 64); err == nil && sizeOf(value) < limit {
			v.fail(field, fmt.Sprintf("field must be at least %s", param))
		}
	case "max":
		if limit, err := strconv.ParseFloat(param, 64); err == nil && sizeOf(value) > limit {
			v.fail(field, fmt.Sprintf("field must be at most %s", param))
		}
	case "in":
		allowed := strings.Split(param, ",")
		if !contains(allowed, fmt.Sprintf("%v", value)) {
			v.fail(field, fmt.Sprintf("field must be one of %s", param))
		}
	}
}

func (v *Validator) fail(field, message string) {
	v.errs[field] = append(v.errs[field], message)
}

// sizeOf is the magnitude min/max compare against: numeric value for
// numbers, length for strings.
func sizeOf(value any) float64 {
	if f, ok := asFloat(value); ok {
		return f
	}
	if s, ok := value.(string); ok {
		return float64(len(s))
	}
	return 0
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isInteger(value any) bool {
	switch n := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == float64(int64(n))
	case float32:
		return float64(n) == float64(int64(n))
	case json.Number:
		f, err := n.Float64()
		return err == nil && f == float64(int64(f))
	}
	return false
}
