package segment

import (
	"fmt"
	"strconv"
	"time"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// Validate checks every node of the tree: groups must be AND/OR, leaves must
// reference a known field with an operator that applies to it and a value of
// the right shape.
func Validate(tree model.RuleTree) error {
	return validateNode(tree, "rules")
}

func validateNode(node model.RuleTree, path string) error {
	if node.IsLeaf() {
		return validateRule(*node.Rule, path)
	}

	switch node.Logic {
	case model.LogicAnd, model.LogicOr:
	case "":
		if len(node.Conditions) > 0 {
			return appErrors.NewValidation(path+".operator", "is required for a group")
		}
	default:
		return appErrors.NewValidation(path+".operator", fmt.Sprintf("must be AND or OR, got %q", node.Logic))
	}

	for i, child := range node.Conditions {
		if err := validateNode(child, fmt.Sprintf("%s.conditions[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(r model.Rule, path string) error {
	field, ok := Fields[r.Field]
	if !ok {
		return appErrors.NewValidation(path+".field", fmt.Sprintf("unknown field %q", r.Field))
	}
	if _, ok := operatorKinds[r.Operator]; !ok {
		return appErrors.NewValidation(path+".operator", fmt.Sprintf("unknown operator %q", r.Operator))
	}
	if !operatorApplies(r.Operator, field.Kind) {
		return appErrors.NewValidation(path+".operator", fmt.Sprintf("%s does not apply to %s field %s", r.Operator, field.Kind, r.Field))
	}

	switch r.Operator {
	case model.OpBetween:
		values, ok := r.Value.([]any)
		if !ok || len(values) != 2 || values[0] == nil || values[1] == nil {
			return appErrors.NewValidation(path+".value", "between requires a two-element array")
		}
		for _, v := range values {
			if err := checkKind(field, v, path); err != nil {
				return err
			}
		}
	case model.OpIn, model.OpNotIn:
		values, ok := r.Value.([]any)
		if !ok || len(values) == 0 {
			return appErrors.NewValidation(path+".value", fmt.Sprintf("%s requires a non-empty array", r.Operator))
		}
		for _, v := range values {
			if !isScalar(v) {
				return appErrors.NewValidation(path+".value", "array elements must be scalars")
			}
			if err := checkKind(field, v, path); err != nil {
				return err
			}
		}
	default:
		if !isScalar(r.Value) {
			return appErrors.NewValidation(path+".value", fmt.Sprintf("%s requires a scalar value", r.Operator))
		}
		if err := checkKind(field, r.Value, path); err != nil {
			return err
		}
	}
	return nil
}

// dateLayouts are the accepted spellings of a date value.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// checkKind rejects values the field's SQL cast would fail on or misread.
func checkKind(field Field, v any, path string) error {
	switch field.Kind {
	case KindNumber:
		if _, err := toNumber(v); err != nil {
			return appErrors.NewValidation(path+".value", fmt.Sprintf("%s expects a number, got %v", field.Name, v))
		}
	case KindDate:
		if _, err := toDate(v); err != nil {
			return appErrors.NewValidation(path+".value", fmt.Sprintf("%s expects a date (YYYY-MM-DD or RFC 3339), got %v", field.Name, v))
		}
	}
	return nil
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func toDate(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("not a date: %v", v)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a date: %q", s)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, float32, int, int64, bool:
		return true
	}
	return false
}
