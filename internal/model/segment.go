// internal/model/segment.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Segment is a named customer cohort defined by a rule tree.
type Segment struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Rules        RuleTree   `db:"rules" json:"rules"`
	AudienceSize int        `db:"audience_size" json:"audienceSize"`
	OwnerID      string     `db:"owner_id" json:"ownerId"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}

type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
)

// Rule is a single comparison against a customer attribute.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// RuleTree is either a leaf (Rule set) or an AND/OR group of subtrees.
//
// On the wire a group is {"operator":"AND","conditions":[...]} and a leaf is
// {"field":...,"operator":...,"value":...}. A bare array of nodes decodes as
// an AND group.
type RuleTree struct {
	Logic      LogicOperator
	Conditions []RuleTree
	Rule       *Rule
}

func (t RuleTree) IsLeaf() bool { return t.Rule != nil }

// Leaf builds a leaf node.
func Leaf(field string, op Operator, value any) RuleTree {
	return RuleTree{Rule: &Rule{Field: field, Operator: op, Value: value}}
}

// Group builds a group node.
func Group(logic LogicOperator, conditions ...RuleTree) RuleTree {
	return RuleTree{Logic: logic, Conditions: conditions}
}

func (t RuleTree) MarshalJSON() ([]byte, error) {
	if t.Rule != nil {
		return json.Marshal(struct {
			Field    string   `json:"field"`
			Operator Operator `json:"operator"`
			Value    any      `json:"value"`
		}{t.Rule.Field, t.Rule.Operator, t.Rule.Value})
	}
	conditions := t.Conditions
	if conditions == nil {
		conditions = []RuleTree{}
	}
	logic := t.Logic
	if logic == "" {
		logic = LogicAnd
	}
	return json.Marshal(struct {
		Operator   LogicOperator `json:"operator"`
		Conditions []RuleTree    `json:"conditions"`
	}{logic, conditions})
}

func (t *RuleTree) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = RuleTree{}
		return nil
	}

	if trimmed[0] == '[' {
		var nodes []RuleTree
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return err
		}
		*t = RuleTree{Logic: LogicAnd, Conditions: nodes}
		return nil
	}

	var raw struct {
		Field      *string           `json:"field"`
		Operator   string            `json:"operator"`
		Value      any               `json:"value"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}

	if raw.Field != nil {
		*t = RuleTree{Rule: &Rule{Field: *raw.Field, Operator: Operator(raw.Operator), Value: raw.Value}}
		return nil
	}

	node := RuleTree{Logic: LogicOperator(raw.Operator)}
	for i, c := range raw.Conditions {
		var child RuleTree
		if err := json.Unmarshal(c, &child); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
		node.Conditions = append(node.Conditions, child)
	}
	*t = node
	return nil
}
