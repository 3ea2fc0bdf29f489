package segment

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// CustomerColumns is the projection used by BuildMembersQuery, in scan order.
const CustomerColumns = `c.id, c.name, c.email, COALESCE(c.phone, ''), COALESCE(c.address, ''),
	COALESCE(c.city, ''), COALESCE(c.state, ''), COALESCE(c.country, ''), COALESCE(c.postal_code, ''),
	c.metadata, c.owner_id, c.created_at`

// QueryBuilder builds SQL queries from segment rule trees. It is not safe for
// concurrent use; build one per query.
type QueryBuilder struct {
	args       []any
	argCounter int
}

// NewQueryBuilder creates a new QueryBuilder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{argCounter: 1}
}

func (qb *QueryBuilder) reset() {
	qb.args = nil
	qb.argCounter = 1
}

// nextArg returns the next argument placeholder
func (qb *QueryBuilder) nextArg(value any) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

// BuildMembersQuery selects the owner's customers matching the tree.
func (qb *QueryBuilder) BuildMembersQuery(ownerID string, tree model.RuleTree) (string, []any, error) {
	where, err := qb.buildWhere(ownerID, tree)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT " + CustomerColumns + "\nFROM customers c\nWHERE " + where + "\nORDER BY c.created_at, c.id"
	return query, qb.args, nil
}

// BuildCountQuery counts the owner's customers matching the tree.
func (qb *QueryBuilder) BuildCountQuery(ownerID string, tree model.RuleTree) (string, []any, error) {
	where, err := qb.buildWhere(ownerID, tree)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*)\nFROM customers c\nWHERE " + where, qb.args, nil
}

func (qb *QueryBuilder) buildWhere(ownerID string, tree model.RuleTree) (string, error) {
	qb.reset()

	if err := Validate(tree); err != nil {
		return "", err
	}

	conditions := []string{fmt.Sprintf("c.owner_id = %s", qb.nextArg(ownerID))}

	main, err := qb.buildNode(tree)
	if err != nil {
		return "", err
	}
	if main != "" {
		conditions = append(conditions, "("+main+")")
	}
	return strings.Join(conditions, "\n  AND "), nil
}

func (qb *QueryBuilder) buildNode(node model.RuleTree) (string, error) {
	if node.IsLeaf() {
		return qb.buildRule(*node.Rule)
	}

	parts := []string{}
	for _, child := range node.Conditions {
		sql, err := qb.buildNode(child)
		if err != nil {
			return "", err
		}
		if sql == "" {
			continue
		}
		if child.IsLeaf() {
			parts = append(parts, sql)
		} else {
			parts = append(parts, "("+sql+")")
		}
	}

	if len(parts) == 0 {
		return "", nil
	}

	operator := " AND "
	if node.Logic == model.LogicOr {
		operator = " OR "
	}
	return strings.Join(parts, operator), nil
}

// buildRule assumes the rule already passed Validate.
func (qb *QueryBuilder) buildRule(r model.Rule) (string, error) {
	field := Fields[r.Field]
	expr := field.SQL
	cast := sqlCast(field.Kind)

	switch r.Operator {
	case model.OpEquals:
		return fmt.Sprintf("%s = %s%s", expr, qb.nextArg(scalar(r.Value)), cast), nil
	case model.OpNotEquals:
		return fmt.Sprintf("%s IS DISTINCT FROM %s%s", expr, qb.nextArg(scalar(r.Value)), cast), nil
	case model.OpContains:
		return fmt.Sprintf("%s ILIKE %s", expr, qb.nextArg("%"+escapeLike(fmt.Sprint(r.Value))+"%")), nil
	case model.OpNotContains:
		return fmt.Sprintf("COALESCE(%s, '') NOT ILIKE %s", expr, qb.nextArg("%"+escapeLike(fmt.Sprint(r.Value))+"%")), nil
	case model.OpGreaterThan:
		return fmt.Sprintf("%s > %s%s", expr, qb.nextArg(scalar(r.Value)), cast), nil
	case model.OpLessThan:
		return fmt.Sprintf("%s < %s%s", expr, qb.nextArg(scalar(r.Value)), cast), nil
	case model.OpBetween:
		values := r.Value.([]any)
		return fmt.Sprintf("%s BETWEEN %s%s AND %s%s", expr,
			qb.nextArg(scalar(values[0])), cast, qb.nextArg(scalar(values[1])), cast), nil
	case model.OpIn, model.OpNotIn:
		arr, err := arrayArg(field.Kind, r.Value.([]any))
		if err != nil {
			return "", appErrors.NewValidation("value", err.Error())
		}
		clause := fmt.Sprintf("%s = ANY(%s%s[])", expr, qb.nextArg(arr), cast)
		if r.Operator == model.OpNotIn {
			clause = "NOT (" + clause + ")"
		}
		return clause, nil
	default:
		return "", fmt.Errorf("unsupported operator: %s", r.Operator)
	}
}

func sqlCast(kind FieldKind) string {
	switch kind {
	case KindNumber:
		return "::numeric"
	case KindDate:
		return "::timestamptz"
	default:
		return "::text"
	}
}

// scalar normalises JSON scalars to driver values.
func scalar(v any) any {
	switch t := v.(type) {
	case string, float64, int64:
		return t
	case float32:
		return float64(t)
	case int:
		return int64(t)
	default:
		return fmt.Sprint(t)
	}
}

func arrayArg(kind FieldKind, values []any) (any, error) {
	if kind == KindNumber {
		out := make(pq.Float64Array, 0, len(values))
		for _, v := range values {
			f, err := toNumber(v)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}
	out := make(pq.StringArray, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
