// Package segment validates segment rule trees and compiles them into
// parameterised audience queries over the customers table.
package segment

import "github.com/unclebandit/crm-backend/internal/model"

// FieldKind is the comparison domain of a customer attribute.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
)

// Field maps a rule field name to the SQL expression it compares against.
type Field struct {
	Name string
	Kind FieldKind
	SQL  string
}

const completedOrders = `FROM orders o WHERE o.customer_id = c.id AND o.status = 'COMPLETED'`

// Fields is the customer-attribute vocabulary a rule may reference.
var Fields = map[string]Field{
	"name":             {"name", KindString, "c.name"},
	"email":            {"email", KindString, "c.email"},
	"phone":            {"phone", KindString, "c.phone"},
	"address":          {"address", KindString, "c.address"},
	"city":             {"city", KindString, "c.city"},
	"state":            {"state", KindString, "c.state"},
	"country":          {"country", KindString, "c.country"},
	"postalCode":       {"postalCode", KindString, "c.postal_code"},
	"createdAt":        {"createdAt", KindDate, "c.created_at"},
	"totalSpent":       {"totalSpent", KindNumber, "(SELECT COALESCE(SUM(o.total), 0) " + completedOrders + ")"},
	"visits":           {"visits", KindNumber, "(SELECT COUNT(*) " + completedOrders + ")"},
	"lastPurchaseDate": {"lastPurchaseDate", KindDate, "(SELECT MAX(o.created_at) " + completedOrders + ")"},
}

// operatorKinds lists the field kinds each operator applies to.
var operatorKinds = map[model.Operator][]FieldKind{
	model.OpEquals:      {KindString, KindNumber, KindDate},
	model.OpNotEquals:   {KindString, KindNumber, KindDate},
	model.OpContains:    {KindString},
	model.OpNotContains: {KindString},
	model.OpGreaterThan: {KindNumber, KindDate},
	model.OpLessThan:    {KindNumber, KindDate},
	model.OpBetween:     {KindNumber, KindDate},
	model.OpIn:          {KindString, KindNumber, KindDate},
	model.OpNotIn:       {KindString, KindNumber, KindDate},
}

func operatorApplies(op model.Operator, kind FieldKind) bool {
	for _, k := range operatorKinds[op] {
		if k == kind {
			return true
		}
	}
	return false
}
