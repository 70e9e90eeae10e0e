package filter

import (
	"regexp"
	"strings"

	"fabricmcp/internal/api"
	"fabricmcp/pkg/logging"
)

// Expression is a declarative filter over a record's fields, decoded from the
// JSON "filters" argument of a query. It is a closed grammar, never executed
// as code:
//
//	{"site": "UCSD"}                                  implicit eq
//	{"cores_available": {"gte": 32}}                  operator leaf
//	{"site": "UCSD", "cores_available": {"gte": 32}}  sibling fields AND
//	{"or": [{"site": "UCSD"}, {"site": "RENC"}]}      disjunction
//	{"layer": "L2", "or": [...]}                      or conjoined with siblings
//
// An Expression is stateless; evaluating it twice against the same record
// yields the same result.
type Expression map[string]any

// orKey combines a list of sub-expressions disjunctively. It may appear next
// to ordinary field keys, in which case it is conjoined with them.
const orKey = "or"

// Evaluate reports whether record matches expr. A nil or empty expression
// matches everything. Malformed leaves (unknown operator, operand of the
// wrong type) evaluate false and are logged at warn level; filtering never
// fails the read path.
func Evaluate(record api.Record, expr Expression) bool {
	if len(expr) == 0 {
		return true
	}
	for key, cond := range expr {
		if key == orKey {
			if !evalOr(record, cond) {
				return false
			}
			continue
		}
		if !evalField(record, key, cond) {
			return false
		}
	}
	return true
}

// evalOr evaluates a disjunction node. cond must be a list of
// sub-expressions; anything else is a malformed filter and fails the node.
func evalOr(record api.Record, cond any) bool {
	subs, ok := cond.([]any)
	if !ok {
		logging.Warn("Filter", "\"or\" operand is %T, expected a list of sub-expressions", cond)
		return false
	}
	for _, sub := range subs {
		subExpr, ok := sub.(map[string]any)
		if !ok {
			logging.Warn("Filter", "\"or\" sub-expression is %T, expected a mapping", sub)
			continue
		}
		if Evaluate(record, Expression(subExpr)) {
			return true
		}
	}
	return false
}

// evalField evaluates one field's condition. A scalar condition is an
// implicit eq; a mapping holds one or more operator leaves, all of which
// must hold.
func evalField(record api.Record, field string, cond any) bool {
	value, present := record[field]

	ops, ok := cond.(map[string]any)
	if !ok {
		return Equal(value, cond)
	}
	for op, operand := range ops {
		if !evalLeaf(value, present, op, operand) {
			return false
		}
	}
	return true
}

// evalLeaf applies a single operator to the record's value at one field.
func evalLeaf(value any, present bool, op string, operand any) bool {
	switch op {
	case "eq":
		return present && Equal(value, operand)

	case "ne":
		// Missing fields are unequal to any operand.
		if !present {
			return true
		}
		return !Equal(value, operand)

	case "lt", "lte", "gt", "gte":
		if !present {
			return false
		}
		cmp, comparable := Compare(value, operand)
		if !comparable {
			logging.Warn("Filter", "operator %q applied to non-comparable pair (%T vs %T)", op, value, operand)
			return false
		}
		switch op {
		case "lt":
			return cmp < 0
		case "lte":
			return cmp <= 0
		case "gt":
			return cmp > 0
		default:
			return cmp >= 0
		}

	case "in":
		set, ok := operand.([]any)
		if !ok {
			logging.Warn("Filter", "operator \"in\" operand is %T, expected a list", operand)
			return false
		}
		if !present {
			return false
		}
		for _, member := range set {
			if Equal(value, member) {
				return true
			}
		}
		return false

	case "contains", "icontains":
		needle, ok := operand.(string)
		if !ok {
			logging.Warn("Filter", "operator %q operand is %T, expected a string", op, operand)
			return false
		}
		haystack := stringValue(value)
		if op == "icontains" {
			return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
		}
		return strings.Contains(haystack, needle)

	case "regex":
		pattern, ok := operand.(string)
		if !ok {
			logging.Warn("Filter", "operator \"regex\" operand is %T, expected a string", operand)
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			logging.Warn("Filter", "invalid regex pattern %q: %v", pattern, err)
			return false
		}
		return re.MatchString(stringValue(value))

	case "any", "all":
		list, ok := value.([]any)
		if !ok {
			// Missing field or non-list value cannot satisfy a list operator.
			return false
		}
		for _, elem := range list {
			matched := evalElement(elem, operand)
			if op == "any" && matched {
				return true
			}
			if op == "all" && !matched {
				return false
			}
		}
		// any over an empty list is false; all is vacuously true.
		return op == "all"

	default:
		logging.Warn("Filter", "unknown filter operator %q", op)
		return false
	}
}

// evalElement matches one list element against a nested sub-condition. A
// mapping element is matched as a record; a scalar element is matched against
// an operator mapping or directly by equality.
func evalElement(elem any, cond any) bool {
	condMap, ok := cond.(map[string]any)
	if !ok {
		return Equal(elem, cond)
	}
	if elemRecord, ok := elem.(map[string]any); ok {
		return Evaluate(api.Record(elemRecord), Expression(condMap))
	}
	for op, operand := range condMap {
		if !evalLeaf(elem, true, op, operand) {
			return false
		}
	}
	return true
}

// stringValue renders the field value for substring and regex matching.
// Missing and non-string values are treated as the empty string.
func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
