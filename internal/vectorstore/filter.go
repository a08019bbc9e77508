package vectorstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type exprKind int

const (
	kindCompare exprKind = iota + 1
	kindIn
	kindNin
	kindIsNull
	kindIsNotNull
	kindAnd
	kindOr
	kindNot
)

type CompareOp string

const (
	OpEq  CompareOp = "=="
	OpNe  CompareOp = "!="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
)

// Expression is an immutable predicate over chunk metadata. Build it with the
// package constructors and lower it with Compile.
type Expression struct {
	kind   exprKind
	key    string
	op     CompareOp
	value  interface{}
	values []interface{}
	left   *Expression
	right  *Expression
}

func compare(key string, op CompareOp, value interface{}) *Expression {
	return &Expression{kind: kindCompare, key: key, op: op, value: value}
}

func Eq(key string, value interface{}) *Expression  { return compare(key, OpEq, value) }
func Ne(key string, value interface{}) *Expression  { return compare(key, OpNe, value) }
func Gt(key string, value interface{}) *Expression  { return compare(key, OpGt, value) }
func Gte(key string, value interface{}) *Expression { return compare(key, OpGte, value) }
func Lt(key string, value interface{}) *Expression  { return compare(key, OpLt, value) }
func Lte(key string, value interface{}) *Expression { return compare(key, OpLte, value) }

func In(key string, values ...interface{}) *Expression {
	return &Expression{kind: kindIn, key: key, values: append([]interface{}(nil), values...)}
}

func Nin(key string, values ...interface{}) *Expression {
	return &Expression{kind: kindNin, key: key, values: append([]interface{}(nil), values...)}
}

func IsNull(key string) *Expression {
	return &Expression{kind: kindIsNull, key: key}
}

func IsNotNull(key string) *Expression {
	return &Expression{kind: kindIsNotNull, key: key}
}

func And(left, right *Expression) *Expression {
	return &Expression{kind: kindAnd, left: left, right: right}
}

func Or(left, right *Expression) *Expression {
	return &Expression{kind: kindOr, left: left, right: right}
}

func Not(operand *Expression) *Expression {
	return &Expression{kind: kindNot, left: operand}
}

const (
	alwaysTrue  = "exists($)"
	alwaysFalse = "!(exists($))"
)

// Compile lowers expr into a PostgreSQL jsonpath predicate usable with the
// jsonb @@ operator. A nil expression compiles to the empty string.
func Compile(expr *Expression) (string, error) {
	if expr == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := compileInto(&sb, expr); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func compileInto(sb *strings.Builder, expr *Expression) error {
	if expr == nil {
		return fmt.Errorf("filter: missing operand")
	}
	switch expr.kind {
	case kindAnd, kindOr:
		op := " && "
		if expr.kind == kindOr {
			op = " || "
		}
		sb.WriteString("(")
		if err := compileInto(sb, expr.left); err != nil {
			return err
		}
		sb.WriteString(op)
		if err := compileInto(sb, expr.right); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	case kindNot:
		sb.WriteString("!(")
		if err := compileInto(sb, expr.left); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	case kindIsNull:
		path, err := keyPath(expr.key)
		if err != nil {
			return err
		}
		sb.WriteString("!(exists(" + path + "))")
		return nil
	case kindIsNotNull:
		path, err := keyPath(expr.key)
		if err != nil {
			return err
		}
		sb.WriteString("exists(" + path + ")")
		return nil
	case kindIn, kindNin:
		return compileList(sb, expr)
	case kindCompare:
		return compileCompare(sb, expr.key, expr.op, expr.value)
	}
	return fmt.Errorf("filter: unknown expression kind %d", expr.kind)
}

func compileList(sb *strings.Builder, expr *Expression) error {
	if _, err := keyPath(expr.key); err != nil {
		return err
	}
	if len(expr.values) == 0 {
		if expr.kind == kindIn {
			sb.WriteString(alwaysFalse)
		} else {
			sb.WriteString(alwaysTrue)
		}
		return nil
	}
	if expr.kind == kindNin {
		sb.WriteString("!(")
	}
	sb.WriteString("(")
	for i, v := range expr.values {
		if i > 0 {
			sb.WriteString(" || ")
		}
		if err := compileCompare(sb, expr.key, OpEq, v); err != nil {
			return err
		}
	}
	sb.WriteString(")")
	if expr.kind == kindNin {
		sb.WriteString(")")
	}
	return nil
}

func compileCompare(sb *strings.Builder, key string, op CompareOp, value interface{}) error {
	path, err := keyPath(key)
	if err != nil {
		return err
	}
	if value == nil {
		switch op {
		case OpEq:
			sb.WriteString("!(exists(" + path + "))")
			return nil
		case OpNe:
			sb.WriteString("exists(" + path + ")")
			return nil
		}
		return fmt.Errorf("filter: operator %s does not accept null for key %q", op, key)
	}
	switch v := value.(type) {
	case string:
		sb.WriteString(path + " " + string(op) + " " + quote(v))
		return nil
	case bool:
		if op != OpEq && op != OpNe {
			return fmt.Errorf("filter: operator %s does not apply to boolean key %q", op, key)
		}
		sb.WriteString(path + " " + string(op) + " " + strconv.FormatBool(v))
		return nil
	}
	num, ok := numericLiteral(value)
	if !ok {
		return fmt.Errorf("filter: unsupported value type %T for key %q", value, key)
	}
	sb.WriteString(path + ".double() " + string(op) + " " + num)
	return nil
}

func numericLiteral(value interface{}) (string, bool) {
	switch v := value.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	}
	return "", false
}

func formatFloat(v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	return strconv.FormatFloat(v, 'g', -1, 64), true
}

func keyPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("filter: empty metadata key")
	}
	return "$." + quote(key), nil
}

// quote renders s as a jsonpath string literal. Every key and string value
// passes through here.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString(fmt.Sprintf(`\u%04x`, r))
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
