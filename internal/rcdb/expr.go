package rcdb

import (
	"strings"
	"time"

	"github.com/halld-offline/conddb/internal/model"
)

// Op is a comparison operator on a condition leaf.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// OpIn and OpContains are string-only membership and substring tests.
	OpIn
	OpContains
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	}
	return "?"
}

type nodeKind int

const (
	nodeLeaf nodeKind = iota
	nodeAll
	nodeAny
	nodeNot
)

type node struct {
	kind nodeKind

	// Leaf fields.
	cond Condition
	op   Op
	lit  model.CellValue
	list []string // OpIn operands

	children []Expr
}

// Expr is an immutable boolean expression over run conditions. The zero
// Expr is invalid; build expressions through a Registry's condition
// builders and the All/Any combinators.
type Expr struct {
	n *node
}

func newExpr(n *node) Expr { return Expr{n: n} }

// Valid reports whether the expression was actually built (non-zero).
func (e Expr) Valid() bool { return e.n != nil }

// Not negates the expression.
func (e Expr) Not() Expr {
	return newExpr(&node{kind: nodeNot, children: []Expr{e}})
}

// Conditions appends the names of every condition the expression
// references, in first-reference order without duplicates.
func (e Expr) Conditions() []string {
	var out []string
	seen := make(map[string]bool)
	e.walk(func(n *node) {
		if n.kind == nodeLeaf && !seen[n.cond.Name] {
			seen[n.cond.Name] = true
			out = append(out, n.cond.Name)
		}
	})
	return out
}

func (e Expr) walk(fn func(*node)) {
	if e.n == nil {
		return
	}
	fn(e.n)
	for _, child := range e.n.children {
		child.walk(fn)
	}
}

// String renders the expression for diagnostics.
func (e Expr) String() string {
	if e.n == nil {
		return "<invalid>"
	}
	n := e.n
	switch n.kind {
	case nodeLeaf:
		if n.op == OpIn {
			return n.cond.Name + " in [" + strings.Join(n.list, ", ") + "]"
		}
		return n.cond.Name + " " + n.op.String() + " " + n.lit.String()
	case nodeAll:
		return renderGroup("all", n.children)
	case nodeAny:
		return renderGroup("any", n.children)
	case nodeNot:
		return "not(" + n.children[0].String() + ")"
	}
	return "<invalid>"
}

func renderGroup(name string, children []Expr) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// All combines expressions with logical AND. An empty All evaluates to
// true.
func All(exprs ...Expr) Expr {
	return newExpr(&node{kind: nodeAll, children: append([]Expr(nil), exprs...)})
}

// Any combines expressions with logical OR. An empty Any evaluates to
// false.
func Any(exprs ...Expr) Expr {
	return newExpr(&node{kind: nodeAny, children: append([]Expr(nil), exprs...)})
}

func (r *Registry) typedCond(name string, want model.ColumnType) (Condition, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return Condition{}, &UnknownConditionError{Name: name}
	}
	if c.Type != want {
		return Condition{}, &ConditionTypeError{Name: name, Expected: want, Actual: c.Type}
	}
	return c, nil
}

// IntCond begins an integer comparison against the named condition. The
// name must already be registered with the Int type; misuse fails here, at
// build time, not at evaluation.
func (r *Registry) IntCond(name string) (IntCond, error) {
	c, err := r.typedCond(name, model.TypeInt)
	if err != nil {
		return IntCond{}, err
	}
	return IntCond{c: c}, nil
}

// FloatCond begins a floating-point comparison against the named condition.
func (r *Registry) FloatCond(name string) (FloatCond, error) {
	c, err := r.typedCond(name, model.TypeFloat)
	if err != nil {
		return FloatCond{}, err
	}
	return FloatCond{c: c}, nil
}

// StringCond begins a string comparison against the named condition.
func (r *Registry) StringCond(name string) (StringCond, error) {
	c, err := r.typedCond(name, model.TypeString)
	if err != nil {
		return StringCond{}, err
	}
	return StringCond{c: c}, nil
}

// BoolCond begins a boolean comparison against the named condition.
func (r *Registry) BoolCond(name string) (BoolCond, error) {
	c, err := r.typedCond(name, model.TypeBool)
	if err != nil {
		return BoolCond{}, err
	}
	return BoolCond{c: c}, nil
}

// TimeCond begins a timestamp comparison against the named condition.
func (r *Registry) TimeCond(name string) (TimeCond, error) {
	c, err := r.typedCond(name, model.TypeTime)
	if err != nil {
		return TimeCond{}, err
	}
	return TimeCond{c: c}, nil
}

func leaf(c Condition, op Op, lit model.CellValue) Expr {
	return newExpr(&node{kind: nodeLeaf, cond: c, op: op, lit: lit})
}

// IntCond builds comparison leaves for an Int condition.
type IntCond struct{ c Condition }

// Eq matches when the condition equals v.
func (f IntCond) Eq(v int64) Expr { return leaf(f.c, OpEq, model.Int(v)) }

// Ne matches when the condition differs from v.
func (f IntCond) Ne(v int64) Expr { return leaf(f.c, OpNe, model.Int(v)) }

// Lt matches when the condition is strictly less than v.
func (f IntCond) Lt(v int64) Expr { return leaf(f.c, OpLt, model.Int(v)) }

// Le matches when the condition is at most v.
func (f IntCond) Le(v int64) Expr { return leaf(f.c, OpLe, model.Int(v)) }

// Gt matches when the condition is strictly greater than v.
func (f IntCond) Gt(v int64) Expr { return leaf(f.c, OpGt, model.Int(v)) }

// Ge matches when the condition is at least v.
func (f IntCond) Ge(v int64) Expr { return leaf(f.c, OpGe, model.Int(v)) }

// FloatCond builds comparison leaves for a Float condition. Comparisons
// follow IEEE semantics: NaN compares unequal to everything, including
// itself.
type FloatCond struct{ c Condition }

func (f FloatCond) Eq(v float64) Expr { return leaf(f.c, OpEq, model.Float(v)) }
func (f FloatCond) Ne(v float64) Expr { return leaf(f.c, OpNe, model.Float(v)) }
func (f FloatCond) Lt(v float64) Expr { return leaf(f.c, OpLt, model.Float(v)) }
func (f FloatCond) Le(v float64) Expr { return leaf(f.c, OpLe, model.Float(v)) }
func (f FloatCond) Gt(v float64) Expr { return leaf(f.c, OpGt, model.Float(v)) }
func (f FloatCond) Ge(v float64) Expr { return leaf(f.c, OpGe, model.Float(v)) }

// StringCond builds comparison leaves for a String condition. Ordering is
// bytewise lexicographic.
type StringCond struct{ c Condition }

func (f StringCond) Eq(v string) Expr { return leaf(f.c, OpEq, model.Str(v)) }
func (f StringCond) Ne(v string) Expr { return leaf(f.c, OpNe, model.Str(v)) }
func (f StringCond) Lt(v string) Expr { return leaf(f.c, OpLt, model.Str(v)) }
func (f StringCond) Le(v string) Expr { return leaf(f.c, OpLe, model.Str(v)) }
func (f StringCond) Gt(v string) Expr { return leaf(f.c, OpGt, model.Str(v)) }
func (f StringCond) Ge(v string) Expr { return leaf(f.c, OpGe, model.Str(v)) }

// In matches when the condition equals any of values. An empty list never
// matches.
func (f StringCond) In(values ...string) Expr {
	return newExpr(&node{kind: nodeLeaf, cond: f.c, op: OpIn,
		list: append([]string(nil), values...)})
}

// Contains matches when the condition contains substr.
func (f StringCond) Contains(substr string) Expr {
	return leaf(f.c, OpContains, model.Str(substr))
}

// BoolCond builds comparison leaves for a Bool condition. Bool supports
// equality only.
type BoolCond struct{ c Condition }

func (f BoolCond) Eq(v bool) Expr { return leaf(f.c, OpEq, model.Bool(v)) }
func (f BoolCond) Ne(v bool) Expr { return leaf(f.c, OpNe, model.Bool(v)) }

// IsTrue matches when the condition is explicitly true.
func (f BoolCond) IsTrue() Expr { return f.Eq(true) }

// IsFalse matches when the condition is explicitly false.
func (f BoolCond) IsFalse() Expr { return f.Eq(false) }

// TimeCond builds comparison leaves for a Time condition. Ordering is
// chronological.
type TimeCond struct{ c Condition }

func (f TimeCond) Eq(v time.Time) Expr { return leaf(f.c, OpEq, model.Time(v)) }
func (f TimeCond) Ne(v time.Time) Expr { return leaf(f.c, OpNe, model.Time(v)) }
func (f TimeCond) Lt(v time.Time) Expr { return leaf(f.c, OpLt, model.Time(v)) }
func (f TimeCond) Le(v time.Time) Expr { return leaf(f.c, OpLe, model.Time(v)) }
func (f TimeCond) Gt(v time.Time) Expr { return leaf(f.c, OpGt, model.Time(v)) }
func (f TimeCond) Ge(v time.Time) Expr { return leaf(f.c, OpGe, model.Time(v)) }
