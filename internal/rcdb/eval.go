package rcdb

import (
	"fmt"
	"strings"

	"github.com/halld-offline/conddb/internal/model"
)

// Evaluate decides the expression against one run's condition values.
//
// Evaluation is strict: a referenced condition with no value for the run
// fails with *MissingValueError rather than counting as false. Combinators
// evaluate every child left to right and the first child error wins, even
// when a sibling's truth value would already have decided the outcome.
// Short-circuiting must never mask a failure.
func Evaluate(e Expr, values map[string]model.CellValue) (bool, error) {
	if e.n == nil {
		return false, fmt.Errorf("rcdb: evaluate invalid expression")
	}
	n := e.n
	switch n.kind {
	case nodeLeaf:
		return evalLeaf(n, values)
	case nodeAll:
		result := true
		for _, child := range n.children {
			v, err := Evaluate(child, values)
			if err != nil {
				return false, err
			}
			result = result && v
		}
		return result, nil
	case nodeAny:
		result := false
		for _, child := range n.children {
			v, err := Evaluate(child, values)
			if err != nil {
				return false, err
			}
			result = result || v
		}
		return result, nil
	case nodeNot:
		v, err := Evaluate(n.children[0], values)
		if err != nil {
			return false, err
		}
		return !v, nil
	}
	return false, fmt.Errorf("rcdb: evaluate unknown node kind %d", n.kind)
}

func evalLeaf(n *node, values map[string]model.CellValue) (bool, error) {
	v, ok := values[n.cond.Name]
	if !ok {
		return false, &MissingValueError{Condition: n.cond.Name}
	}
	if v.Type() != n.cond.Type {
		return false, &ConditionTypeError{Name: n.cond.Name, Expected: n.cond.Type, Actual: v.Type()}
	}

	switch n.cond.Type {
	case model.TypeInt:
		a, _ := v.AsInt()
		b, _ := n.lit.AsInt()
		return cmpOrdered(a, n.op, b)
	case model.TypeUInt:
		a, _ := v.AsUInt()
		b, _ := n.lit.AsUInt()
		return cmpOrdered(a, n.op, b)
	case model.TypeFloat:
		// Direct float comparisons give IEEE semantics: every ordered
		// comparison with NaN is false, != with NaN is true.
		a, _ := v.AsFloat()
		b, _ := n.lit.AsFloat()
		return cmpOrdered(a, n.op, b)
	case model.TypeString:
		a, _ := v.AsString()
		switch n.op {
		case OpIn:
			for _, candidate := range n.list {
				if a == candidate {
					return true, nil
				}
			}
			return false, nil
		case OpContains:
			sub, _ := n.lit.AsString()
			return strings.Contains(a, sub), nil
		}
		b, _ := n.lit.AsString()
		return cmpOrdered(a, n.op, b)
	case model.TypeBool:
		a, _ := v.AsBool()
		b, _ := n.lit.AsBool()
		switch n.op {
		case OpEq:
			return a == b, nil
		case OpNe:
			return a != b, nil
		}
		return false, fmt.Errorf("rcdb: operator %s not valid for bool condition %q", n.op, n.cond.Name)
	case model.TypeTime:
		a, _ := v.AsTime()
		b, _ := n.lit.AsTime()
		switch n.op {
		case OpEq:
			return a.Equal(b), nil
		case OpNe:
			return !a.Equal(b), nil
		case OpLt:
			return a.Before(b), nil
		case OpLe:
			return !a.After(b), nil
		case OpGt:
			return a.After(b), nil
		case OpGe:
			return !a.Before(b), nil
		}
	}
	return false, fmt.Errorf("rcdb: operator %s not valid for %s condition %q", n.op, n.cond.Type, n.cond.Name)
}

func cmpOrdered[T int64 | uint64 | float64 | string](a T, op Op, b T) (bool, error) {
	switch op {
	case OpEq:
		return a == b, nil
	case OpNe:
		return a != b, nil
	case OpLt:
		return a < b, nil
	case OpLe:
		return a <= b, nil
	case OpGt:
		return a > b, nil
	case OpGe:
		return a >= b, nil
	}
	return false, fmt.Errorf("rcdb: operator %s not valid here", op)
}
