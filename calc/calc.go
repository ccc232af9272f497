// Package calc evaluates the four calculator operations over int64 operands.
//
// Results wrap with two's-complement int64 semantics, exactly as the Go
// language defines integer overflow. That includes math.MinInt64 / -1, which
// evaluates to math.MinInt64 instead of trapping. Overflows reports whether a
// given evaluation wrapped so callers can surface it; it never alters a result.
package calc

import (
	"math"

	"github.com/fixkme/calcsrv/errs"
)

type Op uint8

const (
	OpAdd Op = iota + 1
	OpSubtract
	OpMultiply
	OpDivide
)

var opNames = map[Op]string{
	OpAdd:      "add",
	OpSubtract: "subtract",
	OpMultiply: "multiply",
	OpDivide:   "divide",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// ParseOp 把操作名解析成 Op, 未知的名字返回 errs.InvalidOperation
func ParseOp(name string) (Op, error) {
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}
	return 0, errs.InvalidOperation
}

func Evaluate(op Op, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSubtract:
		return a - b, nil
	case OpMultiply:
		return a * b, nil
	case OpDivide:
		if b == 0 {
			return 0, errs.DivideByZero
		}
		return a / b, nil
	default:
		return 0, errs.InvalidOperation
	}
}

// Overflows 判断 Evaluate(op, a, b) 的结果是否发生了回绕
func Overflows(op Op, a, b int64) bool {
	switch op {
	case OpAdd:
		c := a + b
		return (c > a) != (b > 0)
	case OpSubtract:
		c := a - b
		return (c < a) != (b > 0)
	case OpMultiply:
		if a == 0 || b == 0 {
			return false
		}
		c := a * b
		return (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || c/b != a
	case OpDivide:
		return a == math.MinInt64 && b == -1
	}
	return false
}
