// Package query implements the columnar query executor: predicate
// evaluation over materialized column data, tier fan-out, and result
// caching keyed by query signature.
package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// Comparison operators accepted in predicates.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpLt       = "lt"
	OpLe       = "le"
	OpGt       = "gt"
	OpGe       = "ge"
	OpContains = "contains"
)

// Predicate is a boolean filter over one column's materialized values.
type Predicate struct {
	Column string      `json:"column"`
	Op     string      `json:"op"`
	Value  interface{} `json:"value"`
}

// Validate checks the predicate's shape.
func (p Predicate) Validate() error {
	if p.Column == "" {
		return errors.NewQueryError(errors.CodeInvalidPredicate, "predicate has no column")
	}
	switch p.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains:
		return nil
	default:
		return errors.NewQueryError(errors.CodeUnknownOperator,
			fmt.Sprintf("unknown operator %q", p.Op))
	}
}

// evaluateMask computes a row-survival mask of length rows by applying all
// predicates conjunctively against the materialized data. A row referencing
// a missing or exhausted predicate column never matches.
func evaluateMask(predicates []Predicate, data map[string][]interface{}, rows int) ([]bool, error) {
	mask := make([]bool, rows)
	for i := range mask {
		mask[i] = true
	}

	for _, p := range predicates {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		values := data[p.Column]
		for i := 0; i < rows; i++ {
			if !mask[i] {
				continue
			}
			if i >= len(values) {
				mask[i] = false
				continue
			}
			ok, err := matchValue(p.Op, values[i], p.Value)
			if err != nil {
				return nil, err
			}
			mask[i] = ok
		}
	}
	return mask, nil
}

// matchValue applies one operator to a stored value and a predicate target.
// Null rows never match. Ordering operators require both sides numeric or
// both sides string.
func matchValue(op string, stored, target interface{}) (bool, error) {
	if stored == nil {
		return false, nil
	}

	switch op {
	case OpEq:
		return valuesEqual(stored, target), nil
	case OpNe:
		return !valuesEqual(stored, target), nil
	case OpContains:
		s, sok := types.AsString(stored)
		t, tok := types.AsString(target)
		if !sok || !tok {
			return false, errors.NewQueryError(errors.CodeInvalidPredicate,
				fmt.Sprintf("contains requires string operands, got %T and %T", stored, target))
		}
		return strings.Contains(s, t), nil
	}

	// Ordering operators.
	if sf, sok := types.AsFloat64(stored); sok {
		tf, tok := types.AsFloat64(target)
		if !tok {
			return false, orderingMismatch(op, stored, target)
		}
		return compareOrder(op, sf < tf, sf == tf), nil
	}
	if ss, sok := types.AsString(stored); sok {
		ts, tok := types.AsString(target)
		if !tok {
			return false, orderingMismatch(op, stored, target)
		}
		return compareOrder(op, ss < ts, ss == ts), nil
	}
	return false, orderingMismatch(op, stored, target)
}

func compareOrder(op string, less, equal bool) bool {
	switch op {
	case OpLt:
		return less
	case OpLe:
		return less || equal
	case OpGt:
		return !less && !equal
	case OpGe:
		return !less
	}
	return false
}

// valuesEqual compares a stored value with a predicate target, coercing
// numerics so an int64 column matches a JSON-decoded float target.
func valuesEqual(stored, target interface{}) bool {
	if sf, sok := types.AsFloat64(stored); sok {
		if tf, tok := types.AsFloat64(target); tok {
			return sf == tf
		}
		return false
	}
	if ss, sok := types.AsString(stored); sok {
		ts, tok := types.AsString(target)
		return tok && ss == ts
	}
	return reflect.DeepEqual(stored, target)
}

func orderingMismatch(op string, stored, target interface{}) error {
	return errors.NewQueryError(errors.CodeInvalidPredicate,
		fmt.Sprintf("operator %q cannot compare %T with %T", op, stored, target))
}

// applyMask filters one column's values by the survival mask; rows past the
// column's length are skipped, since tiers are not required to carry equal
// column lengths.
func applyMask(values []interface{}, mask []bool) []interface{} {
	out := make([]interface{}, 0, len(values))
	for i, v := range values {
		if i < len(mask) && mask[i] {
			out = append(out, v)
		}
	}
	return out
}
