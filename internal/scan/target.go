package scan

import "fmt"

// TargetOp represents comparison operations for scanning
type TargetOp string

const (
	OpEqual        TargetOp = "eq"
	OpGreater      TargetOp = "gt"
	OpGreaterEqual TargetOp = "ge"
	OpLess         TargetOp = "lt"
	OpLessEqual    TargetOp = "le"
	OpBetween      TargetOp = "between"
	OpOutside      TargetOp = "outside"
)

// Valid reports whether op is a known comparison.
func (op TargetOp) Valid() bool {
	switch op {
	case OpEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpBetween, OpOutside:
		return true
	}
	return false
}

// TargetEvaluator handles target condition evaluation with tolerance
type TargetEvaluator struct {
	op        TargetOp
	val1      float64
	val2      float64 // for "between" and "outside"
	tolerance float64
}

// NewTargetEvaluator creates a new target evaluator
func NewTargetEvaluator(op TargetOp, val1, val2, tolerance float64) *TargetEvaluator {
	return &TargetEvaluator{
		op:        op,
		val1:      val1,
		val2:      val2,
		tolerance: tolerance,
	}
}

func newCheckedEvaluator(op TargetOp, val1, val2, tolerance float64) (*TargetEvaluator, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, op)
	}
	if (op == OpBetween || op == OpOutside) && val2 < val1 {
		return nil, fmt.Errorf("%w: %s needs target_val2 >= target_val", ErrInvalidTarget, op)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("%w: negative tolerance", ErrInvalidTarget)
	}
	return NewTargetEvaluator(op, val1, val2, tolerance), nil
}

// Matches checks if a metric matches the target criteria
func (te *TargetEvaluator) Matches(metric float64) bool {
	switch te.op {
	case OpEqual:
		return abs(metric-te.val1) <= te.tolerance
	case OpGreater:
		return metric > te.val1+te.tolerance
	case OpGreaterEqual:
		return metric >= te.val1-te.tolerance
	case OpLess:
		return metric < te.val1-te.tolerance
	case OpLessEqual:
		return metric <= te.val1+te.tolerance
	case OpBetween:
		return metric >= te.val1-te.tolerance && metric <= te.val2+te.tolerance
	case OpOutside:
		return metric < te.val1-te.tolerance || metric > te.val2+te.tolerance
	default:
		return false
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
