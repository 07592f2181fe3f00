package spc

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure kind. The typed errors below unwrap to
// these so callers can use errors.Is without caring about the details.
var (
	ErrParse                   = errors.New("value is not a valid number")
	ErrCountMismatch           = errors.New("value count does not match declared count")
	ErrEmptyGroup              = errors.New("group has no values")
	ErrIncompleteData          = errors.New("not every group has been accepted")
	ErrUnsupportedSubgroupSize = errors.New("unsupported subgroup size")
	ErrZeroVariance            = errors.New("estimated standard deviation is zero")
	ErrOverflow                = errors.New("result is outside the float64 range")
)

// ParseError reports a token in the raw input that is not a finite number.
type ParseError struct {
	Token string
	Index int // zero-based position among non-empty tokens
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("token %d %q: %v", e.Index+1, e.Token, ErrParse)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// CountMismatchError reports that the parsed value count differs from the
// count the user declared for the group.
type CountMismatchError struct {
	Declared int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("expected %d values, got %d: %v", e.Declared, e.Got, ErrCountMismatch)
}

func (e *CountMismatchError) Unwrap() error { return ErrCountMismatch }

// IncompleteDataError reports an estimate attempted before every group in
// the run was accepted.
type IncompleteDataError struct {
	Accepted int
	Expected int
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("%d of %d groups accepted: %v", e.Accepted, e.Expected, ErrIncompleteData)
}

func (e *IncompleteDataError) Unwrap() error { return ErrIncompleteData }

// UnsupportedSubgroupSizeError reports a subgroup size with no d2 constant.
type UnsupportedSubgroupSizeError struct {
	Size int
}

func (e *UnsupportedSubgroupSizeError) Error() string {
	return fmt.Sprintf("subgroup size %d outside [%d,%d]: %v", e.Size, MinSubgroupSize, MaxSubgroupSize, ErrUnsupportedSubgroupSize)
}

func (e *UnsupportedSubgroupSizeError) Unwrap() error { return ErrUnsupportedSubgroupSize }

// OverflowError reports a statistic or index that cannot be represented as
// a finite float64.
type OverflowError struct {
	Quantity string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Quantity, ErrOverflow)
}

func (e *OverflowError) Unwrap() error { return ErrOverflow }

// Error kind identifiers, stable for use in API responses.
const (
	KindParse                   = "parse_error"
	KindCountMismatch           = "count_mismatch"
	KindEmptyGroup              = "empty_group"
	KindIncompleteData          = "incomplete_data"
	KindUnsupportedSubgroupSize = "unsupported_subgroup_size"
	KindZeroVariance            = "zero_variance"
	KindOverflow                = "overflow"
)

// ErrorKind classifies err into one of the Kind* identifiers. It returns ""
// for nil and for errors that did not originate in this package.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrCountMismatch):
		return KindCountMismatch
	case errors.Is(err, ErrEmptyGroup):
		return KindEmptyGroup
	case errors.Is(err, ErrIncompleteData):
		return KindIncompleteData
	case errors.Is(err, ErrUnsupportedSubgroupSize):
		return KindUnsupportedSubgroupSize
	case errors.Is(err, ErrZeroVariance):
		return KindZeroVariance
	case errors.Is(err, ErrOverflow):
		return KindOverflow
	default:
		return ""
	}
}
