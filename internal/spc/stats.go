package spc

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GroupStats is the summary record for one accepted group.
type GroupStats struct {
	Count   int     `json:"count"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Range   float64 `json:"range"`
}

// Summarize computes the total, mean and range of a group's values.
// Callers validate declared counts upstream, so an empty slice is a
// programming error and reported as ErrEmptyGroup.
//
// The average always lies within [Min, Max], even when the total itself
// overflows float64. Total and Range may be infinite for values near the
// float64 limits; Group.Check rejects such groups.
func Summarize(values []float64) (GroupStats, error) {
	if len(values) == 0 {
		return GroupStats{}, ErrEmptyGroup
	}

	lo := floats.Min(values)
	hi := floats.Max(values)

	return GroupStats{
		Count:   len(values),
		Total:   floats.Sum(values),
		Average: mean(values),
		Min:     lo,
		Max:     hi,
		Range:   hi - lo,
	}, nil
}

// mean is the arithmetic mean of finite values, clamped to their
// [min, max]. When the plain sum overflows, the terms are scaled by 1/n
// before summing so no partial sum exceeds the largest magnitude.
func mean(values []float64) float64 {
	m := stat.Mean(values, nil)
	if math.IsInf(m, 0) || math.IsNaN(m) {
		scaled := make([]float64, len(values))
		floats.ScaleTo(scaled, 1/float64(len(values)), values)
		m = floats.Sum(scaled)
	}
	return math.Max(floats.Min(values), math.Min(m, floats.Max(values)))
}

// overflowErr reports the first statistic that left the float64 range.
func (s GroupStats) overflowErr() error {
	switch {
	case math.IsInf(s.Total, 0) || math.IsNaN(s.Total):
		return &OverflowError{Quantity: "group total"}
	case math.IsInf(s.Range, 0):
		return &OverflowError{Quantity: "group range"}
	}
	return nil
}
