package spc

import "math"

// CapabilityThreshold is the minimum CPK judged good. It is fixed.
const CapabilityThreshold = 1.6

// Verdict is the pass/fail judgement for one set of limits.
type Verdict string

const (
	VerdictGood             Verdict = "good"
	VerdictNeedsImprovement Verdict = "needs improvement"
)

// Limits is one lower/upper control limit pair.
type Limits struct {
	LCL float64 `json:"lcl" yaml:"lcl"`
	UCL float64 `json:"ucl" yaml:"ucl"`
}

// Finite reports whether both limits are finite numbers. Inverted limits
// are still finite.
func (l Limits) Finite() bool {
	return isFinite(l.LCL) && isFinite(l.UCL)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Result holds the capability indices for one Limits pair.
type Result struct {
	LCL     float64 `json:"lcl"`
	UCL     float64 `json:"ucl"`
	CPL     float64 `json:"cpl"`
	CPU     float64 `json:"cpu"`
	CPK     float64 `json:"cpk"`
	Verdict Verdict `json:"verdict"`
}

// Evaluate computes CPL, CPU and CPK of the summarised process against one
// pair of limits. Inverted limits are evaluated as given; the resulting
// negative index simply fails the threshold. An index that is not a finite
// number, from non-finite limits or a spread beyond the float64 range, is
// reported as an *OverflowError.
func Evaluate(s Summary, lcl, ucl float64) (Result, error) {
	if s.EstimatedSD == 0 {
		return Result{}, ErrZeroVariance
	}

	spread := 3 * s.EstimatedSD
	cpl := (s.MeanOfMeans - lcl) / spread
	cpu := (ucl - s.MeanOfMeans) / spread
	if !isFinite(cpl) || !isFinite(cpu) {
		return Result{}, &OverflowError{Quantity: "capability index"}
	}
	cpk := math.Min(cpl, cpu)

	verdict := VerdictNeedsImprovement
	if cpk >= CapabilityThreshold {
		verdict = VerdictGood
	}

	return Result{
		LCL:     lcl,
		UCL:     ucl,
		CPL:     cpl,
		CPU:     cpu,
		CPK:     cpk,
		Verdict: verdict,
	}, nil
}

// EvaluateLimits is Evaluate for a Limits value.
func EvaluateLimits(s Summary, l Limits) (Result, error) {
	return Evaluate(s, l.LCL, l.UCL)
}
