package spc

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestParseValues(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		declared int
		want     []float64
		wantErr  error
	}{
		{"simple", "1,2,3", 3, []float64{1, 2, 3}, nil},
		{"whitespace and empty tokens", " 1.5 ,, 2 ,\t3e2, ", 3, []float64{1.5, 2, 300}, nil},
		{"negative values", "-1,-2.25", 2, []float64{-1, -2.25}, nil},
		{"near float64 limits", "1.7e308, -1.7e308", 2, []float64{1.7e308, -1.7e308}, nil},
		{"too few", "1,2", 3, nil, ErrCountMismatch},
		{"too many", "1,2,3,4", 3, nil, ErrCountMismatch},
		{"bad token", "1,x,3", 3, nil, ErrParse},
		{"bad token wins over count", "x", 3, nil, ErrParse},
		{"nan rejected", "1,NaN", 2, nil, ErrParse},
		{"inf rejected", "Inf,1", 2, nil, ErrParse},
		{"beyond float64 rejected", "1e400,1", 2, nil, ErrParse},
		{"blank input", "  ", 1, nil, ErrCountMismatch},
		{"zero declared", "", 0, nil, ErrCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValues(tt.raw, tt.declared)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseValues(%q, %d) error = %v, want %v", tt.raw, tt.declared, err, tt.wantErr)
				}
				if got != nil {
					t.Errorf("ParseValues returned values %v alongside an error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValues(%q, %d) unexpected error: %v", tt.raw, tt.declared, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseValues(%q, %d) = %v, want %v", tt.raw, tt.declared, got, tt.want)
			}
		})
	}
}

func TestParseValues_ErrorDetails(t *testing.T) {
	_, err := ParseValues("1, 2, oops", 3)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Token != "oops" || perr.Index != 2 {
		t.Errorf("ParseError = %+v, want token oops at index 2", perr)
	}

	_, err = ParseValues("1,2", 5)
	var cerr *CountMismatchError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CountMismatchError, got %T", err)
	}
	if cerr.Declared != 5 || cerr.Got != 2 {
		t.Errorf("CountMismatchError = %+v, want declared 5 got 2", cerr)
	}
}

func TestParseValues_Idempotent(t *testing.T) {
	inputs := []struct {
		raw      string
		declared int
	}{
		{"1,2,3", 3},
		{"1,2", 3},
		{"1,x,3", 3},
	}
	for _, in := range inputs {
		a, errA := ParseValues(in.raw, in.declared)
		b, errB := ParseValues(in.raw, in.declared)
		if !slices.Equal(a, b) {
			t.Errorf("%q: values differ between calls: %v vs %v", in.raw, a, b)
		}
		if ErrorKind(errA) != ErrorKind(errB) || (errA == nil) != (errB == nil) {
			t.Errorf("%q: errors differ between calls: %v vs %v", in.raw, errA, errB)
		}
		if errA != nil && errA.Error() != errB.Error() {
			t.Errorf("%q: error text differs: %q vs %q", in.raw, errA, errB)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.IntN(12)
		values := make([]float64, n)
		for i := range values {
			values[i] = (rng.Float64() - 0.5) * 1e4
		}

		got, err := ParseValues(FormatValues(values), n)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if !slices.Equal(got, values) {
			t.Fatalf("trial %d: round trip = %v, want %v", trial, got, values)
		}
	}
}
