// Package spc is the capability-analysis engine: it validates subgroup
// input, summarises each group, estimates process sigma with the range
// method (R̄/d2) and computes CPL/CPU/CPK against control limits.
//
// Everything here is pure computation over in-memory values. Results are
// immutable and safe to share between goroutines.
package spc
