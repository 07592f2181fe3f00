package spc

import (
	"fmt"
	"slices"
	"strings"
)

// GroupState tracks where a group slot is in its input lifecycle.
type GroupState int

const (
	// GroupEmpty is a slot with no input yet.
	GroupEmpty GroupState = iota
	// GroupPending holds raw text that has not been checked.
	GroupPending
	// GroupAccepted passed validation and carries computed stats.
	GroupAccepted
	// GroupRejected failed validation; Err says why.
	GroupRejected
)

func (s GroupState) String() string {
	switch s {
	case GroupEmpty:
		return "empty"
	case GroupPending:
		return "pending"
	case GroupAccepted:
		return "accepted"
	case GroupRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MarshalText lets GroupState appear by name in JSON and YAML documents.
func (s GroupState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *GroupState) UnmarshalText(text []byte) error {
	parsed, err := ParseGroupState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseGroupState maps a state name back to its GroupState.
func ParseGroupState(name string) (GroupState, error) {
	for _, s := range []GroupState{GroupEmpty, GroupPending, GroupAccepted, GroupRejected} {
		if s.String() == name {
			return s, nil
		}
	}
	return GroupEmpty, fmt.Errorf("unknown group state %q", name)
}

// Group is one subgroup of measurements. It is a value type: every
// transition returns a new Group and an accepted group is never modified.
type Group struct {
	Label         string
	DeclaredCount int
	Raw           string
	Values        []float64
	Stats         GroupStats
	State         GroupState
	Err           error
}

// NewGroup creates an empty slot expecting declaredCount values.
func NewGroup(label string, declaredCount int) Group {
	return Group{Label: label, DeclaredCount: declaredCount, State: GroupEmpty}
}

// WithInput attaches raw text and discards any earlier outcome. Blank text
// leaves the slot empty.
func (g Group) WithInput(raw string) Group {
	next := Group{Label: g.Label, DeclaredCount: g.DeclaredCount, Raw: raw}
	if strings.TrimSpace(raw) == "" {
		next.State = GroupEmpty
		return next
	}
	next.State = GroupPending
	return next
}

// Check validates a pending group from scratch and returns it accepted or
// rejected. Groups in any other state are returned unchanged.
func (g Group) Check() Group {
	if g.State != GroupPending {
		return g
	}

	values, err := ParseValues(g.Raw, g.DeclaredCount)
	if err != nil {
		return g.reject(err)
	}
	stats, err := Summarize(values)
	if err != nil {
		return g.reject(err)
	}
	if err := stats.overflowErr(); err != nil {
		return g.reject(err)
	}

	g.Values = values
	g.Stats = stats
	g.State = GroupAccepted
	g.Err = nil
	return g
}

// Submit is WithInput followed by Check.
func (g Group) Submit(raw string) Group {
	return g.WithInput(raw).Check()
}

// Accepted reports whether the group passed validation.
func (g Group) Accepted() bool {
	return g.State == GroupAccepted
}

// ValuesCopy returns the group's values in a slice the caller may modify.
func (g Group) ValuesCopy() []float64 {
	return slices.Clone(g.Values)
}

func (g Group) reject(err error) Group {
	g.Values = nil
	g.Stats = GroupStats{}
	g.State = GroupRejected
	g.Err = err
	return g
}
