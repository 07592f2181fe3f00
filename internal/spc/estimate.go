package spc

// Subgroup sizes covered by the d2 table.
const (
	MinSubgroupSize = 2
	MaxSubgroupSize = 10
)

// d2Constants converts an average subgroup range into an estimate of the
// process standard deviation, indexed by subgroup size.
var d2Constants = map[int]float64{
	2:  1.128,
	3:  1.693,
	4:  2.059,
	5:  2.326,
	6:  2.534,
	7:  2.704,
	8:  2.847,
	9:  2.970,
	10: 3.078,
}

// D2 returns the d2 constant for a subgroup size.
func D2(subgroupSize int) (float64, bool) {
	d2, ok := d2Constants[subgroupSize]
	return d2, ok
}

// D2Table returns a copy of the full d2 table.
func D2Table() map[int]float64 {
	out := make(map[int]float64, len(d2Constants))
	for k, v := range d2Constants {
		out[k] = v
	}
	return out
}

// Summary aggregates every accepted group of one analysis run.
type Summary struct {
	GroupCount   int     `json:"group_count"`
	SubgroupSize int     `json:"subgroup_size"`
	MeanOfMeans  float64 `json:"mean_of_means"`
	AverageRange float64 `json:"average_range"`
	D2           float64 `json:"d2"`
	EstimatedSD  float64 `json:"estimated_sd"`
}

// Estimate computes the grand mean, average range and range-method sigma
// (R̄/d2) across groups. Each group counts once regardless of how many
// values it holds. All expectedGroups groups must be accepted; partial runs
// are refused with an IncompleteDataError.
func Estimate(groups []Group, expectedGroups, subgroupSize int) (Summary, error) {
	means := make([]float64, 0, len(groups))
	ranges := make([]float64, 0, len(groups))
	for _, g := range groups {
		if !g.Accepted() {
			continue
		}
		means = append(means, g.Stats.Average)
		ranges = append(ranges, g.Stats.Range)
	}
	if expectedGroups < 1 || len(means) != expectedGroups || len(means) != len(groups) {
		return Summary{}, &IncompleteDataError{Accepted: len(means), Expected: expectedGroups}
	}

	d2, ok := D2(subgroupSize)
	if !ok {
		return Summary{}, &UnsupportedSubgroupSizeError{Size: subgroupSize}
	}

	avgRange := mean(ranges)
	return Summary{
		GroupCount:   len(means),
		SubgroupSize: subgroupSize,
		MeanOfMeans:  mean(means),
		AverageRange: avgRange,
		D2:           d2,
		EstimatedSD:  avgRange / d2,
	}, nil
}
