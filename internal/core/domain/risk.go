package domain

// RiskMatrix is a static 3x3 impact-by-probability lookup. Rows are impact
// 1..3, columns are probability 1..3, cells are risk scores 1..9.
type RiskMatrix struct {
	Scores [3][3]int
	// HighThreshold and MediumThreshold split scores into level bands:
	// score >= HighThreshold is high, >= MediumThreshold is medium,
	// anything below is low.
	HighThreshold   int
	MediumThreshold int
}

// DefaultRiskMatrix is the standard multiplicative 3x3 matrix.
var DefaultRiskMatrix = RiskMatrix{
	Scores: [3][3]int{
		{1, 2, 3},
		{2, 4, 6},
		{3, 6, 9},
	},
	HighThreshold:   6,
	MediumThreshold: 3,
}

// Score returns the risk score for the given impact and probability,
// both clamped to 1..3.
func (m RiskMatrix) Score(impact, probability int) int {
	return m.Scores[clampScale(impact)-1][clampScale(probability)-1]
}

// Level returns the risk level band for a score.
func (m RiskMatrix) Level(score int) RiskLevel {
	switch {
	case score >= m.HighThreshold:
		return RiskHigh
	case score >= m.MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clampScale(v int) int {
	if v < 1 {
		return 1
	}
	if v > 3 {
		return 3
	}
	return v
}
