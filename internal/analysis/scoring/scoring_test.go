package scoring

import (
	"strings"
	"testing"

	"github.com/fluxadm/analyzer/internal/core/domain"
)

func TestRiskMatrixCorners(t *testing.T) {
	m := domain.DefaultRiskMatrix

	if got := m.Score(3, 3); got != 9 {
		t.Errorf("Score(3,3) = %d, want 9", got)
	}
	if got := m.Score(1, 1); got != 1 {
		t.Errorf("Score(1,1) = %d, want 1", got)
	}
	// The default matrix is multiplicative, so it is symmetric.
	for i := 1; i <= 3; i++ {
		for p := 1; p <= 3; p++ {
			if m.Score(i, p) != m.Score(p, i) {
				t.Errorf("matrix not symmetric at (%d,%d)", i, p)
			}
		}
	}
}

func TestRiskLevelBands(t *testing.T) {
	m := domain.DefaultRiskMatrix
	tests := []struct {
		score int
		level domain.RiskLevel
	}{
		{1, domain.RiskLow},
		{2, domain.RiskLow},
		{3, domain.RiskMedium},
		{4, domain.RiskMedium},
		{6, domain.RiskHigh},
		{9, domain.RiskHigh},
	}
	for _, tt := range tests {
		if got := m.Level(tt.score); got != tt.level {
			t.Errorf("Level(%d) = %s, want %s", tt.score, got, tt.level)
		}
	}
}

func TestDeriveImpactAndProbability(t *testing.T) {
	s := NewDefault()

	tests := []struct {
		category    domain.Category
		priority    domain.Priority
		level       domain.RiskLevel
		impact      int
		probability int
	}{
		{domain.CategoryEmergency, domain.PriorityCritical, domain.RiskHigh, 3, 3},
		{domain.CategoryEnhancement, domain.PriorityMedium, domain.RiskLow, 1, 1},
		{domain.CategoryNormal, domain.PriorityMedium, domain.RiskMedium, 2, 2},
		{domain.CategoryNormal, domain.PriorityCritical, domain.RiskMedium, 3, 2},
		{domain.CategoryNormal, domain.PriorityLow, domain.RiskUnknown, 1, 2},
	}

	for _, tt := range tests {
		res := domain.AnalysisResult{
			Category:  tt.category,
			Priority:  tt.priority,
			RiskLevel: tt.level,
		}
		s.Enrich(&res, "business justification rollback technical testing risk sections all present here to keep quality noise out")
		if res.ImpactScore != tt.impact {
			t.Errorf("%s/%s impact = %d, want %d", tt.category, tt.priority, res.ImpactScore, tt.impact)
		}
		if res.ProbabilityScore != tt.probability {
			t.Errorf("%s probability = %d, want %d", tt.level, res.ProbabilityScore, tt.probability)
		}
		if res.RiskScore != domain.DefaultRiskMatrix.Score(tt.impact, tt.probability) {
			t.Errorf("risk score = %d, want matrix value", res.RiskScore)
		}
	}
}

func TestProviderEstimatesKept(t *testing.T) {
	s := NewDefault()
	res := domain.AnalysisResult{
		Category:         domain.CategoryEmergency,
		ImpactScore:      1,
		ProbabilityScore: 2,
		RiskLevel:        domain.RiskLow,
	}
	s.Enrich(&res, "text")

	if res.ImpactScore != 1 || res.ProbabilityScore != 2 {
		t.Errorf("in-range provider estimates were overridden: %d/%d", res.ImpactScore, res.ProbabilityScore)
	}
	if res.RiskScore != 2 {
		t.Errorf("risk score = %d, want 2", res.RiskScore)
	}
}

func TestQualityPenalties(t *testing.T) {
	s := NewDefault()

	// Complete document, no pre-existing issues.
	complete := strings.Repeat("x", 80) + " business justification rollback technical testing risk"
	res := domain.AnalysisResult{Category: domain.CategoryNormal, RiskLevel: domain.RiskMedium}
	s.Enrich(&res, complete)
	if res.QualityScore != 100 {
		t.Errorf("complete doc quality = %d, want 100", res.QualityScore)
	}
	if len(res.QualityIssues) != 0 {
		t.Errorf("complete doc issues = %+v, want none", res.QualityIssues)
	}

	// Brief document missing everything:
	// 20 (justification) + 15 (rollback) + 20 (brief) + 15 (3 sections) = 70.
	res = domain.AnalysisResult{Category: domain.CategoryNormal, RiskLevel: domain.RiskMedium}
	s.Enrich(&res, "short note")
	if res.QualityScore != 30 {
		t.Errorf("brief doc quality = %d, want 30", res.QualityScore)
	}
	if len(res.QualityIssues) != 4 {
		t.Errorf("brief doc issues = %d, want 4", len(res.QualityIssues))
	}
}

func TestQualityFlagPenalty(t *testing.T) {
	s := NewDefault()
	complete := strings.Repeat("x", 80) + " business justification rollback technical testing risk"

	res := domain.AnalysisResult{
		Category:  domain.CategoryNormal,
		RiskLevel: domain.RiskMedium,
		QualityIssues: []domain.QualityIssue{
			{Type: "unclear_requirements", Severity: "medium", Description: "scope is vague"},
			{Type: "missing_owner", Severity: "low", Description: "no owner named"},
		},
	}
	s.Enrich(&res, complete)

	if res.QualityScore != 80 {
		t.Errorf("quality = %d, want 80 (two flags at -10)", res.QualityScore)
	}
	if len(res.QualityIssues) != 2 {
		t.Errorf("issues = %d, want the original 2 kept", len(res.QualityIssues))
	}
}

func TestQualityFloorZero(t *testing.T) {
	s := NewDefault()
	issues := make([]domain.QualityIssue, 12)
	for i := range issues {
		issues[i] = domain.QualityIssue{Type: "flag", Severity: "low", Description: "x"}
	}
	res := domain.AnalysisResult{QualityIssues: issues}
	s.Enrich(&res, "tiny")

	if res.QualityScore != 0 {
		t.Errorf("quality = %d, want floored at 0", res.QualityScore)
	}
}

func TestRuleBasedConfidenceCeiling(t *testing.T) {
	s := NewDefault()
	res := domain.AnalysisResult{
		Source:     domain.SourceRuleBased,
		Confidence: 0.9,
	}
	s.Enrich(&res, "text")

	if res.Confidence != domain.RuleBasedConfidenceCeiling {
		t.Errorf("confidence = %v, want clamped to %v", res.Confidence, domain.RuleBasedConfidenceCeiling)
	}
}
