// Package scoring enriches analysis results with the 3x3 risk matrix score
// and a deterministic document quality score. It runs on both the provider
// path and the rule-based fallback path.
package scoring

import (
	"fmt"
	"strings"

	"github.com/fluxadm/analyzer/internal/core/domain"
)

// Quality penalties. Applied to a starting score of 100, floored at 0.
const (
	penaltyMissingJustification = 20
	penaltyMissingRollback      = 15
	penaltyPerQualityFlag       = 10
	penaltyBriefDocument        = 20
	penaltyPerMissingSection    = 5

	briefDocumentThreshold = 100
)

// requiredSections are the document sections a complete change request is
// expected to mention.
var requiredSections = []string{"technical", "testing", "risk"}

// DerivationConfig maps category/priority/risk-level signals onto the 1..3
// impact and probability scales feeding the risk matrix. Kept as
// configuration rather than hard-coded constants.
type DerivationConfig struct {
	CategoryImpact   map[domain.Category]int
	PriorityImpact   map[domain.Priority]int
	LevelProbability map[domain.RiskLevel]int

	DefaultImpact      int
	DefaultProbability int
}

// DefaultDerivation follows the conservative heuristics: emergency or
// critical implies maximum impact, enhancement or low implies minimum, and
// probability tracks the risk level one-to-one.
var DefaultDerivation = DerivationConfig{
	CategoryImpact: map[domain.Category]int{
		domain.CategoryEmergency:   3,
		domain.CategoryEnhancement: 1,
	},
	PriorityImpact: map[domain.Priority]int{
		domain.PriorityCritical: 3,
		domain.PriorityLow:      1,
	},
	LevelProbability: map[domain.RiskLevel]int{
		domain.RiskHigh:   3,
		domain.RiskMedium: 2,
		domain.RiskLow:    1,
	},
	DefaultImpact:      2,
	DefaultProbability: 2,
}

// Scorer computes risk scores and quality scores.
type Scorer struct {
	matrix domain.RiskMatrix
	derive DerivationConfig
}

// New creates a scorer with the given matrix and derivation config.
func New(matrix domain.RiskMatrix, derive DerivationConfig) *Scorer {
	return &Scorer{matrix: matrix, derive: derive}
}

// NewDefault creates a scorer with the standard matrix and derivation.
func NewDefault() *Scorer {
	return New(domain.DefaultRiskMatrix, DefaultDerivation)
}

// Enrich fills the risk score, risk level band, and quality score of res
// based on the document text and whatever the producing path already set.
// Provider-supplied impact/probability estimates are kept when they are in
// range; otherwise they are derived from category, priority, and level.
func (s *Scorer) Enrich(res *domain.AnalysisResult, documentText string) {
	impact := res.ImpactScore
	if impact < 1 || impact > 3 {
		impact = s.deriveImpact(res.Category, res.Priority)
	}
	probability := res.ProbabilityScore
	if probability < 1 || probability > 3 {
		probability = s.deriveProbability(res.RiskLevel)
	}

	res.ImpactScore = impact
	res.ProbabilityScore = probability
	res.RiskScore = s.matrix.Score(impact, probability)
	if res.RiskLevel == domain.RiskUnknown || res.RiskLevel == "" {
		res.RiskLevel = s.matrix.Level(res.RiskScore)
	}

	res.QualityScore, res.QualityIssues = s.scoreQuality(documentText, res.QualityIssues)

	// A rule_based result never carries confidence above the review
	// ceiling, whatever upstream set.
	if res.Source == domain.SourceRuleBased && res.Confidence > domain.RuleBasedConfidenceCeiling {
		res.Confidence = domain.RuleBasedConfidenceCeiling
	}
}

func (s *Scorer) deriveImpact(category domain.Category, priority domain.Priority) int {
	if v, ok := s.derive.CategoryImpact[category]; ok {
		return v
	}
	if v, ok := s.derive.PriorityImpact[priority]; ok {
		return v
	}
	return s.derive.DefaultImpact
}

func (s *Scorer) deriveProbability(level domain.RiskLevel) int {
	if v, ok := s.derive.LevelProbability[level]; ok {
		return v
	}
	return s.derive.DefaultProbability
}

// scoreQuality computes the 0-100 quality score and the final issue list.
// Flags already attached by the producing path each cost a fixed penalty;
// document-derived gaps add their own issues.
func (s *Scorer) scoreQuality(text string, existing []domain.QualityIssue) (int, []domain.QualityIssue) {
	score := 100
	issues := make([]domain.QualityIssue, 0, len(existing)+4)
	issues = append(issues, existing...)
	score -= len(existing) * penaltyPerQualityFlag

	lower := strings.ToLower(text)

	if !strings.Contains(lower, "business") && !strings.Contains(lower, "justification") {
		score -= penaltyMissingJustification
		issues = append(issues, domain.QualityIssue{
			Type:        "missing_business_justification",
			Severity:    "medium",
			Description: "No business justification found in the document",
		})
	}

	if !strings.Contains(lower, "rollback") {
		score -= penaltyMissingRollback
		issues = append(issues, domain.QualityIssue{
			Type:        "missing_rollback_plan",
			Severity:    "medium",
			Description: "No rollback plan found in the document",
		})
	}

	if len(strings.TrimSpace(text)) < briefDocumentThreshold {
		score -= penaltyBriefDocument
		issues = append(issues, domain.QualityIssue{
			Type:        "insufficient_detail",
			Severity:    "high",
			Description: "Document appears too brief for a meaningful review",
		})
	}

	var missing []string
	for _, section := range requiredSections {
		if !strings.Contains(lower, section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		score -= len(missing) * penaltyPerMissingSection
		issues = append(issues, domain.QualityIssue{
			Type:        "missing_sections",
			Severity:    "low",
			Description: fmt.Sprintf("Missing sections: %s", strings.Join(missing, ", ")),
		})
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}
