// Package rules implements the deterministic offline analyzer used when no
// networked provider can produce a result. It derives a verdict purely
// from keyword signals, so identical input always yields an identical
// result. Every result it produces is tagged rule_based with a fixed low
// confidence and a standing manual-review issue.
package rules

import (
	"strings"
	"time"

	"github.com/fluxadm/analyzer/internal/core/domain"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

// Confidence is the fixed confidence for rule-based results. It never
// exceeds domain.RuleBasedConfidenceCeiling.
const Confidence = 0.3

var (
	emergencyKeywords   = []string{"emergency", "urgent", "critical", "outage"}
	enhancementKeywords = []string{"enhancement", "feature", "improvement"}

	// High-risk terms flagged as an informational quality issue so a
	// reviewer can see what triggered extra scrutiny.
	highRiskKeywords = []string{"production", "database", "critical", "customer", "revenue"}
)

// Analyzer is the keyword-driven fallback classifier.
type Analyzer struct {
	now func() time.Time
}

// New creates a rule-based analyzer.
func New() *Analyzer {
	return &Analyzer{now: time.Now}
}

// Analyze classifies the request text. It never fails.
func (a *Analyzer) Analyze(req domain.AnalysisRequest) domain.AnalysisResult {
	text := strings.ToLower(req.Text)

	var (
		category domain.Category
		priority domain.Priority
		risk     domain.RiskLevel
	)
	switch {
	case containsAny(text, emergencyKeywords):
		category = domain.CategoryEmergency
		priority = domain.PriorityCritical
		risk = domain.RiskHigh
	case containsAny(text, enhancementKeywords):
		category = domain.CategoryEnhancement
		priority = domain.PriorityMedium
		risk = domain.RiskLow
	default:
		category = domain.CategoryNormal
		priority = domain.PriorityMedium
		risk = domain.RiskMedium
	}

	issues := []domain.QualityIssue{{
		Type:        "manual_review_required",
		Severity:    "medium",
		Description: "Automatic rule-based analysis, please review manually",
	}}

	if category == domain.CategoryNormal && countMatches(text, highRiskKeywords) >= 2 {
		issues = append(issues, domain.QualityIssue{
			Type:        "high_risk_keywords",
			Severity:    "low",
			Description: "Document mentions several high-risk systems, verify the risk assessment",
		})
	}

	return domain.AnalysisResult{
		Title:         truncate(req.Text, maxTitleLen),
		Description:   truncate(req.Text, maxDescriptionLen),
		Category:      category,
		Priority:      priority,
		RiskLevel:     risk,
		Confidence:    Confidence,
		QualityIssues: issues,
		Source:        domain.SourceRuleBased,
		AnalyzedAt:    a.now(),
	}
}

// truncate cuts s at limit runes and marks the cut with an ellipsis.
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func countMatches(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}
