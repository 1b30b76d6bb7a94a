package domain

import (
	"strings"
	"time"
)

// Category classifies a change request per ITIL change types.
type Category string

const (
	CategoryEmergency      Category = "emergency"
	CategoryStandard       Category = "standard"
	CategoryNormal         Category = "normal"
	CategoryEnhancement    Category = "enhancement"
	CategoryInfrastructure Category = "infrastructure"
	CategorySecurity       Category = "security"
	CategoryMaintenance    Category = "maintenance"
	CategoryRollback       Category = "rollback"
	CategoryUnknown        Category = "unknown"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
	PriorityUnknown  Priority = "unknown"
)

type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// SourceRuleBased marks results produced by the offline keyword analyzer.
const SourceRuleBased = "rule_based"

// RuleBasedConfidenceCeiling is the maximum confidence a rule_based result
// may carry; anything at or below it requires human review downstream.
const RuleBasedConfidenceCeiling = 0.3

// AnalysisRequest is an immutable unit of analysis work. Text is already
// extracted from the source document by an upstream collaborator.
type AnalysisRequest struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	// CategoryHint carries a prior categorization, if any.
	CategoryHint Category `json:"category_hint,omitempty"`
}

// QualityIssue describes one detected gap in a change request document.
type QualityIssue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// AnalysisResult is the canonical structured verdict for a change request.
type AnalysisResult struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         Category       `json:"category"`
	Priority         Priority       `json:"priority"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	RiskScore        int            `json:"risk_score"`
	ImpactScore      int            `json:"impact_score"`
	ProbabilityScore int            `json:"probability_score"`
	Confidence       float64        `json:"confidence"`
	QualityScore     int            `json:"quality_score"`
	QualityIssues    []QualityIssue `json:"quality_issues"`
	AffectedSystems  []string       `json:"affected_systems,omitempty"`
	// Source is the provider name that produced the result, or
	// SourceRuleBased for the offline fallback path.
	Source     string    `json:"source"`
	Model      string    `json:"model,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// AttemptOutcome classifies a single provider attempt.
type AttemptOutcome string

const (
	OutcomeSuccess           AttemptOutcome = "success"
	OutcomeTimeout           AttemptOutcome = "timeout"
	OutcomeError             AttemptOutcome = "error"
	OutcomeInvalidOutput     AttemptOutcome = "invalid_output"
	OutcomeRejectedByBreaker AttemptOutcome = "rejected_by_breaker"
	OutcomeCancelled         AttemptOutcome = "cancelled"
)

// ProviderAttempt records one call against one provider. Used for
// logging, metrics, and the optional audit store.
type ProviderAttempt struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	Provider  string         `json:"provider"`
	Outcome   AttemptOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Retries   int            `json:"retries"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// NormalizeCategory maps free-form provider output onto a valid Category.
// Exact matches win, then keyword heuristics; anything else is unknown.
func NormalizeCategory(raw string) Category {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch Category(s) {
	case CategoryEmergency, CategoryStandard, CategoryNormal, CategoryEnhancement,
		CategoryInfrastructure, CategorySecurity, CategoryMaintenance, CategoryRollback:
		return Category(s)
	}

	switch {
	case containsAny(s, "emergency", "urgent", "critical"):
		return CategoryEmergency
	case containsAny(s, "standard", "routine"):
		return CategoryStandard
	case containsAny(s, "enhancement", "feature", "improvement"):
		return CategoryEnhancement
	case containsAny(s, "infrastructure", "hardware", "network"):
		return CategoryInfrastructure
	case containsAny(s, "security", "patch", "vulnerability"):
		return CategorySecurity
	case containsAny(s, "maintenance", "update", "upgrade"):
		return CategoryMaintenance
	case containsAny(s, "rollback", "revert"):
		return CategoryRollback
	case s == "":
		return CategoryUnknown
	}
	return CategoryUnknown
}

// NormalizePriority maps free-form provider output onto a valid Priority.
func NormalizePriority(raw string) Priority {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s)
	}

	switch {
	case containsAny(s, "critical", "urgent", "emergency"):
		return PriorityCritical
	case containsAny(s, "high", "important"):
		return PriorityHigh
	case containsAny(s, "low", "minor"):
		return PriorityLow
	}
	return PriorityUnknown
}

// NormalizeRiskLevel maps free-form provider output onto a valid RiskLevel.
func NormalizeRiskLevel(raw string) RiskLevel {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s)
	}
	return RiskUnknown
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
