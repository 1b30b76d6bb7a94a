// Package validate parses raw provider output into the canonical analysis
// result. Providers answer in prose with an embedded JSON object; the
// validator extracts the first well-formed object, normalizes enum fields,
// and fills explicit placeholders for anything missing. Partial validity
// is acceptable, total unparseability is not.
package validate

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/fluxadm/analyzer/internal/core/domain"
)

// ErrNoStructuredPayload means no well-formed JSON object was found in the
// provider output. The orchestrator treats this as a validation failure
// and advances to the next provider.
var ErrNoStructuredPayload = errors.New("no structured payload in provider output")

const (
	// UnknownTitle is the placeholder for a missing title field.
	UnknownTitle = "Unknown"

	maxTitleLen         = 200
	maxDescriptionLen   = 1000
	maxAffectedSystems  = 10
	maxQualityIssues    = 50
	defaultConfidence   = 0.5
	defaultQualityScore = 50
)

// Validator turns raw provider text into a canonical AnalysisResult.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Parse extracts and validates the first JSON object embedded in raw. It
// never panics on arbitrary input; unparseable payloads return
// ErrNoStructuredPayload.
func (v *Validator) Parse(raw string) (domain.AnalysisResult, error) {
	block, ok := extractJSONObject(raw)
	if !ok {
		return domain.AnalysisResult{}, ErrNoStructuredPayload
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return domain.AnalysisResult{}, ErrNoStructuredPayload
	}

	res := domain.AnalysisResult{
		Title:            truncate(getString(payload, "title"), maxTitleLen),
		Description:      truncate(getString(payload, "description"), maxDescriptionLen),
		Category:         domain.NormalizeCategory(getString(payload, "category")),
		Priority:         domain.NormalizePriority(getString(payload, "priority")),
		RiskLevel:        domain.NormalizeRiskLevel(getString(payload, "risk_level")),
		RiskScore:        clampInt(getInt(payload, "risk_score", 0), 0, 9),
		ImpactScore:      clampInt(getInt(payload, "impact_score", 0), 0, 3),
		ProbabilityScore: clampInt(getInt(payload, "probability_score", 0), 0, 3),
		Confidence:       clampFloat(getFloat(payload, "confidence", defaultConfidence), 0, 1),
		QualityScore:     clampInt(getInt(payload, "quality_score", defaultQualityScore), 0, 100),
		QualityIssues:    getIssues(payload, "quality_issues"),
		AffectedSystems:  getStringSlice(payload, "affected_systems", maxAffectedSystems),
	}

	if res.Title == "" {
		res.Title = UnknownTitle
	}

	return res, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// respecting strings and escape sequences.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if escaped {
				escaped = false
				continue
			}
			switch {
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					// Malformed block, look for the next opening brace.
					i = len(s)
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			return "", false
		}
		start = start + 1 + next
	}
	return "", false
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		var f float64
		if err := json.Unmarshal([]byte(v), &f); err == nil {
			return f
		}
	}
	return def
}

func getInt(m map[string]any, key string, def int) int {
	return int(getFloat(m, key, float64(def)))
}

func getStringSlice(m map[string]any, key string, limit int) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func getIssues(m map[string]any, key string) []domain.QualityIssue {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]domain.QualityIssue, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		issue := domain.QualityIssue{
			Type:        getString(obj, "type"),
			Severity:    getString(obj, "severity"),
			Description: getString(obj, "description"),
		}
		if issue.Type == "" && issue.Description == "" {
			continue
		}
		if issue.Severity == "" {
			issue.Severity = "medium"
		}
		out = append(out, issue)
		if len(out) == maxQualityIssues {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
