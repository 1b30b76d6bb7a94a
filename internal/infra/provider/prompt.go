package provider

import (
	"fmt"
	"strings"
)

// maxPromptChars bounds the document text embedded in the prompt so large
// uploads stay inside provider token budgets.
const maxPromptChars = 3000

const systemPrompt = "You are an expert IT change management analyst with deep knowledge " +
	"of ITIL processes, risk assessment, and quality management."

// BuildPrompt renders the combined categorization, risk, and quality
// prompt for a change request document.
func BuildPrompt(documentText string) string {
	text := strings.TrimSpace(documentText)
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	return fmt.Sprintf(`Analyze this IT change request and respond with a single JSON object.

Document content:
%s

Respond with JSON containing exactly these fields:
{
  "title": "clear, concise title for the change",
  "description": "brief summary of what will be changed",
  "category": "one of: emergency, standard, normal, enhancement, infrastructure, security, maintenance, rollback",
  "priority": "one of: low, medium, high, critical",
  "risk_level": "one of: low, medium, high",
  "impact_score": 2,
  "probability_score": 2,
  "confidence": 0.85,
  "quality_score": 78,
  "quality_issues": [
    {"type": "missing_requirements", "severity": "medium", "description": "specific issue found"}
  ],
  "affected_systems": ["list", "of", "affected", "systems"]
}

Use a 3x3 risk matrix (impact x probability, each 1-3). Be conservative with
priority and risk levels and base decisions on ITIL change management
practice. Output only the JSON object.`, text)
}
