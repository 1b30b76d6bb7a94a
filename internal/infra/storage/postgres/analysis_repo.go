package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxadm/analyzer/internal/core/domain"
	"github.com/fluxadm/analyzer/internal/infra/storage"
)

// AnalysisRepo implements storage.AnalysisRepository using PostgreSQL.
type AnalysisRepo struct {
	db *DB
}

// NewAnalysisRepo creates a new PostgreSQL analysis repository.
func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Save saves an analysis result. Re-analyzing the same request replaces
// the previous verdict.
func (r *AnalysisRepo) Save(ctx context.Context, rec *storage.StoredAnalysis) error {
	issues, err := json.Marshal(rec.Result.QualityIssues)
	if err != nil {
		return fmt.Errorf("failed to marshal quality issues: %w", err)
	}
	systems, err := json.Marshal(rec.Result.AffectedSystems)
	if err != nil {
		return fmt.Errorf("failed to marshal affected systems: %w", err)
	}

	query := `
		INSERT INTO analyses (
			request_id, document_id, title, description, category, priority,
			risk_level, risk_score, impact_score, probability_score,
			confidence, quality_score, quality_issues, affected_systems,
			source, model, analyzed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (request_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			risk_level = EXCLUDED.risk_level,
			risk_score = EXCLUDED.risk_score,
			impact_score = EXCLUDED.impact_score,
			probability_score = EXCLUDED.probability_score,
			confidence = EXCLUDED.confidence,
			quality_score = EXCLUDED.quality_score,
			quality_issues = EXCLUDED.quality_issues,
			affected_systems = EXCLUDED.affected_systems,
			source = EXCLUDED.source,
			model = EXCLUDED.model,
			analyzed_at = EXCLUDED.analyzed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.RequestID,
		rec.DocumentID,
		rec.Result.Title,
		rec.Result.Description,
		string(rec.Result.Category),
		string(rec.Result.Priority),
		string(rec.Result.RiskLevel),
		rec.Result.RiskScore,
		rec.Result.ImpactScore,
		rec.Result.ProbabilityScore,
		rec.Result.Confidence,
		rec.Result.QualityScore,
		issues,
		systems,
		rec.Result.Source,
		rec.Result.Model,
		rec.Result.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

type analysisRow struct {
	RequestID        string    `db:"request_id"`
	DocumentID       string    `db:"document_id"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	Category         string    `db:"category"`
	Priority         string    `db:"priority"`
	RiskLevel        string    `db:"risk_level"`
	RiskScore        int       `db:"risk_score"`
	ImpactScore      int       `db:"impact_score"`
	ProbabilityScore int       `db:"probability_score"`
	Confidence       float64   `db:"confidence"`
	QualityScore     int       `db:"quality_score"`
	QualityIssues    []byte    `db:"quality_issues"`
	AffectedSystems  []byte    `db:"affected_systems"`
	Source           string    `db:"source"`
	Model            string    `db:"model"`
	AnalyzedAt       time.Time `db:"analyzed_at"`
}

func (a *analysisRow) toDomain() (*storage.StoredAnalysis, error) {
	rec := &storage.StoredAnalysis{
		RequestID:  a.RequestID,
		DocumentID: a.DocumentID,
		Result: domain.AnalysisResult{
			Title:            a.Title,
			Description:      a.Description,
			Category:         domain.Category(a.Category),
			Priority:         domain.Priority(a.Priority),
			RiskLevel:        domain.RiskLevel(a.RiskLevel),
			RiskScore:        a.RiskScore,
			ImpactScore:      a.ImpactScore,
			ProbabilityScore: a.ProbabilityScore,
			Confidence:       a.Confidence,
			QualityScore:     a.QualityScore,
			Source:           a.Source,
			Model:            a.Model,
			AnalyzedAt:       a.AnalyzedAt,
		},
	}
	if len(a.QualityIssues) > 0 {
		if err := json.Unmarshal(a.QualityIssues, &rec.Result.QualityIssues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quality issues: %w", err)
		}
	}
	if len(a.AffectedSystems) > 0 {
		if err := json.Unmarshal(a.AffectedSystems, &rec.Result.AffectedSystems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal affected systems: %w", err)
		}
	}
	return rec, nil
}

const analysisColumns = `
	request_id, document_id, title, description, category, priority,
	risk_level, risk_score, impact_score, probability_score,
	confidence, quality_score, quality_issues, affected_systems,
	source, model, analyzed_at
`

// GetByRequestID retrieves the analysis for a request.
func (r *AnalysisRepo) GetByRequestID(ctx context.Context, requestID string) (*storage.StoredAnalysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE request_id = $1`

	var row analysisRow
	err := r.db.GetContext(ctx, &row, query, requestID)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return row.toDomain()
}

// ListRecent retrieves the most recent analyses, newest first.
func (r *AnalysisRepo) ListRecent(ctx context.Context, limit int) ([]*storage.StoredAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + analysisColumns + ` FROM analyses ORDER BY analyzed_at DESC LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*storage.StoredAnalysis
	for rows.Next() {
		var row analysisRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
