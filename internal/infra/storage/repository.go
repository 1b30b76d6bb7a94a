// Package storage defines the persistence interfaces for the audit store.
package storage

import (
	"context"

	"github.com/fluxadm/analyzer/internal/core/domain"
)

// StoredAnalysis is an analysis result with its request context attached.
type StoredAnalysis struct {
	RequestID  string
	DocumentID string
	Result     domain.AnalysisResult
}

// AnalysisRepository persists completed analysis results.
type AnalysisRepository interface {
	Save(ctx context.Context, rec *StoredAnalysis) error
	GetByRequestID(ctx context.Context, requestID string) (*StoredAnalysis, error)
	ListRecent(ctx context.Context, limit int) ([]*StoredAnalysis, error)
}

// AttemptRepository persists the per-provider attempt trail.
type AttemptRepository interface {
	Save(ctx context.Context, attempt *domain.ProviderAttempt) error
	ListByRequest(ctx context.Context, requestID string) ([]*domain.ProviderAttempt, error)
}
