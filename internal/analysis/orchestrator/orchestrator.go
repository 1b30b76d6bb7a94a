// Package orchestrator drives the resilient provider chain. Given document
// text it walks providers in priority order, gates each call through that
// provider's circuit breaker, retries transient failures within the
// provider's attempt budget, validates whatever comes back, and falls back
// to the offline rule-based analyzer when every provider is unavailable.
// Analyze never fails: exhaustion yields a low-confidence rule_based
// result, not an error.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fluxadm/analyzer/internal/analysis/breaker"
	"github.com/fluxadm/analyzer/internal/analysis/metrics"
	"github.com/fluxadm/analyzer/internal/analysis/retry"
	"github.com/fluxadm/analyzer/internal/analysis/rules"
	"github.com/fluxadm/analyzer/internal/analysis/scoring"
	"github.com/fluxadm/analyzer/internal/analysis/validate"
	"github.com/fluxadm/analyzer/internal/core/domain"
	"github.com/fluxadm/analyzer/internal/infra/provider"
)

// ErrNoProviders is returned at construction when the provider chain is
// empty. This is the one configuration error that surfaces to the caller;
// everything at analysis time resolves to a result instead.
var ErrNoProviders = errors.New("no analysis providers configured")

// ProviderSpec binds one adapter to its resilience settings.
type ProviderSpec struct {
	Adapter provider.Adapter
	Breaker breaker.Config
	Retry   retry.Policy
	// Timeout bounds a single call to this provider, independent of the
	// caller's own deadline.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Config holds orchestrator construction settings.
type Config struct {
	// Providers are tried in order; the first acceptable result wins.
	Providers []ProviderSpec

	// OnAttempt, when set, receives every provider attempt record. Used
	// for the audit store; must not block for long.
	OnAttempt func(domain.ProviderAttempt)

	Logger *slog.Logger
}

// ProviderStatus is a snapshot of one provider's gate for status
// endpoints.
type ProviderStatus struct {
	Name    string           `json:"name"`
	Breaker breaker.Snapshot `json:"breaker"`
}

type managedProvider struct {
	adapter     provider.Adapter
	breaker     *breaker.Breaker
	retry       retry.Policy
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// Orchestrator owns its breaker set explicitly; state is scoped to the
// instance, never global.
type Orchestrator struct {
	providers []*managedProvider
	validator *validate.Validator
	rules     *rules.Analyzer
	scorer    *scoring.Scorer
	onAttempt func(domain.ProviderAttempt)
	log       *slog.Logger
}

// New builds an orchestrator over the given provider chain.
func New(cfg Config) (*Orchestrator, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	o := &Orchestrator{
		validator: validate.New(),
		rules:     rules.New(),
		scorer:    scoring.NewDefault(),
		onAttempt: cfg.OnAttempt,
		log:       log,
	}

	for _, spec := range cfg.Providers {
		timeout := spec.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		rp := spec.Retry
		if rp.MaxAttempts <= 0 {
			rp = retry.DefaultPolicy
		}
		o.providers = append(o.providers, &managedProvider{
			adapter:     spec.Adapter,
			breaker:     breaker.New(spec.Breaker),
			retry:       rp,
			timeout:     timeout,
			maxTokens:   spec.MaxTokens,
			temperature: spec.Temperature,
		})
	}

	return o, nil
}

// Analyze produces a structured verdict for the document text. It is
// synchronous and never returns an error: when every provider is skipped
// or fails, the rule-based fallback is the guaranteed terminal case.
func (o *Orchestrator) Analyze(ctx context.Context, req domain.AnalysisRequest) domain.AnalysisResult {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	// Nothing to send to a provider; skip straight to the offline path.
	if strings.TrimSpace(req.Text) == "" {
		o.log.Debug("Empty document text, using rule-based analysis", "request_id", req.ID)
		return o.fallback(req)
	}

	for _, mp := range o.providers {
		name := mp.adapter.Name()

		if !mp.breaker.Allow() {
			o.recordAttempt(domain.ProviderAttempt{
				ID:        uuid.NewString(),
				RequestID: req.ID,
				Provider:  name,
				Outcome:   domain.OutcomeRejectedByBreaker,
				StartedAt: time.Now(),
			})
			o.log.Debug("Provider skipped, breaker open", "request_id", req.ID, "provider", name)
			continue
		}

		raw, attempt := o.callWithRetry(ctx, mp, req)
		o.recordAttempt(attempt)

		switch attempt.Outcome {
		case domain.OutcomeCancelled:
			// Neither success nor failure: the caller went away. Do not
			// touch breaker counters, and stop burning providers on a
			// request nobody is waiting for.
			mp.breaker.Release()
			o.syncBreakerGauge(name, mp)
			return o.fallback(req)

		case domain.OutcomeSuccess:
			res, err := o.validator.Parse(raw)
			if err != nil {
				// The provider answered but unusably. No retry against
				// the same provider; count it against the breaker and
				// advance down the chain.
				mp.breaker.RecordFailure()
				o.syncBreakerGauge(name, mp)
				metrics.ProviderCallsTotal.WithLabelValues(name, string(domain.OutcomeInvalidOutput)).Inc()
				o.log.Warn("Provider output failed validation",
					"request_id", req.ID, "provider", name, "error", err)
				continue
			}

			mp.breaker.RecordSuccess()
			o.syncBreakerGauge(name, mp)

			res.Source = name
			o.scorer.Enrich(&res, req.Text)
			res.AnalyzedAt = time.Now()

			metrics.AnalysesTotal.WithLabelValues(name).Inc()
			o.log.Info("Analysis completed",
				"request_id", req.ID, "provider", name,
				"category", res.Category, "confidence", res.Confidence)
			return res

		default:
			mp.breaker.RecordFailure()
			o.syncBreakerGauge(name, mp)
			o.log.Warn("Provider attempt failed",
				"request_id", req.ID, "provider", name,
				"outcome", attempt.Outcome, "retries", attempt.Retries, "error", attempt.Error)
		}
	}

	return o.fallback(req)
}

// callWithRetry runs one provider's attempt budget. Internal retries do
// not touch the breaker; exactly one outcome is recorded per budget.
func (o *Orchestrator) callWithRetry(ctx context.Context, mp *managedProvider, req domain.AnalysisRequest) (string, domain.ProviderAttempt) {
	name := mp.adapter.Name()
	attempt := domain.ProviderAttempt{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Provider:  name,
		StartedAt: time.Now(),
	}

	var lastErr error
	var tries int
	for i := 0; i < mp.retry.MaxAttempts; i++ {
		tries = i
		callCtx, cancel := context.WithTimeout(ctx, mp.timeout)
		raw, err := mp.adapter.Analyze(callCtx, provider.Request{
			Text:        req.Text,
			MaxTokens:   mp.maxTokens,
			Temperature: mp.temperature,
		})
		cancel()

		if err == nil {
			attempt.Outcome = domain.OutcomeSuccess
			attempt.Retries = i
			attempt.Duration = time.Since(attempt.StartedAt)
			metrics.ProviderCallsTotal.WithLabelValues(name, string(domain.OutcomeSuccess)).Inc()
			metrics.ProviderLatency.WithLabelValues(name).Observe(attempt.Duration.Seconds())
			return raw, attempt
		}
		lastErr = err

		// The caller's own context ended: external cancellation, not a
		// provider fault.
		if ctx.Err() != nil {
			attempt.Outcome = domain.OutcomeCancelled
			attempt.Retries = i
			attempt.Error = ctx.Err().Error()
			attempt.Duration = time.Since(attempt.StartedAt)
			metrics.ProviderCallsTotal.WithLabelValues(name, string(domain.OutcomeCancelled)).Inc()
			return "", attempt
		}

		metrics.ProviderErrorsTotal.WithLabelValues(name, string(provider.KindOf(err))).Inc()

		if !provider.Retryable(err) || i == mp.retry.MaxAttempts-1 {
			break
		}

		delay := mp.retry.Delay(i)
		if advertised := provider.RetryAfter(err); advertised > delay {
			delay = advertised
		}
		select {
		case <-ctx.Done():
			attempt.Outcome = domain.OutcomeCancelled
			attempt.Retries = i
			attempt.Error = ctx.Err().Error()
			attempt.Duration = time.Since(attempt.StartedAt)
			metrics.ProviderCallsTotal.WithLabelValues(name, string(domain.OutcomeCancelled)).Inc()
			return "", attempt
		case <-time.After(delay):
		}
	}

	attempt.Retries = tries
	attempt.Duration = time.Since(attempt.StartedAt)
	if provider.KindOf(lastErr) == provider.KindTimeout {
		attempt.Outcome = domain.OutcomeTimeout
	} else {
		attempt.Outcome = domain.OutcomeError
	}
	if lastErr != nil {
		attempt.Error = lastErr.Error()
	}
	metrics.ProviderCallsTotal.WithLabelValues(name, string(attempt.Outcome)).Inc()
	return "", attempt
}

// fallback runs the offline analyzer. This path never fails and makes no
// network calls.
func (o *Orchestrator) fallback(req domain.AnalysisRequest) domain.AnalysisResult {
	res := o.rules.Analyze(req)
	o.scorer.Enrich(&res, req.Text)
	metrics.AnalysesTotal.WithLabelValues(domain.SourceRuleBased).Inc()
	o.log.Info("Analysis completed via rule-based fallback",
		"request_id", req.ID, "category", res.Category)
	return res
}

// Status returns a snapshot of every provider's breaker.
func (o *Orchestrator) Status() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(o.providers))
	for _, mp := range o.providers {
		out = append(out, ProviderStatus{
			Name:    mp.adapter.Name(),
			Breaker: mp.breaker.Snapshot(),
		})
	}
	return out
}

func (o *Orchestrator) recordAttempt(a domain.ProviderAttempt) {
	if a.Outcome == domain.OutcomeRejectedByBreaker {
		metrics.ProviderCallsTotal.WithLabelValues(a.Provider, string(a.Outcome)).Inc()
	}
	if o.onAttempt != nil {
		o.onAttempt(a)
	}
}

func (o *Orchestrator) syncBreakerGauge(name string, mp *managedProvider) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(mp.breaker.Snapshot().State))
}
