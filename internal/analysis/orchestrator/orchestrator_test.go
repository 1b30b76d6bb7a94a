package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluxadm/analyzer/internal/analysis/breaker"
	"github.com/fluxadm/analyzer/internal/analysis/retry"
	"github.com/fluxadm/analyzer/internal/core/domain"
	"github.com/fluxadm/analyzer/internal/infra/provider"
)

const validOutput = `{"title": "Upgrade search cluster", "category": "normal", "priority": "medium", "risk_level": "medium", "confidence": 0.9}`

// fakeAdapter scripts provider behavior per call.
type fakeAdapter struct {
	name string

	mu    sync.Mutex
	calls int
	fn    func(call int, ctx context.Context) (string, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Analyze(ctx context.Context, _ provider.Request) (string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	return f.fn(call, ctx)
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func alwaysSucceed(name string) *fakeAdapter {
	return &fakeAdapter{name: name, fn: func(int, context.Context) (string, error) {
		return validOutput, nil
	}}
}

func alwaysFail(name string, kind provider.ErrorKind) *fakeAdapter {
	return &fakeAdapter{name: name, fn: func(int, context.Context) (string, error) {
		return "", &provider.CallError{Provider: name, Kind: kind, Err: errors.New("scripted failure")}
	}}
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func spec(a provider.Adapter) ProviderSpec {
	return ProviderSpec{
		Adapter: a,
		Breaker: breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Hour},
		Retry:   fastRetry(3),
		Timeout: time.Second,
	}
}

func TestNewRequiresProviders(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("New with no providers err = %v, want ErrNoProviders", err)
	}
}

func TestFirstProviderWins(t *testing.T) {
	primary := alwaysSucceed("primary")
	secondary := alwaysSucceed("secondary")

	o, err := New(Config{Providers: []ProviderSpec{spec(primary), spec(secondary)}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "change the search cluster, rollback plan attached"})

	if res.Source != "primary" {
		t.Errorf("source = %s, want primary", res.Source)
	}
	if res.Title != "Upgrade search cluster" {
		t.Errorf("title = %q", res.Title)
	}
	if res.RiskScore < 1 || res.RiskScore > 9 {
		t.Errorf("risk_score = %d, want enriched into 1..9", res.RiskScore)
	}
	if secondary.callCount() != 0 {
		t.Errorf("secondary called %d times, want 0 (at most one provider result per request)", secondary.callCount())
	}
}

func TestFallsThroughChain(t *testing.T) {
	primary := alwaysFail("primary", provider.KindTransport)
	secondary := alwaysSucceed("secondary")

	o, err := New(Config{Providers: []ProviderSpec{spec(primary), spec(secondary)}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "document text"})

	if res.Source != "secondary" {
		t.Errorf("source = %s, want secondary", res.Source)
	}
	// The full retry budget was spent on the primary.
	if primary.callCount() != 3 {
		t.Errorf("primary called %d times, want 3", primary.callCount())
	}
}

func TestExhaustionFallsBackToRules(t *testing.T) {
	o, err := New(Config{Providers: []ProviderSpec{
		spec(alwaysFail("primary", provider.KindTransport)),
		spec(alwaysFail("secondary", provider.KindTimeout)),
	}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "URGENT: Critical system outage"})

	if res.Source != domain.SourceRuleBased {
		t.Errorf("source = %s, want rule_based", res.Source)
	}
	if res.Category != domain.CategoryEmergency || res.Priority != domain.PriorityCritical {
		t.Errorf("rule-based verdict = %s/%s", res.Category, res.Priority)
	}
	if res.Confidence > domain.RuleBasedConfidenceCeiling {
		t.Errorf("confidence = %v, above rule-based ceiling", res.Confidence)
	}
}

func TestEmptyTextSkipsProviders(t *testing.T) {
	primary := alwaysSucceed("primary")
	o, err := New(Config{Providers: []ProviderSpec{spec(primary)}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "   \n\t "})

	if res.Source != domain.SourceRuleBased {
		t.Errorf("source = %s, want rule_based", res.Source)
	}
	if primary.callCount() != 0 {
		t.Errorf("provider called %d times for empty text, want 0", primary.callCount())
	}
}

func TestBreakerOpensAndSkipsProvider(t *testing.T) {
	primary := alwaysFail("primary", provider.KindTransport)
	secondary := alwaysSucceed("secondary")

	s := spec(primary)
	s.Breaker = breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour}
	s.Retry = fastRetry(1)

	o, err := New(Config{Providers: []ProviderSpec{s, spec(secondary)}})
	if err != nil {
		t.Fatal(err)
	}

	// Two failing requests open the primary's breaker.
	for i := 0; i < 2; i++ {
		o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"})
	}
	if got := primary.callCount(); got != 2 {
		t.Fatalf("primary called %d times, want 2", got)
	}

	// Third request: primary is skipped without a call.
	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"})
	if primary.callCount() != 2 {
		t.Errorf("primary called while breaker open")
	}
	if res.Source != "secondary" {
		t.Errorf("source = %s, want secondary", res.Source)
	}

	status := o.Status()
	if status[0].Breaker.State != breaker.StateOpen {
		t.Errorf("primary breaker state = %v, want open", status[0].Breaker.State)
	}
}

func TestAllBreakersOpenUsesRulesWithoutCalls(t *testing.T) {
	primary := alwaysFail("primary", provider.KindTransport)
	s := spec(primary)
	s.Breaker = breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Hour}
	s.Retry = fastRetry(1)

	o, err := New(Config{Providers: []ProviderSpec{s}})
	if err != nil {
		t.Fatal(err)
	}

	o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"}) // opens breaker
	before := primary.callCount()

	start := time.Now()
	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"})
	elapsed := time.Since(start)

	if res.Source != domain.SourceRuleBased {
		t.Errorf("source = %s, want rule_based", res.Source)
	}
	if primary.callCount() != before {
		t.Error("provider called while breaker open")
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("rule-based path took %v, expected no network latency", elapsed)
	}
}

func TestMalformedOutputAdvancesWithoutRetry(t *testing.T) {
	garbage := &fakeAdapter{name: "primary", fn: func(int, context.Context) (string, error) {
		return "I could not produce JSON today, sorry.", nil
	}}
	secondary := alwaysSucceed("secondary")

	o, err := New(Config{Providers: []ProviderSpec{spec(garbage), spec(secondary)}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"})

	// Provider responded, just unusably: one call only, no retries.
	if garbage.callCount() != 1 {
		t.Errorf("primary called %d times, want 1", garbage.callCount())
	}
	if res.Source != "secondary" {
		t.Errorf("source = %s, want secondary", res.Source)
	}
	// Malformed output still counts against the breaker.
	if o.Status()[0].Breaker.ConsecutiveFailures != 1 {
		t.Errorf("breaker failures = %d, want 1", o.Status()[0].Breaker.ConsecutiveFailures)
	}
}

func TestRetriedFailureRecordsOneBreakerFailure(t *testing.T) {
	primary := alwaysFail("primary", provider.KindTransport)
	o, err := New(Config{Providers: []ProviderSpec{spec(primary)}})
	if err != nil {
		t.Fatal(err)
	}

	o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"})

	if primary.callCount() != 3 {
		t.Errorf("primary called %d times, want full retry budget of 3", primary.callCount())
	}
	if got := o.Status()[0].Breaker.ConsecutiveFailures; got != 1 {
		t.Errorf("breaker failures = %d, want exactly 1 per attempt budget", got)
	}
}

func TestCredentialErrorNotRetried(t *testing.T) {
	primary := alwaysFail("primary", provider.KindInvalidCredentials)
	secondary := alwaysSucceed("secondary")

	o, err := New(Config{Providers: []ProviderSpec{spec(primary), spec(secondary)}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(context.Background(), domain.AnalysisRequest{Text: "doc"})

	if primary.callCount() != 1 {
		t.Errorf("primary called %d times, want 1 (credentials never recover mid-request)", primary.callCount())
	}
	if res.Source != "secondary" {
		t.Errorf("source = %s, want secondary", res.Source)
	}
}

func TestExternalCancellationSkipsBreakerBookkeeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &fakeAdapter{name: "primary", fn: func(_ int, callCtx context.Context) (string, error) {
		cancel()
		<-callCtx.Done()
		return "", &provider.CallError{Provider: "primary", Kind: provider.KindTransport, Err: callCtx.Err()}
	}}

	o, err := New(Config{Providers: []ProviderSpec{spec(primary)}})
	if err != nil {
		t.Fatal(err)
	}

	res := o.Analyze(ctx, domain.AnalysisRequest{Text: "doc"})

	// Cancelled call is neither success nor failure.
	if got := o.Status()[0].Breaker.ConsecutiveFailures; got != 0 {
		t.Errorf("breaker failures = %d, want 0 after external cancellation", got)
	}
	if res.Source != domain.SourceRuleBased {
		t.Errorf("source = %s, want rule_based terminal result", res.Source)
	}
}

func TestAttemptCallbackReceivesOutcomes(t *testing.T) {
	var mu sync.Mutex
	var attempts []domain.ProviderAttempt

	o, err := New(Config{
		Providers: []ProviderSpec{spec(alwaysFail("primary", provider.KindTimeout)), spec(alwaysSucceed("secondary"))},
		OnAttempt: func(a domain.ProviderAttempt) {
			mu.Lock()
			attempts = append(attempts, a)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	o.Analyze(context.Background(), domain.AnalysisRequest{ID: "req-1", Text: "doc"})

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 {
		t.Fatalf("recorded %d attempts, want 2", len(attempts))
	}
	if attempts[0].Provider != "primary" || attempts[0].Outcome != domain.OutcomeTimeout {
		t.Errorf("first attempt = %s/%s, want primary/timeout", attempts[0].Provider, attempts[0].Outcome)
	}
	if attempts[1].Provider != "secondary" || attempts[1].Outcome != domain.OutcomeSuccess {
		t.Errorf("second attempt = %s/%s, want secondary/success", attempts[1].Provider, attempts[1].Outcome)
	}
	if attempts[0].RequestID != "req-1" {
		t.Errorf("attempt request id = %s", attempts[0].RequestID)
	}
}
