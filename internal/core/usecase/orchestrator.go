package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/core/ports"
)

type State string

const (
	StatePending    State = "PENDING"
	StateProfiling  State = "PROFILING"
	StateAttempting State = "ATTEMPTING"
	StateValidating State = "VALIDATING"
	StateAccepted   State = "ACCEPTED"
	StateContinue   State = "CONTINUE"
	StateExhausted  State = "EXHAUSTED"
	StateMerging    State = "MERGING"
	StateDone       State = "DONE"
)

// Orchestrator walks the engine chain for one document at a time. It holds only
// read-only configuration, so a single value can serve concurrent callers.
type Orchestrator struct {
	profiler  ports.DocumentProfiler
	chain     []ports.EngineAdapter
	policy    Policy
	validator ports.ResultValidator
	observer  ports.ExtractionObserver
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithValidator(v ports.ResultValidator) Option {
	return func(o *Orchestrator) {
		if v != nil {
			o.validator = v
		}
	}
}

func WithObserver(obs ports.ExtractionObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(profiler ports.DocumentProfiler, chain []ports.EngineAdapter, policy Policy, opts ...Option) *Orchestrator {
	policy = policy.normalize()
	o := &Orchestrator{
		profiler:  profiler,
		chain:     slices.Clone(chain),
		policy:    policy,
		validator: NewValidator(policy.Scoring),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Extract always returns a FinalOutcome; every failure is folded into the attempt log.
func (o *Orchestrator) Extract(ctx context.Context, doc domain.Document) domain.FinalOutcome {
	outcome, _ := o.ExtractWithTrace(ctx, doc)
	return outcome
}

// ExtractWithTrace also returns the sequence of states the run went through.
func (o *Orchestrator) ExtractWithTrace(ctx context.Context, doc domain.Document) (domain.FinalOutcome, []State) {
	r := &run{
		o:              o,
		doc:            doc,
		started:        o.now(),
		state:          StatePending,
		trace:          []State{StatePending},
		log:            domain.NewAttemptLog(o.policy.MaxAttempts),
		retries:        make(map[string]int),
		timeoutRetried: make(map[string]bool),
	}
	outcome := r.execute(ctx)

	if o.observer != nil {
		for _, a := range outcome.AttemptLog {
			o.observer.ObserveAttempt(a.EngineID, a.Outcome, a.Duration)
		}
		o.observer.ObserveOutcome(outcome.Status, outcome.Confidence, outcome.ProcessingTime)
	}
	o.logger.Info("extraction_done",
		"file_name", outcome.FileName,
		"status", outcome.Status,
		"confidence", outcome.Confidence,
		"engines_used", outcome.EnginesUsed,
		"attempts", len(outcome.AttemptLog),
		"duration_ms", float64(outcome.ProcessingTime.Microseconds())/1000.0,
	)
	return outcome, r.trace
}

// run is the per-document state. It is never shared between goroutines.
type run struct {
	o       *Orchestrator
	doc     domain.Document
	started time.Time

	state State
	trace []State

	profile domain.DocumentProfile
	chain   []ports.EngineAdapter
	index   int
	scope   domain.Scope

	log            *domain.AttemptLog
	retries        map[string]int
	timeoutRetried map[string]bool

	current  invocation
	accepted *domain.EngineAttempt
	base     *domain.EngineAttempt
	status   domain.Status
	merged   MergeOutput
}

type invocation struct {
	engine    ports.EngineAdapter
	startedAt time.Time
	duration  time.Duration
	result    *domain.ExtractionResult
	err       *domain.EngineError
	reduced   bool
}

func (r *run) execute(ctx context.Context) domain.FinalOutcome {
	for r.state != StateDone {
		switch r.state {
		case StatePending:
			r.transition(StateProfiling)
		case StateProfiling:
			r.profile = r.profileDocument(ctx)
			r.chain = OrderChain(r.o.chain, r.profile.StrategyHint)
			r.transition(StateAttempting)
		case StateAttempting:
			if r.index >= len(r.chain) || r.log.Full() || ctx.Err() != nil {
				r.transition(StateExhausted)
				continue
			}
			r.current = r.invoke(ctx, r.chain[r.index])
			r.transition(StateValidating)
		case StateValidating:
			r.transition(r.validate(ctx))
		case StateAccepted:
			r.base = r.accepted
			r.status = domain.StatusSuccess
			r.transition(StateMerging)
		case StateContinue:
			r.transition(StateAttempting)
		case StateExhausted:
			r.base = r.bestCandidate()
			r.status = domain.StatusPartial
			if r.base == nil {
				r.status = domain.StatusFallback
			}
			r.transition(StateMerging)
		case StateMerging:
			r.merge()
			r.transition(StateDone)
		}
	}
	return r.finish()
}

func (r *run) transition(next State) {
	r.state = next
	r.trace = append(r.trace, next)
}

func (r *run) profileDocument(ctx context.Context) (profile domain.DocumentProfile) {
	defer func() {
		if p := recover(); p != nil {
			r.o.logger.Error("profiler_panic", "file_name", r.doc.Name, "panic", fmt.Sprint(p))
			profile = domain.UnknownProfile(r.doc.SizeBytes())
		}
	}()
	if r.o.profiler == nil {
		return domain.UnknownProfile(r.doc.SizeBytes())
	}
	return r.o.profiler.Profile(ctx, r.doc)
}

// invoke runs one adapter call bounded by the per-attempt timeout. The orchestrator stops
// waiting at the deadline; the adapter is expected to observe the cancelled context.
func (r *run) invoke(ctx context.Context, engine ports.EngineAdapter) invocation {
	id := engine.ID()
	attemptCtx, cancel := context.WithTimeout(ctx, r.o.policy.timeoutFor(id))
	defer cancel()

	// The goroutine may outlive this attempt, so it only sees its own copies.
	doc, scope := r.doc, r.scope
	inv := invocation{engine: engine, startedAt: r.o.now(), reduced: scope.MaxPages > 0}

	type reply struct {
		result *domain.ExtractionResult
		err    error
	}
	replies := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				replies <- reply{err: domain.NewEngineError(id, domain.EngineErrorInternal, fmt.Errorf("panic: %v", p))}
			}
		}()
		result, err := engine.Extract(attemptCtx, doc, scope)
		replies <- reply{result: result, err: err}
	}()

	select {
	case rep := <-replies:
		inv.result, inv.err = rep.result, domain.AsEngineError(id, rep.err)
		if inv.err == nil && inv.result == nil {
			inv.err = domain.NewEngineError(id, domain.EngineErrorInternal, errors.New("engine returned no result"))
		}
		if inv.err != nil {
			inv.result = nil
			if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				inv.err = domain.NewEngineError(id, domain.EngineErrorTimeout, inv.err)
			}
		}
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			inv.err = domain.NewEngineError(id, domain.EngineErrorInternal, fmt.Errorf("cancelled: %w", ctx.Err()))
		} else {
			inv.err = domain.NewEngineError(id, domain.EngineErrorTimeout, attemptCtx.Err())
		}
	}
	inv.duration = r.o.now().Sub(inv.startedAt)
	if inv.result != nil && inv.result.EngineID == "" {
		inv.result.EngineID = id
	}
	return inv
}

func (r *run) validate(ctx context.Context) State {
	inv := r.current
	attempt := domain.EngineAttempt{
		EngineID:     inv.engine.ID(),
		EngineKind:   inv.engine.Kind(),
		ChainIndex:   r.index,
		StartedAt:    inv.startedAt,
		Duration:     inv.duration,
		ReducedScope: inv.reduced,
	}

	if inv.err != nil {
		attempt.ErrorKind = inv.err.Kind
		attempt.ErrorDetail = inv.err.Error()
		attempt.Outcome = domain.OutcomeEngineError
		if inv.err.Kind == domain.EngineErrorTimeout {
			attempt.Outcome = domain.OutcomeTimeout
		}
		r.record(attempt)

		if attempt.Outcome == domain.OutcomeTimeout && !r.timeoutRetried[attempt.EngineID] && ctx.Err() == nil {
			r.timeoutRetried[attempt.EngineID] = true
			r.scope = domain.Scope{MaxPages: r.reducedPages()}
			return StateContinue
		}
		if attempt.Outcome == domain.OutcomeEngineError && r.retries[attempt.EngineID] < r.o.policy.MaxRetriesPerEngine && ctx.Err() == nil {
			r.retries[attempt.EngineID]++
			return StateContinue
		}
		r.advance()
		return StateContinue
	}

	score := r.o.validator.Score(*inv.result, r.profile)
	attempt.Confidence = score
	attempt.Result = inv.result
	threshold := r.o.policy.Threshold(r.profile.StrategyHint)

	if score > 0 && score >= threshold {
		attempt.Outcome = domain.OutcomeSuccess
		r.record(attempt)
		entries := r.log.Entries()
		r.accepted = &entries[len(entries)-1]
		return StateAccepted
	}

	attempt.Outcome = domain.OutcomeRejectedByValidator
	r.record(attempt)
	r.advance()
	return StateContinue
}

func (r *run) record(attempt domain.EngineAttempt) {
	if !r.log.Append(attempt) {
		return
	}
	r.o.logger.Info("engine_attempt",
		"file_name", r.doc.Name,
		"engine", attempt.EngineID,
		"outcome", attempt.Outcome,
		"confidence", attempt.Confidence,
		"reduced_scope", attempt.ReducedScope,
		"duration_ms", float64(attempt.Duration.Microseconds())/1000.0,
		"error", attempt.ErrorDetail,
	)
}

func (r *run) advance() {
	r.index++
	r.scope = domain.Scope{}
}

func (r *run) reducedPages() int {
	pages := r.scope.Limit(r.profile.PageCount)
	return max(1, pages/2)
}

// bestCandidate picks the highest-confidence retained result; ties go to the earlier attempt.
func (r *run) bestCandidate() *domain.EngineAttempt {
	var best *domain.EngineAttempt
	entries := r.log.Entries()
	for i := range entries {
		a := &entries[i]
		if a.Result == nil || a.Confidence <= 0 {
			continue
		}
		if best == nil || a.Confidence > best.Confidence {
			best = a
		}
	}
	return best
}

func (r *run) merge() {
	if r.base == nil {
		return
	}
	r.merged = MergeResults(MergeInput{
		Base:         *r.base,
		Attempts:     r.log.Entries(),
		Profile:      r.profile,
		MinPageChars: r.o.policy.Scoring.MinPageChars,
	})

	confidence := r.base.Confidence
	if r.merged.FilledPages > 0 {
		rescored := r.merged.Content.Clone()
		rescored.EngineConfidence = nil
		confidence = max(confidence, r.o.validator.Score(*rescored, r.profile))
	}
	r.merged.Confidence = confidence

	if r.status == domain.StatusPartial && confidence < r.o.policy.PartialFloor {
		r.o.logger.Warn("extraction_fallback",
			"file_name", r.doc.Name,
			"best_engine", r.base.EngineID,
			"best_confidence", confidence,
			"partial_floor", r.o.policy.PartialFloor,
		)
		r.status = domain.StatusFallback
	}
}

func (r *run) finish() domain.FinalOutcome {
	draft := OutcomeDraft{
		FileName:       r.doc.Name,
		ProcessingTime: r.o.now().Sub(r.started),
		Status:         r.status,
		Profile:        r.profile,
		Attempts:       r.log.Entries(),
		EmptyInput:     r.doc.IsEmpty(),
	}
	if r.status != domain.StatusFallback && r.base != nil {
		content := r.merged.Content
		draft.Content = &content
		draft.Confidence = r.merged.Confidence
		draft.EnginesUsed = r.merged.EnginesUsed
		draft.Method = r.merged.Method
	}
	return Normalize(draft)
}
