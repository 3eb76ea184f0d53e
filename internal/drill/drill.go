// internal/drill/drill.go

// Package drill runs concurrency experiments against a live circulation desk
// and checks that the stored state is still consistent afterwards.
package drill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"loandesk/internal/audit"
	"loandesk/internal/logger"
)

// ErrSteadyState aborts an experiment whose audit fails before it starts.
var ErrSteadyState = errors.New("steady state invalid")

// Experiment is one drill: a hypothesis, the load that tests it, and the
// assertions over what the load observed.
type Experiment struct {
	Name       string
	Hypothesis string
	Method     []Action
	Validation []Assertion
}

// Action applies load and records what happened into obs.
type Action struct {
	Name    string
	Execute func(ctx context.Context, obs *Observations) error
}

// Assertion checks one observed value against a threshold.
type Assertion struct {
	Metric    string
	Threshold Threshold
	Message   string
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

func (t Threshold) holds(v float64) bool {
	switch t.Operator {
	case ">":
		return v > t.Value
	case "<":
		return v < t.Value
	case ">=":
		return v >= t.Value
	case "<=":
		return v <= t.Value
	case "==":
		return v == t.Value
	default:
		return false
	}
}

// Observations is a set of named counters shared by an experiment's actions.
type Observations struct {
	mu     sync.Mutex
	values map[string]float64
}

func newObservations() *Observations {
	return &Observations{values: make(map[string]float64)}
}

func (o *Observations) Add(metric string, delta float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[metric] += delta
}

func (o *Observations) Get(metric string) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.values[metric]
	return v, ok
}

func (o *Observations) snapshot() map[string]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]float64, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

type Result struct {
	ExperimentName   string             `json:"experiment_name"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          time.Time          `json:"end_time"`
	Duration         time.Duration      `json:"duration"`
	SteadyStateValid bool               `json:"steady_state_valid"`
	HypothesisHeld   bool               `json:"hypothesis_held"`
	Observations     map[string]float64 `json:"observations"`
	Failures         []string           `json:"failures"`
	Violations       []audit.Violation  `json:"violations"`
	Errors           []string           `json:"errors"`
}

// Auditor reports on the consistency of the desk under test.
type Auditor interface {
	Audit(ctx context.Context) (audit.Report, error)
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer  trace.Tracer
	auditor Auditor
	log     *logger.Logger

	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine(auditor Auditor, log *logger.Logger) *Engine {
	return &Engine{
		tracer:  otel.Tracer("loandesk/drill"),
		auditor: auditor,
		log:     log.With("component", "drill"),
	}
}

func (e *Engine) Register(exps ...Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exps...)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run audits the store, applies the experiment's actions, audits again and
// evaluates the assertions. The hypothesis holds only when both audits are
// clean and every assertion passes.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "drill.run",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Failures:       []string{},
		Errors:         []string{},
	}

	span.AddEvent("validating_steady_state")
	before, err := e.auditor.Audit(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to audit before experiment: %w", err)
	}
	if !before.Consistent() {
		result.Violations = before.Violations
		return result, ErrSteadyState
	}
	result.SteadyStateValid = true

	span.AddEvent("applying_load")
	obs := newObservations()
	for _, action := range exp.Method {
		if err := action.Execute(ctx, obs); err != nil {
			span.RecordError(err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", action.Name, err))
		}
	}
	result.Observations = obs.snapshot()

	span.AddEvent("validating_assertions")
	for _, a := range exp.Validation {
		v, ok := obs.Get(a.Metric)
		if !ok || !a.Threshold.holds(v) {
			result.Failures = append(result.Failures, fmt.Sprintf("%s (%s=%v)", a.Message, a.Metric, v))
		}
	}

	after, err := e.auditor.Audit(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to audit after experiment: %w", err)
	}
	result.Violations = after.Violations

	result.HypothesisHeld = len(result.Failures) == 0 && len(result.Errors) == 0 && after.Consistent()
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// RunAll runs every registered experiment in order and returns an error
// naming the experiments whose hypothesis did not hold.
func (e *Engine) RunAll(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "drill.run_all")
	defer span.End()

	var failed []string
	for i, exp := range e.Experiments() {
		e.log.Info("running experiment",
			"index", i+1,
			"name", exp.Name,
			"hypothesis", exp.Hypothesis,
		)
		result, err := e.Run(ctx, exp)
		if err != nil {
			e.log.Error("experiment aborted", "name", exp.Name, "error", err.Error())
			failed = append(failed, exp.Name)
			continue
		}
		e.report(result)
		if !result.HypothesisHeld {
			failed = append(failed, exp.Name)
		}
	}

	if len(failed) > 0 {
		err := fmt.Errorf("%d of %d experiments failed: %v", len(failed), len(e.Experiments()), failed)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (e *Engine) report(r *Result) {
	kv := []interface{}{
		"name", r.ExperimentName,
		"duration", r.Duration.String(),
		"observations", r.Observations,
	}
	if r.HypothesisHeld {
		e.log.Info("hypothesis held", kv...)
		return
	}
	kv = append(kv, "failures", r.Failures, "errors", r.Errors, "violations", r.Violations)
	e.log.Warn("hypothesis violated", kv...)
}
