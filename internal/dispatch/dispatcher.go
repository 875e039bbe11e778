// Package dispatch routes (service, action) requests through authentication, policy,
// execution and notification fan-out. Every action ends in exactly one terminal state.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/identity"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	"github.com/noah-isme/classroom-gate-api/internal/service"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/middleware/requestid"
)

// State is a step of the dispatch pipeline.
type State string

const (
	StateReceived      State = "received"
	StateAuthenticated State = "authenticated"
	StateAuthorized    State = "authorized"
	StateExecuted      State = "executed"
	StateSideEffected  State = "side_effected"
	StateResponded     State = "responded"
	StateFailed        State = "failed"
)

const defaultTimeout = 15 * time.Second

// Request is one action invocation.
type Request struct {
	Service string
	Action  string
	Data    json.RawMessage
}

// Result is the success payload of an action.
type Result struct {
	Data       interface{}
	Pagination *models.Pagination
	Created    bool
}

// Config bounds the detached execute and fan-out phase.
type Config struct {
	Timeout time.Duration
}

// Option configures optional collaborators.
type Option func(*Dispatcher)

// WithAnalytics enables the analytics read actions.
func WithAnalytics(analytics *service.AnalyticsService) Option {
	return func(d *Dispatcher) { d.analytics = analytics }
}

// WithExports enables gradebook exports.
func WithExports(exports *service.ExportService) Option {
	return func(d *Dispatcher) { d.exports = exports }
}

// WithMetrics records dispatch outcomes.
func WithMetrics(metrics *service.MetricsService) Option {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// Dispatcher executes actions against the store on behalf of the principal carried by
// the request context.
type Dispatcher struct {
	store     *repository.Store
	notifier  fanout.Notifier
	analytics *service.AnalyticsService
	exports   *service.ExportService
	metrics   *service.MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
	cfg       Config
	routes    map[string]map[string]route
	now       func() time.Time
}

// New constructs a Dispatcher. notifier may be nil, in which case mutations produce no
// notifications.
func New(store *repository.Store, notifier fanout.Notifier, validate *validator.Validate, logger *zap.Logger, cfg Config, opts ...Option) *Dispatcher {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.routes = d.buildRoutes()
	return d
}

// Actions lists the supported actions per service.
func (d *Dispatcher) Actions() map[string][]string {
	out := make(map[string][]string, len(d.routes))
	for svc, actions := range d.routes {
		names := make([]string, 0, len(actions))
		for name := range actions {
			names = append(names, name)
		}
		sort.Strings(names)
		out[svc] = names
	}
	return out
}

type trace struct {
	service   string
	action    string
	principal models.Principal
	state     State
}

// Dispatch runs req to a terminal state. Errors are always *appErrors.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	t := &trace{service: req.Service, action: req.Action, state: StateReceived}

	result, err := d.run(ctx, req, t)
	var appErr *appErrors.Error
	if err != nil {
		appErr = classify(err)
	}
	d.finish(ctx, t, appErr, time.Since(start))
	if appErr != nil {
		return nil, appErr
	}
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, req Request, t *trace) (*Result, error) {
	r, ok := d.routes[req.Service][req.Action]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownAction, fmt.Sprintf("unknown action %s.%s", req.Service, req.Action))
	}
	payload, err := r.bind(req.Data)
	if err != nil {
		return nil, err
	}

	p, ok := identity.PrincipalFrom(ctx)
	if !ok || p.ID == "" || !p.Role.Valid() {
		return nil, appErrors.ErrUnauthenticated
	}
	t.principal = p
	t.state = StateAuthenticated

	out, err := r.run(ctx, p, payload)
	if err != nil {
		return nil, err
	}
	t.state = StateAuthorized

	if out.write == nil {
		t.state = StateExecuted
		return &Result{Data: out.data, Pagination: out.page}, nil
	}
	return d.commit(ctx, out.write, t)
}

// commit runs a write and its fan-out on a context that outlives the caller, so a dropped
// connection cannot leave a mutation without its notifications.
func (d *Dispatcher) commit(ctx context.Context, w *write, t *trace) (*Result, error) {
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	data, ev, err := w.apply(execCtx)
	if err != nil {
		if errors.Is(err, repository.ErrGuardFailed) && w.recheck != nil {
			return nil, d.recheck(execCtx, w.recheck)
		}
		return nil, err
	}
	t.state = StateExecuted

	if ev != nil && d.notifier != nil {
		if err := d.notifier.Notify(execCtx, *ev); err != nil {
			d.metrics.RecordNotificationFailure(d.notifier.Mode())
			d.logger.Warn("notification fan-out failed",
				zap.String("code", appErrors.ErrNotification.Code),
				zap.String("event_key", ev.Key),
				zap.String("mode", d.notifier.Mode()),
				zap.Error(err),
			)
		}
	}
	if w.courseID != "" {
		d.analytics.InvalidateCourse(execCtx, w.courseID)
	}
	t.state = StateSideEffected

	return &Result{Data: data, Created: w.created}, nil
}

// recheck re-evaluates a write whose guard matched no row. The snapshot changed between
// authorization and execution; re-running the check reports what changed.
func (d *Dispatcher) recheck(ctx context.Context, check func(context.Context) error) error {
	err := check(ctx)
	switch {
	case err == nil:
		return appErrors.Clone(appErrors.ErrConflict, "resource changed concurrently")
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, appErrors.ErrNotFound.Message)
	default:
		return err
	}
}

func (d *Dispatcher) finish(ctx context.Context, t *trace, err *appErrors.Error, elapsed time.Duration) {
	outcome := service.OutcomeOK
	if err != nil {
		outcome = err.Code
	}
	svc, action := t.service, t.action
	if _, ok := d.routes[svc][action]; !ok {
		svc, action = "unknown", "unknown"
	}
	d.metrics.ObserveDispatch(svc, action, outcome, elapsed)

	fields := []zap.Field{
		zap.String("service", t.service),
		zap.String("action", t.action),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if t.principal.ID != "" {
		fields = append(fields, zap.String("principal", t.principal.String()))
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}

	if err == nil {
		t.state = StateResponded
		d.logger.Info("action dispatched", append(fields, zap.String("state", string(t.state)))...)
		return
	}
	fields = append(fields, zap.String("state", string(StateFailed)), zap.String("reached", string(t.state)))
	if err.Status >= http.StatusInternalServerError {
		d.logger.Error("action failed", append(fields, zap.Error(err))...)
		return
	}
	d.logger.Warn("action rejected", append(fields, zap.String("reason", err.Message))...)
}

// classify maps store sentinels and unexpected faults onto the error taxonomy.
func classify(err error) *appErrors.Error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, appErrors.ErrNotFound.Message)
	case errors.Is(err, repository.ErrConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "resource already exists")
	case errors.Is(err, repository.ErrGuardFailed):
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, appErrors.ErrForbidden.Message)
	default:
		return appErrors.Store(err, "store operation failed")
	}
}
