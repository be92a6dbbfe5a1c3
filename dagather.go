package dagather

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Dagather holds a fixed set of registered task templates and runs them,
// once per Invoke call, in dependency order with maximum concurrency. A
// Dagather is safe for concurrent Register calls, but an Invoke assumes no
// Register happens concurrently with it.
type Dagather struct {
	mu             sync.Mutex
	templates      []*TaskTemplate
	byName         map[string]*TaskTemplate
	defaultHandler ExceptionHandler
	logger         *zap.Logger
	sem            *semaphore.Weighted
}

// Option configures a Dagather at construction time.
type Option func(*Dagather)

// WithDefaultExceptionHandler sets the handler applied to any template
// registered without its own WithExceptionHandler. The built-in default
// propagates every error with CancelAll.
func WithDefaultExceptionHandler(h ExceptionHandler) Option {
	return func(d *Dagather) { d.defaultHandler = h }
}

// WithLogger attaches a zap.Logger. Every Invoke tags its structured
// debug-level events with a per-run uuid; logging is observational only and
// never affects scheduling. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dagather) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithConcurrencyLimit bounds the number of task callbacks running at once
// to n, using a golang.org/x/sync/semaphore.Weighted slot acquired just
// before each callback runs. Without this option concurrency is unbounded,
// subject only to the dependency graph, per spec.
func WithConcurrencyLimit(n int) Option {
	return func(d *Dagather) {
		if n > 0 {
			d.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New builds an empty Dagather.
func New(opts ...Option) *Dagather {
	d := &Dagather{
		byName:         make(map[string]*TaskTemplate),
		defaultHandler: DefaultExceptionHandler,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a new task template named name, depending on the templates
// named in deps. deps may name a template that does not exist yet — it is
// resolved, and validated, at the start of every Invoke call, against the
// template set registered at that point (spec.md §7; §2 of SPEC_FULL.md).
//
// Register fails with ErrDuplicateName if name is already registered.
func (d *Dagather) Register(name string, deps []string, fn TaskFunc, opts ...RegisterOption) (*TaskTemplate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[name]; exists {
		return nil, duplicateNameError(name)
	}

	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	handler := d.defaultHandler
	if cfg.handler != nil {
		handler = *cfg.handler
	}

	depsCopy := append([]string(nil), deps...)
	t := &TaskTemplate{
		name:    name,
		deps:    depsCopy,
		fn:      fn,
		handler: handler,
		index:   len(d.templates),
	}
	d.templates = append(d.templates, t)
	d.byName[name] = t
	return t, nil
}

// Invoke runs every registered template at most once, in dependency order,
// passing positional and keyword to every task alongside its dependencies'
// outcome values. It returns once every launchable template has completed
// or been discarded.
//
// Invoke fails synchronously, before launching any task, with
// ErrArgumentCollision if any key of keyword names a registered template, or
// with ErrUnknownDependency if a declared dependency names no registered
// template. A dependency cycle is detected once no task is running while
// templates are still waiting: Invoke then returns a nil Result and a
// *CycleError naming the templates in or downstream of the cycle. None of
// those is ever launched, but templates outside the cycle may already have
// run by then. If any task's outcome is a
// PropagateError, Invoke returns the earliest such error alongside the
// Result describing the rest of the run (Testable Property 6: exactly one
// error is ever the cause of failure, though later PropagateErrors remain
// visible through Result.Errors).
func (d *Dagather) Invoke(ctx context.Context, positional []any, keyword map[string]any) (*Result, error) {
	d.mu.Lock()
	templates := make([]*TaskTemplate, len(d.templates))
	copy(templates, d.templates)
	byName := make(map[string]*TaskTemplate, len(d.byName))
	for k, v := range d.byName {
		byName[k] = v
	}
	d.mu.Unlock()

	var colliding []string
	for key := range keyword {
		if _, collides := byName[key]; collides {
			colliding = append(colliding, key)
		}
	}
	if len(colliding) > 0 {
		return nil, argumentCollisionError(colliding)
	}

	r := newRun(d, uuid.NewString(), positional, keyword)
	r.all = templates
	r.byName = byName
	return r.execute(ctx)
}
