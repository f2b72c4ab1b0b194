package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Manager is the application-facing facade over a single unit of work. Each
// manager corresponds to one logical unit of work (one request or one script
// invocation) and carries a scope identifier that observability exporters
// attach to their output.
type Manager struct {
	uow     *UnitOfWork
	metrics MetricsRecorder
	tracer  Tracer
	scope   string
}

// ManagerOption customizes manager construction.
type ManagerOption func(*Manager)

// WithMetricsRecorder attaches a metrics recorder observing every operation.
func WithMetricsRecorder(rec MetricsRecorder) ManagerOption {
	return func(m *Manager) { m.metrics = rec }
}

// WithTracer attaches a tracer producing one span per operation.
func WithTracer(tracer Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = tracer }
}

// NewManager constructs a manager with its own unit of work over the driver
// and registry.
func NewManager(driver Driver, registry Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		uow:   NewUnitOfWork(driver, registry),
		scope: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UnitOfWork exposes the underlying unit of work.
func (m *Manager) UnitOfWork() *UnitOfWork { return m.uow }

// Scope returns the manager's unit-of-work scope identifier.
func (m *Manager) Scope() string { return m.scope }

// Find loads the instance of the named type identified by the key.
func (m *Manager) Find(ctx context.Context, typeName string, key any) (*Entity, error) {
	var e *Entity
	err := m.observe(ctx, "find", func(ctx context.Context) error {
		var err error
		e, err = m.uow.Reconstitute(ctx, typeName, key)
		return err
	})
	return e, err
}

// Persist schedules the instance for insertion at the next Flush.
func (m *Manager) Persist(ctx context.Context, e *Entity) error {
	return m.observe(ctx, "persist", func(context.Context) error {
		return m.uow.ScheduleForInsert(e)
	})
}

// Remove schedules the managed instance for deletion at the next Flush.
func (m *Manager) Remove(ctx context.Context, e *Entity) error {
	return m.observe(ctx, "remove", func(context.Context) error {
		return m.uow.ScheduleForDelete(e)
	})
}

// Flush commits all pending work against the storage driver.
func (m *Manager) Flush(ctx context.Context) error {
	return m.observe(ctx, "flush", func(ctx context.Context) error {
		return m.uow.Commit(ctx)
	})
}

// Clear detaches all tracked instances without touching storage.
func (m *Manager) Clear() {
	m.uow.Clear()
}

func (m *Manager) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx = WithScope(ctx, m.scope)
	var span TraceSpan
	if m.tracer != nil {
		ctx, span = m.tracer.Start(ctx, operation)
	}
	start := time.Now()
	err := fn(ctx)
	if span != nil {
		span.End(err)
	}
	if m.metrics != nil {
		m.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
	return err
}
