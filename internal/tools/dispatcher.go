package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alucardeht/birdwatch-mcp/internal/logger"
)

var log = logger.ForComponent("tools")

const tracerName = "github.com/alucardeht/birdwatch-mcp/internal/tools"

// State is a step of a single invocation.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateExecuting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TransitionHook observes every state an invocation enters.
type TransitionHook func(id, capability string, state State)

type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	tracer   trace.Tracer
	hook     TransitionHook
}

type Option func(*Dispatcher)

// WithTimeout bounds how long a handler may run. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(d *Dispatcher) {
		d.hook = hook
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) List() []Descriptor {
	return d.registry.List()
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Invoke runs the named capability. It always returns a completed Result.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) Result {
	raw, err := json.Marshal(args)
	if err != nil {
		return Failure(NewInvalidArgumentsError(name, err))
	}
	return d.InvokeJSON(ctx, name, raw)
}

// InvokeJSON is Invoke for arguments that arrive as raw JSON.
func (d *Dispatcher) InvokeJSON(ctx context.Context, name string, raw json.RawMessage) Result {
	inv := &invocation{
		id:   uuid.NewString(),
		name: name,
		hook: d.hook,
	}
	inv.enter(StateIdle)

	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "tools/call "+name,
		trace.WithAttributes(
			attribute.String("capability.name", name),
			attribute.String("invocation.id", inv.id),
		))
	defer span.End()

	result := d.run(ctx, inv, raw)
	inv.enter(StateCompleted)

	elapsed := time.Since(start)
	if result.OK {
		log.Debug("invocation completed",
			"id", inv.id, "capability", name, "duration_ms", elapsed.Milliseconds())
	} else {
		span.SetAttributes(attribute.String("error.kind", string(result.Kind())))
		span.SetStatus(codes.Error, result.Message())
		log.Info("invocation failed",
			"id", inv.id, "capability", name, "kind", result.Kind(),
			"message", result.Message(), "duration_ms", elapsed.Milliseconds())
	}

	return result
}

func (d *Dispatcher) run(ctx context.Context, inv *invocation, raw json.RawMessage) Result {
	inv.enter(StateValidating)

	e, ok := d.registry.lookup(inv.name)
	if !ok {
		return Failure(NewUnknownCapabilityError(inv.name))
	}

	if err := ctx.Err(); err != nil {
		return Failure(NewCancelledError(inv.name, err))
	}

	args, err := decodeArguments(raw)
	if err != nil {
		return Failure(NewInvalidArgumentsError(inv.name, err))
	}

	input, err := e.schema.prepare(args)
	if err != nil {
		return Failure(NewInvalidArgumentsError(inv.name, err))
	}

	inv.enter(StateExecuting)
	return d.execute(ctx, inv.name, e.handler, input)
}

func (d *Dispatcher) execute(ctx context.Context, name string, handler Handler, input json.RawMessage) Result {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("capability panic recovered",
					"capability", name,
					"panic", r,
					"stack", string(debug.Stack()))
				done <- Failure(NewUpstreamError(name, fmt.Errorf("capability panicked: %v", r)))
			}
		}()

		payload, err := handler(ctx, input)
		if err != nil {
			done <- classify(ctx, name, err)
			return
		}
		done <- Success(payload)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return Failure(NewCancelledError(name, ctx.Err()))
	}
}

func classify(ctx context.Context, name string, err error) Result {
	if te, ok := AsToolError(err); ok {
		return Failure(te)
	}

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return Failure(NewCancelledError(name, ctx.Err()))
	}

	return Failure(NewUpstreamError(name, err))
}

type invocation struct {
	id    string
	name  string
	state State
	hook  TransitionHook
}

func (inv *invocation) enter(s State) {
	inv.state = s
	if inv.hook != nil {
		inv.hook(inv.id, inv.name, s)
	}
}
