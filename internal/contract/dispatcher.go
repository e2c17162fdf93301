package contract

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustdble/tablekv/internal/metrics"
)

// Intent says whether an invocation may change state. Evaluate invocations
// are queries; Submit invocations are transactions.
type Intent byte

const (
	Evaluate Intent = iota
	Submit
)

func (i Intent) String() string {
	switch i {
	case Evaluate:
		return "evaluate"
	case Submit:
		return "submit"
	default:
		return fmt.Sprintf("intent(%d)", byte(i))
	}
}

type function struct {
	intent Intent
	arity  int
	call   func(ctx context.Context, args []string) (string, error)
}

// Dispatcher routes named invocations to a Contract.
type Dispatcher struct {
	functions map[string]function
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewDispatcher registers every contract function. m and log may be nil and
// zero respectively.
func NewDispatcher(c *Contract, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		functions: make(map[string]function),
		metrics:   m,
		log:       log,
	}

	d.register("instantiate", Submit, 0, func(ctx context.Context, _ []string) (string, error) {
		return c.Instantiate(ctx)
	})
	d.register("put", Submit, 2, func(ctx context.Context, args []string) (string, error) {
		return c.Put(ctx, args[0], args[1])
	})
	d.register("get", Evaluate, 2, func(ctx context.Context, args []string) (string, error) {
		return c.Get(ctx, args[0], args[1])
	})
	d.register("getAll", Evaluate, 1, func(ctx context.Context, args []string) (string, error) {
		return c.GetAll(ctx, args[0])
	})
	d.register("delete", Submit, 2, func(ctx context.Context, args []string) (string, error) {
		return c.Delete(ctx, args[0], args[1])
	})
	d.register("keyExists", Evaluate, 1, func(ctx context.Context, args []string) (string, error) {
		return c.KeyExists(ctx, args[0])
	})
	d.register("createTable", Evaluate, 1, func(ctx context.Context, args []string) (string, error) {
		return c.CreateTable(ctx, args[0])
	})
	d.register("dropTable", Submit, 1, func(ctx context.Context, args []string) (string, error) {
		return c.DropTable(ctx, args[0])
	})
	d.register("digest", Evaluate, 1, func(ctx context.Context, args []string) (string, error) {
		return c.Digest(ctx, args[0])
	})
	return d
}

func (d *Dispatcher) register(name string, intent Intent, arity int, call func(context.Context, []string) (string, error)) {
	d.functions[name] = function{intent: intent, arity: arity, call: call}
}

// Invoke runs fn with args. Submit functions are refused under Evaluate
// intent; evaluate functions run under either.
func (d *Dispatcher) Invoke(ctx context.Context, intent Intent, fn string, args []string) (string, error) {
	start := time.Now()
	result, err := d.invoke(ctx, intent, fn, args)
	code := Code(err)

	if d.metrics != nil {
		label := fn
		if _, ok := d.functions[fn]; !ok {
			label = "unknown"
		}
		d.metrics.ObserveInvocation(label, code, time.Since(start))
	}
	if err != nil {
		d.log.Debug().Err(err).Str("function", fn).Stringer("intent", intent).Str("code", code).Msg("invocation failed")
	}
	return result, err
}

func (d *Dispatcher) invoke(ctx context.Context, intent Intent, fn string, args []string) (string, error) {
	f, ok := d.functions[fn]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFunction, fn)
	}
	if f.intent == Submit && intent != Submit {
		return "", fmt.Errorf("%w: %q", ErrReadOnly, fn)
	}
	if len(args) != f.arity {
		return "", fmt.Errorf("%w: %q takes %d, got %d", ErrWrongArity, fn, f.arity, len(args))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.call(ctx, args)
}

// Functions lists the registered function names in sorted order.
func (d *Dispatcher) Functions() []string {
	names := make([]string, 0, len(d.functions))
	for name := range d.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
