package ability

import (
	"fmt"

	"osgpt/pkg/logx"
)

// Invoker executes model function calls against a registry. Invoke never
// panics and never returns an error: every problem (unknown ability,
// handler failure, handler panic) comes back as a failed Result so the
// conversation loop can feed it to the model and continue.
type Invoker struct {
	registry *Registry
	logger   *logx.Logger
}

// NewInvoker wraps a registry.
func NewInvoker(registry *Registry, logger *logx.Logger) *Invoker {
	return &Invoker{registry: registry, logger: logger}
}

// Invoke runs the named ability with the given context and arguments.
func (inv *Invoker) Invoke(ctx Ctx, name string, args Args) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			inv.logger.Error("ability %s panicked: %v", name, rec)
			result = Fail(fmt.Sprintf("Error executing %s: %v", name, rec))
		}
		// Every result echoes the call that produced it, whichever path
		// built it.
		if result != nil {
			result.Ability = name
			result.Args = args
		}
	}()

	a, ok := inv.registry.Get(name)
	if !ok {
		inv.logger.Warn("unknown ability requested: %s", name)
		return Fail(fmt.Sprintf("Unknown ability %q. Available abilities: %v", name, inv.registry.Names()))
	}

	inv.logger.Debug("invoking ability %s with args %v", name, args)
	res, err := a.Handler(ctx, args)
	if err != nil {
		inv.logger.Warn("ability %s failed: %v", name, err)
		return Fail(fmt.Sprintf("Error executing %s: %v", name, err))
	}
	if res == nil {
		return Fail(fmt.Sprintf("Ability %s returned no result", name))
	}
	return res
}
