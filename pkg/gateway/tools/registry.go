// Package tools hosts the schema-validated tool layer: the registry,
// the built-in front-desk tools, and their idempotency guarantees.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kaptinlin/jsonschema"

	"github.com/voicelane/frontdesk/pkg/core"
)

// Executor is one callable tool. Execute receives input that has already
// passed schema validation.
type Executor interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Definition declares a tool's contract: both sides of the call are
// schema-checked, and booking-class tools require an idempotency key.
type Definition struct {
	Name         string
	Description  string
	Booking      bool
	InputSchema  []byte
	OutputSchema []byte
}

type registered struct {
	executor Executor
	def      Definition
	input    *jsonschema.Schema
	output   *jsonschema.Schema
}

// Registry resolves tool names, validates inputs and outputs against the
// registered schemas, and enforces idempotent execution for booking tools.
type Registry struct {
	byName map[string]*registered
	idem   *IdemStore
	logger *slog.Logger
}

// NewRegistry compiles every tool's schemas up front; a malformed schema
// is a programming error and fails construction.
func NewRegistry(logger *slog.Logger, executors ...Executor) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byName: make(map[string]*registered, len(executors)),
		idem:   NewIdemStore(),
		logger: logger,
	}
	compiler := jsonschema.NewCompiler()
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		def := ex.Definition()
		input, err := compiler.Compile(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q input schema: %w", def.Name, err)
		}
		output, err := compiler.Compile(def.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q output schema: %w", def.Name, err)
		}
		r.byName[def.Name] = &registered{executor: ex, def: def, input: input, output: output}
	}
	return r, nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Invoke runs one tool call.
//
// Invalid input is not an error at this layer: the refusal comes back as
// a structured output the dialogue can speak and the HTTP surface can
// return, with the per-field problems listed. Invalid OUTPUT is an
// error, and a loud one: the tool itself produced a result that breaks
// its contract.
func (r *Registry) Invoke(ctx context.Context, name string, input map[string]any, idemKey string) (map[string]any, error) {
	reg, ok := r.byName[name]
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("unknown tool %q", name))
	}
	if input == nil {
		input = map[string]any{}
	}

	if result := reg.input.Validate(input); !result.IsValid() {
		problems := validationProblems(result)
		r.logger.Info("tool input rejected",
			"tool", name,
			"problems", problems,
		)
		return map[string]any{"ok": false, "errors": problems}, nil
	}

	if reg.def.Booking {
		if idemKey == "" {
			return nil, core.NewInvalidRequestErrorWithParam("booking tool requires an idempotency key", "idempotency_key")
		}
		output, replayed, err := r.idem.Do(ctx, idemKey, func(ctx context.Context) (map[string]any, error) {
			return r.execute(ctx, reg, input)
		})
		if err != nil {
			return nil, err
		}
		if replayed {
			r.logger.Info("booking replayed from idempotency store",
				"tool", name,
				"idempotency_key", idemKey,
			)
		}
		return output, nil
	}

	return r.execute(ctx, reg, input)
}

func (r *Registry) execute(ctx context.Context, reg *registered, input map[string]any) (map[string]any, error) {
	output, err := reg.executor.Execute(ctx, input)
	if err != nil {
		return nil, err
	}
	if result := reg.output.Validate(output); !result.IsValid() {
		return nil, core.NewDefectError(fmt.Sprintf("tool %q output breaks its schema: %v", reg.def.Name, validationProblems(result)))
	}
	return output, nil
}

// validationProblems flattens a validation result to stable, readable
// strings.
func validationProblems(result *jsonschema.EvaluationResult) []string {
	raw := result.Errors
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	problems := make([]string, 0, len(keys))
	for _, k := range keys {
		problems = append(problems, fmt.Sprintf("%s: %v", k, raw[k]))
	}
	return problems
}
