// Package engine provides the coverage determination engine: carrier
// resolution, condition evaluation, the rule cascade, the safety stop
// guard, and member identifier validation. The engine performs no I/O;
// it is a pure function of (profile, policy, today) and is safe for
// concurrent use as long as the policy document is never mutated after
// publication.
package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/veriscript-health/clarity/internal/domain"
)

// Engine evaluates profiles against a policy document. The struct only
// exists to hold the CEL environment and the expression compile cache;
// all evaluation state is per-call.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

// NewEngine creates an engine with a CEL environment exposing the
// profile fields to expression clauses.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("carrier", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("plan_source", cel.StringType),
		cel.Variable("bmi", cel.DoubleType),
		cel.Variable("age", cel.IntType),
		cel.Variable("medication", cel.StringType),
		cel.Variable("comorbidities", cel.ListType(cel.StringType)),
		cel.Variable("history", cel.ListType(cel.StringType)),
		cel.Variable("enrolled", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// CompileExpr compiles an expression clause and caches the program.
// Policy validation calls this at load time so malformed expressions are
// quarantined before evaluation ever sees them.
func (e *Engine) CompileExpr(expr string) error {
	_, err := e.program(expr)
	return err
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression %q: must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for expression %q: %w", expr, err)
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()

	return prg, nil
}

// evalExpr evaluates an expression clause against the profile. Any
// compile or evaluation error leaves the clause unsatisfied; failures
// never escape as faults.
func (e *Engine) evalExpr(expr string, p *domain.Profile) bool {
	prg, err := e.program(expr)
	if err != nil {
		return false
	}

	activation := map[string]any{
		"carrier":       p.Carrier,
		"state":         p.State,
		"plan_source":   string(p.PlanSource),
		"bmi":           p.BMI,
		"age":           p.Age,
		"medication":    p.Medication,
		"comorbidities": p.Comorbidities,
		"history":       p.EffectiveHistory(),
		"enrolled":      p.LifestyleProgramEnrollment,
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}
