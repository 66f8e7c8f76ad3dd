package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"tsgate/internal/filter"
)

// Evaluator compiles and runs the boolean-composition expressions used by
// internal/filterpreset (SPEC_FULL.md section 3.1): one CEL bool variable
// per closed-set filter.Kind, combined with &&/||/! into a single preset
// verdict. It never sees raw message bytes, payloads, or timestamps.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	opts := make([]cel.EnvOption, 0, len(kindVariables))
	for _, name := range kindVariables {
		opts = append(opts, cel.Variable(name, cel.BoolType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// kindVariables is the fixed variable set a preset expression may
// reference, one per filter.Kind.
var kindVariables = []string{
	string(filter.KindEventText),
	string(filter.KindAttachedMessageId),
	string(filter.KindAttachedEventId),
	string(filter.KindMessageType),
	string(filter.KindMessageBodyText),
	string(filter.KindMessageBodyBinary),
	string(filter.KindParentEvent),
	string(filter.KindAttachedEventIds),
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// ValidateBooleanExpression additionally rejects any expression that does
// not evaluate to a bool, since a preset is itself used as a filter.
func (e *Evaluator) ValidateBooleanExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("preset expression must return bool, got %v", ast.OutputType())
	}
	return nil
}

// Program is a compiled preset expression, safe for concurrent Eval calls
// and meant to be compiled once per preset and reused across searches.
type Program struct {
	program cel.Program
}

func (e *Evaluator) Compile(expression string) (*Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("preset expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Program{program: program}, nil
}

// Eval runs the compiled preset against the closed-set predicate results
// already computed by the FilterPipeline. Kinds absent from results
// (because the preset doesn't reference them, or the search didn't
// request them) evaluate as false.
func (p *Program) Eval(ctx context.Context, results map[filter.Kind]bool) (bool, error) {
	vars := make(map[string]interface{}, len(kindVariables))
	for _, name := range kindVariables {
		vars[name] = results[filter.Kind(name)]
	}

	out, _, err := p.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate preset expression: %w", err)
	}

	boolVal, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("preset expression did not return bool, got %T", out.Value())
	}

	return boolVal, nil
}
