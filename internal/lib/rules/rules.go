// Package rules evaluates coupon eligibility conditions written in CEL.
//
// A condition is a boolean expression over the facts of a checkout, e.g.
//
//	subtotal >= 50.0 && category_id == "3f0c..." && pricing_model != "subscription"
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Facts are the variables visible to a condition.
type Facts struct {
	Subtotal     float64
	Currency     string
	CourseID     string
	CategoryID   string
	PricingModel string
	UserID       string
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"subtotal":      f.Subtotal,
		"currency":      f.Currency,
		"course_id":     f.CourseID,
		"category_id":   f.CategoryID,
		"pricing_model": f.PricingModel,
		"user_id":       f.UserID,
	}
}

// Engine compiles and caches CEL programs. It is safe for concurrent use.
type Engine struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("course_id", cel.StringType),
		cel.Variable("category_id", cel.StringType),
		cel.Variable("pricing_model", cel.StringType),
		cel.Variable("user_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}
	return &Engine{env: env}, nil
}

// MustNewEngine panics when the environment cannot be built.
func MustNewEngine() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) program(expr string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid condition: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("invalid condition: must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}

	actual, _ := e.programs.LoadOrStore(expr, prg)
	return actual.(cel.Program), nil
}

// Compile checks that expr is a valid boolean condition.
func (e *Engine) Compile(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against facts. An empty expression is always true.
func (e *Engine) Evaluate(expr string, facts Facts) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}

	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(facts.activation())
	if err != nil {
		return false, fmt.Errorf("evaluating condition: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out.Value())
	}
	return result, nil
}

var (
	defaultEngine *Engine
	defaultOnce   sync.Once
)

// Default returns a process-wide engine, so compiled conditions are shared
// between request validation and checkout.
func Default() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = MustNewEngine()
	})
	return defaultEngine
}
