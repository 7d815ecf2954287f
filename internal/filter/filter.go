package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/sirupsen/logrus"
)

// Filter is a compiled boolean expression over decoded events.
// A nil *Filter matches everything.
type Filter struct {
	expression string
	program    *vm.Program
	log        logrus.FieldLogger
}

// typeEnv declares the variables available to expressions.
var typeEnv = map[string]any{
	"name":    "",
	"id":      int64(0),
	"ts":      int64(0),
	"core_id": int64(0),
	"context": map[string]any{},
	"header":  map[string]any{},
	"payload": map[string]any{},
}

// Compile compiles expression once. An empty expression returns a nil
// Filter.
//
// Example: name startsWith "isr_" && core_id == 1
func Compile(expression string, log logrus.FieldLogger) (*Filter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.Env(typeEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", expression, err)
	}
	return &Filter{
		expression: expression,
		program:    program,
		log:        log,
	}, nil
}

// Match reports whether ev passes the filter. An evaluation error keeps the
// event and logs a warning.
func (f *Filter) Match(ev ctf.Event) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, Env(ev))
	if err != nil {
		f.log.WithField("event", ev.Name()).Warnf("Failed to evaluate filter %q: %v", f.expression, err)
		return true
	}
	match, ok := out.(bool)
	return !ok || match
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Env builds the evaluation environment for ev.
func Env(ev ctf.Event) map[string]any {
	var coreID int64
	if raw, ok := ev.Context().Get("core_id"); ok {
		if id, err := ctf.ParseInt64(raw); err == nil {
			coreID = id
		}
	}
	return map[string]any{
		"name":    ev.Name(),
		"id":      ev.ID(),
		"ts":      ev.TimestampNs(),
		"core_id": coreID,
		"context": ev.Context().Map(),
		"header":  ev.Header().Map(),
		"payload": ev.Payload().Map(),
	}
}
