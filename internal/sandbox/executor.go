package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"

	"chatbi/internal/logging"
	"chatbi/internal/report"
	"chatbi/internal/table"
)

// Executor runs generated programs in an interpreter. A fresh
// interpreter is built per call; nothing leaks between executions.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor with the given per-run timeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{timeout: timeout}
}

// Outcome carries whatever a program produced, normalized to named
// tables in the order the program recorded them.
type Outcome struct {
	Tables []report.NamedTable
}

// Empty reports whether the program produced nothing usable.
func (o *Outcome) Empty() bool { return o == nil || len(o.Tables) == 0 }

// Execute evaluates the program and calls its Run entry point against
// the frame. A panicking or overrunning program yields an error, never
// a crash of the host.
func (e *Executor) Execute(ctx context.Context, code string, frame *Frame) (*Outcome, error) {
	if err := validateImports(code); err != nil {
		return nil, fmt.Errorf("invalid imports: %w", err)
	}
	if !strings.Contains(code, "package main") {
		return nil, fmt.Errorf("program must declare package main")
	}

	i := interp.New(interp.Options{})
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("failed to load sandbox symbols: %w", err)
	}

	start := time.Now()
	if _, err := i.Eval(code); err != nil {
		logging.SandboxError("eval failed: %v", err)
		return nil, fmt.Errorf("code evaluation failed: %w", err)
	}

	runVal, err := i.Eval("main.Run")
	if err != nil {
		return nil, fmt.Errorf("Run function not found: %w", err)
	}
	run, ok := runVal.Interface().(func(*Frame))
	if !ok {
		return nil, fmt.Errorf("Run has incorrect signature (expected: func(*bi.Frame))")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("program panicked: %v", r)
			}
		}()
		run(frame)
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			logging.SandboxError("run failed: %v", err)
			return nil, err
		}
	case <-ctx.Done():
		logging.SandboxError("run timed out after %v", e.timeout)
		return nil, fmt.Errorf("execution timed out: %w", ctx.Err())
	}

	out := e.extract(i, frame)
	logging.Sandbox("run completed in %v tables=%d", time.Since(start), len(out.Tables))
	return out, nil
}

// extract collects program output. Explicit SetResult calls win; then a
// Result assignment; then, as a fallback, the first table global the
// program left behind (first in symbol-name order, so repeated runs of
// the same program always adopt the same table).
func (e *Executor) extract(i *interp.Interpreter, frame *Frame) *Outcome {
	out := &Outcome{}

	if results := frame.Results(); len(results) > 0 {
		for _, r := range results {
			out.Tables = append(out.Tables, report.NamedTable{
				Name:  r.Name,
				Table: table.Normalize(r.Value),
			})
		}
		return out
	}

	if frame.Result != nil {
		out.Tables = append(out.Tables, report.NamedTable{
			Name:  "Result",
			Table: table.Normalize(frame.Result),
		})
		return out
	}

	globals := i.Symbols("main")["main"]
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := globals[name]
		if name == "DF" || !sym.CanInterface() {
			continue
		}
		if tbl, ok := sym.Interface().(*table.Table); ok && tbl != nil {
			out.Tables = append(out.Tables, report.NamedTable{
				Name:  name,
				Table: table.Normalize(tbl),
			})
			break
		}
	}
	return out
}

// validateImports checks that the program imports nothing beyond "bi".
func validateImports(code string) error {
	var imports []string

	inImportBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "import (") {
			inImportBlock = true
			continue
		}
		if inImportBlock && strings.HasPrefix(trimmed, ")") {
			inImportBlock = false
			continue
		}

		if inImportBlock {
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" {
				imports = append(imports, pkg)
			}
		} else if strings.HasPrefix(trimmed, "import ") {
			pkg := strings.TrimPrefix(trimmed, "import ")
			pkg = strings.Trim(pkg, `"`)
			imports = append(imports, pkg)
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if pkg != "bi" {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports detected: %v (only \"bi\" is available)", forbidden)
	}
	return nil
}
