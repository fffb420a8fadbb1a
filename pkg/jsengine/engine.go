// Package jsengine evaluates JavaScript record filters.
package jsengine

import (
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/logger"
)

// Engine wraps a goja runtime with the filter globals.
type Engine struct {
	runtime *goja.Runtime
	kind    core.Kind
	sdk     int
	mu      sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{runtime: goja.New()}

	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()

	// Export context
	e.runtime.Set("dumpcontact", e.contextObject())
}

// setupConsole routes console.log, console.warn and console.error to the log file.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			log("[js] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// contextObject returns the dumpcontact global object
func (e *Engine) contextObject() *goja.Object {
	obj := e.runtime.NewObject()

	// dumpcontact.kind - call_log, sms or contacts
	obj.DefineAccessorProperty("kind", e.runtime.ToValue(func() string {
		return e.kind.String()
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	// dumpcontact.sdk - platform level of the source
	obj.DefineAccessorProperty("sdk", e.runtime.ToValue(func() int {
		return e.sdk
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

// SetContext sets the values exposed on the dumpcontact object.
func (e *Engine) SetContext(kind core.Kind, sdk int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kind = kind
	e.sdk = sdk
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set(name, value)
}

func (e *Engine) run(p *goja.Program) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.RunProgram(p)
}
