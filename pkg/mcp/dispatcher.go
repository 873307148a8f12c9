package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/CAcquaviva/mcp-konnect/pkg/konnect"
	"github.com/CAcquaviva/mcp-konnect/pkg/logging"
)

// troubleshootingTips is appended to every failed tool result.
const troubleshootingTips = "Troubleshooting tips:\n" +
	"1. Verify your API key is valid and has sufficient permissions\n" +
	"2. Check that the parameters provided are valid\n" +
	"3. Ensure your network connection to the Kong API is working properly"

// Dispatcher routes tool calls to the Konnect API through a routing table
// fixed at construction.
type Dispatcher struct {
	api      konnect.API
	registry *ToolRegistry
	routes   map[string]toolFunc
	observer Observer
	log      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver reports every invocation to o.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithDispatcherLogger sets the dispatcher's logger.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher binds the registry's tools to api. It fails if a registered
// tool has no route or a route has no registered tool.
func NewDispatcher(registry *ToolRegistry, api konnect.API, opts ...DispatcherOption) (*Dispatcher, error) {
	return newDispatcher(registry, api, toolRoutes(), opts...)
}

func newDispatcher(registry *ToolRegistry, api konnect.API, routes map[string]toolFunc, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if api == nil {
		return nil, errors.New("konnect API client is required")
	}

	var missing, orphaned []string
	for _, name := range registry.Names() {
		if _, ok := routes[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range routes {
		if registry.Get(name) == nil {
			orphaned = append(orphaned, name)
		}
	}
	if len(missing) > 0 || len(orphaned) > 0 {
		sort.Strings(orphaned)
		return nil, fmt.Errorf("tool routing mismatch: unrouted tools [%s], unregistered routes [%s]",
			strings.Join(missing, ", "), strings.Join(orphaned, ", "))
	}

	d := &Dispatcher{
		api:      api,
		registry: registry,
		routes:   routes,
		observer: nopObserver{},
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Names returns the routed tool names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the named tool. It never returns a Go error: every
// failure, including an unknown name or a panic, becomes an error result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	start := time.Now()
	ctx = d.observer.StartInvoke(ctx, name)
	result, kind := d.invoke(ctx, name, args)

	d.observer.ObserveInvoke(ctx, ToolObservation{
		ToolName:  name,
		Start:     start,
		Duration:  time.Since(start),
		Success:   !result.IsError,
		ErrorKind: kind,
	})
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]interface{}) (result *ToolResult, kind string) {
	fn, ok := d.routes[name]
	if !ok {
		return errorResult(fmt.Errorf("%w: %s", ErrUnknownTool, name)), ErrorKindUnknownTool
	}

	if err := validateArguments(d.registry.Schema(name), args); err != nil {
		return errorResult(err), ErrorKindInvalidArguments
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tool handler panicked", "tool", name, "panic", r)
			result, kind = errorResult(fmt.Errorf("internal error while running %s: %v", name, r)), ErrorKindPanic
		}
	}()

	payload, err := fn(ctx, d.api, args)
	if err != nil {
		d.log.Debug("tool call failed", "tool", name, "error", err)
		return errorResult(err), ErrorKindUpstream
	}

	out, err := ToolResultJSON(payload)
	if err != nil {
		return errorResult(err), ErrorKindEncoding
	}
	return out, ""
}

// errorResult renders err with the standard troubleshooting tips.
func errorResult(err error) *ToolResult {
	return ToolResultError("Error: " + err.Error() + "\n\n" + troubleshootingTips)
}
