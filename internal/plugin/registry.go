// Package plugin implements the plugin registry and host façade:
// lexicographic directory enumeration, the "<stem>_load" dynamic-symbol
// convention, and a registry that owns every plugin record and exposes
// typed, insertion-ordered lists per plugin kind.
package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goplugin "plugin"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/sink"
)

// dynamicSuffix is the platform's dynamic-module suffix. Dynamic loading
// via the standard library plugin package only works on Linux and macOS;
// Windows hosts are expected to run built-ins only.
const dynamicSuffix = ".so"

// stopTimeout bounds how long Unload waits for one plugin's Stop. A plugin
// that blows the budget is reported and left running; it is never
// force-killed.
const stopTimeout = 5 * time.Second

// LoadFunc is the signature every out-of-tree "<stem>_load" symbol must
// have: it receives the host façade and returns a typed descriptor
// (anything satisfying model.Descriptor, usually a decoder.Plugin or
// sink.Plugin).
type LoadFunc func(api *Facade) (any, error)

// Record is the registry's bookkeeping entry for one loaded plugin.
// Plugins that failed to Start are retained for introspection but never
// receive events.
type Record struct {
	InstanceID uuid.UUID
	Header     model.PluginHeader
	Descriptor any
	Active     bool
	// TrustStamp is a blake2b digest of the module file's contents for
	// dynamically loaded plugins, empty for built-ins. It does not gate
	// loading (the host has no signing authority to verify against); it is
	// recorded so an operator can correlate a running plugin's identity
	// against a known-good digest out of band.
	TrustStamp string

	handle *goplugin.Plugin // nil for built-ins
}

// Registry is the single owner of every Record, created at process init
// and threaded through by explicit reference rather than held globally.
type Registry struct {
	facade *Facade

	mu      sync.RWMutex
	records []*Record

	onLoadFailure func(reason string)
}

// New creates an empty registry whose dynamically- and statically-loaded
// plugins will be handed facade at load time.
func New(facade *Facade) *Registry {
	return &Registry{facade: facade}
}

// SetLoadFailureHook installs fn to be called with a short reason string
// whenever Discover or register rejects a candidate plugin. Used by
// cmd/soundhost to feed the metrics package without this package depending
// on it.
func (r *Registry) SetLoadFailureHook(fn func(reason string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLoadFailure = fn
}

func (r *Registry) reportLoadFailure(reason string) {
	r.mu.RLock()
	hook := r.onLoadFailure
	r.mu.RUnlock()
	if hook != nil {
		hook(reason)
	}
}

// RegisterBuiltin registers a statically-linked plugin (no dynamic module
// handle). Builtins are initialised identically to dynamically loaded
// ones: Start is called (if implemented) before the record becomes visible
// to the bus.
func (r *Registry) RegisterBuiltin(desc any) error {
	return r.register(desc, nil, "")
}

// Discover enumerates dir in lexicographic order (os.ReadDir already
// returns entries sorted by name), skipping hidden files and anything
// whose suffix isn't the platform's dynamic-module suffix. For each
// candidate it dlopen-equivalents the module, looks up "<stem>_load", and
// registers the returned descriptor. Per-plugin failures are logged and
// skipped; Discover itself always succeeds unless dir cannot be read.
func (r *Registry) Discover(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotADirectory, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), dynamicSuffix) {
			continue
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		path := filepath.Join(dir, name)

		handle, err := goplugin.Open(path)
		if err != nil {
			slog.Warn("plugin: load failed", "path", path, "error", err)
			r.reportLoadFailure("open")
			continue
		}

		symName := stem + "_load"
		sym, err := handle.Lookup(symName)
		if err != nil {
			slog.Warn("plugin: symbol missing", "path", path, "symbol", symName, "error", ErrSymbolMissing)
			r.reportLoadFailure("symbol_missing")
			continue
		}

		loadFn, ok := sym.(func(*Facade) (any, error))
		if !ok {
			slog.Warn("plugin: symbol has wrong signature", "path", path, "symbol", symName)
			r.reportLoadFailure("bad_signature")
			continue
		}

		desc, err := loadFn(r.facade)
		if err != nil {
			slog.Warn("plugin: load function failed", "path", path, "error", err)
			r.reportLoadFailure("load_func")
			continue
		}

		stamp, err := trustStampFile(path)
		if err != nil {
			slog.Warn("plugin: could not compute trust stamp", "path", path, "error", err)
		}

		if err := r.register(desc, handle, stamp); err != nil {
			slog.Warn("plugin: registration failed", "path", path, "error", err)
			r.reportLoadFailure("register")
		}
	}
	return nil
}

// register validates desc's header, runs Start (if implemented), and only
// then inserts the record, so a record is never observable to the bus
// before Start returns.
func (r *Registry) register(desc any, handle *goplugin.Plugin, trustStamp string) error {
	descriptor, ok := desc.(model.Descriptor)
	if !ok {
		return fmt.Errorf("%w: does not implement Descriptor", ErrUnknownKind)
	}
	header := descriptor.Header()
	if header.APIMajor != model.APIVersion.Major {
		return fmt.Errorf("%w: plugin %s wants api %d.x, host is %d.x",
			ErrIncompatibleAPIVersion, header.ID, header.APIMajor, model.APIVersion.Major)
	}

	rec := &Record{
		InstanceID: uuid.New(),
		Header:     header,
		Descriptor: desc,
		TrustStamp: trustStamp,
		handle:     handle,
	}

	if lc, ok := desc.(model.Lifecycle); ok {
		if err := lc.Start(); err != nil {
			slog.Warn("plugin: start failed, marking inactive", "id", header.ID, "error", err)
			rec.Active = false
			if r.facade != nil && r.facade.bus != nil {
				r.facade.bus.UnsubscribeAll(header.ID)
			}
		} else {
			rec.Active = true
		}
	} else {
		rec.Active = true
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	slog.Info("plugin: registered", "id", header.ID, "kind", header.Kind, "active", rec.Active)
	return nil
}

// Unload stops every record in reverse insertion order. The Go standard
// library plugin package has no unload primitive, so dynamic module
// handles are dropped but remain mapped in the process for its lifetime.
func (r *Registry) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if r.facade != nil && r.facade.bus != nil {
			r.facade.bus.UnsubscribeAll(rec.Header.ID)
		}
		lc, ok := rec.Descriptor.(model.Lifecycle)
		if !ok {
			continue
		}
		done := make(chan error, 1)
		go func() { done <- lc.Stop() }()
		select {
		case err := <-done:
			if err != nil {
				slog.Warn("plugin: stop failed", "id", rec.Header.ID, "error", err)
			}
		case <-time.After(stopTimeout):
			slog.Warn("plugin: stop timed out", "id", rec.Header.ID, "error", ErrPluginShutdownTimeout)
		}
	}
	r.records = nil
}

// Decoders returns every active decoder.Plugin, in insertion order.
func (r *Registry) Decoders() []decoder.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]decoder.Plugin, 0)
	for _, rec := range r.records {
		if !rec.Active || rec.Header.Kind != model.KindDecoder {
			continue
		}
		if d, ok := rec.Descriptor.(decoder.Plugin); ok {
			out = append(out, d)
		}
	}
	return out
}

// Outputs returns every active sink.Plugin, in insertion order.
func (r *Registry) Outputs() []sink.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sink.Plugin, 0)
	for _, rec := range r.records {
		if !rec.Active || rec.Header.Kind != model.KindOutput {
			continue
		}
		if o, ok := rec.Descriptor.(sink.Plugin); ok {
			out = append(out, o)
		}
	}
	return out
}

// Records returns a snapshot of every record, active or not, for
// introspection (e.g. `plugins list`).
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, len(r.records))
	copy(out, r.records)
	return out
}
