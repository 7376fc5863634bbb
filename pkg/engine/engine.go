// Package engine is the host-facing API: classification, dictionary edits
// and the current decoration set of one document view.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/japaniel/langsoft/pkg/decorate"
	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/phrase"
	"github.com/japaniel/langsoft/pkg/tokenize"
	"github.com/japaniel/langsoft/pkg/update"
	"github.com/japaniel/langsoft/pkg/watcher"
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Tokenizer must be the one the store was opened with.
	Tokenizer *tokenize.Tokenizer
	Overlap   phrase.Overlap
	// SelectionClass is the class of the selection overlay range.
	SelectionClass string
	// OnChange runs after a rebuild caused by a store mutation or a
	// collaborator reload, so the host can redraw.
	OnChange func(update.Decision)
}

// Engine wires a dictionary store to a decoration controller. Methods are safe
// to call from several goroutines; the watcher goroutine uses them too.
type Engine struct {
	store    *dictionary.Store
	builder  *decorate.Builder
	onChange func(update.Decision)

	mu   sync.Mutex
	ctrl *update.Controller
	sel  *update.Selection

	unsubscribe func()
}

// New returns an Engine reading from store. Every store mutation triggers a
// full rebuild of the current document.
func New(store *dictionary.Store, opts Options) *Engine {
	tk := opts.Tokenizer
	if tk == nil {
		tk = tokenize.Default
	}
	b := decorate.NewBuilder(store, tk, phrase.NewMatcher(tk, opts.Overlap))
	e := &Engine{
		store:    store,
		builder:  b,
		onChange: opts.OnChange,
		ctrl:     update.NewController(b),
		sel:      update.NewSelection(opts.SelectionClass),
	}
	e.unsubscribe = store.Subscribe(e.storeChanged)
	return e
}

// Close detaches the engine from the store.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Store returns the underlying dictionary store.
func (e *Engine) Store() *dictionary.Store { return e.store }

func (e *Engine) storeChanged(c dictionary.Change) {
	log.Debug(log.CatUpdate, "Store changed, rebuilding", "op", string(c.Op), "term", c.Term)
	d := e.Handle(update.DictionaryMutated{})
	if e.onChange != nil && d != update.Noop {
		e.onChange(d)
	}
}

// Classify returns the primary tier of term. Absent and deleted terms report false.
func (e *Engine) Classify(term string) (dictionary.Tier, bool) {
	entry, ok := e.store.Lookup(term)
	if !ok || !entry.Live() {
		return "", false
	}
	return entry.CurrentTier(), true
}

// AddDefinition records a meaning for term. See dictionary.Store.AddDefinition.
func (e *Engine) AddDefinition(term string, tier dictionary.Tier, text string, ctx dictionary.Context) (bool, error) {
	return e.store.AddDefinition(term, tier, text, ctx)
}

// MarkDeleted soft-deletes one definition of term.
func (e *Engine) MarkDeleted(term, text string) (bool, error) {
	return e.store.MarkDefinitionDeleted(term, text)
}

// RecordTierChange changes the tier of term.
func (e *Engine) RecordTierChange(term string, tier dictionary.Tier) error {
	return e.store.RecordTierChange(term, tier)
}

// RebuildDecorations decorates the given spans from scratch. It does not touch
// the controller's cached state.
func (e *Engine) RebuildDecorations(spans []decorate.Span) []decorate.Range {
	return e.builder.Build(spans)
}

// Open makes doc the current document and decorates it.
func (e *Engine) Open(doc update.Document, visible []update.Span) update.Decision {
	if visible == nil {
		return e.Handle(update.ExternalTrigger{Doc: doc})
	}
	return e.Handle(update.ViewportChanged{Doc: doc, Visible: visible})
}

// TriggerExternalRebuild forces a full rebuild of the current document.
func (e *Engine) TriggerExternalRebuild() update.Decision {
	return e.Handle(update.ExternalTrigger{})
}

// Handle feeds ev to the controller and the selection overlay.
func (e *Engine) Handle(ev update.Event) update.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Handle(ev)
	return e.ctrl.Handle(ev)
}

// Decorations returns the dictionary decorations plus the selection overlay, sorted.
func (e *Engine) Decorations() []decorate.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.ctrl.Decorations()
	out = append(out, e.sel.Decorations()...)
	decorate.Sort(out)
	return out
}

// SetSelection sets the selection overlay span.
func (e *Engine) SetSelection(from, to int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Set(from, to)
}

// ClearSelection removes the selection overlay.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Clear()
}

// WatchCollaborators reloads collaborator dictionaries whenever files in the
// store folder change, until ctx is done. It returns once the watcher runs.
func (e *Engine) WatchCollaborators(ctx context.Context, debounce time.Duration) error {
	cfg := watcher.DefaultConfig(e.store.Dir())
	if debounce > 0 {
		cfg.DebounceDur = debounce
	}
	if p := e.store.PrimaryPath(); p != "" {
		cfg.Ignore = []string{filepath.Base(p)}
	}
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return err
	}

	go func() {
		defer func() { _ = w.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				if err := e.store.ReloadCollaborators(); err != nil {
					log.WarnErr(log.CatWatcher, "Reloading collaborators failed", err)
				}
			}
		}
	}()
	return nil
}
