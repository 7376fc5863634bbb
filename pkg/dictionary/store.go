package dictionary

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/tokenize"
)

// ChangeOp names the kind of store mutation.
type ChangeOp string

const (
	OpDefinitionAdded       ChangeOp = "definition_added"
	OpDefinitionDeleted     ChangeOp = "definition_deleted"
	OpTierChanged           ChangeOp = "tier_changed"
	OpCollaboratorsReloaded ChangeOp = "collaborators_reloaded"
)

// Change is delivered to listeners after every successful mutation.
type Change struct {
	Op   ChangeOp
	Term string
}

// Collaborator is a read-only dictionary exported by another user.
type Collaborator struct {
	Name string
	Dict *Dictionary
}

// Store owns the primary dictionary and the collaborator dictionaries.
// Reads take a shared lock, so scans running on several goroutines can
// classify while the user edits.
type Store struct {
	mu            sync.RWMutex
	primary       *Dictionary
	collaborators []Collaborator

	dir     string
	user    string
	persist bool

	tk  *tokenize.Tokenizer
	now func() time.Time

	listenersMu sync.Mutex
	listeners   map[int]func(Change)
	nextID      int
}

// Option configures a Store.
type Option func(*Store)

// WithTokenizer sets the tokenizer used to split phrases into words. It must
// match the tokenizer used for document text.
func WithTokenizer(tk *tokenize.Tokenizer) Option {
	return func(s *Store) {
		if tk != nil {
			s.tk = tk
		}
	}
}

// WithClock overrides time.Now for tier history and context timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an in-memory store with no backing folder. Mutations are
// never written anywhere.
func NewStore(opts ...Option) *Store {
	s := &Store{
		primary:   New(),
		tk:        tokenize.Default,
		now:       time.Now,
		listeners: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads <user>.json from dir as the primary dictionary and every other
// *.json file in dir as a collaborator dictionary.
//
// Storage problems never fail Open: a missing folder or file is created, and
// a primary file that cannot be read leaves the store with an empty,
// memory-only primary dictionary for the rest of the session.
func Open(dir, user string, opts ...Option) (*Store, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, fmt.Errorf("user must be non-empty")
	}
	if strings.ContainsAny(user, `/\`) {
		return nil, fmt.Errorf("user %q must not contain path separators", user)
	}
	s := NewStore(opts...)
	s.dir = dir
	s.user = user
	s.persist = true

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.ErrorErr(log.CatDict, "Failed to create dictionary folder", err, "dir", dir)
	}
	s.loadPrimary()
	if err := s.ReloadCollaborators(); err != nil {
		log.WarnErr(log.CatDict, "Failed to load collaborator dictionaries", err, "dir", dir)
	}
	return s, nil
}

// PrimaryPath returns the file backing the primary dictionary, or "" for an
// in-memory store.
func (s *Store) PrimaryPath() string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, s.user+".json")
}

// Dir returns the dictionary folder.
func (s *Store) Dir() string { return s.dir }

// Persistent reports whether mutations are written to disk.
func (s *Store) Persistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist
}

func (s *Store) loadPrimary() {
	path := s.PrimaryPath()
	d, err := LoadFile(path, s.tk)
	switch {
	case err == nil:
		s.primary = d
		log.Info(log.CatDict, "Loaded primary dictionary", "path", path, "terms", d.Len())
	case errors.Is(err, fs.ErrNotExist):
		log.Info(log.CatDict, "Creating new empty dictionary", "path", path)
		if err := s.save(); err != nil {
			log.ErrorErr(log.CatDict, "Failed to create dictionary file", err, "path", path)
		}
	default:
		// Keep the broken file untouched; this session works in memory only.
		s.persist = false
		log.ErrorErr(log.CatDict, "Failed to load primary dictionary, continuing in memory", err, "path", path)
	}
}

// ReloadCollaborators rescans the folder for collaborator dictionaries. Files
// that fail to parse are skipped and logged.
func (s *Store) ReloadCollaborators() error {
	if s.dir == "" {
		return nil
	}
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("list dictionaries: %w", err)
	}
	primary := s.user + ".json"
	var loaded []Collaborator
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".json") || name == primary || strings.HasPrefix(name, ".") {
			continue
		}
		d, err := LoadFile(filepath.Join(s.dir, name), s.tk)
		if err != nil {
			log.WarnErr(log.CatDict, "Skipping collaborator dictionary", err, "file", name)
			continue
		}
		loaded = append(loaded, Collaborator{Name: strings.TrimSuffix(name, ".json"), Dict: d})
	}
	slices.SortFunc(loaded, func(a, b Collaborator) int { return strings.Compare(a.Name, b.Name) })

	s.mu.Lock()
	s.collaborators = loaded
	s.mu.Unlock()

	log.Debug(log.CatDict, "Loaded collaborator dictionaries", "count", len(loaded))
	s.notify(Change{Op: OpCollaboratorsReloaded})
	return nil
}

// AddCollaborator registers an in-memory collaborator dictionary. Existing
// collaborators with the same name are replaced.
func (s *Store) AddCollaborator(name string, d *Dictionary) {
	s.mu.Lock()
	s.collaborators = slices.DeleteFunc(s.collaborators, func(c Collaborator) bool { return c.Name == name })
	s.collaborators = append(s.collaborators, Collaborator{Name: name, Dict: d})
	s.mu.Unlock()
	s.notify(Change{Op: OpCollaboratorsReloaded})
}

// Lookup finds term in the primary dictionary.
func (s *Store) Lookup(term string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary.Lookup(term)
}

// Collaborators returns collaborator names in lookup order.
func (s *Store) Collaborators() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.collaborators))
	for i, c := range s.collaborators {
		out[i] = c.Name
	}
	return out
}

// LookupCollaborator finds term in the named collaborator dictionary.
func (s *Store) LookupCollaborator(name, term string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.collaborators {
		if c.Name == name {
			return c.Dict.Lookup(term)
		}
	}
	return Entry{}, false
}

// Terms lists the primary dictionary's terms in sorted order.
func (s *Store) Terms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary.Terms()
}

// AddDefinition records a new meaning for term and appends tier to its history.
// A definition equal to a live one (ignoring case and surrounding space) is
// ignored and reported as added == false with a nil error.
//
// The in-memory change is kept even if writing the file fails; the write
// error is returned so the caller can tell the user.
func (s *Store) AddDefinition(term string, tier Tier, text string, ctx Context) (bool, error) {
	s.mu.Lock()
	added, err := s.primary.addDefinition(s.tk, term, tier, text, ctx, s.now())
	s.mu.Unlock()
	if err != nil || !added {
		return added, err
	}
	return true, s.afterMutation(Change{Op: OpDefinitionAdded, Term: NormalizeTerm(term)})
}

// MarkDefinitionDeleted soft-deletes the live definition of term matching
// text. When no live definitions remain the entry itself is soft-deleted and
// its tier drops to none.
func (s *Store) MarkDefinitionDeleted(term, text string) (bool, error) {
	s.mu.Lock()
	deleted := s.primary.markDefinitionDeleted(term, text, s.now())
	s.mu.Unlock()
	if !deleted {
		return false, nil
	}
	return true, s.afterMutation(Change{Op: OpDefinitionDeleted, Term: NormalizeTerm(term)})
}

// RecordTierChange appends a tier record without touching definitions.
// Unknown terms may be marked unknown without a definition; semiknown and
// known require at least one live definition.
func (s *Store) RecordTierChange(term string, tier Tier) error {
	s.mu.Lock()
	changed, err := s.primary.recordTierChange(s.tk, term, tier, s.now())
	s.mu.Unlock()
	if err != nil || !changed {
		return err
	}
	return s.afterMutation(Change{Op: OpTierChanged, Term: NormalizeTerm(term)})
}

func (s *Store) afterMutation(c Change) error {
	s.mu.RLock()
	err := s.save()
	s.mu.RUnlock()
	if err != nil {
		log.ErrorErr(log.CatDict, "Failed to save dictionary", err, "path", s.PrimaryPath())
		err = fmt.Errorf("save dictionary: %w", err)
	}
	s.notify(c)
	return err
}

// Export encodes the primary dictionary in the current file format, ready to
// be shared as someone else's collaborator dictionary.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Encode(s.primary)
}

// save rewrites the whole primary dictionary file. Callers hold s.mu.
func (s *Store) save() error {
	if !s.persist || s.dir == "" {
		return nil
	}
	data, err := Encode(s.primary)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.PrimaryPath(), data)
}

// Subscribe registers fn to run synchronously after every mutation.
// The returned function removes the listener.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
