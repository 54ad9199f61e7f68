package patterns

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/model"
)

// Library caches compiled templates keyed by template id. Reads are
// concurrent; inserts and invalidation take the write lock. Entries are
// immutable once inserted and are replaced when the template content hash
// changes.
type Library struct {
	mu      sync.RWMutex
	entries map[string]*CompiledTemplate
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{entries: make(map[string]*CompiledTemplate)}
}

// Load returns the cached compiled form of t, recompiling when the content
// hash differs from the cached entry. A template that fails to compile
// evicts any stale entry under the same id and returns a
// *TemplateInvalidError.
func (l *Library) Load(t model.Template) (*CompiledTemplate, error) {
	hash, err := Hash(t)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	cur, ok := l.entries[t.ID]
	l.mu.RUnlock()
	if ok && cur.Hash == hash {
		return cur, nil
	}

	// Compile outside the lock; readers keep using the old entry meanwhile.
	ct, err := compile(t, hash)
	if err != nil {
		if ok {
			l.Invalidate(t.ID)
		}
		return nil, err
	}

	l.mu.Lock()
	l.entries[t.ID] = ct
	l.mu.Unlock()

	if ok {
		zap.L().Debug("patterns: recompiled template",
			zap.String("template_id", t.ID),
			zap.String("old_hash", short(cur.Hash)),
			zap.String("new_hash", short(hash)),
		)
	}
	return ct, nil
}

// Get returns the compiled template for id.
func (l *Library) Get(id string) (*CompiledTemplate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ct, ok := l.entries[id]
	return ct, ok
}

// Invalidate drops the entry for id. It reports whether an entry existed.
func (l *Library) Invalidate(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[id]
	delete(l.entries, id)
	return ok
}

// Reset drops every entry.
func (l *Library) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*CompiledTemplate)
}

// All returns a snapshot of the cached templates ordered by id.
func (l *Library) All() []*CompiledTemplate {
	l.mu.RLock()
	out := make([]*CompiledTemplate, 0, len(l.entries))
	for _, ct := range l.entries {
		out = append(out, ct)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of cached templates.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
