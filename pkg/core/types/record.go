package types

import (
	"sync"
	"time"
)

// HighlightDuration is how long a field stays marked as recently changed
// after a tool call touches it.
const HighlightDuration = 2 * time.Second

// FieldUpdate is the set of field values produced by one extraction tool
// call. Keys are record field names; empty values are ignored on apply.
type FieldUpdate map[string]string

// Field is one named slot of a record.
type Field struct {
	// Name is the wire name used in tool schemas (e.g. "fullName").
	Name string
	// Label is the human-readable label shown in the side panel.
	Label string
}

// Record is the structured form being filled during a conversation. Fields
// are fixed at construction; values are only ever overwritten, never removed.
//
// Record is safe for concurrent use. The live bridge and the chat adapter
// both mutate it from their own goroutines.
type Record struct {
	mu     sync.Mutex
	fields []Field
	values map[string]string

	// recent maps field name -> time the value landed, for transient
	// highlighting. Entries expire after HighlightDuration.
	recent map[string]time.Time
	now    func() time.Time
}

// NewRecord creates an empty record over the given field set.
func NewRecord(fields []Field) *Record {
	r := &Record{
		fields: append([]Field(nil), fields...),
		values: make(map[string]string, len(fields)),
		recent: make(map[string]time.Time),
		now:    time.Now,
	}
	for _, f := range fields {
		r.values[f.Name] = ""
	}
	return r
}

// SetClock overrides the record's clock. Tests use this to control
// highlight expiry without sleeping.
func (r *Record) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now != nil {
		r.now = now
	}
}

// Fields returns the record's field set in display order.
func (r *Record) Fields() []Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Field(nil), r.fields...)
}

// Get returns the current value of a field.
func (r *Record) Get(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[name]
}

// Values returns a copy of all field values.
func (r *Record) Values() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Apply merges a field update into the record and returns the names of the
// fields that actually changed, in field order.
//
// Empty values never overwrite ("don't overwrite with nothing"), and names
// outside the record's field set are skipped so one malformed entry does not
// poison the rest of the batch.
func (r *Record) Apply(update FieldUpdate) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []string
	stamp := r.now()
	for _, f := range r.fields {
		val, ok := update[f.Name]
		if !ok || val == "" {
			continue
		}
		r.values[f.Name] = val
		r.recent[f.Name] = stamp
		changed = append(changed, f.Name)
	}
	return changed
}

// RecentlyChanged returns the field names whose highlight has not yet
// expired.
func (r *Record) RecentlyChanged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-HighlightDuration)
	var out []string
	for _, f := range r.fields {
		stamp, ok := r.recent[f.Name]
		if !ok {
			continue
		}
		if stamp.After(cutoff) {
			out = append(out, f.Name)
		} else {
			delete(r.recent, f.Name)
		}
	}
	return out
}

// Reset blanks every field and clears all highlights.
func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.fields {
		r.values[f.Name] = ""
	}
	r.recent = make(map[string]time.Time)
}
