// Package diag defines the structured diagnostic model shared by every
// stage of the validation pipeline: one Event per finding, appended to a
// Log whose order is the order findings were observed.
package diag

// Severity ranks how seriously a consumer should treat an event.
type Severity string

// Severity values attached to logged events.
const (
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityAdvisory Severity = "advisory"
)

// Kind identifies the specific rule behind an event. The catalog of kinds
// lives in kinds.go; pipeline code treats them opaquely.
type Kind string

// Position is a 1-based line/column location inside the document. Events
// raised before any document text exists (transport failures, header
// checks) carry no position.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Param is one key/value pair of event-specific data. Parameters keep
// their insertion order, which is why Event carries a slice and not a map.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a single diagnostic occurrence. Immutable once appended to a Log.
type Event struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Pos      *Position `json:"position,omitempty"`
	Params   []Param   `json:"params,omitempty"`

	// Occurrences is 1 unless the owning log runs in grouping mode and
	// coalesced consecutive events of the same kind into this one.
	Occurrences int `json:"occurrences,omitempty"`
}

// At returns a copy of the event positioned at line/column.
func (e Event) At(line, column int) Event {
	e.Pos = &Position{Line: line, Column: column}
	return e
}

// Param returns the value for key and whether it was present.
func (e Event) Param(key string) (string, bool) {
	for _, p := range e.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// New builds an event from a kind, severity and ordered parameter pairs.
// pairs must have even length; odd trailing keys are dropped.
func New(kind Kind, severity Severity, pairs ...string) Event {
	ev := Event{Kind: kind, Severity: severity, Occurrences: 1}
	for i := 0; i+1 < len(pairs); i += 2 {
		ev.Params = append(ev.Params, Param{Key: pairs[i], Value: pairs[i+1]})
	}
	return ev
}

// Log is the append-only diagnostic stream for one validation run. It is
// owned exclusively by that run; no locking. Options are fixed at
// construction because they change the meaning of Append itself.
type Log struct {
	events []Event

	firstOccurrenceOnly bool
	groupEvents         bool
	seen                map[Kind]struct{}
}

// NewLog builds an empty log. firstOccurrenceOnly suppresses repeats of a
// kind after its first appearance; groupEvents coalesces consecutive
// events of the same kind into one event with a bumped occurrence count.
func NewLog(firstOccurrenceOnly, groupEvents bool) *Log {
	l := &Log{
		firstOccurrenceOnly: firstOccurrenceOnly,
		groupEvents:         groupEvents,
	}
	if firstOccurrenceOnly {
		l.seen = make(map[Kind]struct{})
	}
	return l
}

// Append adds an event, honoring the dedup/grouping modes. Order of kept
// events is never changed after the fact.
func (l *Log) Append(ev Event) {
	if ev.Occurrences == 0 {
		ev.Occurrences = 1
	}
	if l.firstOccurrenceOnly {
		if _, dup := l.seen[ev.Kind]; dup {
			return
		}
		l.seen[ev.Kind] = struct{}{}
	}
	if l.groupEvents && len(l.events) > 0 {
		last := &l.events[len(l.events)-1]
		if last.Kind == ev.Kind {
			last.Occurrences += ev.Occurrences
			return
		}
	}
	l.events = append(l.events, ev)
}

// AppendAll appends events in order, each through Append.
func (l *Log) AppendAll(events []Event) {
	for _, ev := range events {
		l.Append(ev)
	}
}

// Events returns the accumulated events in insertion order. The returned
// slice is the log's backing storage; callers must not mutate it.
func (l *Log) Events() []Event {
	return l.events
}

// Len reports how many events the log holds.
func (l *Log) Len() int {
	return len(l.events)
}

// HasErrors reports whether any event carries SeverityError.
func (l *Log) HasErrors() bool {
	for _, ev := range l.events {
		if ev.Severity == SeverityError {
			return true
		}
	}
	return false
}
