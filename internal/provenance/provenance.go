/*

Package `provenance` keeps the append-only action log of a folder.

Each event is stored as one individually-added value of a multi-valued
metadata attribute.  A value is a JSON array that contains a single
`[timestamp, action, actor]` entry.  Reading the log concatenates the stored
values in storage order into one sequence of entries.  Entries are never
rewritten; the only destructive operation is `Clear()`, which drops the whole
attribute when a folder returns to the editable state.

Timestamps have second resolution, and the store deduplicates identical
attribute values.  Two appends of the same action by the same actor within
one second therefore collapse into a single stored entry.

*/
package provenance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fiberbit/yoda-ruleset/internal/metastore"
)

// `LogAttrName` is the multi-valued action log attribute.
const LogAttrName = "org_action_log"

// `Entry` is one immutable log event.  The JSON form is a 3-element array
// `[unix-seconds, action, actor]`.
type Entry struct {
	Time   int64
	Action string
	Actor  string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Time, e.Action, e.Actor})
}

func (e *Entry) UnmarshalJSON(dat []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(dat, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf(
			"action log entry has %d fields, expected 3",
			len(tuple),
		)
	}
	if err := json.Unmarshal(tuple[0], &e.Time); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &e.Action); err != nil {
		return err
	}
	return json.Unmarshal(tuple[2], &e.Actor)
}

// `Store` is the attribute subset that the log needs.
type Store interface {
	AddAttr(obj, name, value string) error
	ListAttr(obj, name string) ([]string, error)
	RemoveAttrAll(obj, name string) error
}

type Log struct {
	store Store
	// `now` is replaceable in tests.
	now func() time.Time
}

func NewLog(store Store) *Log {
	return &Log{
		store: store,
		now:   time.Now,
	}
}

// `NewLogAt()` uses `now` for entry timestamps.
func NewLogAt(store Store, now func() time.Time) *Log {
	return &Log{
		store: store,
		now:   now,
	}
}

// `Append()` adds one timestamped entry.  Callers that run it as a
// post-transition hook swallow the error; the log is best effort.
func (l *Log) Append(folder, actor, action string) error {
	ent := Entry{
		Time:   l.now().Unix(),
		Action: action,
		Actor:  actor,
	}
	val, err := json.Marshal([]Entry{ent})
	if err != nil {
		return err
	}
	return l.store.AddAttr(folder, LogAttrName, string(val))
}

// `Read()` returns all entries in storage order and their count.
func (l *Log) Read(folder string) ([]Entry, int, error) {
	vals, err := l.store.ListAttr(folder, LogAttrName)
	if err != nil {
		return nil, 0, err
	}
	var entries []Entry
	for _, v := range vals {
		var part []Entry
		if err := json.Unmarshal([]byte(v), &part); err != nil {
			return nil, 0, fmt.Errorf(
				"malformed action log value on `%s`: %v",
				folder, err,
			)
		}
		entries = append(entries, part...)
	}
	return entries, len(entries), nil
}

// `IsEmpty()` reports whether the folder has no log entries.
func (l *Log) IsEmpty(folder string) (bool, error) {
	vals, err := l.store.ListAttr(folder, LogAttrName)
	if err != nil {
		return false, err
	}
	return len(vals) == 0, nil
}

// `Clear()` removes the whole log attribute.  A log that is already absent
// counts as cleared.
func (l *Log) Clear(folder string) error {
	err := l.store.RemoveAttrAll(folder, LogAttrName)
	if err != nil && metastore.IsNoSuchAttr(err) {
		return nil
	}
	return err
}
