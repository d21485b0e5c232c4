package inmem

import (
	"github.com/fiberbit/yoda-ruleset/internal/metastore"
)

// `FaultStore` wraps a `Store` and fails selected mutations, so that tests
// can force mid-cascade and status-write failures.  The zero maps mean no
// injected faults.
type FaultStore struct {
	*Store

	// Object paths on which the mutation fails.
	FailSetAttr    map[string]bool
	FailAddAttr    map[string]bool
	FailRemoveAttr map[string]bool

	// `Code` is the store code of injected errors.  Zero means
	// `CodeNoAccess`.
	Code int32
}

func NewFaultStore(s *Store) *FaultStore {
	return &FaultStore{
		Store:          s,
		FailSetAttr:    make(map[string]bool),
		FailAddAttr:    make(map[string]bool),
		FailRemoveAttr: make(map[string]bool),
	}
}

func (f *FaultStore) fault(obj string) error {
	code := f.Code
	if code == 0 {
		code = metastore.CodeNoAccess
	}
	return metastore.NewError(code, "injected fault on `%s`", obj)
}

func (f *FaultStore) SetAttr(obj, name, value string) error {
	if f.FailSetAttr[obj] {
		return f.fault(obj)
	}
	return f.Store.SetAttr(obj, name, value)
}

func (f *FaultStore) AddAttr(obj, name, value string) error {
	if f.FailAddAttr[obj] {
		return f.fault(obj)
	}
	return f.Store.AddAttr(obj, name, value)
}

func (f *FaultStore) RemoveAttr(obj, name, value string) error {
	if f.FailRemoveAttr[obj] {
		return f.fault(obj)
	}
	return f.Store.RemoveAttr(obj, name, value)
}
