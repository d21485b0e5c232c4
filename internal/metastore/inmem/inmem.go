/*

Package `inmem` is an in-process implementation of the `metastore`
interfaces.  It backs package tests and the batch job's dry-run mode.

It is not a storage engine: nothing is persisted, and access-control entries
are only bookkeeping.  In particular, lock markers do not cause writes to be
rejected; write protection is a property of the real store.

*/
package inmem

import (
	slashpath "path"
	"sort"
	"strings"
	"sync"

	"github.com/fiberbit/yoda-ruleset/internal/metastore"
)

type aclEntry struct {
	capability string
	tag        string
}

type object struct {
	isCollection bool
	attrs        map[string][]string
	acl          map[string]aclEntry
}

// `Store` is a path-keyed object map.  Methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	objects map[string]*object
}

func NewStore() *Store {
	return &Store{
		objects: make(map[string]*object),
	}
}

// `AddCollection()` creates a collection, together with missing ancestor
// collections up to the root.
func (s *Store) AddCollection(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCollectionLocked(path)
}

func (s *Store) addCollectionLocked(path string) {
	path = slashpath.Clean(path)
	for path != "/" && path != "." {
		if o, ok := s.objects[path]; ok {
			if o.isCollection {
				break
			}
			panic("inmem: collection path is a data object")
		}
		s.objects[path] = newObject(true)
		path = slashpath.Dir(path)
	}
}

// `AddDataObject()` creates a leaf object, together with missing ancestor
// collections.
func (s *Store) AddDataObject(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = slashpath.Clean(path)
	s.addCollectionLocked(slashpath.Dir(path))
	if _, ok := s.objects[path]; !ok {
		s.objects[path] = newObject(false)
	}
}

func newObject(isCollection bool) *object {
	return &object{
		isCollection: isCollection,
		attrs:        make(map[string][]string),
		acl:          make(map[string]aclEntry),
	}
}

func (s *Store) find(obj string) (*object, error) {
	o, ok := s.objects[slashpath.Clean(obj)]
	if !ok {
		return nil, metastore.NewError(
			metastore.CodeNoSuchObject, "no object `%s`", obj,
		)
	}
	return o, nil
}

func (s *Store) GetAttr(obj, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return "", false, err
	}
	vals := o.attrs[name]
	if len(vals) == 0 {
		return "", false, nil
	}
	return vals[0], true, nil
}

func (s *Store) SetAttr(obj, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return err
	}
	o.attrs[name] = []string{value}
	return nil
}

func (s *Store) AddAttr(obj, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return err
	}
	// Identical `(name, value)` pairs are deduplicated, like attribute
	// units in the real store.
	for _, v := range o.attrs[name] {
		if v == value {
			return nil
		}
	}
	o.attrs[name] = append(o.attrs[name], value)
	return nil
}

func (s *Store) RemoveAttr(obj, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return err
	}
	vals := o.attrs[name]
	for i, v := range vals {
		if v == value {
			vals = append(vals[:i], vals[i+1:]...)
			if len(vals) == 0 {
				delete(o.attrs, name)
			} else {
				o.attrs[name] = vals
			}
			return nil
		}
	}
	return metastore.NewError(
		metastore.CodeNoSuchAttr,
		"no attr `%s=%s` on `%s`", name, value, obj,
	)
}

func (s *Store) RemoveAttrAll(obj, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return err
	}
	if _, ok := o.attrs[name]; !ok {
		return metastore.NewError(
			metastore.CodeNoSuchAttr, "no attr `%s` on `%s`", name, obj,
		)
	}
	delete(o.attrs, name)
	return nil
}

func (s *Store) ListAttr(obj, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return nil, err
	}
	vals := o.attrs[name]
	out := make([]string, len(vals))
	copy(out, vals)
	return out, nil
}

func (s *Store) QueryByAttr(name, value string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for p, o := range s.objects {
		for _, v := range o.attrs[name] {
			if v == value {
				paths = append(paths, p)
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) IsCollection(obj string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return false, err
	}
	return o.isCollection, nil
}

func (s *Store) Grant(group, obj, capability, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return err
	}
	o.acl[group] = aclEntry{capability: capability, tag: tag}
	return nil
}

func (s *Store) Revoke(group, obj, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return err
	}
	o.acl[group] = aclEntry{capability: metastore.CapRead, tag: tag}
	return nil
}

// `Access()` reports the capability that a group holds on an object, for
// assertions in tests and dry-run reports.
func (s *Store) Access(group, obj string) (capability string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(obj)
	if err != nil {
		return "", false
	}
	ent, ok := o.acl[group]
	return ent.capability, ok
}

// `Walk()` traverses the subtree below `root`, including `root` itself.  In
// forward order an item is visited before its children; in reverse order
// children come first.  Siblings are visited in lexicographic order.
func (s *Store) Walk(
	root string, reverse bool, fn metastore.WalkFunc,
) error {
	root = slashpath.Clean(root)
	s.mu.Lock()
	if _, ok := s.objects[root]; !ok {
		s.mu.Unlock()
		return metastore.NewError(
			metastore.CodeNoSuchObject, "no object `%s`", root,
		)
	}
	children := make(map[string][]string)
	isColl := make(map[string]bool)
	prefix := root + "/"
	for p, o := range s.objects {
		if p == root || strings.HasPrefix(p, prefix) {
			isColl[p] = o.isCollection
			if p != root {
				dir := slashpath.Dir(p)
				children[dir] = append(children[dir], p)
			}
		}
	}
	s.mu.Unlock()
	for _, c := range children {
		sort.Strings(c)
	}

	var walk func(path string) error
	walk = func(path string) error {
		visit := func() error {
			return fn(
				slashpath.Dir(path),
				slashpath.Base(path),
				isColl[path],
			)
		}
		if !reverse {
			if err := visit(); err != nil {
				return err
			}
		}
		for _, c := range children[path] {
			if err := walk(c); err != nil {
				return err
			}
		}
		if reverse {
			return visit()
		}
		return nil
	}
	return walk(root)
}
