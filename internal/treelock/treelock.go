/*

Package `treelock` propagates lock markers across a folder subtree and its
ancestor chain.

A lock marker is a multi-valued metadata attribute whose value is the path of
the subtree root that caused the lock.  Markers from different roots coexist
on the same object; unlocking removes only the marker whose value equals the
root being unlocked.

Cascades are not transactional.  If a mutation fails mid-walk, the walk
stops, the ancestor phase is skipped, and objects that were mutated before
the failure keep their new marker state.  Callers that need a consistent tree
must retry or unlock.

*/
package treelock

import (
	"errors"
	slashpath "path"
	"strings"

	"github.com/fiberbit/yoda-ruleset/internal/metastore"
)

// `LockAttrName` is the multi-valued lock marker attribute.
const LockAttrName = "org_lock"

var ErrRootOutsideHome = errors.New("root is not below the zone home")

type Logger interface {
	Warnw(msg string, kv ...interface{})
}

// `Store` is the attribute mutation subset that the engine needs.
type Store interface {
	AddAttr(obj, name, value string) error
	RemoveAttr(obj, name, value string) error
}

type Walker interface {
	Walk(root string, reverse bool, fn metastore.WalkFunc) error
}

type Config struct {
	// `ZoneHome` terminates the upward ancestor walk.  The boundary
	// itself is never marked.
	ZoneHome string
}

type Engine struct {
	lg     Logger
	store  Store
	walker Walker
	home   string
}

func New(lg Logger, store Store, walker Walker, cfg Config) *Engine {
	return &Engine{
		lg:     lg,
		store:  store,
		walker: walker,
		home:   strings.TrimRight(cfg.ZoneHome, "/"),
	}
}

// `Lock()` marks every object in the subtree rooted at `root`, top-down,
// and then every ancestor collection up to the zone home (exclusive).
func (e *Engine) Lock(root string) error {
	return e.cascade(root, true)
}

// `Unlock()` removes the `root` marker from the subtree, bottom-up, and then
// from the ancestor chain.  Removing a marker that is already absent counts
// as success.
func (e *Engine) Unlock(root string) error {
	return e.cascade(root, false)
}

func (e *Engine) cascade(root string, add bool) error {
	root = slashpath.Clean(root)
	if !strings.HasPrefix(root, e.home+"/") {
		return ErrRootOutsideHome
	}

	// Subtree phase.  Top-down when adding markers, bottom-up when
	// removing them.  The first failing item aborts the walk; the
	// ancestor phase then does not run.
	err := e.walker.Walk(root, !add,
		func(parent, name string, isCollection bool) error {
			return e.apply(slashpath.Join(parent, name), root, add)
		})
	if err != nil {
		e.lg.Warnw(
			"Lock cascade stopped at a failing item.",
			"root", root, "add", add, "err", err,
		)
		return err
	}

	// Ancestor phase.  Only the ancestor collections themselves, not
	// their other children.
	for p := slashpath.Dir(root); p != e.home; p = slashpath.Dir(p) {
		if p == "/" || p == "." {
			break
		}
		if err := e.apply(p, root, add); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) apply(obj, root string, add bool) error {
	if add {
		return e.store.AddAttr(obj, LockAttrName, root)
	}
	err := e.store.RemoveAttr(obj, LockAttrName, root)
	if err != nil && metastore.IsNoSuchAttr(err) {
		// Idempotent delete: the marker was already gone.
		return nil
	}
	return err
}
