package treelock_test

import (
	"testing"

	"github.com/fiberbit/yoda-ruleset/internal/metastore"
	"github.com/fiberbit/yoda-ruleset/internal/metastore/inmem"
	"github.com/fiberbit/yoda-ruleset/internal/treelock"
	"github.com/fiberbit/yoda-ruleset/pkg/mulog"
	"github.com/stretchr/testify/require"
)

const (
	zoneHome = "/tempZone/home"
	group    = "/tempZone/home/research-initial"
	dataset  = "/tempZone/home/research-initial/dataset"
)

var treePaths = []string{
	dataset,
	dataset + "/readme.txt",
	dataset + "/sub",
	dataset + "/sub/a.csv",
	dataset + "/sub/b.csv",
}

func newTree(t testing.TB) *inmem.Store {
	t.Helper()
	s := inmem.NewStore()
	s.AddDataObject(dataset + "/readme.txt")
	s.AddDataObject(dataset + "/sub/a.csv")
	s.AddDataObject(dataset + "/sub/b.csv")
	return s
}

func newEngine(s treelock.Store, w treelock.Walker) *treelock.Engine {
	return treelock.New(mulog.Logger{}, s, w, treelock.Config{
		ZoneHome: zoneHome,
	})
}

func markers(t testing.TB, s *inmem.Store, obj string) []string {
	t.Helper()
	vals, err := s.ListAttr(obj, treelock.LockAttrName)
	require.NoError(t, err)
	return vals
}

func TestLockMarksSubtreeAndAncestors(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)

	require.NoError(t, e.Lock(dataset))
	for _, p := range treePaths {
		require.Equal(t, []string{dataset}, markers(t, s, p),
			"marker on %s", p)
	}
	// Ancestors up to, excluding, the zone home.
	require.Equal(t, []string{dataset}, markers(t, s, group))
	require.Len(t, markers(t, s, zoneHome), 0)
}

func TestLockIsIdempotent(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)

	require.NoError(t, e.Lock(dataset))
	require.NoError(t, e.Lock(dataset))
	for _, p := range treePaths {
		require.Equal(t, []string{dataset}, markers(t, s, p))
	}
}

func TestUnlockRoundTrip(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)

	require.NoError(t, e.Lock(dataset))
	require.NoError(t, e.Unlock(dataset))
	for _, p := range append([]string{group}, treePaths...) {
		require.Len(t, markers(t, s, p), 0, "marker on %s", p)
	}
}

func TestUnlockTargetsOnlyItsRoot(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)

	sub := dataset + "/sub"
	require.NoError(t, e.Lock(dataset))
	require.NoError(t, e.Lock(sub))
	require.Equal(t, []string{dataset, sub},
		markers(t, s, sub+"/a.csv"))

	require.NoError(t, e.Unlock(sub))
	// The outer lock survives on the shared objects.
	require.Equal(t, []string{dataset}, markers(t, s, sub+"/a.csv"))
	require.Equal(t, []string{dataset}, markers(t, s, sub))
}

func TestUnlockAbsentMarkerIsSuccess(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)

	require.NoError(t, e.Unlock(dataset))
}

func TestLockPartialFailure(t *testing.T) {
	s := newTree(t)
	fs := inmem.NewFaultStore(s)
	fs.FailAddAttr[dataset+"/sub"] = true
	e := newEngine(fs, s)

	err := e.Lock(dataset)
	require.Error(t, err)
	require.True(t, metastore.IsNoAccess(err))

	// Items before the failing one keep their new marker; the failing
	// item, the rest of the walk, and the ancestors are untouched.
	require.Equal(t, []string{dataset}, markers(t, s, dataset))
	require.Equal(t, []string{dataset},
		markers(t, s, dataset+"/readme.txt"))
	require.Len(t, markers(t, s, dataset+"/sub"), 0)
	require.Len(t, markers(t, s, dataset+"/sub/a.csv"), 0)
	require.Len(t, markers(t, s, group), 0)
}

func TestUnlockPartialFailure(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)
	require.NoError(t, e.Lock(dataset))

	fs := inmem.NewFaultStore(s)
	fs.FailRemoveAttr[dataset+"/sub"] = true
	fe := newEngine(fs, s)

	err := fe.Unlock(dataset)
	require.Error(t, err)

	// Bottom-up: the leaves below `sub` were unlocked before the
	// failure; `sub`, the root, and the ancestors still carry markers.
	require.Len(t, markers(t, s, dataset+"/sub/a.csv"), 0)
	require.Len(t, markers(t, s, dataset+"/sub/b.csv"), 0)
	require.Equal(t, []string{dataset}, markers(t, s, dataset+"/sub"))
	require.Equal(t, []string{dataset}, markers(t, s, dataset))
	require.Equal(t, []string{dataset}, markers(t, s, group))
}

func TestRootOutsideHome(t *testing.T) {
	s := newTree(t)
	e := newEngine(s, s)
	require.Equal(t, treelock.ErrRootOutsideHome, e.Lock("/otherZone/x"))
}
