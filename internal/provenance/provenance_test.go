package provenance_test

import (
	"testing"
	"time"

	"github.com/fiberbit/yoda-ruleset/internal/metastore/inmem"
	"github.com/fiberbit/yoda-ruleset/internal/provenance"
	"github.com/stretchr/testify/require"
)

const dataset = "/tempZone/home/research-initial/dataset"

func newLog(t testing.TB) (*provenance.Log, *inmem.Store) {
	t.Helper()
	s := inmem.NewStore()
	s.AddCollection(dataset)
	tick := time.Unix(1500000000, 0)
	lg := provenance.NewLogAt(s, func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	return lg, s
}

func TestAppendRead(t *testing.T) {
	lg, _ := newLog(t)

	actions := []string{"lock", "unsubmit", "submit", "accept"}
	for _, a := range actions {
		require.NoError(t, lg.Append(dataset, "alice#tempZone", a))
	}

	entries, n, err := lg.Read(dataset)
	require.NoError(t, err)
	require.Equal(t, len(actions), n)
	for i, a := range actions {
		require.Equal(t, a, entries[i].Action)
		require.Equal(t, "alice#tempZone", entries[i].Actor)
	}
	// Call order is preserved via monotonic timestamps.
	for i := 1; i < len(entries); i++ {
		require.True(t, entries[i-1].Time < entries[i].Time)
	}
}

func TestEntryWireFormat(t *testing.T) {
	lg, s := newLog(t)
	require.NoError(t, lg.Append(dataset, "alice#tempZone", "submit"))

	vals, err := s.ListAttr(dataset, provenance.LogAttrName)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	// One JSON array of one 3-tuple per stored value.
	require.Equal(t,
		`[[1500000001,"submit","alice#tempZone"]]`, vals[0])
}

func TestIsEmpty(t *testing.T) {
	lg, _ := newLog(t)

	empty, err := lg.IsEmpty(dataset)
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, lg.Append(dataset, "alice#tempZone", "lock"))
	empty, err = lg.IsEmpty(dataset)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestClear(t *testing.T) {
	lg, _ := newLog(t)

	require.NoError(t, lg.Append(dataset, "alice#tempZone", "lock"))
	require.NoError(t, lg.Append(dataset, "alice#tempZone", "submit"))
	require.NoError(t, lg.Clear(dataset))

	_, n, err := lg.Read(dataset)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// Clearing an absent log counts as cleared.
	require.NoError(t, lg.Clear(dataset))
}

func TestReadMalformed(t *testing.T) {
	lg, s := newLog(t)
	require.NoError(t,
		s.AddAttr(dataset, provenance.LogAttrName, "not json"))
	_, _, err := lg.Read(dataset)
	require.Error(t, err)
}
