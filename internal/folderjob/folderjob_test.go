package folderjob_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fiberbit/yoda-ruleset/internal/folderjob"
	"github.com/fiberbit/yoda-ruleset/internal/folders"
	"github.com/fiberbit/yoda-ruleset/internal/metastore/inmem"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infow(msg string, kv ...interface{}) {}
func (nopLogger) Warnw(msg string, kv ...interface{}) {}

// countingMachine records the maximum number of concurrent transitions per
// folder and overall.
type countingMachine struct {
	mu        sync.Mutex
	perFolder map[string]int
	maxFolder int
	active    int
	maxActive int
	results   map[string]folders.Result
	calls     []string
}

func newCountingMachine() *countingMachine {
	return &countingMachine{
		perFolder: make(map[string]int),
		results:   make(map[string]folders.Result),
	}
}

func (m *countingMachine) Transition(
	folder string, target folders.Status, actor string,
) folders.Result {
	m.mu.Lock()
	m.perFolder[folder]++
	if m.perFolder[folder] > m.maxFolder {
		m.maxFolder = m.perFolder[folder]
	}
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	m.calls = append(m.calls, folder)
	m.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	m.mu.Lock()
	m.perFolder[folder]--
	m.active--
	res, ok := m.results[folder]
	m.mu.Unlock()
	if !ok {
		res = folders.Result{Outcome: folders.Success}
	}
	return res
}

func TestRunSerializesSameFolder(t *testing.T) {
	machine := newCountingMachine()
	run := folderjob.NewRunner(nopLogger{}, machine, &folderjob.Config{
		Jobs: 8,
	})

	reqs := make([]folderjob.Request, 0, 20)
	for i := 0; i < 20; i++ {
		reqs = append(reqs, folderjob.Request{
			Folder: "/tempZone/home/research-a/d",
			Target: folders.StatusLocked,
			Actor:  "rods#tempZone",
		})
	}
	sum, err := run.Run(context.Background(), reqs)
	require.NoError(t, err)
	require.Equal(t, 20, sum.Succeeded)
	require.Equal(t, 0, sum.Failed)
	require.Equal(t, 1, machine.maxFolder)
}

func TestRunProcessesDistinctFoldersConcurrently(t *testing.T) {
	machine := newCountingMachine()
	run := folderjob.NewRunner(nopLogger{}, machine, &folderjob.Config{
		Jobs: 4,
	})

	var reqs []folderjob.Request
	for _, f := range []string{
		"/tempZone/home/research-a/w",
		"/tempZone/home/research-a/x",
		"/tempZone/home/research-b/y",
		"/tempZone/home/research-b/z",
	} {
		for i := 0; i < 5; i++ {
			reqs = append(reqs, folderjob.Request{
				Folder: f,
				Target: folders.StatusLocked,
				Actor:  "rods#tempZone",
			})
		}
	}
	sum, err := run.Run(context.Background(), reqs)
	require.NoError(t, err)
	require.Equal(t, 20, sum.Succeeded)
	require.Equal(t, 1, machine.maxFolder)
	require.True(t, machine.maxActive <= 4)
}

func TestRunCountsFailures(t *testing.T) {
	machine := newCountingMachine()
	machine.results["/tempZone/home/research-a/bad"] = folders.Result{
		Outcome: folders.PermissionDenied,
		Info:    "not allowed",
	}
	run := folderjob.NewRunner(nopLogger{}, machine, &folderjob.Config{})

	sum, err := run.Run(context.Background(), []folderjob.Request{
		{
			Folder: "/tempZone/home/research-a/ok",
			Target: folders.StatusLocked,
			Actor:  "rods#tempZone",
		},
		{
			Folder: "/tempZone/home/research-a/bad",
			Target: folders.StatusLocked,
			Actor:  "rods#tempZone",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Succeeded)
	require.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Outcomes, 2)
	for _, o := range sum.Outcomes {
		if o.Folder == "/tempZone/home/research-a/bad" {
			require.Equal(t, folders.PermissionDenied, o.Result.Outcome)
		} else {
			require.Equal(t, folders.Success, o.Result.Outcome)
		}
	}
}

func TestRunCanceledContext(t *testing.T) {
	machine := newCountingMachine()
	run := folderjob.NewRunner(nopLogger{}, machine, &folderjob.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := run.Run(ctx, []folderjob.Request{
		{
			Folder: "/tempZone/home/research-a/d",
			Target: folders.StatusLocked,
			Actor:  "rods#tempZone",
		},
	})
	require.Error(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, folders.Unrecoverable, sum.Outcomes[0].Result.Outcome)
}

func TestSelectByStatus(t *testing.T) {
	store := inmem.NewStore()
	for _, c := range []string{
		"/tempZone/home/research-a/one",
		"/tempZone/home/research-a/two",
		"/tempZone/home/research-b/three",
	} {
		store.AddCollection(c)
	}
	for _, c := range []string{
		"/tempZone/home/research-a/one",
		"/tempZone/home/research-b/three",
	} {
		err := store.SetAttr(
			c, folders.StatusAttrName, folders.StatusSubmitted.String(),
		)
		require.NoError(t, err)
	}

	reqs, err := folderjob.SelectByStatus(
		store, folders.StatusSubmitted, folders.StatusAccepted,
		"rods#tempZone",
	)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, "/tempZone/home/research-a/one", reqs[0].Folder)
	require.Equal(t, "/tempZone/home/research-b/three", reqs[1].Folder)
	for _, r := range reqs {
		require.Equal(t, folders.StatusAccepted, r.Target)
		require.Equal(t, "rods#tempZone", r.Actor)
	}
}
