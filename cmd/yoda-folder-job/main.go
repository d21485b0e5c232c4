// vim: sw=8

// Yoda folder batch job `yoda-folder-job`.
package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/fiberbit/yoda-ruleset/internal/datamanager"
	"github.com/fiberbit/yoda-ruleset/internal/folderjob"
	"github.com/fiberbit/yoda-ruleset/internal/folders"
	"github.com/fiberbit/yoda-ruleset/internal/metastore/inmem"
	"github.com/fiberbit/yoda-ruleset/internal/provenance"
	"github.com/fiberbit/yoda-ruleset/internal/treelock"
	"github.com/fiberbit/yoda-ruleset/pkg/mulog"
	"github.com/fiberbit/yoda-ruleset/pkg/zap"
)

// `xVersion` and `xBuild` are injected by the `Makefile`.
var (
	xVersion string
	xBuild   string
	version  = fmt.Sprintf("yoda-folder-job-%s+%s", xVersion, xBuild)
)

// `qqBackticks()` translates double single quote to backtick.
func qqBackticks(s string) string {
	return strings.Replace(s, "''", "`", -1)
}

var usage = qqBackticks(`Usage:
  yoda-folder-job [options] --snapshot=<yaml> --target=<status>
                  (--select=<status> | <folder>...)

Options:
  --log=<logger>  [default: prod]
        Specify logger: prod, dev, or mu.
  --snapshot=<yaml>
        YAML store snapshot to load; see package ''inmem'' for the format.
  --target=<status>
        Target status, one of FOLDER, LOCKED, SUBMITTED, ACCEPTED, REJECTED,
        or SECURED.
  --select=<status>
        Process every folder whose current status equals ''<status>'',
        instead of listing folders on the command line.
  --actor=<actor>  [default: rods#tempZone]
        Identity recorded in the folder action logs.
  --jobs=<n>  [default: 4]
        Number of folders to process concurrently.  Operations on the same
        folder are always serialized.
  --rate=<n>  [default: 0]
        Maximum transitions per second.  0 means unlimited.

''yoda-folder-job'' loads a store snapshot and applies the target status to
the selected folders, running the full transition hooks: lock cascades, the
action log, and auto-accept when a category has no datamanager group.
Targets ACCEPTED and REJECTED run through the datamanager temporary
privilege elevation.

The permission policy of a run is permissive; the job exercises transition
mechanics against a snapshot, it does not enforce who may act.  The exit
code is non-zero if any folder failed.
`)

type Logger interface {
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
	Fatalw(msg string, kv ...interface{})
}

var lg Logger = mulog.Logger{}

func main() {
	args := argparse()
	initLogging(args["--log"].(string))

	dat, err := ioutil.ReadFile(args["--snapshot"].(string))
	if err != nil {
		lg.Fatalw("Failed to read --snapshot.", "err", err)
	}
	snap, err := inmem.ParseSnapshot(dat)
	if err != nil {
		lg.Fatalw("Failed to parse --snapshot.", "err", err)
	}
	store, err := inmem.NewStoreFromSnapshot(snap)
	if err != nil {
		lg.Fatalw("Failed to load --snapshot.", "err", err)
	}
	groups := inmem.NewGroups(snap)

	cascade := treelock.New(lg, store, store, treelock.Config{
		ZoneHome: snap.ZoneHome,
	})
	machine := folders.NewMachine(lg, &folders.Config{
		Store:     store,
		Cascade:   cascade,
		Log:       provenance.NewLog(store),
		Validator: folderjob.AllowAll{},
		Groups:    groups,
	})
	acts := datamanager.NewActions(lg, machine, store, groups)

	target := args["--target"].(folders.Status)
	reqs, err := selectRequests(args, store, target)
	if err != nil {
		lg.Fatalw("Failed to select folders.", "err", err)
	}
	if len(reqs) == 0 {
		lg.Infow("Nothing to do.")
		return
	}

	run := folderjob.NewRunner(
		lg,
		&reviewRouting{machine: machine, acts: acts},
		&folderjob.Config{
			Jobs: args["--jobs"].(int),
			Rate: args["--rate"].(float64),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)
	signal.Notify(sigs, syscall.SIGINT)
	go func() {
		sig := <-sigs
		lg.Warnw("Canceling run.", "sig", sig)
		cancel()
	}()

	lg.Infow(
		"yoda-folder-job started.",
		"folders", len(reqs),
		"target", target.String(),
	)
	sum, err := run.Run(ctx, reqs)
	if err != nil {
		lg.Errorw("Run canceled.", "err", err)
	}
	lg.Infow(
		"Completed run.",
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
	)
	if sum.Failed > 0 || err != nil {
		os.Exit(1)
	}
}

// `reviewRouting` sends review decisions through the datamanager elevation
// protocol and everything else directly to the state machine.
type reviewRouting struct {
	machine *folders.Machine
	acts    *datamanager.Actions
}

func (r *reviewRouting) Transition(
	folder string, target folders.Status, actor string,
) folders.Result {
	switch target {
	case folders.StatusAccepted:
		return r.acts.Accept(folder, actor)
	case folders.StatusRejected:
		return r.acts.Reject(folder, actor)
	default:
		return r.machine.Transition(folder, target, actor)
	}
}

func selectRequests(
	args map[string]interface{},
	store *inmem.Store,
	target folders.Status,
) ([]folderjob.Request, error) {
	actor := args["--actor"].(string)
	if sel, ok := args["--select"].(folders.Status); ok {
		return folderjob.SelectByStatus(store, sel, target, actor)
	}
	var reqs []folderjob.Request
	for _, f := range args["<folder>"].([]string) {
		reqs = append(reqs, folderjob.Request{
			Folder: f,
			Target: target,
			Actor:  actor,
		})
	}
	return reqs, nil
}

func initLogging(arg string) {
	var err error
	switch arg {
	case "prod":
		lg, err = zap.NewProduction()
	case "dev":
		lg, err = zap.NewDevelopment()
	case "mu":
		lg = mulog.Logger{}
	default:
		err = fmt.Errorf("Invalid --log option.")
	}
	if err != nil {
		log.Fatal(err)
	}
}

func argparse() map[string]interface{} {
	const autoHelp = true
	const noOptionFirst = false
	args, err := docopt.Parse(
		usage, nil, autoHelp, version, noOptionFirst,
	)
	if err != nil {
		lg.Fatalw("docopt failed", "err", err)
	}

	for _, k := range []string{"--target", "--select"} {
		if arg, ok := args[k].(string); ok {
			s, err := folders.ParseStatus(arg)
			if err != nil {
				lg.Fatalw(
					fmt.Sprintf("Invalid %s", k),
					"err", err,
				)
			}
			args[k] = s
		}
	}

	if arg, ok := args["--jobs"].(string); ok {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			lg.Fatalw("Invalid --jobs.", "err", err)
		}
		args["--jobs"] = n
	}
	if arg, ok := args["--rate"].(string); ok {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil || f < 0 {
			lg.Fatalw("Invalid --rate.", "err", err)
		}
		args["--rate"] = f
	}

	return args
}
