/*

Package `folderjob` applies folder status transitions in batch.

A run processes a list of requests concurrently, bounded by a fixed number
of slots, while serializing requests that target the same folder path: the
state machine assumes at most one in-flight transition per folder.  Store
mutations can be paced with a rate limit so that a large batch does not
starve interactive store users.

*/
package folderjob

import (
	"context"
	"sync"

	"github.com/fiberbit/yoda-ruleset/internal/folders"
	"github.com/fiberbit/yoda-ruleset/internal/metastore"
	"github.com/fiberbit/yoda-ruleset/pkg/lockmap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type Logger interface {
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
}

// `Transitioner` is the status state machine; see package `folders`.
type Transitioner interface {
	Transition(
		folder string, target folders.Status, actor string,
	) folders.Result
}

// `Request` names one transition to apply.
type Request struct {
	Folder string
	Target folders.Status
	Actor  string
}

// `Outcome` is the per-request result of a run.
type Outcome struct {
	Request
	Result folders.Result
}

type Summary struct {
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

type Config struct {
	// `Jobs` bounds concurrent transitions.  Zero means 1.
	Jobs int
	// `Rate` paces transitions per second.  Zero means unlimited.
	Rate  float64
	Burst int
}

type Runner struct {
	lg      Logger
	machine Transitioner
	locks   lockmap.L
	slots   *semaphore.Weighted
	limiter *rate.Limiter
}

func NewRunner(lg Logger, machine Transitioner, cfg *Config) *Runner {
	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}
	r := &Runner{
		lg:      lg,
		machine: machine,
		slots:   semaphore.NewWeighted(int64(jobs)),
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return r
}

// `Run()` processes all requests and reports per-request outcomes.  It only
// returns an error when the context is canceled before all requests
// completed.
func (r *Runner) Run(
	ctx context.Context, reqs []Request,
) (*Summary, error) {
	outcomes := make([]Outcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			outcomes[i] = Outcome{
				Request: req,
				Result:  r.process(ctx, req),
			}
		}(i, req)
	}
	wg.Wait()

	sum := &Summary{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Result.Outcome == folders.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum, ctx.Err()
}

func (r *Runner) process(ctx context.Context, req Request) folders.Result {
	// `Acquire()` and `Lock()` do not block when uncontended, so a
	// canceled context must be checked explicitly.
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return canceled(err)
	}
	defer r.slots.Release(1)

	if err := r.locks.Lock(ctx, req.Folder); err != nil {
		return canceled(err)
	}
	defer r.locks.Unlock(req.Folder)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return canceled(err)
		}
	}

	res := r.machine.Transition(req.Folder, req.Target, req.Actor)
	if res.Outcome == folders.Success {
		r.lg.Infow(
			"Processed folder.",
			"folder", req.Folder,
			"target", req.Target.String(),
		)
	} else {
		r.lg.Warnw(
			"Failed to process folder.",
			"folder", req.Folder,
			"target", req.Target.String(),
			"outcome", res.Outcome.String(),
			"info", res.Info,
		)
	}
	return res
}

func canceled(err error) folders.Result {
	return folders.Result{
		Outcome: folders.Unrecoverable,
		Info:    "run canceled: " + err.Error(),
	}
}

// `SelectByStatus()` builds requests for all folders whose current status
// is `current`.
func SelectByStatus(
	store metastore.AttrStore,
	current, target folders.Status,
	actor string,
) ([]Request, error) {
	paths, err := store.QueryByAttr(
		folders.StatusAttrName, current.String(),
	)
	if err != nil {
		return nil, err
	}
	reqs := make([]Request, 0, len(paths))
	for _, p := range paths {
		reqs = append(reqs, Request{
			Folder: p,
			Target: target,
			Actor:  actor,
		})
	}
	return reqs, nil
}

// `AllowAll` is the permission policy of dry runs: it permits every
// transition.  Deployments consult the real policy service instead.
type AllowAll struct{}

func (AllowAll) CanTransition(
	folder string, current, target folders.Status, actor string,
) (bool, string) {
	return true, ""
}
