/*

Package `folders` implements the status state machine of research folders.

A folder moves through the states FOLDER, LOCKED, SUBMITTED, ACCEPTED,
REJECTED, and SECURED.  A transition runs a pre hook, writes the status
attribute, and runs a post hook.  Pre hooks cascade lock markers across the
folder subtree; a failing pre hook aborts the transition before the status is
touched.  Post hooks maintain the action log and never fail the transition;
the log is best effort.

Hooks are keyed on the exact `(from, to)` status pair.  Pairs that the hook
tables do not name are structurally no-ops here; whether such a transition is
permitted at all is the business of the external permission validator, which
is consulted when the status write is rejected.

Callers must serialize transitions on the same folder path; the machine
assumes at most one in-flight transition per folder.

*/
package folders

import (
	"errors"

	"github.com/fiberbit/yoda-ruleset/internal/metastore"
)

// `SystemActor` is the identity recorded for actions that the system
// performs on its own, such as auto-accepting a submission.
const SystemActor = "system"

// `ReviewerGroupPrefix` combined with a category names the group that
// reviews submissions of that category.
const ReviewerGroupPrefix = "datamanager-"

type Logger interface {
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
}

// `Cascader` propagates lock markers; see package `treelock`.
type Cascader interface {
	Lock(root string) error
	Unlock(root string) error
}

// `ActionLog` is the folder action log; see package `provenance`.
type ActionLog interface {
	Append(folder, actor, action string) error
	IsEmpty(folder string) (bool, error)
	Clear(folder string) error
}

// `Validator` is the external permission policy.  It decides whether `actor`
// may move `folder` from `current` to `target` and states a reason when not.
type Validator interface {
	CanTransition(
		folder string, current, target Status, actor string,
	) (allowed bool, reason string)
}

// `GroupResolver` resolves the group that owns a folder and the category of
// a group.
type GroupResolver interface {
	GroupOf(folder string) (string, error)
	CategoryOf(group string) (string, error)
	GroupExists(name string) bool
}

type Config struct {
	Store     metastore.AttrStore
	Cascade   Cascader
	Log       ActionLog
	Validator Validator
	Groups    GroupResolver
}

type Machine struct {
	lg      Logger
	store   metastore.AttrStore
	cascade Cascader
	log     ActionLog
	check   Validator
	groups  GroupResolver
}

func NewMachine(lg Logger, cfg *Config) *Machine {
	return &Machine{
		lg:      lg,
		store:   cfg.Store,
		cascade: cfg.Cascade,
		log:     cfg.Log,
		check:   cfg.Validator,
		groups:  cfg.Groups,
	}
}

// `Status()` reads the current folder status.  An absent attribute reads as
// `StatusFolder`.
func (m *Machine) Status(folder string) (Status, error) {
	v, ok, err := m.store.GetAttr(folder, StatusAttrName)
	if err != nil {
		return StatusFolder, err
	}
	if !ok || v == "" {
		return StatusFolder, nil
	}
	return ParseStatus(v)
}

// Public operations of the lifecycle.  Accept and reject run through the
// datamanager elevation protocol in package `datamanager`; `Secure()` is the
// administrative direct write.

func (m *Machine) Lock(folder, actor string) Result {
	return m.Transition(folder, StatusLocked, actor)
}

func (m *Machine) Unlock(folder, actor string) Result {
	return m.Transition(folder, StatusFolder, actor)
}

func (m *Machine) Submit(folder, actor string) Result {
	return m.Transition(folder, StatusSubmitted, actor)
}

// `Unsubmit()` reverts a submitted folder to LOCKED.  The subtree keeps its
// lock markers; `(SUBMITTED, LOCKED)` is not a hook pair.
func (m *Machine) Unsubmit(folder, actor string) Result {
	return m.Transition(folder, StatusLocked, actor)
}

func (m *Machine) Secure(folder, actor string) Result {
	return m.Transition(folder, StatusSecured, actor)
}

// `Transition()` moves `folder` to `target`:
//
//  1. Run the pre hook.  A failure aborts the transition; the status
//     attribute is never written.
//  2. Write the status attribute.
//  3. If the write fails, re-read the status and consult the validator:
//     a policy denial becomes PermissionDenied with the validator's reason;
//     a store-side access denial becomes a generic PermissionDenied; any
//     other store code becomes Unrecoverable with code and message.
//  4. Run the post hook.  Post hook failures never fail the transition.
func (m *Machine) Transition(
	folder string, target Status, actor string,
) Result {
	current, err := m.Status(folder)
	if err != nil {
		return storeFailure(err)
	}

	if err := m.preTransition(folder, current, target); err != nil {
		return storeFailure(err)
	}

	err = m.store.SetAttr(folder, StatusAttrName, target.String())
	if err != nil {
		return m.classifyWriteFailure(folder, target, actor, err)
	}

	m.postTransition(folder, current, target, actor)
	m.lg.Infow(
		"Folder status transition.",
		"folder", folder,
		"from", current.String(),
		"to", target.String(),
		"actor", actor,
	)
	return ok()
}

func (m *Machine) preTransition(folder string, from, to Status) error {
	switch {
	case from == StatusFolder && to == StatusLocked:
		return m.cascade.Lock(folder)
	case from == StatusFolder && to == StatusSubmitted:
		return m.cascade.Lock(folder)
	case fromLockedState(from) && to == StatusFolder:
		return m.cascade.Unlock(folder)
	}
	return nil
}

func (m *Machine) postTransition(folder string, from, to Status, actor string) {
	switch {
	case from == StatusFolder && to == StatusLocked:
		action := "lock"
		if empty, err := m.log.IsEmpty(folder); err == nil && !empty {
			action = "unsubmit"
		}
		m.appendLog(folder, actor, action)

	case from == StatusFolder && to == StatusSubmitted:
		m.appendLog(folder, actor, "submit")
		if !m.hasReviewerGroup(folder) {
			m.autoAccept(folder, actor)
		}

	case fromLockedState(from) && to == StatusFolder:
		if err := m.log.Clear(folder); err != nil {
			m.lg.Warnw(
				"Failed to clear action log.",
				"folder", folder, "err", err,
			)
		}

	case from == StatusSubmitted && to == StatusAccepted:
		who := actor
		if !m.hasReviewerGroup(folder) {
			who = SystemActor
		}
		m.appendLog(folder, who, "accept")

	case from == StatusSubmitted && to == StatusRejected:
		m.appendLog(folder, actor, "reject")
	}
	// All other pairs, including any transition to SECURED, have no
	// hooks.
}

func fromLockedState(s Status) bool {
	return s == StatusLocked || s == StatusRejected || s == StatusSecured
}

// `autoAccept()` force-sets a submission to ACCEPTED when no reviewer group
// exists for the folder's category.  This is a deliberate shortcut inside
// the submit post hook: a direct attribute write with no re-validation and
// no re-cascading.  Only the accept post hook runs afterwards, which records
// the system identity as the actor.
func (m *Machine) autoAccept(folder, actor string) {
	err := m.store.SetAttr(
		folder, StatusAttrName, StatusAccepted.String(),
	)
	if err != nil {
		m.lg.Errorw(
			"Failed to auto-accept submission.",
			"folder", folder, "err", err,
		)
		return
	}
	m.postTransition(folder, StatusSubmitted, StatusAccepted, actor)
}

func (m *Machine) classifyWriteFailure(
	folder string, target Status, actor string, werr error,
) Result {
	current, err := m.Status(folder)
	if err != nil {
		return storeFailure(err)
	}
	allowed, reason := m.check.CanTransition(
		folder, current, target, actor,
	)
	if !allowed {
		return denied(reason)
	}
	if metastore.IsNoAccess(werr) {
		return denied("the metadata store denied the status update")
	}
	return storeFailure(werr)
}

func (m *Machine) hasReviewerGroup(folder string) bool {
	group, err := m.groups.GroupOf(folder)
	if err != nil {
		return false
	}
	category, err := m.groups.CategoryOf(group)
	if err != nil {
		return false
	}
	return m.groups.GroupExists(ReviewerGroupPrefix + category)
}

func (m *Machine) appendLog(folder, actor, action string) {
	if err := m.log.Append(folder, actor, action); err != nil {
		m.lg.Warnw(
			"Failed to append to action log.",
			"folder", folder, "action", action, "err", err,
		)
	}
}

// `storeFailure()` maps a store error to a result: access denials become
// PermissionDenied, everything else Unrecoverable with the store's code and
// message.
func storeFailure(err error) Result {
	var serr *metastore.Error
	if errors.As(err, &serr) {
		if serr.Code == metastore.CodeNoAccess {
			return denied(serr.Message)
		}
		return unrecoverable(serr.Code, serr.Message)
	}
	return unrecoverable(metastore.CodeInternal, err.Error())
}
