/*

Package `datamanager` wraps reviewer status changes in the temporary
privilege elevation protocol.

A datamanager has no standing write access on research folders.  To accept
or reject a submission, the protocol grants the category's datamanager group
a scoped write capability on the folder, performs the guarded status write,
and unconditionally revokes the grant back to read-only.  The grant is
tagged with the acting datamanager's identity and a fresh UUID for audit; it
exists only for the duration of one action.

*/
package datamanager

import (
	"fmt"

	"github.com/fiberbit/yoda-ruleset/internal/folders"
	"github.com/fiberbit/yoda-ruleset/internal/metastore"
	"github.com/google/uuid"
)

type Logger interface {
	Infow(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
}

// `Transitioner` is the status state machine; see package `folders`.
type Transitioner interface {
	Transition(
		folder string, target folders.Status, actor string,
	) folders.Result
}

type Actions struct {
	lg      Logger
	machine Transitioner
	acl     metastore.AccessControl
	groups  folders.GroupResolver
}

func NewActions(
	lg Logger,
	machine Transitioner,
	acl metastore.AccessControl,
	groups folders.GroupResolver,
) *Actions {
	return &Actions{
		lg:      lg,
		machine: machine,
		acl:     acl,
		groups:  groups,
	}
}

// `Accept()` accepts a submitted folder on behalf of the datamanager
// `actor`.
func (a *Actions) Accept(folder, actor string) folders.Result {
	return a.privileged(folder, folders.StatusAccepted, actor)
}

// `Reject()` rejects a submitted folder on behalf of the datamanager
// `actor`.
func (a *Actions) Reject(folder, actor string) folders.Result {
	return a.privileged(folder, folders.StatusRejected, actor)
}

// `privileged()` runs one elevated status change:
//
//  1. Resolve the folder's group and category; failure reports
//     NoResearchGroup without granting anything.
//  2. Grant the category's datamanager group temporary write access,
//     tagged for audit; failure reports PermissionDenied.
//  3. Attempt the guarded transition.
//  4. Revoke the grant back to read-only.  The deferred revoke runs on
//     every exit path, whatever the transition returned.
//  5. A failing revoke reports FailedToRemoveTemporaryAccess, unless the
//     transition already produced a more specific failure; that failure
//     takes precedence.
func (a *Actions) privileged(
	folder string, target folders.Status, actor string,
) (res folders.Result) {
	group, err := a.groups.GroupOf(folder)
	if err != nil {
		return folders.Result{
			Outcome: folders.NoResearchGroup,
			Info: fmt.Sprintf(
				"no research group for folder `%s`: %v",
				folder, err,
			),
		}
	}
	category, err := a.groups.CategoryOf(group)
	if err != nil {
		return folders.Result{
			Outcome: folders.NoResearchGroup,
			Info: fmt.Sprintf(
				"no category for group `%s`: %v", group, err,
			),
		}
	}

	dmGroup := folders.ReviewerGroupPrefix + category
	tag := fmt.Sprintf("%s:%s", actor, uuid.New())
	err = a.acl.Grant(dmGroup, folder, metastore.CapWrite, tag)
	if err != nil {
		return folders.Result{
			Outcome: folders.PermissionDenied,
			Info: fmt.Sprintf(
				"failed to grant temporary access: %v", err,
			),
		}
	}
	a.lg.Infow(
		"Granted temporary datamanager access.",
		"folder", folder, "group", dmGroup, "tag", tag,
	)

	res = folders.Result{Outcome: folders.Unknown}
	defer func() {
		rerr := a.acl.Revoke(dmGroup, folder, tag)
		if rerr == nil {
			return
		}
		a.lg.Errorw(
			"Failed to revoke temporary datamanager access.",
			"folder", folder, "group", dmGroup,
			"tag", tag, "err", rerr,
		)
		switch res.Outcome {
		case folders.Success, folders.Unknown:
			res = folders.Result{
				Outcome: folders.FailedToRemoveTemporaryAccess,
				Info: fmt.Sprintf(
					"failed to revoke temporary access: %v",
					rerr,
				),
			}
		}
	}()

	res = a.machine.Transition(folder, target, actor)
	return res
}
