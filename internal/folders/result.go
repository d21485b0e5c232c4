package folders

import (
	"fmt"
)

// `Outcome` classifies the result of a status operation.
type Outcome int

const (
	// `Unknown` is the initial sentinel.  A completed call never
	// reports it.
	Unknown Outcome = iota
	Success
	PermissionDenied
	Unrecoverable
	NoResearchGroup
	FailedToRemoveTemporaryAccess
)

var outcomeNames = map[Outcome]string{
	Unknown:                       "Unknown",
	Success:                       "Success",
	PermissionDenied:              "PermissionDenied",
	Unrecoverable:                 "Unrecoverable",
	NoResearchGroup:               "NoResearchGroup",
	FailedToRemoveTemporaryAccess: "FailedToRemoveTemporaryAccess",
}

func (o Outcome) String() string {
	if n, ok := outcomeNames[o]; ok {
		return n
	}
	return "Unknown"
}

// `Result` is an outcome with a human-readable reason.  `Info` is empty on
// success.
type Result struct {
	Outcome Outcome
	Info    string
}

func ok() Result {
	return Result{Outcome: Success}
}

func denied(info string) Result {
	return Result{Outcome: PermissionDenied, Info: info}
}

func unrecoverable(code int32, msg string) Result {
	return Result{
		Outcome: Unrecoverable,
		Info:    fmt.Sprintf("store error %d: %s", code, msg),
	}
}
