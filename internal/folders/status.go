package folders

import (
	"fmt"
)

// `StatusAttrName` is the single-valued folder status attribute.
const StatusAttrName = "org_status"

// `Status` is the lifecycle state of a research folder.
type Status int

const (
	// `StatusFolder` is the editable state.  An absent status attribute
	// also reads as `StatusFolder`.
	StatusFolder Status = iota
	StatusLocked
	StatusSubmitted
	StatusAccepted
	StatusRejected
	StatusSecured
)

var statusNames = map[Status]string{
	StatusFolder:    "FOLDER",
	StatusLocked:    "LOCKED",
	StatusSubmitted: "SUBMITTED",
	StatusAccepted:  "ACCEPTED",
	StatusRejected:  "REJECTED",
	StatusSecured:   "SECURED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func ParseStatus(v string) (Status, error) {
	for s, n := range statusNames {
		if n == v {
			return s, nil
		}
	}
	return StatusFolder, fmt.Errorf("invalid folder status `%s`", v)
}
