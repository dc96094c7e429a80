package alerting

import (
	"slices"

	"drift-health-alerts/internal/engine"
)

// State is the last persisted (status, reason codes) pair for one
// business. A nil *State means no run has been recorded yet.
type State struct {
	Status      engine.Status
	ReasonCodes []string
}

// Decision is the change-detector output: whether anything material
// changed, and the state to persist for the next run.
type Decision struct {
	Changed bool
	Next    State
}

// DetectChange compares a freshly computed (status, reasons) pair with
// the last persisted one. Reason codes compare as sets: reordering the
// same codes is not a change. The first-ever run is always a change, and
// forceNotify reports a change without altering the state that is
// persisted.
func DetectChange(last *State, status engine.Status, reasonCodes []string, forceNotify bool) Decision {
	next := State{
		Status:      status,
		ReasonCodes: slices.Clone(reasonCodes),
	}

	if forceNotify || last == nil {
		return Decision{Changed: true, Next: next}
	}

	changed := last.Status != status || !sameCodeSet(last.ReasonCodes, reasonCodes)
	return Decision{Changed: changed, Next: next}
}

func sameCodeSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
