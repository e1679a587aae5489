package scan

import "fmt"

// Phase is one state of a mounted scanning surface.
type Phase int

// Scanner lifecycle phases.
const (
	// PhaseIdle: no subject selected.
	PhaseIdle Phase = iota
	// PhasePreparing: session resolution in flight.
	PhasePreparing
	// PhaseScanning: camera armed, awaiting a decode.
	PhaseScanning
	// PhaseProcessing: one decode mid-flight; further decodes are dropped.
	PhaseProcessing
	// PhaseOffline: preparation failed for lack of connectivity.
	PhaseOffline
	// PhaseError: preparation failed; explicit retry required.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseScanning:
		return "scanning"
	case PhaseProcessing:
		return "processing"
	case PhaseOffline:
		return "offline"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// transitions lists the legal moves. Every phase may fall back to idle
// (navigation away) and every non-processing phase may re-enter preparing
// (subject selection supersedes whatever was happening).
var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhasePreparing},
	PhasePreparing:  {PhaseScanning, PhaseOffline, PhaseError, PhasePreparing, PhaseIdle},
	PhaseScanning:   {PhaseProcessing, PhasePreparing, PhaseIdle},
	PhaseProcessing: {PhaseScanning, PhasePreparing, PhaseIdle},
	PhaseOffline:    {PhasePreparing, PhaseIdle},
	PhaseError:      {PhasePreparing, PhaseIdle},
}

// Machine is the scanner's finite-state machine. It is not self-locking; the
// engine serializes access.
type Machine struct {
	phase Phase
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Can reports whether the transition to next is legal.
func (m *Machine) Can(next Phase) bool {
	for _, p := range transitions[m.phase] {
		if p == next {
			return true
		}
	}
	return false
}

// To performs the transition to next, or fails without changing state.
func (m *Machine) To(next Phase) error {
	if !m.Can(next) {
		return fmt.Errorf("illegal transition %s -> %s", m.phase, next)
	}
	m.phase = next
	return nil
}
