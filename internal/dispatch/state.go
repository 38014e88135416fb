package dispatch

// State is a step of the per-call state machine:
//
//	Validating -> SelectingBackend -> Executing -> Success
//	                                           \-> FallingBack -> Executing(CPU) -> Success | Failed
//
// A call falls back at most once.
type State int

// Dispatch states.
const (
	Validating State = iota
	SelectingBackend
	Executing
	FallingBack
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Validating:
		return "Validating"
	case SelectingBackend:
		return "SelectingBackend"
	case Executing:
		return "Executing"
	case FallingBack:
		return "FallingBack"
	case Success:
		return "Success"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}
