package conditions

// Tristate is the result of evaluating a condition.
// Unknown is returned when an external lookup that the condition depends on
// could not be resolved. It is never silently treated as a match or a
// mismatch.
type Tristate uint8

const (
	False Tristate = iota
	True
	Unknown
)

func (t Tristate) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Not inverts True and False and propagates Unknown.
func (t Tristate) Not() Tristate {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

func fromBool(b bool) Tristate {
	if b {
		return True
	}

	return False
}
