package enum

// Tristate carries venue flags that may be absent from a wire record.
type Tristate uint8

const (
	TristateUnknown Tristate = iota
	TristateTrue
	TristateFalse
)

func TristateOf(v bool) Tristate {
	if v {
		return TristateTrue
	}
	return TristateFalse
}

// Bool returns the value and whether it is known.
func (t Tristate) Bool() (value, known bool) {
	switch t {
	case TristateTrue:
		return true, true
	case TristateFalse:
		return false, true
	default:
		return false, false
	}
}

func (t Tristate) IsTrue() bool {
	return t == TristateTrue
}
