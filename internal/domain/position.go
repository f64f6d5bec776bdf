package domain

// Position es el estado del simulador en un timestamp.
type Position int

const (
	Flat Position = iota
	LongSpread
	ShortSpread
)

func (p Position) String() string {
	switch p {
	case LongSpread:
		return "LONG_SPREAD"
	case ShortSpread:
		return "SHORT_SPREAD"
	default:
		return "FLAT"
	}
}

// Sign es +1 en long spread (long A / short B), -1 en short spread y 0 en flat.
func (p Position) Sign() float64 {
	switch p {
	case LongSpread:
		return 1
	case ShortSpread:
		return -1
	default:
		return 0
	}
}

// ParsePosition es la inversa de String; un valor desconocido da Flat.
func ParsePosition(s string) Position {
	switch s {
	case "LONG_SPREAD":
		return LongSpread
	case "SHORT_SPREAD":
		return ShortSpread
	default:
		return Flat
	}
}
