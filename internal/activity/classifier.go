package activity

// Type is the recognized activity.
type Type uint32

const (
	Sleep Type = iota
	Sit
	Walk
	Jog
)

func (t Type) String() string {
	switch t {
	case Sleep:
		return "sleep"
	case Sit:
		return "sit"
	case Walk:
		return "walk"
	case Jog:
		return "jog"
	default:
		return "unknown"
	}
}

// Feature summarizes one window of linear acceleration split into the
// component along gravity (V) and the one across it (H).
type Feature struct {
	MeanV      float64
	MeanH      float64
	DeviationV float64
	DeviationH float64
}

// Classify scores each type with a linear model fitted on recorded wrist
// data and returns the best one. Ties keep the lower type.
func Classify(f Feature) Type {
	scores := [...]float64{
		Sleep: 6.95 + 0.87*f.MeanV - 0.26*f.MeanH - 0.03*f.DeviationV - 0.11*f.DeviationH,
		Sit:   2.7 + 0.05*f.MeanV - 0.05*f.MeanH,
		Walk:  -3.73 - 0.16*f.MeanV + 0.1*f.MeanH,
		Jog:   -65.76 + 0.31*f.MeanH,
	}

	best := Sleep
	for t := Sit; t <= Jog; t++ {
		if scores[t] > scores[best] {
			best = t
		}
	}
	return best
}
