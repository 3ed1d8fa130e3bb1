package models

// HealthLevel is the tri-state parcel classification. The integer order is
// the severity order, which makes the worst-of merge a max.
type HealthLevel int

const (
	HealthOptimal HealthLevel = iota
	HealthSurveillance
	HealthCritique
)

func (h HealthLevel) String() string {
	switch h {
	case HealthSurveillance:
		return "SURVEILLANCE"
	case HealthCritique:
		return "CRITIQUE"
	default:
		return "OPTIMAL"
	}
}

// WorstOf folds two classifications by keeping the more severe one.
func WorstOf(a, b HealthLevel) HealthLevel {
	if b > a {
		return b
	}
	return a
}
