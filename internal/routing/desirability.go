package routing

import "math"

// Desirability converts a candidate's score and its distance from the current
// node into a sampling weight: (score / distance) ^ powerParam.
func Desirability(score, distanceFromCurrent, powerParam float64) (float64, error) {
	if !(distanceFromCurrent > 0) {
		return 0, ErrNonPositiveDistance
	}
	return math.Pow(score/distanceFromCurrent, powerParam), nil
}

// LogDesirability is log(Desirability): powerParam * log(score / distance).
// It stays finite where the power underflows; a zero score gives -Inf.
func LogDesirability(score, distanceFromCurrent, powerParam float64) (float64, error) {
	if !(distanceFromCurrent > 0) {
		return 0, ErrNonPositiveDistance
	}
	if score == 0 {
		return math.Inf(-1), nil
	}
	return powerParam * math.Log(score/distanceFromCurrent), nil
}
