package models

import "math"

// AssessmentResponse is one answered question of the knowledge assessment.
// Extra fields sent by the client are ignored; only correctness is scored.
type AssessmentResponse struct {
	Correct bool `json:"correct"`
}

// ScoreAssessment computes the percentage of correct responses, rounded to
// the nearest integer, and the learning level it maps to. An empty response
// set scores 0 and recommends beginner.
func ScoreAssessment(responses []AssessmentResponse) (int, Level) {
	if len(responses) == 0 {
		return 0, LevelBeginner
	}

	correct := 0
	for _, r := range responses {
		if r.Correct {
			correct++
		}
	}
	score := int(math.Round(float64(correct) / float64(len(responses)) * 100))

	return score, LevelForScore(score)
}

// LevelForScore maps an assessment score to a recommended learning level.
// Boundaries are inclusive: 80 is advanced, 60 is intermediate.
func LevelForScore(score int) Level {
	switch {
	case score >= 80:
		return LevelAdvanced
	case score >= 60:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}
