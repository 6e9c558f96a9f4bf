// Package recommend ranks concepts for the next study session.
package recommend

// Weights of the priority blend. They sum to 1.
const (
	ImportanceWeight = 0.4
	DueWeight        = 0.35
	MasteryWeight    = 0.25
)

// DefaultLimit is the number of recommendations returned when no limit is given.
const DefaultLimit = 6

// UnscheduledDueScore is the due score of a concept without a next review.
const UnscheduledDueScore = 0.4

// BlockerMastery is the mastery a prerequisite needs to stop blocking.
const BlockerMastery = 60

// DueHorizonDays is the window over which the due score falls from 1 to 0.
const DueHorizonDays = 7.0

// Scores are the individual components of a priority.
type Scores struct {
	Due        float64 `json:"due"`
	Mastery    float64 `json:"mastery"`
	Importance float64 `json:"importance"`
}

// Blocker is a prerequisite the learner has not mastered yet.
type Blocker struct {
	ConceptKey   string `json:"concept_key"`
	ConceptName  string `json:"concept_name"`
	MasteryLevel int    `json:"mastery_level"`
}

// Recommendation is one ranked concept.
type Recommendation struct {
	ConceptKey  string    `json:"concept_key"`
	ConceptName string    `json:"concept_name"`
	Subject     string    `json:"subject"`
	Priority    float64   `json:"priority"`
	Blockers    []Blocker `json:"blockers"`
	Scores      Scores    `json:"scores"`
}
