package models

import "time"

// Rating is the overall verdict of a code review.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
	RatingError     Rating = "Error"
)

// Technique is a named prompt-construction strategy.
type Technique string

const (
	TechniqueZeroShot Technique = "zero_shot"
	TechniqueFewShot  Technique = "few_shot"
	TechniqueCoT      Technique = "cot"
	TechniqueRAG      Technique = "rag"
)

// Techniques lists the prompt techniques accepted by the review endpoints.
func Techniques() []Technique {
	return []Technique{TechniqueZeroShot, TechniqueFewShot, TechniqueCoT}
}

// ReviewResult is the outcome of a single code review call.
// It is never mutated after construction.
type ReviewResult struct {
	ID            string    `json:"id"`
	Rating        Rating    `json:"rating"`
	Issues        []string  `json:"issues"`
	Suggestions   []string  `json:"suggestions"`
	Reasoning     string    `json:"reasoning"`
	ModelUsed     string    `json:"model_used"`
	Provider      string    `json:"provider"`
	Technique     Technique `json:"technique"`
	ExecutionTime float64   `json:"execution_time"`
	RawResponse   string    `json:"-"`
	CreatedAt     time.Time `json:"timestamp"`

	// RAG metadata, populated only for RAG-enhanced reviews.
	GuidelinesUsed      []string `json:"guidelines_used,omitempty"`
	GuidelineCount      int      `json:"guideline_count,omitempty"`
	GuidelineCategories []string `json:"guideline_categories,omitempty"`
}

// IsError reports whether the review failed and carries fallback content.
func (r *ReviewResult) IsError() bool { return r.Rating == RatingError }
