package ideas

// Idea is one generated experiment suggestion. IDs are assigned in response
// order after parsing; they are presentation artifacts only.
type Idea struct {
	ID             int      `json:"id"`
	Idea           string   `json:"idea"`
	ExpectedResult string   `json:"expectedResult"`
	Sources        []string `json:"sources,omitempty"`
}

// Refinement is the replacement content for a single refined idea.
type Refinement struct {
	Idea           string   `json:"idea"`
	ExpectedResult string   `json:"expectedResult"`
	Sources        []string `json:"sources,omitempty"`
}

// Step is one entry of a four-step implementation plan.
type Step struct {
	StepNumber  int    `json:"stepNumber"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
