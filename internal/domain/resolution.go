package domain

// Resolution is the normalized output of exactly one resolver.
type Resolution struct {
	Agent       string  `json:"agent"`
	DraftAnswer string  `json:"draft_answer"`
	Confidence  float64 `json:"confidence_score"`
}

// Tier is the escalation policy outcome for a resolution.
type Tier string

const (
	TierAutoSend    Tier = "auto_send"
	TierHumanReview Tier = "human_review"
	TierHumanOnly   Tier = "human_only"
)

// NeedsHuman reports whether a person has to look at the case.
func (t Tier) NeedsHuman() bool {
	return t == TierHumanReview || t == TierHumanOnly
}
