// Package escalation decides whether a resolved answer may go out on its own.
package escalation

import "tako/internal/domain"

// Decision is a tier plus the 1-based rule that produced it.
type Decision struct {
	Tier domain.Tier
	Rule int
}

// Evaluate applies the escalation rules in order; the first match wins.
// Tone is accepted for interface stability but no rule reads it.
//
//  1. confidence <= 0.6                                    -> human_only
//  2. (legal or financial) and emotional and conf < 0.8    -> human_only
//  3. confidence >= 0.85                                   -> auto_send
//  4. confidence >= 0.75 and not legal                     -> auto_send
//  5. confidence >= 0.65 and no risk flag                  -> auto_send
//  6. otherwise                                            -> human_review
func Evaluate(_ domain.Tone, risks domain.Risks, confidence float64) Decision {
	switch {
	case confidence <= 0.6:
		return Decision{domain.TierHumanOnly, 1}
	case (risks.Legal || risks.Financial) && risks.Emotional && confidence < 0.8:
		return Decision{domain.TierHumanOnly, 2}
	case confidence >= 0.85:
		return Decision{domain.TierAutoSend, 3}
	case confidence >= 0.75 && !risks.Legal:
		return Decision{domain.TierAutoSend, 4}
	case confidence >= 0.65 && !risks.Any():
		return Decision{domain.TierAutoSend, 5}
	default:
		return Decision{domain.TierHumanReview, 6}
	}
}

// Decide returns only the tier of Evaluate.
func Decide(tone domain.Tone, risks domain.Risks, confidence float64) domain.Tier {
	return Evaluate(tone, risks, confidence).Tier
}
