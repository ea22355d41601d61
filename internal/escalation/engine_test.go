package escalation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"tako/internal/domain"
)

var allRiskCombos = func() []domain.Risks {
	var out []domain.Risks
	for i := 0; i < 8; i++ {
		out = append(out, domain.Risks{Legal: i&1 != 0, Financial: i&2 != 0, Emotional: i&4 != 0})
	}
	return out
}()

var tones = []domain.Tone{
	domain.ToneNeutral, domain.ToneFrustrated, domain.ToneIrritated,
	domain.ToneAnxious, domain.ToneConfused, "desconhecido",
}

func TestDecide_LowConfidenceAlwaysHumanOnly(t *testing.T) {
	for _, conf := range []float64{0, 0.1, 0.3, 0.59, 0.6} {
		for _, r := range allRiskCombos {
			for _, tone := range tones {
				assert.Equal(t, domain.TierHumanOnly, Decide(tone, r, conf),
					"conf=%v risks=%+v tone=%s", conf, r, tone)
			}
		}
	}
}

func TestDecide_BoundaryAtSixtyOne(t *testing.T) {
	// No flags at 0.61 falls through rules 1-5 to review.
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneNeutral, domain.Risks{}, 0.61))
	assert.Equal(t, 6, Evaluate(domain.ToneNeutral, domain.Risks{}, 0.61).Rule)
}

func TestDecide_Rule2SensitiveAndEmotional(t *testing.T) {
	legalEmotional := domain.Risks{Legal: true, Emotional: true}
	assert.Equal(t, domain.TierHumanOnly, Decide(domain.ToneAnxious, legalEmotional, 0.79))
	assert.Equal(t, 2, Evaluate(domain.ToneAnxious, legalEmotional, 0.79).Rule)

	// At 0.8 rule 2 no longer matches, and rule 4 is blocked by legal.
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneAnxious, legalEmotional, 0.8))

	financialEmotional := domain.Risks{Financial: true, Emotional: true}
	assert.Equal(t, domain.TierHumanOnly, Decide(domain.ToneNeutral, financialEmotional, 0.7))
	assert.Equal(t, domain.TierAutoSend, Decide(domain.ToneNeutral, financialEmotional, 0.8))

	// Emotional alone does not trigger rule 2.
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneNeutral, domain.Risks{Emotional: true}, 0.7))
}

func TestDecide_HighConfidenceAutoSend(t *testing.T) {
	for _, r := range allRiskCombos {
		assert.Equal(t, domain.TierAutoSend, Decide(domain.ToneNeutral, r, 0.85), "risks=%+v", r)
		assert.Equal(t, domain.TierAutoSend, Decide(domain.ToneNeutral, r, 1), "risks=%+v", r)
	}
	assert.Equal(t, 3, Evaluate(domain.ToneNeutral, domain.Risks{Legal: true}, 0.85).Rule)
}

func TestDecide_Rule4NotLegal(t *testing.T) {
	assert.Equal(t, domain.TierAutoSend, Decide(domain.ToneNeutral, domain.Risks{Financial: true}, 0.75))
	assert.Equal(t, 4, Evaluate(domain.ToneNeutral, domain.Risks{Financial: true}, 0.75).Rule)
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneNeutral, domain.Risks{Legal: true}, 0.84))
}

func TestDecide_Rule5NoFlags(t *testing.T) {
	assert.Equal(t, domain.TierAutoSend, Decide(domain.ToneNeutral, domain.Risks{}, 0.65))
	assert.Equal(t, 5, Evaluate(domain.ToneNeutral, domain.Risks{}, 0.65).Rule)
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneNeutral, domain.Risks{Financial: true}, 0.65))
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneNeutral, domain.Risks{}, 0.64))
}

func TestDecide_ToneIsIgnored(t *testing.T) {
	for _, conf := range []float64{0.6, 0.62, 0.66, 0.76, 0.81, 0.9} {
		for _, r := range allRiskCombos {
			want := Decide(domain.ToneNeutral, r, conf)
			for _, tone := range tones {
				assert.Equal(t, want, Decide(tone, r, conf))
			}
		}
	}
}

func TestDecide_NaNIsReviewed(t *testing.T) {
	// NaN fails every comparison; callers clamp first, but the engine stays total.
	assert.Equal(t, domain.TierHumanReview, Decide(domain.ToneNeutral, domain.Risks{}, math.NaN()))
}
