package domain

// Intent is the classified purpose of an inbound message. The zero value is
// IntentFallback so an unset intent always routes somewhere.
type Intent int

const (
	IntentFallback Intent = iota
	IntentLatePayment
	IntentPayrollError
	IntentTermination
	IntentLegalCompliance
	IntentGeneralQuestion

	// NumIntents sizes lookup tables indexed by Intent.
	NumIntents
)

var intentNames = [NumIntents]string{
	IntentFallback:        "fallback",
	IntentLatePayment:     "pagamento_atrasado",
	IntentPayrollError:    "erro_folha",
	IntentTermination:     "demissao_rescisao",
	IntentLegalCompliance: "conformidade_legal",
	IntentGeneralQuestion: "duvida_geral",
}

// String returns the wire name used by the classifier.
func (i Intent) String() string {
	if i < 0 || i >= NumIntents {
		return intentNames[IntentFallback]
	}
	return intentNames[i]
}

// ParseIntent maps a classifier value onto an Intent. Unknown, empty and
// explicit "fallback" values all map to IntentFallback.
func ParseIntent(s string) Intent {
	for i, name := range intentNames {
		if name == s {
			return Intent(i)
		}
	}
	return IntentFallback
}

// Intents lists every intent, fallback included.
func Intents() []Intent {
	out := make([]Intent, 0, NumIntents)
	for i := Intent(0); i < NumIntents; i++ {
		out = append(out, i)
	}
	return out
}

// Tone is the classified emotional register of a message.
type Tone string

const (
	ToneNeutral    Tone = "neutro"
	ToneFrustrated Tone = "frustrado"
	ToneIrritated  Tone = "irritado"
	ToneAnxious    Tone = "ansioso"
	ToneConfused   Tone = "confuso"
)

// Risks holds the three independent sensitivity flags.
type Risks struct {
	Legal     bool `json:"legal"`
	Financial bool `json:"financeiro"`
	Emotional bool `json:"emocional"`
}

// Any reports whether at least one flag is set.
func (r Risks) Any() bool {
	return r.Legal || r.Financial || r.Emotional
}

// Analysis is the defaulted classifier output for one message.
type Analysis struct {
	Intent    Intent
	RawIntent string // classifier value as received, for logs
	Tone      Tone
	Risks     Risks

	// Intermediate is empty when no intermediate message should be sent.
	Intermediate string
}
