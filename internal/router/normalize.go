package router

import (
	"errors"
	"strings"

	"tako/internal/domain"
	"tako/internal/lenient"
)

// Apologies are the canned answers a resolver falls back to. Every canned
// answer carries confidence 0, which always escalates to a human.
type Apologies struct {
	Empty        string // the call failed or returned nothing
	Unparseable  string // the output holds no JSON object
	MissingDraft string // JSON without a usable draft_answer
}

// DefaultApologies are used by resolvers without their own texts.
var DefaultApologies = Apologies{
	Empty:        "Não foi possível gerar uma resposta automática para este caso no momento.",
	Unparseable:  "A resposta automática gerada não pôde ser interpretada corretamente.",
	MissingDraft: "Não foi possível gerar uma resposta automática completa para esse caso.",
}

// TerminationApologies soften the canned texts for termination cases.
var TerminationApologies = Apologies{
	Empty: "Não foi possível gerar uma resposta automática para essa solicitação no momento. " +
		"A equipe da Tako irá analisar o caso.",
	Unparseable: "Recebemos sua solicitação sobre demissão ou rescisão. " +
		"Ela exige uma análise mais cuidadosa e será encaminhada para revisão.",
	MissingDraft: "Não foi possível gerar uma resposta automática completa para esse caso.",
}

var resolutionSchema = lenient.Schema{
	{Path: "draft_answer", Default: ""},
	{Path: "confidence_score", Default: 0.0},
}

// Normalize turns raw resolver output into a Resolution, substituting the
// canned texts for empty or malformed output. Confidence is clamped to
// [0,1] and forced to 0 whenever a canned text is used.
func Normalize(agent, raw string, apologies Apologies) domain.Resolution {
	canned := func(text string) domain.Resolution {
		return domain.Resolution{Agent: agent, DraftAnswer: text, Confidence: 0}
	}

	doc, err := lenient.Parse(raw, resolutionSchema)
	switch {
	case errors.Is(err, lenient.ErrEmpty):
		return canned(apologies.Empty)
	case err != nil:
		return canned(apologies.Unparseable)
	}

	draft := strings.TrimSpace(doc.String("draft_answer"))
	if draft == "" {
		return canned(apologies.MissingDraft)
	}
	return domain.Resolution{
		Agent:       agent,
		DraftAnswer: draft,
		Confidence:  lenient.Clamp01(doc.Float("confidence_score")),
	}
}
