// Package analysis turns the classifier's raw output into a domain.Analysis.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"tako/internal/domain"
	"tako/internal/lenient"
)

// ErrMalformed is returned when the classifier output holds no JSON object.
// Unlike resolver output this is not defaulted: every later decision depends
// on the classification.
var ErrMalformed = errors.New("malformed message analysis")

// PromptName is the template used to classify inbound messages.
const PromptName = "message_analysis"

var schema = lenient.Schema{
	{Path: "intencao", Default: ""},
	{Path: "tom", Default: string(domain.ToneNeutral)},
	{Path: "riscos.legal", Default: false},
	{Path: "riscos.financeiro", Default: false},
	{Path: "riscos.emocional", Default: false},
	{Path: "mensagem_intermediaria", Default: ""},
}

// Parse decodes raw classifier output. Absent fields default to: fallback
// intent, tone "neutro", all risk flags false, no intermediate message.
func Parse(raw string) (domain.Analysis, error) {
	doc, err := lenient.Parse(raw, schema)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	rawIntent := strings.TrimSpace(doc.String("intencao"))
	tone := domain.Tone(strings.ToLower(strings.TrimSpace(doc.String("tom"))))
	if tone == "" {
		tone = domain.ToneNeutral
	}

	return domain.Analysis{
		Intent:    domain.ParseIntent(strings.ToLower(rawIntent)),
		RawIntent: rawIntent,
		Tone:      tone,
		Risks: domain.Risks{
			Legal:     doc.Bool("riscos.legal"),
			Financial: doc.Bool("riscos.financeiro"),
			Emotional: doc.Bool("riscos.emocional"),
		},
		Intermediate: strings.TrimSpace(doc.String("mensagem_intermediaria")),
	}, nil
}
