// Package composer turns a resolver's draft into the message sent to the user.
package composer

import (
	"context"
	"log/slog"
	"strings"

	"tako/internal/domain"
	"tako/internal/lenient"
)

func toneDirective(tone domain.Tone) string {
	switch tone {
	case domain.ToneNeutral:
		return "O usuário escreveu de forma neutra. Mantenha um tom cordial e objetivo."
	case domain.ToneFrustrated:
		return "O usuário está frustrado. Reconheça o incômodo logo no início, " +
			"sem exageros, e vá direto ao que está sendo feito."
	case domain.ToneIrritated:
		return "O usuário está irritado. Seja calmo e respeitoso, não discuta " +
			"e evite qualquer frase que soe defensiva."
	case domain.ToneAnxious:
		return "O usuário está ansioso. Transmita segurança, explique o próximo " +
			"passo de forma clara e evite termos alarmantes."
	case domain.ToneConfused:
		return "O usuário está confuso. Use frases curtas e simples e explique " +
			"termos técnicos em palavras do dia a dia."
	}
	return "Mantenha um tom cordial, empático e objetivo."
}

// tierConstraint limits what the rewrite may promise. Unknown tiers get the
// review wording.
func tierConstraint(tier domain.Tier) string {
	switch tier {
	case domain.TierAutoSend:
		return "A resposta pode ser enviada diretamente. Você pode afirmar " +
			"o conteúdo do rascunho com segurança, sem prometer nada além dele."
	case domain.TierHumanOnly:
		return "O caso será tratado exclusivamente por uma pessoa da equipe. " +
			"Não dê orientação conclusiva; informe apenas que a solicitação foi recebida " +
			"e que alguém da equipe vai retornar."
	}
	return "A resposta será revisada pela equipe. Deixe claro que as " +
		"informações serão confirmadas por uma pessoa da equipe e não apresente " +
		"nada como definitivo."
}

const hardConstraints = `Regras obrigatórias:
- Não cite leis, artigos, sites ou qualquer fonte externa.
- Não acrescente fatos, valores, datas ou prazos que não estejam no rascunho.
- Não contradiga o rascunho.
- Escreva em português do Brasil, em registro informal adequado ao WhatsApp.
- Não inclua saudação inicial, assinatura ou despedida.
- Responda somente com o texto final da mensagem, sem aspas e sem comentários.`

// Composer rewrites drafts whose tone or tier calls for it.
type Composer struct {
	gen    domain.Generator
	logger *slog.Logger
}

// New returns a Composer that rewrites with gen.
func New(gen domain.Generator, logger *slog.Logger) *Composer {
	return &Composer{gen: gen, logger: logger}
}

// NeedsRewrite reports whether Compose would call the generator.
func NeedsRewrite(tier domain.Tier, tone domain.Tone) bool {
	return tone != domain.ToneNeutral || tier != domain.TierAutoSend
}

// Compose returns the final message. A neutral auto-send draft is returned
// unchanged without a generator call. A failed or empty rewrite also
// yields the draft.
func (c *Composer) Compose(ctx context.Context, userMessage, draft string, tier domain.Tier, tone domain.Tone) string {
	if !NeedsRewrite(tier, tone) {
		return draft
	}

	out, err := c.gen.Generate(ctx, Instruction(userMessage, draft, tier, tone))
	if err != nil {
		c.logger.Warn("rewrite failed, sending draft", "tier", string(tier), "tone", string(tone), "error", err)
		return draft
	}
	out = strings.TrimSpace(lenient.StripFences(strings.TrimSpace(out)))
	if out == "" {
		c.logger.Warn("rewrite returned empty output, sending draft", "tier", string(tier), "tone", string(tone))
		return draft
	}
	return out
}

// Instruction builds the rewrite prompt for one draft.
func Instruction(userMessage, draft string, tier domain.Tier, tone domain.Tone) string {
	var sb strings.Builder
	sb.WriteString("Reescreva o rascunho abaixo como a mensagem final da Tako para o usuário.\n\n")
	sb.WriteString("Tom: ")
	sb.WriteString(toneDirective(tone))
	sb.WriteString("\n\nEscalonamento: ")
	sb.WriteString(tierConstraint(tier))
	sb.WriteString("\n\n")
	sb.WriteString(hardConstraints)
	sb.WriteString("\n\nMensagem do usuário:\n\"\"\"\n")
	sb.WriteString(userMessage)
	sb.WriteString("\n\"\"\"\n\nRascunho:\n\"\"\"\n")
	sb.WriteString(draft)
	sb.WriteString("\n\"\"\"\n")
	return sb.String()
}
