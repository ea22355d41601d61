package lenient

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolutionSchema = Schema{
	{Path: "draft_answer", Default: ""},
	{Path: "confidence_score", Default: 0.0},
}

func TestParse_PlainObject(t *testing.T) {
	doc, err := Parse(`{"draft_answer":"ok","confidence_score":0.9}`, resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.String("draft_answer"))
	assert.Equal(t, 0.9, doc.Float("confidence_score"))
	assert.Empty(t, doc.Missing())
}

func TestParse_CodeFenced(t *testing.T) {
	raw := "```json\n{\"draft_answer\":\"cercado\",\"confidence_score\":0.7}\n```"
	doc, err := Parse(raw, resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, "cercado", doc.String("draft_answer"))
}

func TestParse_ObjectInsideProse(t *testing.T) {
	raw := "Segue a resposta:\n{\"draft_answer\":\"texto com } chave\",\"confidence_score\":0.5}\nAtenciosamente."
	doc, err := Parse(raw, resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, "texto com } chave", doc.String("draft_answer"))
	assert.Equal(t, 0.5, doc.Float("confidence_score"))
}

func TestParse_RolePrefix(t *testing.T) {
	doc, err := Parse("assistant\n{\"draft_answer\":\"oi\"}", resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, "oi", doc.String("draft_answer"))
}

func TestParse_InvalidEscapes(t *testing.T) {
	doc, err := Parse(`{"draft_answer":"100\% garantido","confidence_score":0.8}`, resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, "100% garantido", doc.String("draft_answer"))
}

func TestParse_TrailingCommaFallsBackToJSON5(t *testing.T) {
	doc, err := Parse("{\"draft_answer\": \"ok\", \"confidence_score\": 0.4,}", resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.String("draft_answer"))
	assert.Equal(t, 0.4, doc.Float("confidence_score"))
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   \n", resolutionSchema)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestParse_NotJSON(t *testing.T) {
	_, err := Parse("Recebemos sua mensagem e vamos analisar.", resolutionSchema)
	assert.True(t, errors.Is(err, ErrNoJSON))
}

func TestParse_ArrayIsNotAnObject(t *testing.T) {
	_, err := Parse(`["a","b"]`, resolutionSchema)
	assert.Error(t, err)
}

func TestParse_DefaultsMissingFields(t *testing.T) {
	doc, err := Parse(`{"draft_answer":"só o texto"}`, resolutionSchema)
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc.Float("confidence_score"))
	assert.True(t, doc.Defaulted("confidence_score"))
	assert.False(t, doc.Defaulted("draft_answer"))
}

func TestParse_NullIsMissing(t *testing.T) {
	doc, err := Parse(`{"draft_answer":null,"confidence_score":null}`, resolutionSchema)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"draft_answer", "confidence_score"}, doc.Missing()); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CoercesQuotedScalars(t *testing.T) {
	schema := Schema{
		{Path: "confidence_score", Default: 0.0},
		{Path: "riscos.legal", Default: false},
	}
	doc, err := Parse(`{"confidence_score":"0,85","riscos":{"legal":"true"}}`, schema)
	require.NoError(t, err)
	assert.Equal(t, 0.85, doc.Float("confidence_score"))
	assert.True(t, doc.Bool("riscos.legal"))
}

func TestParse_WrongTypeDefaulted(t *testing.T) {
	schema := Schema{
		{Path: "tom", Default: "neutro"},
		{Path: "riscos.emocional", Default: false},
	}
	doc, err := Parse(`{"tom":["frustrado"],"riscos":"nenhum"}`, schema)
	require.NoError(t, err)
	assert.Equal(t, "neutro", doc.String("tom"))
	assert.False(t, doc.Bool("riscos.emocional"))
	assert.Len(t, doc.Missing(), 2)
}

func TestStripFences_LeavesPlainText(t *testing.T) {
	assert.Equal(t, "olá", StripFences("  olá \n"))
	assert.Equal(t, "olá", StripFences("```\nolá\n```"))
}

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.61, 0.61},
		{1, 1},
		{7, 1},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Clamp01(tc.in), "Clamp01(%v)", tc.in)
	}
}
