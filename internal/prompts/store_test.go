package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded_HasEveryPipelineTemplate(t *testing.T) {
	s := Embedded()
	for _, name := range []string{
		"message_analysis",
		"pagamento_atrasado_agent",
		"erro_folha_agent",
		"demissao_rescisao_agent",
		"conformidade_legal_agent",
		"duvida_geral_agent",
		"fallback_agent",
	} {
		tmpl, err := s.Load(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, tmpl, name)
	}
}

func TestEmbedded_MissingTemplate(t *testing.T) {
	_, err := Embedded().Load("nao_existe")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDir_RejectsPathTraversal(t *testing.T) {
	_, err := Dir(t.TempDir()).Load("../etc/passwd")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDir_ReadsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "erro_folha_agent.txt"), []byte("custom"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vazio.txt"), []byte("  \n"), 0o644))

	s := Dir(dir)
	tmpl, err := s.Load("erro_folha_agent")
	require.NoError(t, err)
	assert.Equal(t, "custom", tmpl)

	_, err = s.Load("vazio")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.yaml")
	content := "prompts:\n  message_analysis: |\n    classifique\n  fallback_agent: \"fora do escopo\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadPack(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"message_analysis", "fallback_agent"}, p.Names())

	tmpl, err := p.Load("message_analysis")
	require.NoError(t, err)
	assert.Equal(t, "classifique\n", tmpl)

	_, err = p.Load("erro_folha_agent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadPack_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompts: [unterminated"), 0o644))
	_, err := LoadPack(path)
	assert.Error(t, err)
}

type failingLoader struct{ err error }

func (f failingLoader) Load(string) (string, error) { return "", f.err }

func TestLayered_Order(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fallback_agent.txt"), []byte("do diretório"), 0o644))

	l := Layered{Dir(dir), Embedded()}
	tmpl, err := l.Load("fallback_agent")
	require.NoError(t, err)
	assert.Equal(t, "do diretório", tmpl)

	tmpl, err = l.Load("message_analysis")
	require.NoError(t, err)
	assert.Contains(t, tmpl, "intencao")

	_, err = l.Load("nao_existe")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLayered_StopsOnHardError(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := Layered{failingLoader{boom}, Embedded()}.Load("message_analysis")
	assert.ErrorIs(t, err, boom)
}

func TestRender(t *testing.T) {
	got := Render("Base\n", "meu salário não caiu")
	assert.Equal(t, "Base\n\nUser input:\n\"\"\"\nmeu salário não caiu\n\"\"\"\n", got)
}
