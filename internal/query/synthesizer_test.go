package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/prompt"
	"github.com/titi-ai/titi/pkg/logger"
)

type stubGenerator struct {
	reply     string
	err       error
	prompts   []string
	maxTokens int
}

func (g *stubGenerator) Generate(ctx context.Context, p string, maxTokens int) (string, error) {
	g.prompts = append(g.prompts, p)
	g.maxTokens = maxTokens
	return g.reply, g.err
}

func newSynth(gen *stubGenerator) *Synthesizer {
	return NewSynthesizer(gen, prompt.NewComposer(prompt.FormatPlain), 50, logger.NewNop())
}

func TestSynthesizeUsesGenerator(t *testing.T) {
	gen := &stubGenerator{reply: "Query: \"photosynthesis light reactions\"\nexplanation"}
	q := newSynth(gen).Synthesize(context.Background(), "", "Explica la fotosíntesis", "", mode.AcademicProfile(12))

	assert.Equal(t, "photosynthesis light reactions", q.Text)
	assert.False(t, q.Fallback)
	assert.NoError(t, q.Err)
	assert.Equal(t, 50, gen.maxTokens)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Google Scholar")
}

func TestSynthesizeFallbacks(t *testing.T) {
	boom := errors.New("model unavailable")
	academic := mode.AcademicProfile(12)
	legal := mode.LegalProfile(4)

	tests := []struct {
		name        string
		selection   string
		instruction string
		profile     mode.Profile
		reply       string
		err         error
		want        string
		wantErr     error
	}{
		{"no selection uses instruction", "", "Explica la fotosíntesis", academic, "", boom, "Explica la fotosíntesis", boom},
		{"nothing at all uses default", "", "", academic, "", boom, "science research paper", boom},
		{"selection uses default", "La clorofila...", "resume", academic, "", boom, "science research paper", boom},
		{"legal default", "texto", "", legal, "", boom, "jurisprudencia Corte Constitucional Colombia", boom},
		{"blank generation", "", "tutela en salud", legal, " \n ", nil, "tutela en salud", ErrEmptyQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{reply: tt.reply, err: tt.err}
			q := newSynth(gen).Synthesize(context.Background(), tt.selection, tt.instruction, "", tt.profile)

			assert.Equal(t, tt.want, q.Text)
			assert.True(t, q.Fallback)
			assert.ErrorIs(t, q.Err, tt.wantErr)
		})
	}
}

func TestSynthesizePassesHistoryAndSelection(t *testing.T) {
	gen := &stubGenerator{reply: "q"}
	selection := strings.Repeat("s", prompt.SelectionLimit+100)
	newSynth(gen).Synthesize(context.Background(), selection, "mejora", "USUARIO: antes", mode.AcademicProfile(12))

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `Contexto previo: "USUARIO: antes"`)
	assert.NotContains(t, gen.prompts[0], strings.Repeat("s", prompt.SelectionLimit+1))
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"derecho a la salud tutela", "derecho a la salud tutela"},
		{"\n\n  QUERY:   'machine   learning'  \nmore", "machine learning"},
		{"“deep learning”", "deep learning"},
		{"   ", ""},
		{`""`, ""},
		{strings.Repeat("a", 250), strings.Repeat("a", MaxQueryLength)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), tt.in)
	}
}
