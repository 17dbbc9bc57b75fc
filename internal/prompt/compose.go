package prompt

import (
	"strings"

	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/internal/textutil"
)

// Section headings used by the answer prompt.
const (
	SectionContext     = "CONTEXTO DEL USUARIO"
	SectionHistory     = "HISTORIAL RECIENTE"
	SectionInstruction = "ORDEN DEL USUARIO"
	SectionRules       = "REGLAS DE TITI"
)

const (
	// SelectionLimit bounds the selection embedded in a query prompt.
	SelectionLimit = 2600
	// HistoryEntryLimit bounds each rendered history entry.
	HistoryEntryLimit = 1500

	answerCue = "Respuesta:"
	queryCue  = "Query:"
)

// Composer builds query and answer prompts in one format.
type Composer struct {
	Format Format
}

// NewComposer returns a composer for format.
func NewComposer(format Format) *Composer {
	return &Composer{Format: format}
}

// Compose builds the grounded answer prompt. history is only included when
// the profile asks for it.
func (c *Composer) Compose(p mode.Profile, selection, instruction, history, evidence string) string {
	b := NewBuilder().
		Text(p.Persona).
		QuotedSection(SectionContext, selection, "")

	if p.IncludeHistory && strings.TrimSpace(history) != "" {
		b.Section(SectionHistory, history)
	}

	hint := ""
	if strings.TrimSpace(instruction) == "" {
		hint = p.EmptyInstruction
	}
	b.QuotedSection(SectionInstruction, instruction, hint).
		Section(p.EvidenceHeading, evidence).
		Numbered(SectionRules, p.Rules)

	return b.Build(c.Format, answerCue)
}

// QueryPrompt builds the prompt asking the generator for a search query.
// A non-empty selection is cut to SelectionLimit runes.
func (c *Composer) QueryPrompt(p mode.Profile, selection, instruction, history string) string {
	b := NewBuilder().Text(p.QueryTask)

	selection = strings.TrimSpace(selection)
	if selection == "" {
		b.Field("Texto base", instruction)
	} else {
		b.Field("Texto base", textutil.Truncate(selection, SelectionLimit)).
			Field("Intención", instruction)
	}
	if strings.TrimSpace(history) != "" {
		b.Field("Contexto previo", history)
	}
	b.Text("Solo la query, nada más.")

	return b.Build(c.Format, queryCue)
}

// FormatHistory renders the last maxTurns messages as role-tagged blocks in
// their original order.
func FormatHistory(messages []model.Message, maxTurns int) string {
	if maxTurns <= 0 || len(messages) == 0 {
		return ""
	}
	if len(messages) > maxTurns {
		messages = messages[len(messages)-maxTurns:]
	}

	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		tag := "USUARIO"
		if m.Role == model.RoleAssistant {
			tag = "TITI"
		}
		blocks = append(blocks, tag+": "+textutil.Ellipsize(strings.TrimSpace(m.Content), HistoryEntryLimit))
	}
	return strings.Join(blocks, "\n\n")
}
