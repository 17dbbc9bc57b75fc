// Package prompt assembles generator prompts from named sections.
//
// Untrusted text (selection, instruction, history, evidence) goes through
// Builder, which strips turn delimiters and neutralizes any section heading
// the prompt itself uses, so user text cannot open a new section.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Format selects how the assembled body is wrapped for the generator.
type Format string

const (
	// FormatGemma wraps the prompt in Gemma chat-turn markers.
	FormatGemma Format = "gemma"
	// FormatPlain emits the body only, for chat APIs that add their own turns.
	FormatPlain Format = "plain"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatGemma:
		return FormatGemma, nil
	case FormatPlain:
		return FormatPlain, nil
	default:
		return "", fmt.Errorf("unknown prompt format %q", s)
	}
}

const (
	turnUser  = "<start_of_turn>user\n"
	turnEnd   = "<end_of_turn>"
	turnModel = "<start_of_turn>model\n"
)

// controlTokens never survive sanitization.
var controlTokens = []string{"<start_of_turn>", "<end_of_turn>", "<bos>", "<eos>"}

type blockKind int

const (
	blockText blockKind = iota
	blockSection
	blockQuoted
	blockNumbered
)

type block struct {
	kind  blockKind
	name  string
	body  string
	hint  string
	items []string
}

// Builder collects prompt blocks in order.
type Builder struct {
	blocks []block
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Text adds trusted text verbatim.
func (b *Builder) Text(text string) *Builder {
	b.blocks = append(b.blocks, block{kind: blockText, body: text})
	return b
}

// Section adds a "[NAME]" heading followed by untrusted body text.
func (b *Builder) Section(name, body string) *Builder {
	b.blocks = append(b.blocks, block{kind: blockSection, name: name, body: body})
	return b
}

// QuotedSection adds a heading followed by the untrusted body in double
// quotes and an optional trusted hint line.
func (b *Builder) QuotedSection(name, body, hint string) *Builder {
	b.blocks = append(b.blocks, block{kind: blockQuoted, name: name, body: body, hint: hint})
	return b
}

// Field adds a `label: "value"` line with an untrusted value.
func (b *Builder) Field(label, value string) *Builder {
	b.blocks = append(b.blocks, block{kind: blockQuoted, body: value, hint: label})
	return b
}

// Numbered adds a heading followed by a trusted numbered list.
func (b *Builder) Numbered(name string, items []string) *Builder {
	b.blocks = append(b.blocks, block{kind: blockNumbered, name: name, items: items})
	return b
}

// Build renders the prompt. cue is the trailing answer label ("Respuesta:").
func (b *Builder) Build(format Format, cue string) string {
	clean := newSanitizer(b.headings())

	var parts []string
	var fields []string
	flush := func() {
		if len(fields) > 0 {
			parts = append(parts, strings.Join(fields, "\n"))
			fields = nil
		}
	}

	for _, blk := range b.blocks {
		if blk.kind == blockQuoted && blk.name == "" {
			fields = append(fields, blk.hint+": \""+clean(blk.body)+"\"")
			continue
		}
		flush()

		switch blk.kind {
		case blockText:
			parts = append(parts, blk.body)
		case blockSection:
			parts = append(parts, heading(blk.name)+"\n"+clean(blk.body))
		case blockQuoted:
			s := heading(blk.name) + "\n\"" + clean(blk.body) + "\""
			if blk.hint != "" {
				s += "\n" + blk.hint
			}
			parts = append(parts, s)
		case blockNumbered:
			lines := make([]string, 0, len(blk.items)+1)
			lines = append(lines, heading(blk.name))
			for i, item := range blk.items {
				lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
			}
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}
	flush()

	body := strings.Join(parts, "\n\n")
	if cue != "" {
		body += "\n\n" + cue
	}

	if format == FormatPlain {
		return body
	}
	return turnUser + body + turnEnd + "\n" + turnModel
}

func (b *Builder) headings() []string {
	var names []string
	for _, blk := range b.blocks {
		if blk.name != "" {
			names = append(names, blk.name)
		}
	}
	return names
}

func heading(name string) string {
	return "[" + name + "]"
}

// Sanitize removes turn delimiters and rewrites "[NAME]" to "(NAME)" for
// each of the given headings, case-insensitively.
func Sanitize(s string, headings ...string) string {
	return newSanitizer(headings)(s)
}

func newSanitizer(headings []string) func(string) string {
	var re *regexp.Regexp
	if len(headings) > 0 {
		quoted := make([]string, len(headings))
		for i, h := range headings {
			quoted[i] = regexp.QuoteMeta(h)
		}
		re = regexp.MustCompile(`(?i)\[\s*(` + strings.Join(quoted, "|") + `)\s*\]`)
	}

	return func(s string) string {
		// Removing one token can splice another together, so repeat.
		for changed := true; changed; {
			changed = false
			for _, tok := range controlTokens {
				if strings.Contains(s, tok) {
					s = strings.ReplaceAll(s, tok, "")
					changed = true
				}
			}
		}
		if re != nil {
			s = re.ReplaceAllString(s, "($1)")
		}
		return s
	}
}
