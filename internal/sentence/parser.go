// Package sentence splits text, optionally markdown, into sentences that
// can be synthesized one at a time.
package sentence

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Sentence is one unit of speech.
type Sentence struct {
	Index int
	Text  string
}

var (
	blankLineRegex = regexp.MustCompile(`\n[ \t]*\n`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// Parser splits text into sentences.
type Parser struct {
	markdown bool

	// Words that end in a period without ending the sentence
	abbreviations map[string]bool
}

// NewParser creates a parser. With markdown set, formatting is stripped,
// code blocks are skipped and headings and list items become their own
// sentences.
func NewParser(markdown bool) *Parser {
	return &Parser{
		markdown:      markdown,
		abbreviations: makeAbbreviationMap(),
	}
}

// Split returns the speakable sentences of text in order. Blank lines always
// end a sentence.
func (p *Parser) Split(text string) []Sentence {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []string
	if p.markdown {
		blocks = markdownBlocks(text)
	} else {
		blocks = blankLineRegex.Split(text, -1)
	}

	var sentences []Sentence
	for _, block := range blocks {
		block = strings.TrimSpace(spaceRegex.ReplaceAllString(block, " "))
		for _, s := range p.splitBlock(block) {
			if !speakable(s) {
				continue
			}
			sentences = append(sentences, Sentence{Index: len(sentences), Text: s})
		}
	}
	return sentences
}

// Text returns the sentences of text one per line.
func (p *Parser) Text(text string) string {
	sentences := p.Split(text)
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.Text
	}
	return strings.Join(lines, "\n")
}

// EstimateDuration estimates how long text takes to speak at wordsPerMinute.
func EstimateDuration(text string, wordsPerMinute int) time.Duration {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 175
	}
	words := len(strings.Fields(text))
	return time.Duration(float64(words) * 60 / float64(wordsPerMinute) * float64(time.Second))
}

func (p *Parser) splitBlock(block string) []string {
	runes := []rune(block)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		run := string(runes[i:end])
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}

		if p.endsSentence(runes, i, end, run) {
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				out = append(out, s)
			}
			start = end
		}
		i = end - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// endsSentence reports whether the punctuation run starting at pos, with any
// closing quotes extending to end, terminates a sentence.
func (p *Parser) endsSentence(runes []rune, pos, end int, run string) bool {
	if end >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[end]) {
		return false // 3.14, example.com
	}
	if strings.ContainsAny(run, "!?") {
		return true
	}
	if len(run) > 1 {
		return false // ellipsis
	}

	if p.isAbbreviation(runes, pos) {
		return false
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	return next >= len(runes) || !unicode.IsLower(runes[next])
}

// isAbbreviation checks the word ending at the period at pos.
func (p *Parser) isAbbreviation(runes []rune, pos int) bool {
	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	word := strings.TrimLeft(string(runes[start:pos]), "\"'([")
	if word == "" {
		return false
	}

	// Initials: "J. Smith"
	if r := []rune(word); len(r) == 1 && unicode.IsUpper(r[0]) {
		return true
	}

	word = strings.ToLower(word)
	if p.abbreviations[word] {
		return true
	}

	// Dotted abbreviations: e.g, p.m, Ph.D
	if !strings.Contains(word, ".") {
		return false
	}
	for _, part := range strings.Split(word, ".") {
		if part == "" || len(part) > 2 || strings.IndexFunc(part, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			return false
		}
	}
	return true
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }
func isCloser(r rune) bool   { return r == '"' || r == '\'' || r == ')' || r == ']' }

func speakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// markdownBlocks strips markdown to plain text blocks. Paragraphs, headings
// and list items each become one block. Code and raw HTML are dropped.
func markdownBlocks(md string) []string {
	src := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []string
	var buf strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.AutoLink:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				buf.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					buf.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(n.Value)
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				if s := strings.TrimSpace(buf.String()); s != "" {
					blocks = append(blocks, s)
				}
				buf.Reset()
			}
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"llc", "inc", "ltd", "co", "corp",
		"etc", "vs", "cf", "approx",
		"jan", "feb", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri",
		"rd", "ave", "blvd", "ln", "ct",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "mins", "secs",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, a := range abbrevs {
		m[a] = true
	}
	return m
}
