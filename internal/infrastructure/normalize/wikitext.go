// Package normalize strips MediaWiki markup and boilerplate from page text.
package normalize

import (
	"regexp"
	"strings"
)

var (
	behaviorSwitchRe = regexp.MustCompile(`__[a-zа-яё]+__`)
	redirectKeyRe    = regexp.MustCompile(`(?m)^\s*#\s*(?:redirect|перенаправление)\s*`)
	mediaLinkRe      = regexp.MustCompile(`\[\[\s*(?:file|image|файл|изображение)\s*:[^\[\]]*\]\]`)
	mediaDirectiveRe = regexp.MustCompile(`(?m)(?:thumb|thumbnail|мини|миниатюра|frame|framed)\|[^\n]*$`)
	refBlockRe       = regexp.MustCompile(`(?s)<ref[^>]*?>.*?</ref\s*>`)
	refSelfClosedRe  = regexp.MustCompile(`<ref[^>]*/>`)
	anyTagRe         = regexp.MustCompile(`</?[a-zа-яё!][^<>]*>`)
	wikiLinkRe       = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
	externalLinkRe   = regexp.MustCompile(`\[(?:https?:|//)[^\[\]]*\]`)
	inlineSpaceRe    = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

var quoteReplacer = strings.NewReplacer(
	"«", `"`, "»", `"`, "„", `"`, "“", `"`, "”", `"`, "‟", `"`, "″", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
)

var headerPrefixes = []string{
	"this article is about",
	"эта статья о",
	"see also",
	"см. также",
}

// passLimit bounds the fixed-point loop; every pass after the first either
// shrinks the text or leaves it unchanged.
const passLimit = 32

type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(raw string) string {
	return Normalize(raw)
}

// Normalize applies the cleaning rules until the text stops changing, so
// normalizing already clean text is a no-op.
func Normalize(raw string) string {
	current := raw
	for i := 0; i < passLimit; i++ {
		next := normalizeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
	return current
}

func normalizeOnce(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))

	text = behaviorSwitchRe.ReplaceAllString(text, "")
	text = redirectKeyRe.ReplaceAllString(text, "")

	text = StripTemplates(text)
	text = mediaLinkRe.ReplaceAllString(text, "")
	text = mediaDirectiveRe.ReplaceAllString(text, "")

	text = refBlockRe.ReplaceAllString(text, "")
	text = refSelfClosedRe.ReplaceAllString(text, "")
	text = anyTagRe.ReplaceAllString(text, "")

	text = externalLinkRe.ReplaceAllString(text, "")
	text = wikiLinkRe.ReplaceAllStringFunc(text, resolveLink)

	text = quoteReplacer.Replace(text)

	text = canonicalWhitespace(text)
	return dropHeaderLines(text)
}

// StripTemplates removes balanced {{ ... }} regions, nested ones included.
// An unterminated region is dropped up to the end of the text.
func StripTemplates(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	depth := 0
	for i := 0; i < len(text); i++ {
		if i+1 < len(text) && text[i] == '{' && text[i+1] == '{' {
			depth++
			i++
			continue
		}
		if depth > 0 && i+1 < len(text) && text[i] == '}' && text[i+1] == '}' {
			depth--
			i++
			continue
		}
		if depth == 0 {
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

func resolveLink(match string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(match, "[["), "]]")
	parts := strings.Split(inner, "|")
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(parts[0])
}

func canonicalWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func dropHeaderLines(text string) string {
	for {
		first, rest, _ := strings.Cut(text, "\n")
		if !hasHeaderPrefix(first) {
			return text
		}
		text = strings.TrimSpace(rest)
	}
}

func hasHeaderPrefix(line string) bool {
	line = strings.TrimSpace(line)
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
