package post

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)(```|~~~).*?(```|~~~)")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	blockquoteRe = regexp.MustCompile(`(?m)^>\s?`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	emphasisRe   = regexp.MustCompile(`[*_~]{1,3}([^*_~]+)[*_~]{1,3}`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
)

// StripMarkdown reduces markdown to approximate plain text. It is used for
// summaries and word counts only; the render stage produces the real HTML.
// Paragraph breaks survive so firstParagraph can find boundaries.
func StripMarkdown(src string) string {
	s := fencedCodeRe.ReplaceAllString(src, "")
	s = imageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")
	s = blockquoteRe.ReplaceAllString(s, "")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "$1")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// firstParagraph returns the first blank-line separated chunk of plain text,
// with internal newlines collapsed to spaces.
func firstParagraph(plain string) string {
	for _, chunk := range strings.Split(plain, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		return strings.Join(strings.Fields(chunk), " ")
	}
	return ""
}

// truncateWords caps s at max runes, cutting on a word boundary and
// appending an ellipsis when anything was dropped.
func truncateWords(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max])
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n.,;:") + "…"
}

func countWords(plain string) int {
	return len(strings.Fields(plain))
}

// Slugify normalizes arbitrary text into a URL slug: lowercase ASCII
// letters and digits with single hyphens between runs.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
