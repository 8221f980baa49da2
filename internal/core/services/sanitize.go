package services

import (
	"regexp"
	"strings"
)

var headingMarker = regexp.MustCompile(`#+[ \t]*`)

// Sanitize strips markdown emphasis and heading markers from generated text:
// "**" is removed, runs of '#' (with trailing blanks) collapse to a single
// space, any remaining '*' is removed and the result is trimmed.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = headingMarker.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}

// StreamSanitizer applies the Sanitize rules fragment by fragment so that
// markers split across fragments are still removed. Trailing whitespace
// cannot be known mid-stream and is left for the final Sanitize pass.
type StreamSanitizer struct {
	inHeading bool
	started   bool
}

// Write returns the displayable part of fragment.
func (s *StreamSanitizer) Write(fragment string) string {
	var b strings.Builder
	b.Grow(len(fragment))
	for _, r := range fragment {
		switch {
		case r == '*':
			continue
		case r == '#':
			if !s.inHeading {
				s.inHeading = true
				s.emit(&b, ' ')
			}
		case s.inHeading && (r == ' ' || r == '\t'):
			continue
		default:
			s.inHeading = false
			s.emit(&b, r)
		}
	}
	return b.String()
}

func (s *StreamSanitizer) emit(b *strings.Builder, r rune) {
	if !s.started {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return
		}
		s.started = true
	}
	b.WriteRune(r)
}
