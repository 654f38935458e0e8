package agent

import (
	"regexp"
	"strings"
	"unicode"

	"hatbot/internal/domain"
)

var directivePattern = regexp.MustCompile(`^@(\w+)`)

// ParseDirective extracts the optional routing directive from raw input.
// A leading "@" followed by word characters is matched case-insensitively
// against the known directive tokens; on a match the token and any following
// whitespace are stripped from the returned text. An unrecognized @word is
// kept as literal text (directive none, input unchanged) so user text is
// never silently lost. Parsing is total over all strings, including empty.
func ParseDirective(raw string) (domain.Directive, string) {
	m := directivePattern.FindStringSubmatch(raw)
	if m == nil {
		return domain.DirectiveNone, raw
	}

	d := domain.Directive(strings.ToLower(m[1]))
	if !d.Recognized() {
		return domain.DirectiveNone, raw
	}

	rest := strings.TrimLeftFunc(raw[len(m[0]):], unicode.IsSpace)
	return d, rest
}
