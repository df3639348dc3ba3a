package sanitize

import (
	"regexp"
	"strings"
)

// Models occasionally leak tool invocations as plain text instead of using
// the tool-call API. Three shapes show up in practice:
//
//	<function=view_tasks>{"filter_status": "all"}</function>
//	=create_task>{"title": "comprar leite"}
//	<get_help>
//
// The sanitizer removes all of them from user-facing replies, and can also
// recover the intended call so the pipeline still executes it.

// FallbackCall is a tool invocation recovered from leaked reply text.
type FallbackCall struct {
	Name    string
	RawArgs string
}

var (
	xmlCallRe  = regexp.MustCompile(`(?s)<function\s*=\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*>(.*?)</function\s*>`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
)

type Sanitizer struct {
	arrowCalls  *regexp.Regexp
	bareMarkers *regexp.Regexp
}

// New builds a sanitizer. toolNames are the registered tool names; the
// arrow form `=name>` and bare markers like <view_tasks> are only
// stripped for known names so that legitimate prose (`a=b>`, `<x>`)
// survives.
func New(toolNames []string) *Sanitizer {
	s := &Sanitizer{}
	if len(toolNames) > 0 {
		quoted := make([]string, len(toolNames))
		for i, n := range toolNames {
			quoted[i] = regexp.QuoteMeta(n)
		}
		alt := strings.Join(quoted, "|")
		s.arrowCalls = regexp.MustCompile(`=(` + alt + `)>`)
		s.bareMarkers = regexp.MustCompile(`<\s*(?:` + alt + `)\s*/?\s*>`)
	}
	return s
}

// Clean strips every leaked tool-call shape from text and tidies the
// whitespace left behind.
func (s *Sanitizer) Clean(text string) string {
	out := xmlCallRe.ReplaceAllString(text, "")
	out = s.stripArrowCalls(out)
	if s.bareMarkers != nil {
		out = s.bareMarkers.ReplaceAllString(out, "")
	}
	return collapse(out)
}

// ParseCall tries to recover a tool invocation from leaked reply text.
// The arrow shape is tried before the XML shape. The XML opening tag
// contains `=name>` itself, so XML spans are blanked out before the
// arrow scan to keep the priority honest. Returns nil when the text
// carries no recognizable call.
func (s *Sanitizer) ParseCall(text string) *FallbackCall {
	if name, args, ok := s.findArrowCall(xmlCallRe.ReplaceAllString(text, " ")); ok {
		return &FallbackCall{Name: name, RawArgs: args}
	}
	if m := xmlCallRe.FindStringSubmatch(text); m != nil {
		return &FallbackCall{Name: m[1], RawArgs: strings.TrimSpace(m[2])}
	}
	return nil
}

// stripArrowCalls removes every `=name>{...}` occurrence for known
// names, including the brace-balanced argument payload.
func (s *Sanitizer) stripArrowCalls(text string) string {
	if s.arrowCalls == nil {
		return text
	}
	var b strings.Builder
	rest := text
	for {
		loc := s.arrowCalls.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:loc[0]])
		after := rest[loc[1]:]
		if _, n := scanJSONObject(after); n > 0 {
			rest = after[n:]
		} else {
			rest = after
		}
	}
	return b.String()
}

func (s *Sanitizer) findArrowCall(text string) (name, args string, ok bool) {
	if s.arrowCalls == nil {
		return "", "", false
	}
	loc := s.arrowCalls.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", "", false
	}
	name = text[loc[2]:loc[3]]
	body, n := scanJSONObject(text[loc[1]:])
	if n == 0 {
		return name, "{}", true
	}
	return name, body, true
}

// scanJSONObject reads a balanced {...} object from the start of s,
// skipping leading whitespace. It is string-aware so braces inside
// quoted values do not confuse the balance. Returns the object text and
// the number of bytes consumed, or 0 when s does not start with one.
func scanJSONObject(s string) (string, int) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n') {
		i++
	}
	if i >= len(s) || s[i] != '{' {
		return "", 0
	}
	depth := 0
	inString := false
	for j := i; j < len(s); j++ {
		c := s[j]
		if inString {
			if c == '\\' {
				j++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[i : j+1], j + 1
			}
		}
	}
	return "", 0
}

func collapse(text string) string {
	out := spaceRunRe.ReplaceAllString(text, " ")
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	out = strings.Join(lines, "\n")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
