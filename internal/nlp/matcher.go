package nlp

import (
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Intent is one statically-declared recognizable operation. Patterns are
// matched against normalized text; Weight ranks competing matches, with the
// earlier-declared intent winning ties.
type Intent struct {
	Name     string
	Patterns []string
	Synonyms []string
	Weight   float64
	Extract  func(normalized string) map[string]any
}

// MatchResult is the outcome of one matching attempt.
type MatchResult struct {
	Intent       string
	Args         map[string]any
	Confidence   float64
	MissingSlots []string
}

// Full reports whether the match can be dispatched directly: an intent was
// found and no required slot is absent.
func (r *MatchResult) Full() bool {
	return r != nil && len(r.MissingSlots) == 0
}

// intentTable declares intents highest-priority first. Action intents that
// carry task numbers outrank viewing, viewing outranks creation, help comes
// last. Order matters when weights collide.
var intentTable = []Intent{
	{
		Name: "mark_done",
		Patterns: []string{
			`\b(feito|conclui|completei|finalizei|terminei)\s+(a\s+)?\d`,
			`\bmarcar?\s+(como\s+)?(feita|completa|concluida)\s+\d`,
			`\b(done|complete)\s+\d`,
			`\b(pronta|pronto)\s+\d`,
		},
		Weight:  0.95,
		Extract: extractTaskNumbers,
	},
	{
		Name: "mark_progress",
		Patterns: []string{
			`\b(comecei|iniciei|estou\s+fazendo|comeco|inicio)\s+(a\s+)?\d`,
			`\bem\s+andamento\s+\d`,
			`\b(working\s+on|started)\s+\d`,
			`\b(andamento|progresso)\s+\d`,
		},
		Weight:  0.95,
		Extract: extractTaskNumbers,
	},
	{
		Name: "create_task",
		Patterns: []string{
			`\b(criar|nova|adicionar|inserir)\s+tarefa`,
			`\bpreciso\s+(fazer|criar)`,
			`\b(tarefa|to-?do):\s+`,
		},
		Weight:  0.9,
		Extract: extractTitle,
	},
	{
		Name: "view_tasks",
		Patterns: []string{
			`\b(minhas?\s+tarefa|ver\s+tarefa|listar?|mostrar\s+tarefa|quais?\s+tarefa)`,
			`\b(o\s+que\s+tenho|que\s+tenho\s+(pra\s+)?fazer|tarefas?)`,
		},
		Synonyms: []string{"task", "todo"},
		Weight:   0.85,
		Extract:  extractStatusFilter,
	},
	{
		Name: "view_progress",
		Patterns: []string{
			`\b(meu\s+progresso|como\s+(estou\s+)?indo|qual\s+(e\s+)?meu\s+progresso)`,
			`\b(relatorio|status)`,
			`\bprogress\b`,
		},
		Weight: 0.8,
	},
	{
		Name: "get_help",
		Patterns: []string{
			`\b(ajuda|help|comandos?|o\s+que\s+(voce\s+)?(faz|pode|consegue))`,
			`\b(como\s+funciona|como\s+usar)`,
		},
		Weight: 0.75,
	},
}

type compiledIntent struct {
	Intent
	regexps []*regexp.Regexp
}

// Matcher evaluates the intent table against normalized text.
type Matcher struct {
	intents []compiledIntent
}

// NewMatcher compiles the built-in intent table. A pattern that fails to
// compile is logged and skipped so the remaining patterns still apply.
func NewMatcher() *Matcher {
	return newMatcher(intentTable)
}

func newMatcher(table []Intent) *Matcher {
	m := &Matcher{intents: make([]compiledIntent, 0, len(table))}
	for _, intent := range table {
		ci := compiledIntent{Intent: intent}
		for _, pat := range intent.Patterns {
			re, err := regexp.Compile(pat)
			if err != nil {
				log.Printf("[nlp] skipping invalid pattern for %s: %v", intent.Name, err)
				continue
			}
			ci.regexps = append(ci.regexps, re)
		}
		m.intents = append(m.intents, ci)
	}
	return m
}

// Match normalizes text and returns the best-confidence intent candidate, or
// nil when nothing matched. Matching is pure: identical input yields an
// identical result.
func (m *Matcher) Match(text string) *MatchResult {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var best *MatchResult
	for _, intent := range m.intents {
		if best != nil && intent.Weight <= best.Confidence {
			continue
		}
		if !intent.matches(normalized) {
			continue
		}

		args := map[string]any{}
		if intent.Extract != nil {
			args = intent.Extract(normalized)
		}
		args = confineToSchema(intent.Name, args)

		best = &MatchResult{
			Intent:       intent.Name,
			Args:         args,
			Confidence:   intent.Weight,
			MissingSlots: MissingSlots(intent.Name, args),
		}
	}
	return best
}

func (ci *compiledIntent) matches(normalized string) bool {
	for _, re := range ci.regexps {
		if re.MatchString(normalized) {
			return true
		}
	}
	for _, syn := range ci.Synonyms {
		if strings.Contains(normalized, syn) {
			return true
		}
	}
	return false
}

func confineToSchema(intent string, args map[string]any) map[string]any {
	declared := declaredSlots(intent)
	out := make(map[string]any, len(args))
	for k, v := range args {
		if declared[k] {
			out[k] = v
		}
	}
	return out
}

var (
	taskNumberRe = regexp.MustCompile(`\b(\d+)\b`)
	titleRe      = regexp.MustCompile(`(?:criar|nova|adicionar|inserir|cria|add)\s+tarefa[:\s]+(.+)`)
	titleColonRe = regexp.MustCompile(`\b(?:tarefa|to-?do):\s+(.+)`)
)

// extractTaskNumbers pulls every standalone number in appearance order,
// keeping duplicates and dropping values outside [1, 999].
func extractTaskNumbers(normalized string) map[string]any {
	var numbers []int
	for _, match := range taskNumberRe.FindAllString(normalized, -1) {
		n, err := strconv.Atoi(match)
		if err != nil || n < 1 || n > 999 {
			continue
		}
		numbers = append(numbers, n)
	}
	return map[string]any{"task_numbers": numbers}
}

func extractTitle(normalized string) map[string]any {
	for _, re := range []*regexp.Regexp{titleRe, titleColonRe} {
		if groups := re.FindStringSubmatch(normalized); groups != nil {
			title := strings.TrimSpace(groups[1])
			if title != "" {
				return map[string]any{"title": title}
			}
		}
	}
	// No inline title; the model asks for one in conversation.
	return map[string]any{}
}

func extractStatusFilter(normalized string) map[string]any {
	switch {
	case strings.Contains(normalized, "pendente"), strings.Contains(normalized, "nao iniciada"):
		return map[string]any{"filter_status": "pending"}
	case strings.Contains(normalized, "andamento"), strings.Contains(normalized, "comecada"):
		return map[string]any{"filter_status": "in_progress"}
	case strings.Contains(normalized, "concluida"), strings.Contains(normalized, "completa"), strings.Contains(normalized, "feita"):
		return map[string]any{"filter_status": "completed"}
	}
	return map[string]any{"filter_status": "all"}
}
