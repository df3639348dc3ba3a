package humanize

import (
	"fmt"
	"strings"

	"github.com/estevaoantuness/agentefinal/internal/task"
)

// Telegram caps messages at 4096 characters; WhatsApp is in the same
// ballpark. Chunk below both.
const MaxChunk = 3800

var statusEmoji = map[string]string{
	task.StatusPending:    "⏳",
	task.StatusInProgress: "🔄",
	task.StatusCompleted:  "✅",
	task.StatusCancelled:  "❌",
}

var priorityEmoji = map[string]string{
	task.PriorityLow:    "🟢",
	task.PriorityMedium: "🟡",
	task.PriorityHigh:   "🟠",
	task.PriorityUrgent: "🔴",
}

// FormatTaskList renders tasks as a numbered list. Each line carries the
// task's position in the user's full ordering, so the number shown next
// to a task resolves to that task even when the list was filtered.
func FormatTaskList(tasks []task.Task) string {
	if len(tasks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("📋 Suas tarefas:\n")
	for i, t := range tasks {
		pos := t.Position
		if pos == 0 {
			pos = i + 1
		}
		fmt.Fprintf(&b, "\n%d. %s %s %s", pos, statusEmoji[t.Status], priorityEmoji[t.Priority], t.Title)
		if t.Category != "" {
			fmt.Fprintf(&b, " [%s]", t.Category)
		}
		if t.Description != "" {
			fmt.Fprintf(&b, "\n   %s", t.Description)
		}
	}
	return b.String()
}

// FormatProgress renders the progress summary with a bar and a
// motivational line tuned to how far along the user is.
func FormatProgress(p *task.Progress) string {
	if p == nil || p.Total == 0 {
		return "Você ainda não tem tarefas para acompanhar. Bora criar a primeira?"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Seu progresso: %.1f%%\n", p.Percentage)
	fmt.Fprintf(&b, "%s\n\n", progressBar(p.Percentage))
	fmt.Fprintf(&b, "✅ Concluídas: %d\n", p.Completed)
	fmt.Fprintf(&b, "🔄 Em andamento: %d\n", p.InProgress)
	fmt.Fprintf(&b, "⏳ Pendentes: %d\n\n", p.Pending)
	b.WriteString(Motivate(p.Percentage))
	return b.String()
}

func progressBar(pct float64) string {
	const width = 10
	filled := int(pct/100*width + 0.5)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Motivate returns a line matched to the completion percentage.
func Motivate(pct float64) string {
	switch {
	case pct >= 100:
		return "Tudo concluído, você arrasou!"
	case pct >= 70:
		return "Quase lá, falta pouco!"
	case pct >= 30:
		return "Bom ritmo, continue assim!"
	default:
		return "Todo começo conta. Uma tarefa de cada vez!"
	}
}

// Chunk splits text into messages no longer than max characters,
// breaking on paragraph boundaries when possible, then on lines.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = MaxChunk
	}
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		if len(para) > max {
			for _, line := range strings.Split(para, "\n") {
				if cur.Len()+len(line)+1 > max {
					flush()
				}
				if cur.Len() > 0 {
					cur.WriteByte('\n')
				}
				cur.WriteString(line)
			}
			continue
		}
		if cur.Len()+len(para)+2 > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}
