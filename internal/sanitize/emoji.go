package sanitize

import (
	"strings"
	"sync"

	"github.com/estevaoantuness/agentefinal/internal/nlp"
)

const emojiWindow = 20

const smiley = "😊"

// decorative emojis the bot may use at most once per window of replies.
var decorative = []string{"🎉", "🎊", "🚀", "💪", "✨", "🔥"}

var greetings = []string{
	"oi", "ola", "bom dia", "boa tarde", "boa noite", "e ai", "opa", "hey", "hello",
}

// EmojiPolicy keeps the bot's replies from reading like a carnival.
// The smiley is only allowed in replies that open with a greeting, and
// each decorative emoji appears at most once across the last
// emojiWindow replies to the same session.
type EmojiPolicy struct {
	mu     sync.Mutex
	recent map[string][][]string
}

func NewEmojiPolicy() *EmojiPolicy {
	return &EmojiPolicy{recent: make(map[string][][]string)}
}

// Apply filters reply according to the emoji rules for one session and
// records what survived.
func (p *EmojiPolicy) Apply(sessionKey, reply string) string {
	if !IsGreeting(reply) {
		reply = strings.ReplaceAll(reply, smiley, "")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	for _, used := range p.recent[sessionKey] {
		for _, e := range used {
			seen[e] = true
		}
	}

	var kept []string
	for _, e := range decorative {
		if !strings.Contains(reply, e) {
			continue
		}
		if seen[e] {
			reply = strings.ReplaceAll(reply, e, "")
			continue
		}
		// Keep the first occurrence only.
		first := strings.Index(reply, e)
		rest := strings.ReplaceAll(reply[first+len(e):], e, "")
		reply = reply[:first+len(e)] + rest
		kept = append(kept, e)
	}

	history := append(p.recent[sessionKey], kept)
	if len(history) > emojiWindow {
		history = history[len(history)-emojiWindow:]
	}
	p.recent[sessionKey] = history

	return collapse(reply)
}

// IsGreeting reports whether text opens with a salutation.
func IsGreeting(text string) bool {
	n := nlp.Normalize(text)
	for _, g := range greetings {
		if n == g || strings.HasPrefix(n, g+" ") || strings.HasPrefix(n, g+",") || strings.HasPrefix(n, g+"!") {
			return true
		}
	}
	return false
}
