package humanize

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Template is one candidate phrasing for a reply event. Higher weights
// are picked more often.
type Template struct {
	Text   string `yaml:"text"`
	Weight int    `yaml:"weight"`
}

// Reply events with built-in phrasings. A templates.yaml next to the
// database can override any event; edits are picked up live.
const (
	EventTaskCreated  = "task_created"
	EventTaskDone     = "task_done"
	EventAllDone      = "all_done"
	EventTaskStarted  = "task_started"
	EventEmptyList    = "empty_list"
	EventReminderSet  = "reminder_set"
	EventReminderFire = "reminder_fire"
	EventError        = "error"
)

var defaults = map[string][]Template{
	EventTaskCreated: {
		{Text: "Anotado! Criei a tarefa: %s", Weight: 3},
		{Text: "Pronto, tarefa registrada: %s", Weight: 2},
		{Text: "Feito! Adicionei na sua lista: %s", Weight: 2},
	},
	EventTaskDone: {
		{Text: "Boa! Marquei como concluída: %s", Weight: 3},
		{Text: "Mandou bem! Concluída: %s", Weight: 2},
		{Text: "Riscada da lista: %s", Weight: 1},
	},
	EventAllDone: {
		{Text: "Parabéns! Você concluiu todas as tarefas! 🎉", Weight: 2},
		{Text: "Lista zerada! Aproveite o resto do dia 🎉", Weight: 1},
	},
	EventTaskStarted: {
		{Text: "Anotei que você começou: %s", Weight: 2},
		{Text: "Em andamento agora: %s", Weight: 1},
	},
	EventEmptyList: {
		{Text: "Você ainda não tem tarefas. Quer criar a primeira?", Weight: 2},
		{Text: "Lista vazia por aqui. Me diga o que precisa fazer!", Weight: 1},
	},
	EventReminderSet: {
		{Text: "Combinado! Te lembro de %q %s.", Weight: 2},
		{Text: "Anotado, vou te avisar de %q %s.", Weight: 1},
	},
	EventReminderFire: {
		{Text: "⏰ Lembrete: %s", Weight: 1},
	},
	EventError: {
		{Text: "Desculpe, tive um problema para processar sua mensagem. Pode tentar de novo?", Weight: 2},
		{Text: "Opa, algo deu errado aqui do meu lado. Tenta novamente?", Weight: 1},
	},
}

// Humanizer turns pipeline results into varied Portuguese phrasings.
type Humanizer struct {
	mu   sync.RWMutex
	sets map[string][]Template
	path string
}

// New builds a humanizer, overlaying templates from path (if the file
// exists) on the built-in set. An empty path keeps the defaults only.
func New(path string) *Humanizer {
	h := &Humanizer{
		sets: defaults,
		path: path,
	}
	if path != "" {
		if err := h.reload(); err != nil && !os.IsNotExist(err) {
			log.Printf("[humanize] template load failed: %v", err)
		}
	}
	return h
}

func (h *Humanizer) reload() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return err
	}
	var overrides map[string][]Template
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	merged := make(map[string][]Template, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		if len(v) > 0 {
			merged[k] = v
		}
	}

	h.mu.Lock()
	h.sets = merged
	h.mu.Unlock()
	return nil
}

// Watch reloads the template file whenever it changes, until ctx ends.
func (h *Humanizer) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("template watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch template dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != h.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := h.reload(); err != nil {
					log.Printf("[humanize] template reload failed: %v", err)
				} else {
					log.Printf("[humanize] templates reloaded from %s", h.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[humanize] watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Pick formats a weighted-random phrasing for an event.
func (h *Humanizer) Pick(event string, args ...any) string {
	h.mu.RLock()
	set := h.sets[event]
	h.mu.RUnlock()
	if len(set) == 0 {
		return ""
	}

	total := 0
	for _, t := range set {
		if t.Weight > 0 {
			total += t.Weight
		}
	}
	chosen := set[0]
	if total > 0 {
		// The global source is goroutine-safe; Pick runs concurrently
		// from per-session workers and the reminder loop.
		n := rand.Intn(total)
		for _, t := range set {
			if t.Weight <= 0 {
				continue
			}
			if n < t.Weight {
				chosen = t
				break
			}
			n -= t.Weight
		}
	}
	if len(args) == 0 {
		return chosen.Text
	}
	return fmt.Sprintf(chosen.Text, args...)
}
