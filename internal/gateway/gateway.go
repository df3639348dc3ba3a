package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/estevaoantuness/agentefinal/internal/bus"
	"github.com/estevaoantuness/agentefinal/internal/channel"
	"github.com/estevaoantuness/agentefinal/internal/config"
	"github.com/estevaoantuness/agentefinal/internal/convo"
	"github.com/estevaoantuness/agentefinal/internal/functions"
	"github.com/estevaoantuness/agentefinal/internal/humanize"
	"github.com/estevaoantuness/agentefinal/internal/llm"
	"github.com/estevaoantuness/agentefinal/internal/nlp"
	"github.com/estevaoantuness/agentefinal/internal/notion"
	"github.com/estevaoantuness/agentefinal/internal/orchestrator"
	"github.com/estevaoantuness/agentefinal/internal/reminder"
	"github.com/estevaoantuness/agentefinal/internal/task"
)

// Handler turns one inbound message into reply text. The default is
// the orchestrator pipeline; tests inject their own.
type Handler func(ctx context.Context, msg bus.InboundMessage) string

// Options customize Gateway construction, mostly for tests.
type Options struct {
	Handler    Handler
	LLMClient  llm.Client
	SignalChan chan os.Signal
}

type Gateway struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	store     *task.Store
	convos    *convo.Store
	human     *humanize.Humanizer
	handler   Handler
	reminders *reminder.Service
	channels  *channel.ChannelManager

	signalChan chan os.Signal

	mu      sync.Mutex
	workers map[string]chan bus.InboundMessage
	wg      sync.WaitGroup
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		signalChan: opts.SignalChan,
		workers:    make(map[string]chan bus.InboundMessage),
	}

	dbPath := strings.TrimSpace(cfg.Store.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(config.ConfigDir(), "data", "tasks.db")
	}
	store, err := task.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("create task store: %w", err)
	}
	g.store = store

	templatesPath := strings.TrimSpace(cfg.Agent.TemplatesPath)
	if templatesPath == "" {
		templatesPath = filepath.Join(config.ConfigDir(), "templates.yaml")
	}
	g.human = humanize.New(templatesPath)

	g.convos = convo.NewStore(convo.Options{
		MaxMessages: cfg.Conversation.MaxMessages,
		Timeout:     cfg.Conversation.Timeout(),
		Preamble:    buildPreamble,
	})

	var syncer functions.NotionSyncer
	if cfg.Notion.Enabled {
		syncer = notion.NewClient(cfg.Notion.Token, cfg.Notion.DatabaseID, cfg.Notion.BaseURL)
	}
	executor := functions.NewExecutor(store, g.human, syncer)

	handler := opts.Handler
	if handler == nil {
		client := opts.LLMClient
		if client == nil {
			client, err = llm.New(llm.Config{
				APIKey:    cfg.Provider.APIKey,
				BaseURL:   cfg.Provider.BaseURL,
				Model:     cfg.Agent.Model,
				MaxTokens: cfg.Agent.MaxTokens,
			})
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("create llm client: %w", err)
			}
		}
		orch := orchestrator.New(nlp.NewMatcher(), g.convos, store, executor, client, g.human)
		handler = orch.HandleMessage
	}
	g.handler = handler

	loc, err := time.LoadLocation(cfg.Agent.Timezone)
	if err != nil {
		log.Printf("[gateway] invalid timezone %q, using local: %v", cfg.Agent.Timezone, err)
		loc = time.Local
	}
	g.reminders = reminder.NewService(store, g.human, g.deliver, reminder.Options{
		DigestEnabled: cfg.Digest.Enabled,
		DigestHour:    cfg.Digest.Hour,
		Location:      loc,
	})

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// Handle runs one message through the pipeline synchronously. The CLI
// chat mode uses this; channel traffic goes through Run instead.
func (g *Gateway) Handle(ctx context.Context, msg bus.InboundMessage) string {
	return g.handler(ctx, msg)
}

// deliver routes a reminder or digest to the channel encoded in the
// user's channel key.
func (g *Gateway) deliver(channelKey, text string) {
	ch, chatID, ok := strings.Cut(channelKey, ":")
	if !ok {
		log.Printf("[gateway] malformed channel key %q", channelKey)
		return
	}
	g.bus.Outbound <- bus.OutboundMessage{
		Channel: ch,
		ChatID:  chatID,
		Content: text,
	}
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.human.Watch(ctx); err != nil {
		log.Printf("[gateway] template watch warning: %v", err)
	}

	if err := g.reminders.Start(ctx); err != nil {
		log.Printf("[gateway] reminder start warning: %v", err)
	}

	go g.sweepLoop(ctx)
	go g.processLoop(ctx)

	log.Printf("[gateway] running as %s on %s:%d", g.cfg.Agent.Name, g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	cancel()
	return g.Shutdown()
}

// processLoop fans inbound messages out to one worker per session, so
// a slow model call for one user never blocks another, while each
// user's messages stay strictly ordered.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
			g.workerFor(ctx, msg.SessionKey()) <- msg
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) workerFor(ctx context.Context, key string) chan bus.InboundMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ch, ok := g.workers[key]; ok {
		return ch
	}

	ch := make(chan bus.InboundMessage, 8)
	g.workers[key] = ch
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case msg := <-ch:
				g.handleOne(ctx, msg)
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (g *Gateway) handleOne(ctx context.Context, msg bus.InboundMessage) {
	reply := g.handler(ctx, msg)
	if strings.TrimSpace(reply) == "" {
		return
	}
	g.bus.Outbound <- bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	}
}

func (g *Gateway) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(config.DefaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := g.convos.SweepExpired(); n > 0 {
				log.Printf("[gateway] swept %d expired conversations", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) Shutdown() error {
	g.reminders.Stop()
	_ = g.channels.StopAll()
	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] close task store warning: %v", err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
