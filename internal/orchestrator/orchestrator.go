package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/estevaoantuness/agentefinal/internal/bus"
	"github.com/estevaoantuness/agentefinal/internal/convo"
	"github.com/estevaoantuness/agentefinal/internal/functions"
	"github.com/estevaoantuness/agentefinal/internal/humanize"
	"github.com/estevaoantuness/agentefinal/internal/llm"
	"github.com/estevaoantuness/agentefinal/internal/nlp"
	"github.com/estevaoantuness/agentefinal/internal/sanitize"
	"github.com/estevaoantuness/agentefinal/internal/task"
)

// Orchestrator drives one user message through the whole pipeline:
// intent matching, direct dispatch when the intent is unambiguous,
// the model round-trip with tool calls otherwise, and reply hygiene
// at the end.
type Orchestrator struct {
	matcher   *nlp.Matcher
	convos    *convo.Store
	store     *task.Store
	executor  *functions.Executor
	client    llm.Client
	sanitizer *sanitize.Sanitizer
	emoji     *sanitize.EmojiPolicy
	human     *humanize.Humanizer

	knownTools map[string]bool
}

func New(matcher *nlp.Matcher, convos *convo.Store, store *task.Store, executor *functions.Executor, client llm.Client, human *humanize.Humanizer) *Orchestrator {
	known := make(map[string]bool)
	for _, n := range functions.Names() {
		known[n] = true
	}
	return &Orchestrator{
		matcher:    matcher,
		convos:     convos,
		store:      store,
		executor:   executor,
		client:     client,
		sanitizer:  sanitize.New(functions.Names()),
		emoji:      sanitize.NewEmojiPolicy(),
		human:      human,
		knownTools: known,
	}
}

// HandleMessage processes one inbound message and returns the reply
// text. It always returns something to say; pipeline failures come
// back as an apology rather than an error.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg bus.InboundMessage) string {
	key := msg.SessionKey()

	user, err := o.store.EnsureUser(key, msg.SenderName)
	if err != nil {
		log.Printf("[orchestrator] ensure user %s: %v", key, err)
		return o.human.Pick(humanize.EventError)
	}

	o.convos.GetOrCreate(key, msg.SenderName)
	o.convos.AddMessage(key, convo.RoleUser, msg.Content)

	var reply string
	if match := o.matcher.Match(msg.Content); match.Full() {
		reply = o.dispatchDirect(ctx, user, match)
	} else {
		reply = o.converse(ctx, key, user)
	}

	reply = o.emoji.Apply(key, reply)
	if strings.TrimSpace(reply) == "" {
		reply = o.human.Pick(humanize.EventError)
	}
	o.convos.AddMessage(key, convo.RoleAssistant, reply)
	return reply
}

// dispatchDirect executes a confidently matched intent without a model
// round-trip. The reply is the executor's own formatted message.
func (o *Orchestrator) dispatchDirect(ctx context.Context, user *task.User, match *nlp.MatchResult) string {
	log.Printf("[orchestrator] direct dispatch %s (confidence %.2f)", match.Intent, match.Confidence)

	res := o.executor.Execute(ctx, user, match.Intent, match.Args)
	if !res.Success {
		log.Printf("[orchestrator] direct %s failed: %s", match.Intent, res.Error)
		return o.human.Pick(humanize.EventError)
	}
	if m := res.Message(); m != "" {
		return m
	}
	return o.human.Pick(humanize.EventError)
}

// converse runs the model loop: ask, execute any requested tools, ask
// again with the results, and sanitize whatever comes back.
func (o *Orchestrator) converse(ctx context.Context, key string, user *task.User) string {
	reply, err := o.client.Complete(ctx, o.convos.GetOrCreate(key, user.Name), functions.Definitions)
	if err != nil {
		log.Printf("[orchestrator] completion failed: %v", err)
		return o.human.Pick(humanize.EventError)
	}

	if len(reply.ToolCalls) > 0 {
		return o.runToolCalls(ctx, key, user, reply.ToolCalls)
	}

	// No structured calls: the model may still have leaked one as text.
	if call := o.sanitizer.ParseCall(reply.Content); call != nil && o.knownTools[call.Name] {
		log.Printf("[orchestrator] recovered leaked call %s", call.Name)
		return o.runFallbackCall(ctx, key, user, reply.Content, call)
	}

	return o.sanitizer.Clean(reply.Content)
}

func (o *Orchestrator) runToolCalls(ctx context.Context, key string, user *task.User, calls []llm.ToolCall) string {
	for _, call := range calls {
		args, err := decodeArgs(call.Arguments)
		if err != nil {
			log.Printf("[orchestrator] bad arguments for %s: %v", call.Name, err)
			args = map[string]any{}
		}

		res := o.executor.Execute(ctx, user, call.Name, args)
		o.convos.AddToolCall(key, call.ID, call.Name, call.Arguments)
		o.convos.AddToolResult(key, call.Name, res.JSON(), call.ID)
	}

	followUp, err := o.client.Complete(ctx, o.convos.GetOrCreate(key, user.Name), functions.Definitions)
	if err != nil {
		log.Printf("[orchestrator] follow-up completion failed: %v", err)
		return o.human.Pick(humanize.EventError)
	}
	return o.sanitizer.Clean(followUp.Content)
}

// runFallbackCall executes a call recovered from leaked reply text. The
// leaked text itself never reaches the user.
func (o *Orchestrator) runFallbackCall(ctx context.Context, key string, user *task.User, rawReply string, call *sanitize.FallbackCall) string {
	args, err := decodeArgs(call.RawArgs)
	if err != nil {
		log.Printf("[orchestrator] unusable leaked arguments for %s: %v", call.Name, err)
		return o.sanitizer.Clean(rawReply)
	}

	res := o.executor.Execute(ctx, user, call.Name, args)

	// Record the call under a synthesized ID so the history reads the
	// same as a properly structured tool round-trip.
	id := "call_" + uuid.NewString()
	o.convos.AddToolCall(key, id, call.Name, call.RawArgs)
	o.convos.AddToolResult(key, call.Name, res.JSON(), id)

	if res.Success {
		if m := res.Message(); m != "" {
			cleaned := o.sanitizer.Clean(rawReply)
			if cleaned == "" {
				return m
			}
			return cleaned + "\n\n" + m
		}
	}
	return o.sanitizer.Clean(rawReply)
}

// decodeArgs parses tool-call arguments, running them through jsonrepair
// when the model emits almost-JSON.
func decodeArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("unparseable arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("repaired arguments still invalid: %w", err)
	}
	return args, nil
}
