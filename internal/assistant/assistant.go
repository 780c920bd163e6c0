// Package assistant forwards chat messages to the hosted model. A small
// intent classifier call picks the system prompt and tool allow-list,
// then a second call produces the reply. Both sides of the exchange are
// persisted as documents under the conversation's collection.
package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/automatter/rfptrack/internal/identity"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
	"github.com/automatter/rfptrack/pkg/metrics"
)

// Apology is the degraded reply when the model call fails; the
// conversation always receives a response.
const Apology = "Sorry, I ran into a problem answering that. Please try again."

const defaultIntent = "general_help"

// Intent binds a recognized request kind to its system prompt and the
// tools the model may use while serving it.
type Intent struct {
	Key    string
	Name   string
	System string
	Tools  []string
}

// Intents is the closed set the classifier chooses from.
var Intents = map[string]Intent{
	"search_or_list_solicitations": {
		Key:    "search_or_list_solicitations",
		Name:   "search or list solicitations",
		Tools:  []string{"searchSolicitations"},
		System: solicitationSearchPrompt,
	},
	"search_or_list_sources": {
		Key:    "search_or_list_sources",
		Name:   "search or list sources",
		Tools:  []string{"searchSources"},
		System: sourceSearchPrompt,
	},
	defaultIntent: {
		Key:    defaultIntent,
		Name:   "general help",
		System: generalHelpPrompt,
	},
}

// ModelClient is a single completion round trip against the hosted model.
type ModelClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service runs the classify-then-answer flow and persists the exchange.
type Service struct {
	model ModelClient
	store store.Store
}

func NewService(model ModelClient, s store.Store) *Service {
	return &Service{model: model, store: s}
}

// Reply is what the chat route returns to the caller.
type Reply struct {
	Response string
	Intent   string
	Err      error
}

// Chat classifies the message, forwards it with the chosen configuration
// and persists both sides under chats/{chatKey}/messages. A model failure
// degrades to the apology string instead of failing the request.
func (s *Service) Chat(ctx context.Context, chatKey, message string, ident *identity.Identity) Reply {
	intent := s.classify(ctx, message)

	response, err := s.model.Complete(ctx, intent.System, message)
	outcome := "ok"
	if err != nil {
		logger.Errorf("assistant model call failed: %v", err)
		response = Apology
		outcome = "error"
	}
	metrics.AssistantCalls.WithLabelValues(intent.Key, outcome).Inc()

	s.persist(ctx, chatKey, "user", message, ident)
	s.persist(ctx, chatKey, "assistant", response, ident)

	return Reply{Response: response, Intent: intent.Key, Err: err}
}

// classify asks the model which intent the message falls under. Any
// failure falls back to the default intent.
func (s *Service) classify(ctx context.Context, message string) Intent {
	raw, err := s.model.Complete(ctx, classifierPrompt, message)
	if err != nil {
		logger.Warnf("intent classifier failed: %v", err)
		return Intents[defaultIntent]
	}
	var out struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(stripMarkdownFences(raw)), &out); err != nil {
		logger.Warnf("intent classifier returned unparseable output: %q", raw)
		return Intents[defaultIntent]
	}
	if intent, ok := Intents[out.Intent]; ok {
		return intent
	}
	return Intents[defaultIntent]
}

func (s *Service) persist(ctx context.Context, chatKey, role, content string, ident *identity.Identity) {
	path := "chats/" + chatKey + "/messages"
	doc := store.Doc{"role": role, "content": content}
	if _, err := s.store.Post(ctx, path, doc, ident); err != nil {
		logger.Warnf("failed to persist %s chat message for %s: %v", role, chatKey, err)
	}
}

// stripMarkdownFences removes ```json ... ``` wrapping models like to add
// around JSON answers.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
