package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/automatter/rfptrack/internal/identity"
	"github.com/automatter/rfptrack/internal/store"
)

// fakeModel answers the classifier call with classify and the chat call
// with answer (or answerErr).
type fakeModel struct {
	classify    string
	classifyErr error
	answer      string
	answerErr   error
	calls       []string
}

func (f *fakeModel) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, system)
	if system == classifierPrompt {
		return f.classify, f.classifyErr
	}
	return f.answer, f.answerErr
}

func testUser() *identity.Identity {
	return &identity.Identity{UID: "user-1", Type: identity.TypeUser}
}

func TestChat_ClassifiesAndAnswers(t *testing.T) {
	model := &fakeModel{
		classify: `{"intent": "search_or_list_solicitations"}`,
		answer:   "Here are the open RFPs.",
	}
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	svc := NewService(model, s)

	reply := svc.Chat(context.Background(), "chat-1", "show me new solicitations", testUser())
	require.NoError(t, reply.Err)
	require.Equal(t, "search_or_list_solicitations", reply.Intent)
	require.Equal(t, "Here are the open RFPs.", reply.Response)

	// second model call carries the intent's own system prompt
	require.Len(t, model.calls, 2)
	require.Equal(t, solicitationSearchPrompt, model.calls[1])
}

func TestChat_PersistsBothSides(t *testing.T) {
	model := &fakeModel{classify: `{"intent": "general_help"}`, answer: "Hi."}
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	svc := NewService(model, s)

	svc.Chat(context.Background(), "chat-2", "hello", testUser())

	msgs, err := s.Get(context.Background(), "chats/chat-2/messages", store.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0]["role"])
	require.Equal(t, "hello", msgs[0]["content"])
	require.Equal(t, "assistant", msgs[1]["role"])
	require.Equal(t, "Hi.", msgs[1]["content"])
	require.Equal(t, "user-1", msgs[0]["authorId"])
}

func TestChat_ClassifierFailureFallsBack(t *testing.T) {
	model := &fakeModel{classifyErr: errors.New("model down"), answer: "ok"}
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	svc := NewService(model, s)

	reply := svc.Chat(context.Background(), "chat-3", "whatever", testUser())
	require.Equal(t, defaultIntent, reply.Intent)
}

func TestChat_UnknownIntentFallsBack(t *testing.T) {
	model := &fakeModel{classify: `{"intent": "rm_rf_slash"}`, answer: "ok"}
	svc := NewService(model, store.NewMemory(store.Options{}, nil))

	reply := svc.Chat(context.Background(), "chat-4", "hm", testUser())
	require.Equal(t, defaultIntent, reply.Intent)
}

func TestChat_FencedClassifierOutput(t *testing.T) {
	model := &fakeModel{
		classify: "```json\n{\"intent\": \"search_or_list_sources\"}\n```",
		answer:   "sources",
	}
	svc := NewService(model, store.NewMemory(store.Options{}, nil))

	reply := svc.Chat(context.Background(), "chat-5", "list portals", testUser())
	require.Equal(t, "search_or_list_sources", reply.Intent)
}

func TestChat_ModelFailureDegradesToApology(t *testing.T) {
	model := &fakeModel{
		classify:  `{"intent": "general_help"}`,
		answerErr: errors.New("upstream 500"),
	}
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	svc := NewService(model, s)

	reply := svc.Chat(context.Background(), "chat-6", "hello", testUser())
	require.Error(t, reply.Err)
	require.Equal(t, Apology, reply.Response)

	// the apology is still persisted as the assistant's side
	msgs, err := s.Get(context.Background(), "chats/chat-6/messages", store.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, Apology, msgs[1]["content"])
}

func TestStripMarkdownFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripMarkdownFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripMarkdownFences(`{"a":1}`))
}
