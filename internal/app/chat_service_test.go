package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"studyai/internal/ai"
	"studyai/internal/model"
	"studyai/internal/repository"
)

type fakeStream struct {
	fragments []string
	pos       int
	failAfter int // fail with ErrStreamInterrupted after this many fragments; -1 disables
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.failAfter >= 0 && s.pos >= s.failAfter {
		return "", fmt.Errorf("%w: connection reset", ai.ErrStreamInterrupted)
	}
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	fragment := s.fragments[s.pos]
	s.pos++
	return fragment, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeGenerator struct {
	fragments   []string
	failAfter   int
	unavailable int // number of leading calls that fail with ErrModelUnavailable

	calls   int
	prompts []string
	streams []*fakeStream
}

func (g *fakeGenerator) Generate(_ context.Context, _ ai.GenerateConfig, prompt string) (ai.Stream, error) {
	g.calls++
	if g.unavailable > 0 {
		g.unavailable--
		return nil, fmt.Errorf("%w: dial refused", ai.ErrModelUnavailable)
	}
	g.prompts = append(g.prompts, prompt)
	failAfter := g.failAfter
	if failAfter == 0 {
		failAfter = -1
	}
	stream := &fakeStream{fragments: g.fragments, failAfter: failAfter}
	g.streams = append(g.streams, stream)
	return stream, nil
}

type chatFixture struct {
	db      *gorm.DB
	service *ChatService
	gen     *fakeGenerator
	session *model.Session
}

func newChatFixture(t *testing.T, gen *fakeGenerator, opts ChatServiceOptions) *chatFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.Session{}, &model.Document{}, &model.ChatMessage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sessionRepo := repository.NewSessionRepository(db)
	session := &model.Session{Name: "Bio101"}
	if err := sessionRepo.Create(session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	service := NewChatService(
		sessionRepo,
		repository.NewDocumentRepository(db),
		repository.NewMessageRepository(db),
		nil,
		gen,
		NewSessionLocks(),
		opts,
	)
	return &chatFixture{db: db, service: service, gen: gen, session: session}
}

func (f *chatFixture) addDocument(t *testing.T, filename, text string) {
	t.Helper()
	err := repository.NewDocumentRepository(f.db).Create(&model.Document{
		SessionID:     f.session.ID,
		Filename:      filename,
		Format:        model.FormatTXT,
		ExtractedText: text,
		ExtractStatus: model.ExtractOK,
	})
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
}

func (f *chatFixture) messages(t *testing.T) []model.ChatMessage {
	t.Helper()
	msgs, err := repository.NewMessageRepository(f.db).ListBySessionID(f.session.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return msgs
}

func TestStreamAskGroundedAnswer(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"The mitochondria ", "is the powerhouse."}}
	f := newChatFixture(t, gen, ChatServiceOptions{})
	f.addDocument(t, "bio.txt", "Mitochondria is the powerhouse of the cell.")

	var streamed strings.Builder
	msg, err := f.service.StreamAsk(context.Background(), AskInput{
		SessionID: f.session.ID,
		Question:  "What is the powerhouse of the cell?",
	}, func(fragment string) error {
		streamed.WriteString(fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("stream ask: %v", err)
	}

	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "Mitochondria is the powerhouse of the cell.") {
		t.Fatalf("prompt not grounded in document text:\n%s", prompt)
	}
	if !strings.Contains(prompt, "--- Document: bio.txt ---") {
		t.Fatalf("prompt missing document marker:\n%s", prompt)
	}
	if !strings.Contains(prompt, "What is the powerhouse of the cell?") {
		t.Fatalf("prompt missing the question:\n%s", prompt)
	}

	if streamed.String() != "The mitochondria is the powerhouse." {
		t.Fatalf("streamed %q", streamed.String())
	}
	if msg.Role != model.RoleAssistant || msg.Content != "The mitochondria is the powerhouse." {
		t.Fatalf("persisted message wrong: %+v", msg)
	}

	msgs := f.messages(t)
	if len(msgs) != 2 || msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleAssistant {
		t.Fatalf("history wrong: %+v", msgs)
	}
	if !gen.streams[0].closed {
		t.Fatalf("stream not released after completion")
	}
}

func TestStreamAskNoDocumentsSkipsModel(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"should never be used"}}
	f := newChatFixture(t, gen, ChatServiceOptions{})

	var streamed strings.Builder
	msg, err := f.service.StreamAsk(context.Background(), AskInput{
		SessionID: f.session.ID,
		Question:  "Anything?",
	}, func(fragment string) error {
		streamed.WriteString(fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("stream ask: %v", err)
	}

	if gen.calls != 0 {
		t.Fatalf("generator invoked for an empty session")
	}
	if msg.Content != NoDocumentsAnswer || streamed.String() != NoDocumentsAnswer {
		t.Fatalf("expected the fixed no-documents answer, got %q", msg.Content)
	}

	msgs := f.messages(t)
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant rows, got %d", len(msgs))
	}
}

func TestStreamAskInterruptedLeavesNoAssistantRow(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"partial "}, failAfter: 1}
	f := newChatFixture(t, gen, ChatServiceOptions{})
	f.addDocument(t, "bio.txt", "some material")

	var streamed strings.Builder
	_, err := f.service.StreamAsk(context.Background(), AskInput{
		SessionID: f.session.ID,
		Question:  "q",
	}, func(fragment string) error {
		streamed.WriteString(fragment)
		return nil
	})
	if !errors.Is(err, ai.ErrStreamInterrupted) {
		t.Fatalf("expected ErrStreamInterrupted, got %v", err)
	}
	if streamed.String() != "partial " {
		t.Fatalf("partial output lost: %q", streamed.String())
	}

	msgs := f.messages(t)
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser {
		t.Fatalf("failed turn must persist only the user message: %+v", msgs)
	}
	if !gen.streams[0].closed {
		t.Fatalf("stream not released after failure")
	}
}

func TestStreamAskCancelledConsumerLeavesNoAssistantRow(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"one", "two", "three"}}
	f := newChatFixture(t, gen, ChatServiceOptions{})
	f.addDocument(t, "bio.txt", "some material")

	received := 0
	cancelErr := errors.New("consumer went away")
	_, err := f.service.StreamAsk(context.Background(), AskInput{
		SessionID: f.session.ID,
		Question:  "q",
	}, func(string) error {
		received++
		if received >= 1 {
			return cancelErr
		}
		return nil
	})
	if !errors.Is(err, cancelErr) {
		t.Fatalf("expected consumer error, got %v", err)
	}

	msgs := f.messages(t)
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser {
		t.Fatalf("cancelled turn must persist only the user message: %+v", msgs)
	}
	if !gen.streams[0].closed {
		t.Fatalf("stream not released after cancellation")
	}
}

func TestStreamAskRetriesUnavailableOnce(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"ok"}, unavailable: 1}
	f := newChatFixture(t, gen, ChatServiceOptions{RetryUnavailable: true})
	f.addDocument(t, "bio.txt", "material")

	msg, err := f.service.StreamAsk(context.Background(), AskInput{SessionID: f.session.ID, Question: "q"},
		func(string) error { return nil })
	if err != nil {
		t.Fatalf("retry should have recovered: %v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("generator called %d times, want 2", gen.calls)
	}
	if msg.Content != "ok" {
		t.Fatalf("got %q", msg.Content)
	}
}

func TestStreamAskUnavailableNotRetriedWhenDisabled(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"ok"}, unavailable: 1}
	f := newChatFixture(t, gen, ChatServiceOptions{RetryUnavailable: false})
	f.addDocument(t, "bio.txt", "material")

	_, err := f.service.StreamAsk(context.Background(), AskInput{SessionID: f.session.ID, Question: "q"},
		func(string) error { return nil })
	if !errors.Is(err, ai.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls)
	}
}

func TestStreamAskUnknownSession(t *testing.T) {
	gen := &fakeGenerator{}
	f := newChatFixture(t, gen, ChatServiceOptions{})

	_, err := f.service.StreamAsk(context.Background(), AskInput{SessionID: 999, Question: "q"},
		func(string) error { return nil })
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStreamAskBlankQuestion(t *testing.T) {
	gen := &fakeGenerator{}
	f := newChatFixture(t, gen, ChatServiceOptions{})

	_, err := f.service.StreamAsk(context.Background(), AskInput{SessionID: f.session.ID, Question: "   "},
		func(string) error { return nil })
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(f.messages(t)) != 0 {
		t.Fatalf("blank question must not be persisted")
	}
}

func TestStreamAskHistoryWindowInPrompt(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"answer"}}
	f := newChatFixture(t, gen, ChatServiceOptions{MaxHistoryMessages: 2})
	f.addDocument(t, "bio.txt", "material")

	msgRepo := repository.NewMessageRepository(f.db)
	for _, m := range []model.ChatMessage{
		{SessionID: f.session.ID, Role: model.RoleUser, Content: "oldest question"},
		{SessionID: f.session.ID, Role: model.RoleAssistant, Content: "oldest answer"},
		{SessionID: f.session.ID, Role: model.RoleUser, Content: "recent question"},
		{SessionID: f.session.ID, Role: model.RoleAssistant, Content: "recent answer"},
	} {
		msg := m
		if err := msgRepo.Append(&msg); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	_, err := f.service.StreamAsk(context.Background(), AskInput{SessionID: f.session.ID, Question: "next"},
		func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream ask: %v", err)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "recent question") || !strings.Contains(prompt, "recent answer") {
		t.Fatalf("recent turns missing from prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "oldest question") {
		t.Fatalf("history window not bounded:\n%s", prompt)
	}
}

func TestClearHistory(t *testing.T) {
	gen := &fakeGenerator{}
	f := newChatFixture(t, gen, ChatServiceOptions{})

	msgRepo := repository.NewMessageRepository(f.db)
	for i := 0; i < 4; i++ {
		if err := msgRepo.Append(&model.ChatMessage{SessionID: f.session.ID, Role: model.RoleUser, Content: "m"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	deleted, err := f.service.ClearHistory(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("clear history: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("deleted %d, want 4", deleted)
	}
	if len(f.messages(t)) != 0 {
		t.Fatalf("messages survived clear")
	}
}
