package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/llm"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type stubRepo struct {
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]models.Message
	counts        ContextCounts
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]models.Message),
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	conversation.ID = uuid.New()
	copied := *conversation
	r.conversations[conversation.ID] = &copied
	return nil
}

func (r *stubRepo) FindConversationByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Conversation, error) {
	conversation, ok := r.conversations[id]
	if !ok || conversation.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *conversation
	return &copied, nil
}

func (r *stubRepo) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, conversation := range r.conversations {
		if conversation.OwnerID == ownerID {
			out = append(out, *conversation)
		}
	}
	return out, nil
}

func (r *stubRepo) DeleteConversation(ctx context.Context, ownerID, id uuid.UUID) error {
	conversation, ok := r.conversations[id]
	if !ok || conversation.OwnerID != ownerID {
		return gorm.ErrRecordNotFound
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return nil
}

func (r *stubRepo) TouchConversation(ctx context.Context, id uuid.UUID) error { return nil }

func (r *stubRepo) CreateMessage(ctx context.Context, message *models.Message) error {
	message.ID = uuid.New()
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], *message)
	return nil
}

func (r *stubRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return r.messages[conversationID], nil
}

func (r *stubRepo) ContextCounts(ctx context.Context, ownerID uuid.UUID) (ContextCounts, error) {
	return r.counts, nil
}

type stubGenerator struct {
	reply    string
	err      error
	requests []llm.Request
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type stubQuota struct {
	allowed    bool
	increments int
}

func (q *stubQuota) CanUseAI(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	return q.allowed, nil
}

func (q *stubQuota) IncrementAIUsage(ctx context.Context, ownerID uuid.UUID) error {
	q.increments++
	return nil
}

type stubContacts struct {
	contacts map[uuid.UUID]*models.Contact
}

func (c *stubContacts) FindContactByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Contact, error) {
	contact, ok := c.contacts[id]
	if !ok || contact.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return contact, nil
}

type fixture struct {
	svc       *Service
	repo      *stubRepo
	generator *stubGenerator
	quota     *stubQuota
	contacts  *stubContacts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newStubRepo(),
		generator: &stubGenerator{reply: "hello"},
		quota:     &stubQuota{allowed: true},
		contacts:  &stubContacts{contacts: make(map[uuid.UUID]*models.Contact)},
	}
	testLogger := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Repo:      f.repo,
		Generator: f.generator,
		Quota:     f.quota,
		Contacts:  f.contacts,
		Logger:    testLogger,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func strPtr(s string) *string { return &s }

func TestChatCreatesConversationAndPersistsBothSides(t *testing.T) {
	f := newFixture(t)
	f.repo.counts = ContextCounts{Contacts: 12, Companies: 3, Deals: 5, OpenTasks: 7, Invoices: 2}
	f.generator.reply = "You have 12 contacts."
	ownerID := uuid.New()

	result, err := f.svc.Chat(context.Background(), ownerID, nil, "How many contacts do I have?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Reply != "You have 12 contacts." {
		t.Fatalf("reply = %q", result.Reply)
	}

	conversation := f.repo.conversations[result.ConversationID]
	if conversation == nil {
		t.Fatal("conversation not created")
	}
	if conversation.Title != "How many contacts do I have?" {
		t.Fatalf("title = %q", conversation.Title)
	}

	messages := f.repo.messages[result.ConversationID]
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(messages))
	}
	if messages[0].Role != enums.MessageRoleUser || messages[1].Role != enums.MessageRoleModel {
		t.Fatalf("roles = %s, %s", messages[0].Role, messages[1].Role)
	}

	if len(f.generator.requests) != 1 {
		t.Fatalf("expected 1 generator call, got %d", len(f.generator.requests))
	}
	system := f.generator.requests[0].System
	if !strings.Contains(system, "12 contacts") || !strings.Contains(system, "7 open tasks") {
		t.Fatalf("system prompt missing counts: %q", system)
	}
	if f.quota.increments != 1 {
		t.Fatalf("usage increments = %d", f.quota.increments)
	}
}

func TestChatContinuesConversationWithHistory(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()

	first, err := f.svc.Chat(context.Background(), ownerID, nil, "First question")
	if err != nil {
		t.Fatalf("first chat: %v", err)
	}

	_, err = f.svc.Chat(context.Background(), ownerID, &first.ConversationID, "Follow-up")
	if err != nil {
		t.Fatalf("second chat: %v", err)
	}

	second := f.generator.requests[1]
	if len(second.Turns) != 3 {
		t.Fatalf("expected 3 turns (history + new), got %d", len(second.Turns))
	}
	if second.Turns[0].Text != "First question" || second.Turns[2].Text != "Follow-up" {
		t.Fatalf("unexpected turn order: %+v", second.Turns)
	}
	if len(f.repo.messages[first.ConversationID]) != 4 {
		t.Fatalf("expected 4 persisted messages, got %d", len(f.repo.messages[first.ConversationID]))
	}
}

func TestChatQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	f.quota.allowed = false

	_, err := f.svc.Chat(context.Background(), uuid.New(), nil, "hello")
	if !pkgerrors.Is(err, pkgerrors.CodeQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if len(f.generator.requests) != 0 {
		t.Fatal("generator must not be called when quota is exhausted")
	}
	if f.quota.increments != 0 {
		t.Fatal("usage must not be counted when quota is exhausted")
	}
}

func TestChatGeneratorFailureLeavesNothingPersisted(t *testing.T) {
	f := newFixture(t)
	f.generator.err = errors.New("upstream down")

	_, err := f.svc.Chat(context.Background(), uuid.New(), nil, "hello")
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	for id, messages := range f.repo.messages {
		if len(messages) != 0 {
			t.Fatalf("conversation %s has %d messages after failure", id, len(messages))
		}
	}
	if f.quota.increments != 0 {
		t.Fatal("usage must not be counted on failure")
	}
}

func TestChatForeignConversationNotFound(t *testing.T) {
	f := newFixture(t)
	owner, err := f.svc.Chat(context.Background(), uuid.New(), nil, "mine")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	_, err = f.svc.Chat(context.Background(), uuid.New(), &owner.ConversationID, "theirs")
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChatTitleTruncated(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", 200)

	result, err := f.svc.Chat(context.Background(), uuid.New(), nil, long)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got := len(f.repo.conversations[result.ConversationID].Title); got != maxTitleLength {
		t.Fatalf("title length = %d", got)
	}
}

func TestDraftEmailParsesFencedJSON(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	contactID := uuid.New()
	f.contacts.contacts[contactID] = &models.Contact{
		ID: contactID, OwnerID: ownerID,
		FirstName: "Anna", LastName: "Schmidt",
		Position: strPtr("CTO"),
	}
	f.generator.reply = "```json\n{\"subject\": \"Quick follow-up\", \"body\": \"Hi Anna,\\n...\"}\n```"

	draft, err := f.svc.DraftEmail(context.Background(), ownerID, DraftEmailInput{
		ContactID: contactID,
		Purpose:   "follow up on last week's demo",
	})
	if err != nil {
		t.Fatalf("DraftEmail: %v", err)
	}
	if draft.Subject != "Quick follow-up" {
		t.Fatalf("subject = %q", draft.Subject)
	}
	if !strings.HasPrefix(draft.Body, "Hi Anna,") {
		t.Fatalf("body = %q", draft.Body)
	}

	prompt := f.generator.requests[0].Turns[0].Text
	if !strings.Contains(prompt, "Anna Schmidt") || !strings.Contains(prompt, "CTO") {
		t.Fatalf("prompt missing contact details: %q", prompt)
	}
	if f.quota.increments != 1 {
		t.Fatalf("usage increments = %d", f.quota.increments)
	}
}

func TestDraftEmailFallsBackToRawText(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	contactID := uuid.New()
	f.contacts.contacts[contactID] = &models.Contact{ID: contactID, OwnerID: ownerID, FirstName: "Anna"}
	f.generator.reply = "Dear Anna, just checking in."

	draft, err := f.svc.DraftEmail(context.Background(), ownerID, DraftEmailInput{
		ContactID: contactID,
		Purpose:   "check in",
	})
	if err != nil {
		t.Fatalf("DraftEmail: %v", err)
	}
	if draft.Subject != "" || draft.Body != "Dear Anna, just checking in." {
		t.Fatalf("draft = %+v", draft)
	}
}

func TestDraftEmailContactNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DraftEmail(context.Background(), uuid.New(), DraftEmailInput{
		ContactID: uuid.New(),
		Purpose:   "check in",
	})
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestContactInsightsParsesJSON(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	contactID := uuid.New()
	f.contacts.contacts[contactID] = &models.Contact{
		ID: contactID, OwnerID: ownerID,
		FirstName: "Jonas", LastName: "Weber",
		Tags: strPtr("vip,lead"),
	}
	f.generator.reply = `{"summary": "Engaged VIP lead.", "suggestions": ["Schedule a call", "Send pricing"]}`

	insights, err := f.svc.ContactInsights(context.Background(), ownerID, contactID)
	if err != nil {
		t.Fatalf("ContactInsights: %v", err)
	}
	if insights.Summary != "Engaged VIP lead." {
		t.Fatalf("summary = %q", insights.Summary)
	}
	if len(insights.Suggestions) != 2 || insights.Suggestions[0] != "Schedule a call" {
		t.Fatalf("suggestions = %v", insights.Suggestions)
	}
}

func TestContactInsightsFallsBackToRawText(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	contactID := uuid.New()
	f.contacts.contacts[contactID] = &models.Contact{ID: contactID, OwnerID: ownerID, FirstName: "Jonas"}
	f.generator.reply = "Not much to say about Jonas yet."

	insights, err := f.svc.ContactInsights(context.Background(), ownerID, contactID)
	if err != nil {
		t.Fatalf("ContactInsights: %v", err)
	}
	if insights.Summary != "Not much to say about Jonas yet." || len(insights.Suggestions) != 0 {
		t.Fatalf("insights = %+v", insights)
	}
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	result, err := f.svc.Chat(context.Background(), ownerID, nil, "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if err := f.svc.DeleteConversation(context.Background(), ownerID, result.ConversationID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.DeleteConversation(context.Background(), ownerID, result.ConversationID); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := StripCodeFences(c.in); got != c.want {
			t.Fatalf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
