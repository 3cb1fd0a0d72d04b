package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/llm"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

const (
	maxTitleLength  = 80
	maxPromptLength = 8000
)

type quotaGate interface {
	CanUseAI(ctx context.Context, ownerID uuid.UUID) (bool, error)
	IncrementAIUsage(ctx context.Context, ownerID uuid.UUID) error
}

type contactLoader interface {
	FindContactByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Contact, error)
}

// ServiceParams groups dependencies for the assistant service.
type ServiceParams struct {
	Repo      Repository
	Generator llm.Generator
	Quota     quotaGate
	Contacts  contactLoader
	Logger    *logger.Logger
}

// Service runs the AI assistant: chat threads, email drafting and contact
// insights, all gated by the tenant's monthly quota.
type Service struct {
	repo      Repository
	generator llm.Generator
	quota     quotaGate
	contacts  contactLoader
	logg      *logger.Logger
}

// NewService builds an assistant service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Generator == nil {
		return nil, errors.New("llm generator is required")
	}
	if params.Quota == nil {
		return nil, errors.New("quota gate is required")
	}
	if params.Contacts == nil {
		return nil, errors.New("contact loader is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:      params.Repo,
		generator: params.Generator,
		quota:     params.Quota,
		contacts:  params.Contacts,
		logg:      params.Logger,
	}, nil
}

// ChatResult is one completed assistant exchange.
type ChatResult struct {
	ConversationID uuid.UUID
	Reply          string
}

// Chat sends a prompt within a conversation, creating the thread on first
// use, and returns the model's reply. Both sides of the exchange are
// persisted.
func (s *Service) Chat(ctx context.Context, ownerID uuid.UUID, conversationID *uuid.UUID, prompt string) (*ChatResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}
	if len(prompt) > maxPromptLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is too long")
	}
	if err := s.checkQuota(ctx, ownerID); err != nil {
		return nil, err
	}

	conversation, history, err := s.resolveConversation(ctx, ownerID, conversationID, prompt)
	if err != nil {
		return nil, err
	}

	system, err := s.systemPrompt(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	turns := make([]llm.Turn, 0, len(history)+1)
	for _, message := range history {
		turns = append(turns, llm.Turn{Role: message.Role.String(), Text: message.Content})
	}
	turns = append(turns, llm.Turn{Role: enums.MessageRoleUser.String(), Text: prompt})

	reply, err := s.generator.Generate(ctx, llm.Request{System: system, Turns: turns})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate assistant reply")
	}

	userMessage := &models.Message{ConversationID: conversation.ID, Role: enums.MessageRoleUser, Content: prompt}
	if err := s.repo.CreateMessage(ctx, userMessage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist user message")
	}
	modelMessage := &models.Message{ConversationID: conversation.ID, Role: enums.MessageRoleModel, Content: reply}
	if err := s.repo.CreateMessage(ctx, modelMessage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist model message")
	}
	if err := s.repo.TouchConversation(ctx, conversation.ID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "conversation_id", conversation.ID.String()), "touch conversation", err)
	}

	s.recordUsage(ctx, ownerID)
	return &ChatResult{ConversationID: conversation.ID, Reply: reply}, nil
}

// GetConversation returns a thread with its messages in order.
func (s *Service) GetConversation(ctx context.Context, ownerID, id uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.repo.FindConversationByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find conversation")
	}
	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
	}
	conversation.Messages = messages
	return conversation, nil
}

func (s *Service) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	conversations, err := s.repo.ListConversations(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list conversations")
	}
	return conversations, nil
}

func (s *Service) DeleteConversation(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteConversation(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete conversation")
	}
	return nil
}

// EmailDraft is a generated outbound email.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DraftEmailInput describes the email to generate.
type DraftEmailInput struct {
	ContactID uuid.UUID
	Purpose   string
	Tone      string
}

// DraftEmail asks the model for an email to the contact. The model is told
// to answer in JSON; when it does not, the raw text becomes the body.
func (s *Service) DraftEmail(ctx context.Context, ownerID uuid.UUID, input DraftEmailInput) (*EmailDraft, error) {
	if strings.TrimSpace(input.Purpose) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purpose is required")
	}
	if err := s.checkQuota(ctx, ownerID); err != nil {
		return nil, err
	}

	contact, err := s.loadContact(ctx, ownerID, input.ContactID)
	if err != nil {
		return nil, err
	}

	tone := strings.TrimSpace(input.Tone)
	if tone == "" {
		tone = "professional"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a %s email to %s", tone, contact.FullName())
	if contact.Position != nil && *contact.Position != "" {
		fmt.Fprintf(&sb, " (%s)", *contact.Position)
	}
	fmt.Fprintf(&sb, ".\nPurpose: %s\n", strings.TrimSpace(input.Purpose))
	if contact.Notes != nil && *contact.Notes != "" {
		fmt.Fprintf(&sb, "Background notes on the contact: %s\n", *contact.Notes)
	}
	sb.WriteString(`Respond with only a JSON object: {"subject": "...", "body": "..."}`)

	reply, err := s.generator.Generate(ctx, llm.Request{
		System: "You are a CRM assistant that writes concise business emails.",
		Turns:  []llm.Turn{{Role: enums.MessageRoleUser.String(), Text: sb.String()}},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate email draft")
	}

	s.recordUsage(ctx, ownerID)

	var draft EmailDraft
	if err := json.Unmarshal([]byte(StripCodeFences(reply)), &draft); err != nil || draft.Body == "" {
		// Model ignored the JSON instruction; ship what it wrote.
		return &EmailDraft{Body: strings.TrimSpace(reply)}, nil
	}
	return &draft, nil
}

// ContactInsights is the model's read on one contact.
type ContactInsights struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

// ContactInsights summarizes a contact and suggests next steps. Falls back
// to the raw reply as the summary when the model does not return JSON.
func (s *Service) ContactInsights(ctx context.Context, ownerID, contactID uuid.UUID) (*ContactInsights, error) {
	if err := s.checkQuota(ctx, ownerID); err != nil {
		return nil, err
	}

	contact, err := s.loadContact(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this CRM contact and suggest next steps.\nName: %s\n", contact.FullName())
	if contact.Position != nil && *contact.Position != "" {
		fmt.Fprintf(&sb, "Position: %s\n", *contact.Position)
	}
	if contact.Email != nil && *contact.Email != "" {
		fmt.Fprintf(&sb, "Email: %s\n", *contact.Email)
	}
	if contact.Tags != nil && *contact.Tags != "" {
		fmt.Fprintf(&sb, "Tags: %s\n", *contact.Tags)
	}
	if contact.Notes != nil && *contact.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", *contact.Notes)
	}
	sb.WriteString(`Respond with only a JSON object: {"summary": "...", "suggestions": ["...", "..."]}`)

	reply, err := s.generator.Generate(ctx, llm.Request{
		System: "You are a CRM assistant that analyzes customer relationships.",
		Turns:  []llm.Turn{{Role: enums.MessageRoleUser.String(), Text: sb.String()}},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate contact insights")
	}

	s.recordUsage(ctx, ownerID)

	var insights ContactInsights
	if err := json.Unmarshal([]byte(StripCodeFences(reply)), &insights); err != nil || insights.Summary == "" {
		return &ContactInsights{Summary: strings.TrimSpace(reply)}, nil
	}
	return &insights, nil
}

func (s *Service) checkQuota(ctx context.Context, ownerID uuid.UUID) error {
	allowed, err := s.quota.CanUseAI(ctx, ownerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ai quota")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "monthly AI request limit reached, upgrade your plan to continue")
	}
	return nil
}

// recordUsage bumps the counter after a successful call. A failed bump does
// not fail the request.
func (s *Service) recordUsage(ctx context.Context, ownerID uuid.UUID) {
	if err := s.quota.IncrementAIUsage(ctx, ownerID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "owner_id", ownerID.String()), "increment ai usage", err)
	}
}

func (s *Service) loadContact(ctx context.Context, ownerID, contactID uuid.UUID) (*models.Contact, error) {
	contact, err := s.contacts.FindContactByID(ctx, ownerID, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find contact")
	}
	return contact, nil
}

func (s *Service) resolveConversation(ctx context.Context, ownerID uuid.UUID, conversationID *uuid.UUID, prompt string) (*models.Conversation, []models.Message, error) {
	if conversationID != nil {
		conversation, err := s.repo.FindConversationByID(ctx, ownerID, *conversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find conversation")
		}
		history, err := s.repo.ListMessages(ctx, conversation.ID)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
		}
		return conversation, history, nil
	}

	conversation := &models.Conversation{OwnerID: ownerID, Title: conversationTitle(prompt)}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create conversation")
	}
	return conversation, nil, nil
}

func (s *Service) systemPrompt(ctx context.Context, ownerID uuid.UUID) (string, error) {
	counts, err := s.repo.ContextCounts(ctx, ownerID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load crm context")
	}
	return fmt.Sprintf(
		"You are a helpful CRM assistant. The user's account currently holds "+
			"%d contacts, %d companies, %d deals, %d open tasks and %d invoices. "+
			"Answer questions about managing their customer relationships.",
		counts.Contacts, counts.Companies, counts.Deals, counts.OpenTasks, counts.Invoices,
	), nil
}

func conversationTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, so fenced JSON replies can be parsed.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
