package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	assistantsvc "github.com/tallyhq/tallycrm-backend/internal/assistant"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type chatRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	Prompt         string     `json:"prompt" validate:"required"`
}

type chatResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reply          string    `json:"reply"`
}

type draftEmailRequest struct {
	ContactID uuid.UUID `json:"contact_id" validate:"required"`
	Purpose   string    `json:"purpose" validate:"required"`
	Tone      string    `json:"tone"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationResponse struct {
	ID        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	Messages  []messageResponse `json:"messages,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func newConversationResponse(conv *models.Conversation) conversationResponse {
	resp := conversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, msg := range conv.Messages {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return resp
}

// AssistantChat sends a prompt to the assistant inside a conversation,
// creating the thread on first use.
func AssistantChat(svc *assistantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body chatRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Chat(r.Context(), ownerID, body.ConversationID, body.Prompt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, chatResponse{
			ConversationID: result.ConversationID,
			Reply:          result.Reply,
		})
	}
}

// AssistantDraftEmail generates an email draft addressed to a contact.
func AssistantDraftEmail(svc *assistantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body draftEmailRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.DraftEmail(r.Context(), ownerID, assistantsvc.DraftEmailInput{
			ContactID: body.ContactID,
			Purpose:   body.Purpose,
			Tone:      body.Tone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, draft)
	}
}

type contactInsightsRequest struct {
	ContactID uuid.UUID `json:"contact_id" validate:"required"`
}

// AssistantContactInsights summarizes a contact and suggests next steps.
func AssistantContactInsights(svc *assistantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body contactInsightsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		insights, err := svc.ContactInsights(r.Context(), ownerID, body.ContactID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, insights)
	}
}

func ConversationList(svc *assistantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversations, err := svc.ListConversations(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]conversationResponse, 0, len(conversations))
		for i := range conversations {
			items = append(items, newConversationResponse(&conversations[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func ConversationDetail(svc *assistantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "conversationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversation, err := svc.GetConversation(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newConversationResponse(conversation))
	}
}

func ConversationDelete(svc *assistantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "conversationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteConversation(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
