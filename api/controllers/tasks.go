package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	crmsvc "github.com/tallyhq/tallycrm-backend/internal/crm"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type taskRequest struct {
	ContactID   *uuid.UUID `json:"contact_id"`
	CompanyID   *uuid.UUID `json:"company_id"`
	DealID      *uuid.UUID `json:"deal_id"`
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

type taskResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContactID   *uuid.UUID `json:"contact_id,omitempty"`
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
	DealID      *uuid.UUID `json:"deal_id,omitempty"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type taskListResponse struct {
	Items      []taskResponse `json:"items"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

func newTaskResponse(task *models.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		ContactID:   task.ContactID,
		CompanyID:   task.CompanyID,
		DealID:      task.DealID,
		Title:       task.Title,
		Description: task.Description,
		Type:        string(task.Type),
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		Completed:   task.Completed,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func (p taskRequest) apply(task *models.Task) error {
	task.ContactID = p.ContactID
	task.CompanyID = p.CompanyID
	task.DealID = p.DealID
	task.Title = p.Title
	task.Description = p.Description
	task.DueDate = p.DueDate

	if p.Type != "" {
		taskType, err := enums.ParseTaskType(p.Type)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid task type")
		}
		task.Type = taskType
	} else if task.Type == "" {
		task.Type = enums.TaskTypeTodo
	}

	if p.Priority != "" {
		priority, err := enums.ParseTaskPriority(p.Priority)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid task priority")
		}
		task.Priority = priority
	} else if task.Priority == "" {
		task.Priority = enums.TaskPriorityMedium
	}
	return nil
}

func TaskCreate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body taskRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task := &models.Task{OwnerID: ownerID}
		if err := body.apply(task); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CreateTask(r.Context(), task); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newTaskResponse(task))
	}
}

func TaskDetail(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.GetTask(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTaskResponse(task))
	}
}

func TaskList(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, cursor, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := crmsvc.ListTasksQuery{
			OwnerID: ownerID,
			Limit:   limit,
			Cursor:  cursor,
		}

		if params.Completed, err = validators.ParseQueryBool(r, "completed"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.DealID, err = validators.ParseQueryUUID(r, "deal_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.ContactID, err = validators.ParseQueryUUID(r, "contact_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tasks, next, err := svc.ListTasks(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]taskResponse, 0, len(tasks))
		for i := range tasks {
			items = append(items, newTaskResponse(&tasks[i]))
		}
		responses.WriteSuccess(w, taskListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}

func TaskUpdate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body taskRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.GetTask(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := body.apply(task); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateTask(r.Context(), task); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTaskResponse(task))
	}
}

// TaskComplete marks the task done and stamps the completion time.
func TaskComplete(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.CompleteTask(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTaskResponse(task))
	}
}

func TaskDelete(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteTask(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
