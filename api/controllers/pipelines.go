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
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type createPipelineRequest struct {
	Name        string              `json:"name" validate:"required"`
	Description *string             `json:"description"`
	Stages      []stageInputPayload `json:"stages" validate:"required,min=1,dive"`
}

type stageInputPayload struct {
	Name        string `json:"name" validate:"required"`
	Probability int    `json:"probability" validate:"min=0,max=100"`
}

type stageResponse struct {
	ID          uuid.UUID `json:"id"`
	PipelineID  uuid.UUID `json:"pipeline_id"`
	Name        string    `json:"name"`
	Probability int       `json:"probability"`
	Position    int       `json:"position"`
}

type pipelineResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	IsDefault   bool            `json:"is_default"`
	Stages      []stageResponse `json:"stages,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newStageResponse(stage models.Stage) stageResponse {
	return stageResponse{
		ID:          stage.ID,
		PipelineID:  stage.PipelineID,
		Name:        stage.Name,
		Probability: stage.Probability,
		Position:    stage.Position,
	}
}

func newPipelineResponse(pipeline *models.Pipeline, stages []models.Stage) pipelineResponse {
	resp := pipelineResponse{
		ID:          pipeline.ID,
		Name:        pipeline.Name,
		Description: pipeline.Description,
		IsDefault:   pipeline.IsDefault,
		CreatedAt:   pipeline.CreatedAt,
	}
	for _, stage := range stages {
		resp.Stages = append(resp.Stages, newStageResponse(stage))
	}
	return resp
}

func PipelineCreate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body createPipelineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pipeline := &models.Pipeline{
			OwnerID:     ownerID,
			Name:        body.Name,
			Description: body.Description,
		}
		stages := make([]models.Stage, len(body.Stages))
		for i, payload := range body.Stages {
			stages[i] = models.Stage{Name: payload.Name, Probability: payload.Probability}
		}

		if err := svc.CreatePipeline(r.Context(), pipeline, stages); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPipelineResponse(pipeline, stages))
	}
}

func PipelineList(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		pipelines, err := svc.ListPipelines(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]pipelineResponse, 0, len(pipelines))
		for i := range pipelines {
			items = append(items, newPipelineResponse(&pipelines[i], nil))
		}
		responses.WriteSuccess(w, items)
	}
}

func PipelineStages(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		pipelineID, err := parseIDParam(r, "pipelineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stages, err := svc.ListStages(r.Context(), ownerID, pipelineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]stageResponse, 0, len(stages))
		for _, stage := range stages {
			items = append(items, newStageResponse(stage))
		}
		responses.WriteSuccess(w, items)
	}
}
