package crm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

func (s *Service) CreateTask(ctx context.Context, task *models.Task) error {
	if task == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "task is required")
	}
	if task.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if task.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "task title is required")
	}
	if !task.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid task type")
	}
	if !task.Priority.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid task priority")
	}
	return s.repo.CreateTask(ctx, task)
}

func (s *Service) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	task, err := s.repo.FindTaskByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		}
		return nil, err
	}
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, params ListTasksQuery) ([]models.Task, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListTasks(ctx, params)
}

func (s *Service) UpdateTask(ctx context.Context, task *models.Task) error {
	if task == nil || task.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	if _, err := s.GetTask(ctx, task.OwnerID, task.ID); err != nil {
		return err
	}
	return s.repo.UpdateTask(ctx, task)
}

// CompleteTask flips the completion flag and stamps the completion time.
// Completing twice is a no-op.
func (s *Service) CompleteTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	task, err := s.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}
	now := time.Now()
	task.Completed = true
	task.CompletedAt = &now
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteTask(ctx, ownerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
	}
	return err
}
