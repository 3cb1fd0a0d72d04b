package crm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

// CreateDeal inserts a deal and logs a deal_created activity.
func (s *Service) CreateDeal(ctx context.Context, deal *models.Deal) error {
	if deal == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal is required")
	}
	if deal.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if deal.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal name is required")
	}
	if deal.Value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal value cannot be negative")
	}
	if !deal.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if deal.Status == "" {
		deal.Status = enums.DealStatusOpen
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if deal.StageID != nil {
			stage, err := repo.FindStageByID(ctx, *deal.StageID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "stage not found")
				}
				return err
			}
			deal.Probability = stage.Probability
			deal.PipelineID = &stage.PipelineID
		}
		if err := repo.CreateDeal(ctx, deal); err != nil {
			return err
		}
		return s.logDealActivity(ctx, repo, deal, enums.ActivityTypeDealCreated, fmt.Sprintf("Deal created: %s", deal.Name))
	})
}

func (s *Service) GetDeal(ctx context.Context, ownerID, id uuid.UUID) (*models.Deal, error) {
	deal, err := s.repo.FindDealByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
		}
		return nil, err
	}
	return deal, nil
}

func (s *Service) ListDeals(ctx context.Context, params ListDealsQuery) ([]models.Deal, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListDeals(ctx, params)
}

// UpdateDeal saves field changes on an open deal and logs the update.
func (s *Service) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	if deal == nil || deal.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	stored, err := s.GetDeal(ctx, deal.OwnerID, deal.ID)
	if err != nil {
		return err
	}
	if stored.Status != enums.DealStatusOpen {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "closed deals cannot be edited")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateDeal(ctx, deal); err != nil {
			return err
		}
		return s.logDealActivity(ctx, repo, deal, enums.ActivityTypeDealUpdated, fmt.Sprintf("Deal updated: %s", deal.Name))
	})
}

// MoveDealToStage moves an open deal and syncs its probability with the stage.
func (s *Service) MoveDealToStage(ctx context.Context, ownerID, dealID, stageID uuid.UUID) (*models.Deal, error) {
	deal, err := s.GetDeal(ctx, ownerID, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != enums.DealStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "closed deals cannot change stage")
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stage, stageErr := repo.FindStageByID(ctx, stageID)
		if stageErr != nil {
			if errors.Is(stageErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "stage not found")
			}
			return stageErr
		}
		deal.StageID = &stage.ID
		deal.PipelineID = &stage.PipelineID
		deal.Probability = stage.Probability
		if txErr := repo.UpdateDeal(ctx, deal); txErr != nil {
			return txErr
		}
		return s.logDealActivity(ctx, repo, deal, enums.ActivityTypeDealUpdated, fmt.Sprintf("Deal moved to stage: %s", stage.Name))
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// CloseDeal marks the deal won or lost. Closing is final.
func (s *Service) CloseDeal(ctx context.Context, ownerID, dealID uuid.UUID, won bool, lostReason *string) (*models.Deal, error) {
	deal, err := s.GetDeal(ctx, ownerID, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != enums.DealStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deal is already closed")
	}

	now := time.Now()
	deal.ActualCloseDate = &now
	if won {
		deal.Status = enums.DealStatusWon
		deal.Probability = 100
	} else {
		deal.Status = enums.DealStatusLost
		deal.Probability = 0
		deal.LostReason = lostReason
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if txErr := repo.UpdateDeal(ctx, deal); txErr != nil {
			return txErr
		}
		kind := enums.ActivityTypeDealWon
		title := fmt.Sprintf("Deal won: %s", deal.Name)
		if !won {
			kind = enums.ActivityTypeDealLost
			title = fmt.Sprintf("Deal lost: %s", deal.Name)
		}
		return s.logDealActivity(ctx, repo, deal, kind, title)
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *Service) DeleteDeal(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteDeal(ctx, ownerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
	}
	return err
}

// CreatePipeline inserts a pipeline with its ordered stages.
func (s *Service) CreatePipeline(ctx context.Context, pipeline *models.Pipeline, stages []models.Stage) error {
	if pipeline == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pipeline is required")
	}
	if pipeline.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if pipeline.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "pipeline name is required")
	}
	for _, stage := range stages {
		if stage.Probability < 0 || stage.Probability > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stage probability must be within 0..100")
		}
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreatePipeline(ctx, pipeline); err != nil {
			return err
		}
		for i := range stages {
			stages[i].PipelineID = pipeline.ID
			stages[i].Position = i
		}
		return repo.CreateStages(ctx, stages)
	})
}

func (s *Service) ListPipelines(ctx context.Context, ownerID uuid.UUID) ([]models.Pipeline, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListPipelines(ctx, ownerID)
}

func (s *Service) ListStages(ctx context.Context, ownerID, pipelineID uuid.UUID) ([]models.Stage, error) {
	if _, err := s.repo.FindPipelineByID(ctx, ownerID, pipelineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pipeline not found")
		}
		return nil, err
	}
	return s.repo.ListStagesByPipeline(ctx, pipelineID)
}
