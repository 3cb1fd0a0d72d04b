package crm

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
)

// defaultStages is the starter pipeline every new account gets.
var defaultStages = []struct {
	name        string
	probability int
}{
	{"Lead", 10},
	{"Contacted", 25},
	{"Proposal", 50},
	{"Negotiation", 75},
	{"Won", 100},
}

// BootstrapTenant seeds the default sales pipeline for a new account.
func (s *Service) BootstrapTenant(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	pipeline := &models.Pipeline{
		OwnerID:   ownerID,
		Name:      "Sales Pipeline",
		IsDefault: true,
	}
	if err := repo.CreatePipeline(ctx, pipeline); err != nil {
		return err
	}

	stages := make([]models.Stage, 0, len(defaultStages))
	for i, def := range defaultStages {
		stages = append(stages, models.Stage{
			PipelineID:  pipeline.ID,
			Name:        def.name,
			Probability: def.probability,
			Position:    i,
		})
	}
	return repo.CreateStages(ctx, stages)
}
