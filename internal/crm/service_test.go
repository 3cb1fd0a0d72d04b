package crm

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

type stubRepo struct {
	contactCount int64
	contacts     map[uuid.UUID]*models.Contact
	deals        map[uuid.UUID]*models.Deal
	tasks        map[uuid.UUID]*models.Task
	stages       map[uuid.UUID]*models.Stage
	activities   []models.Activity
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		contacts: map[uuid.UUID]*models.Contact{},
		deals:    map[uuid.UUID]*models.Deal{},
		tasks:    map[uuid.UUID]*models.Task{},
		stages:   map[uuid.UUID]*models.Stage{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateContact(ctx context.Context, contact *models.Contact) error {
	contact.ID = uuid.New()
	s.contacts[contact.ID] = contact
	s.contactCount++
	return nil
}

func (s *stubRepo) FindContactByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Contact, error) {
	c, ok := s.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (s *stubRepo) ListContacts(ctx context.Context, params ListContactsQuery) ([]models.Contact, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubRepo) UpdateContact(ctx context.Context, contact *models.Contact) error { return nil }

func (s *stubRepo) DeleteContact(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, ok := s.contacts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.contacts, id)
	s.contactCount--
	return nil
}

func (s *stubRepo) CountContacts(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return s.contactCount, nil
}

func (s *stubRepo) CreateCompany(ctx context.Context, company *models.Company) error { return nil }
func (s *stubRepo) FindCompanyByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Company, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubRepo) ListCompanies(ctx context.Context, params ListCompaniesQuery) ([]models.Company, *pagination.Cursor, error) {
	return nil, nil, nil
}
func (s *stubRepo) UpdateCompany(ctx context.Context, company *models.Company) error { return nil }
func (s *stubRepo) DeleteCompany(ctx context.Context, ownerID, id uuid.UUID) error   { return nil }

func (s *stubRepo) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	pipeline.ID = uuid.New()
	return nil
}

func (s *stubRepo) CreateStages(ctx context.Context, stages []models.Stage) error {
	for i := range stages {
		stages[i].ID = uuid.New()
		copied := stages[i]
		s.stages[copied.ID] = &copied
	}
	return nil
}

func (s *stubRepo) FindPipelineByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Pipeline, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubRepo) ListPipelines(ctx context.Context, ownerID uuid.UUID) ([]models.Pipeline, error) {
	return nil, nil
}
func (s *stubRepo) ListStagesByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]models.Stage, error) {
	return nil, nil
}

func (s *stubRepo) FindStageByID(ctx context.Context, id uuid.UUID) (*models.Stage, error) {
	stage, ok := s.stages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return stage, nil
}

func (s *stubRepo) CreateDeal(ctx context.Context, deal *models.Deal) error {
	deal.ID = uuid.New()
	s.deals[deal.ID] = deal
	return nil
}

func (s *stubRepo) FindDealByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Deal, error) {
	d, ok := s.deals[id]
	if !ok || d.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (s *stubRepo) ListDeals(ctx context.Context, params ListDealsQuery) ([]models.Deal, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubRepo) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	s.deals[deal.ID] = deal
	return nil
}

func (s *stubRepo) DeleteDeal(ctx context.Context, ownerID, id uuid.UUID) error { return nil }

func (s *stubRepo) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New()
	s.tasks[task.ID] = task
	return nil
}

func (s *stubRepo) FindTaskByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (s *stubRepo) ListTasks(ctx context.Context, params ListTasksQuery) ([]models.Task, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubRepo) UpdateTask(ctx context.Context, task *models.Task) error {
	s.tasks[task.ID] = task
	return nil
}

func (s *stubRepo) DeleteTask(ctx context.Context, ownerID, id uuid.UUID) error { return nil }

func (s *stubRepo) CreateActivity(ctx context.Context, activity *models.Activity) error {
	s.activities = append(s.activities, *activity)
	return nil
}

func (s *stubRepo) ListActivities(ctx context.Context, params ListActivitiesQuery) ([]models.Activity, *pagination.Cursor, error) {
	return s.activities, nil, nil
}

type fixedLimiter struct {
	limit int
	err   error
}

func (f fixedLimiter) ContactLimit(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return f.limit, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, limit int) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Limiter:           fixedLimiter{limit: limit},
		TransactionRunner: passthroughTx{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateContactEnforcesPlanLimit(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, 2)
	owner := uuid.New()

	for i := 0; i < 2; i++ {
		err := svc.CreateContact(context.Background(), &models.Contact{OwnerID: owner, FirstName: "A"})
		if err != nil {
			t.Fatalf("create contact %d: %v", i, err)
		}
	}

	err := svc.CreateContact(context.Background(), &models.Contact{OwnerID: owner, FirstName: "B"})
	if !pkgerrors.Is(err, pkgerrors.CodeQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestCreateContactUnlimitedPlanSkipsCount(t *testing.T) {
	repo := newStubRepo()
	repo.contactCount = 1_000_000
	svc := newTestService(t, repo, -1)

	err := svc.CreateContact(context.Background(), &models.Contact{OwnerID: uuid.New(), FirstName: "A"})
	if err != nil {
		t.Fatalf("expected unlimited plan to allow create, got %v", err)
	}
}

func TestCreateDealSyncsStageProbability(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, -1)
	owner := uuid.New()

	pipelineID := uuid.New()
	stageID := uuid.New()
	repo.stages[stageID] = &models.Stage{ID: stageID, PipelineID: pipelineID, Name: "Proposal", Probability: 50}

	deal := &models.Deal{
		OwnerID:  owner,
		Name:     "Big deal",
		Currency: enums.CurrencyEUR,
		StageID:  &stageID,
	}
	if err := svc.CreateDeal(context.Background(), deal); err != nil {
		t.Fatalf("create deal: %v", err)
	}
	if deal.Probability != 50 {
		t.Fatalf("expected probability 50, got %d", deal.Probability)
	}
	if deal.PipelineID == nil || *deal.PipelineID != pipelineID {
		t.Fatal("pipeline id not derived from stage")
	}
	if len(repo.activities) != 1 || repo.activities[0].Type != enums.ActivityTypeDealCreated {
		t.Fatalf("expected deal_created activity, got %+v", repo.activities)
	}
}

func TestCloseDealIsFinal(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, -1)
	owner := uuid.New()

	deal := &models.Deal{OwnerID: owner, Name: "D", Currency: enums.CurrencyEUR}
	if err := svc.CreateDeal(context.Background(), deal); err != nil {
		t.Fatalf("create deal: %v", err)
	}

	closed, err := svc.CloseDeal(context.Background(), owner, deal.ID, true, nil)
	if err != nil {
		t.Fatalf("close deal: %v", err)
	}
	if closed.Status != enums.DealStatusWon || closed.Probability != 100 {
		t.Fatalf("unexpected closed state %+v", closed)
	}
	if closed.ActualCloseDate == nil {
		t.Fatal("expected actual close date")
	}

	if _, err := svc.CloseDeal(context.Background(), owner, deal.ID, false, nil); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double close, got %v", err)
	}
	if err := svc.UpdateDeal(context.Background(), closed); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict editing closed deal, got %v", err)
	}
}

func TestCompleteTaskIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, -1)
	owner := uuid.New()

	task := &models.Task{OwnerID: owner, Title: "Call client", Type: enums.TaskTypeCall, Priority: enums.TaskPriorityHigh}
	if err := svc.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	first, err := svc.CompleteTask(context.Background(), owner, task.ID)
	if err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if !first.Completed || first.CompletedAt == nil {
		t.Fatal("task not completed")
	}
	stamp := *first.CompletedAt

	second, err := svc.CompleteTask(context.Background(), owner, task.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !second.CompletedAt.Equal(stamp) {
		t.Fatal("completion timestamp changed on repeat call")
	}
}
