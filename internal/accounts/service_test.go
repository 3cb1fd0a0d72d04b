package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/config"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
)

type stubRepo struct {
	users       map[string]*models.User
	createErr   error
	lastCreated *models.User
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[string]*models.User{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = uuid.New()
	s.users[user.Email] = user
	s.lastCreated = user
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (s *stubRepo) Update(ctx context.Context, user *models.User) error {
	s.users[user.Email] = user
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingBootstrapper struct {
	calls []uuid.UUID
	err   error
}

func (r *recordingBootstrapper) BootstrapTenant(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, ownerID)
	return nil
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "tallycrm", ExpirationMinutes: 15}
}

func newTestService(t *testing.T, repo Repository, boots ...TenantBootstrapper) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: stubTxRunner{},
		Bootstrappers:     boots,
		JWT:               testJWTConfig(),
		Password:          testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRegisterCreatesUserAndBootstrapsTenant(t *testing.T) {
	repo := newStubRepo()
	boot := &recordingBootstrapper{}
	svc := newTestService(t, repo, boot)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:     "Owner@Example.com",
		Password:  "long-enough-password",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "owner@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "long-enough-password" {
		t.Fatal("password was not hashed")
	}
	if len(boot.calls) != 1 || boot.calls[0] != user.ID {
		t.Fatalf("expected bootstrapper call for %s, got %v", user.ID, boot.calls)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.c", Password: "short"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "long-enough-password",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := svc.Login(context.Background(), "owner@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a minted token")
	}

	if _, err := svc.Login(context.Background(), "owner@example.com", "wrong-password"); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost@example.com", "whatever"); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "original-password",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), user.ID, "wrong", "next-password-123"); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), user.ID, "original-password", "next-password-123"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(context.Background(), "owner@example.com", "next-password-123"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
