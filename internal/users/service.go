package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/internal/repo"
	"github.com/keystock/keystock-backend/pkg/config"
	"github.com/keystock/keystock-backend/pkg/db"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/keystock/keystock-backend/pkg/security"
	"gorm.io/gorm"
)

const (
	usernameConstraint    = "users_username_key"
	generatedPasswordSize = 16
)

// Service manages shop accounts. All operations are admin-only at the HTTP
// edge; the service itself only enforces data rules.
type Service interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, input CreateInput) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        *Repository
	tx          txRunner
	passwordCfg config.PasswordConfig
}

// NewService builds the account service.
func NewService(repo *Repository, tx txRunner, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, passwordCfg: passwordCfg}, nil
}

func (s *service) List(ctx context.Context) ([]models.User, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, id)
	}
	return user, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	role := input.Role
	if role == "" {
		role = enums.RoleUser
	}

	details := map[string]string{}
	if username == "" {
		details["username"] = "is required"
	}
	if input.Password == "" {
		details["password"] = "is required"
	}
	if !role.IsValid() {
		details["role"] = "must be admin or user"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user").WithDetails(details)
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, writeError(err, "create user")
	}
	return user, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.User, error) {
	details := map[string]string{}
	if input.Username != nil && strings.TrimSpace(*input.Username) == "" {
		details["username"] = "cannot be empty"
	}
	if input.Role != nil && !input.Role.IsValid() {
		details["role"] = "must be admin or user"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user update").WithDetails(details)
	}

	var updated *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		user, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, id)
		}

		if input.Role != nil && user.IsAdmin() && *input.Role != enums.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, txRepo); err != nil {
				return err
			}
		}

		if input.Username != nil {
			user.Username = strings.TrimSpace(*input.Username)
		}
		if input.Role != nil {
			user.Role = *input.Role
		}
		if input.Password != nil && *input.Password != "" {
			hash, err := security.HashPassword(*input.Password, s.passwordCfg)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
			}
			user.PasswordHash = hash
		}

		if err := txRepo.Update(ctx, user); err != nil {
			return writeError(err, "update user")
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the account. Usage records it registered stay in the ledger
// without an author. The last admin cannot be removed.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		user, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, id)
		}
		if user.IsAdmin() {
			if err := ensureAnotherAdmin(ctx, txRepo); err != nil {
				return err
			}
		}

		if err := txRepo.DetachUsage(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach usage records")
		}
		if _, err := txRepo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
		}
		return nil
	})
}

func ensureAnotherAdmin(ctx context.Context, r *Repository) error {
	admins, err := r.CountByRole(ctx, enums.RoleAdmin)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count admins")
	}
	if admins <= 1 {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot remove the last admin")
	}
	return nil
}

func lookupError(err error, id uuid.UUID) error {
	err = repo.TranslateNotFound(err, "user", id.String())
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}

func writeError(err error, message string) error {
	if db.IsUniqueViolation(err, usernameConstraint) || db.IsUniqueViolation(err, "users.username") {
		return pkgerrors.New(pkgerrors.CodeConflict, "username already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

// EnsureDefaultAdmin creates the seed admin when no account exists. When no
// password is configured a random one is generated and returned so the caller
// can show it once.
func EnsureDefaultAdmin(ctx context.Context, r *Repository, seed config.SeedConfig, passwordCfg config.PasswordConfig) (created *models.User, password string, err error) {
	count, err := r.Count(ctx)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	if count > 0 {
		return nil, "", nil
	}

	username := strings.TrimSpace(seed.AdminUsername)
	if username == "" {
		username = config.DefaultSeedAdminUsername
	}
	password = seed.AdminPassword
	if password == "" {
		password, err = security.GenerateTempPassword(generatedPasswordSize)
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate admin password")
		}
	}

	hash, err := security.HashPassword(password, passwordCfg)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash admin password")
	}
	admin := &models.User{Username: username, PasswordHash: hash, Role: enums.RoleAdmin}
	if err := r.Create(ctx, admin); err != nil {
		return nil, "", writeError(err, "create default admin")
	}
	return admin, password, nil
}
