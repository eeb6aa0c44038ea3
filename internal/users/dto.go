package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Role      enums.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateInput carries a new account request.
type CreateInput struct {
	Username string
	Password string
	Role     enums.Role
}

// UpdateInput holds optional account edits. An empty password keeps the
// current one.
type UpdateInput struct {
	Username *string
	Password *string
	Role     *enums.Role
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func FromModels(list []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
