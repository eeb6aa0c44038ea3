package controllers

import (
	"net/http"
	"strings"

	"github.com/keystock/keystock-backend/api/responses"
	"github.com/keystock/keystock-backend/api/validators"
	"github.com/keystock/keystock-backend/internal/users"
	"github.com/keystock/keystock-backend/pkg/enums"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/keystock/keystock-backend/pkg/logger"
)

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Role     string `json:"role,omitempty"`
}

type updateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,max=64"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6,max=128"`
	Role     *string `json:"role,omitempty"`
}

func parseRole(raw string) (enums.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return enums.RoleUser, nil
	}
	role, err := enums.ParseRole(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").
			WithDetails(map[string]string{"role": "must be admin or user"})
	}
	return role, nil
}

func ListUsers(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModels(list))
	}
}

// CreateUser adds an account. Role defaults to user.
func CreateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var body createUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := parseRole(body.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Create(r.Context(), users.CreateInput{
			Username: body.Username,
			Password: body.Password,
			Role:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, users.FromModel(user))
	}
}

func UpdateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := users.UpdateInput{Username: body.Username, Password: body.Password}
		if body.Role != nil {
			role, err := parseRole(*body.Role)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Role = &role
		}

		user, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

// DeleteUser removes an account; its usage records stay without an author.
func DeleteUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
