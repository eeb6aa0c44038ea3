package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keystock/keystock-backend/api/middleware"
	"github.com/keystock/keystock-backend/api/responses"
	"github.com/keystock/keystock-backend/api/validators"
	"github.com/keystock/keystock-backend/internal/usage"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/keystock/keystock-backend/pkg/logger"
)

type registerUsageRequest struct {
	AccessoryID string `json:"accessory_id" validate:"required,uuid"`
	Brand       string `json:"brand" validate:"required,max=80"`
	Model       string `json:"model" validate:"required,max=80"`
	Year        int    `json:"year" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required"`
}

type updateUsageRequest struct {
	Brand    *string `json:"brand,omitempty" validate:"omitempty,max=80"`
	Model    *string `json:"model,omitempty" validate:"omitempty,max=80"`
	Year     *int    `json:"year,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

func actorFromRequest(r *http.Request) (usage.Actor, error) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return usage.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return usage.Actor{UserID: userID, Role: role}, nil
}

// RegisterUsage records a consumption event and decrements stock.
func RegisterUsage(svc usage.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerUsageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accessoryID, err := uuid.Parse(body.AccessoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid accessory_id"))
			return
		}

		result, err := svc.Register(r.Context(), actor, usage.RegisterInput{
			AccessoryID: accessoryID,
			Brand:       body.Brand,
			Model:       body.Model,
			Year:        body.Year,
			Quantity:    body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, usage.NewResultDTO(result, loc))
	}
}

// UsageHistory lists one local calendar day of usage. Non-admins only see
// their own records.
func UsageHistory(svc usage.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		day, err := usage.ParseDay(r.URL.Query().Get("date"), loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), actor, day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usage.NewRecordDTOs(rows, loc))
	}
}

// UpdateUsage edits a record and moves stock by the quantity delta.
func UpdateUsage(svc usage.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateUsageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Update(r.Context(), id, usage.UpdateInput{
			Brand:    body.Brand,
			Model:    body.Model,
			Year:     body.Year,
			Quantity: body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usage.NewResultDTO(result, loc))
	}
}

// DeleteUsage removes a record and returns its quantity to stock.
func DeleteUsage(svc usage.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Delete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usage.NewResultDTO(result, loc))
	}
}

func ToggleUsageFlag(svc usage.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.ToggleFlag(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usage.NewRecordDTO(row, loc))
	}
}
