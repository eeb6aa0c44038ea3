package controllers

import (
	"context"
	"net/http"

	"github.com/keystock/keystock-backend/api/responses"
	"github.com/keystock/keystock-backend/api/validators"
	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/pkg/db/models"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/keystock/keystock-backend/pkg/logger"
)

const maxSearchLength = 120

type lowStockSource interface {
	LowStock(ctx context.Context) ([]models.Accessory, error)
}

type createAccessoryRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	MinQuantity int     `json:"min_quantity" validate:"gte=0"`
}

type updateAccessoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Quantity    *int    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	MinQuantity *int    `json:"min_quantity,omitempty" validate:"omitempty,gte=0"`
}

type deleteAccessoryResponse struct {
	Accessory    *accessories.AccessoryDTO `json:"accessory"`
	UsageRemoved int64                     `json:"usage_removed"`
}

// ListAccessories returns the full catalogue including zero-stock items.
func ListAccessories(svc accessories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accessory service unavailable"))
			return
		}

		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessories.NewAccessoryDTOs(rows))
	}
}

// SearchAccessories returns in-stock accessories whose name matches q.
func SearchAccessories(svc accessories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accessory service unavailable"))
			return
		}

		rows, err := svc.Search(r.Context(), validators.ParseQueryString(r, "q", maxSearchLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessories.NewAccessoryDTOs(rows))
	}
}

// LowStockAlerts returns the accessories currently at or below threshold.
func LowStockAlerts(source lowStockSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alert evaluator unavailable"))
			return
		}

		rows, err := source.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessories.NewAccessoryDTOs(rows))
	}
}

func CreateAccessory(svc accessories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accessory service unavailable"))
			return
		}

		var body createAccessoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), accessories.CreateInput{
			Name:        body.Name,
			Description: body.Description,
			Quantity:    body.Quantity,
			MinQuantity: body.MinQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, accessories.NewAccessoryDTO(created))
	}
}

func UpdateAccessory(svc accessories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accessory service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateAccessoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, accessories.UpdateInput{
			Name:        body.Name,
			Description: body.Description,
			Quantity:    body.Quantity,
			MinQuantity: body.MinQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessories.NewAccessoryDTO(updated))
	}
}

// DeleteAccessory removes the accessory together with its usage history.
func DeleteAccessory(svc accessories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accessory service unavailable"))
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
		responses.WriteSuccess(w, deleteAccessoryResponse{
			Accessory:    accessories.NewAccessoryDTO(result.Accessory),
			UsageRemoved: result.UsageRemoved,
		})
	}
}
