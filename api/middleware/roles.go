package middleware

import (
	"net/http"

	"github.com/keystock/keystock-backend/api/responses"
	"github.com/keystock/keystock-backend/pkg/enums"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
	"github.com/keystock/keystock-backend/pkg/logger"
)

func RequireRole(role enums.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != string(role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, role.String()+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
