package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystock/keystock-backend/internal/users"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
)

type stubUserService struct {
	list []models.User
	user *models.User
	err  error

	gotCreate users.CreateInput
	gotUpdate users.UpdateInput
}

func (s *stubUserService) List(context.Context) ([]models.User, error) { return s.list, s.err }

func (s *stubUserService) Get(context.Context, uuid.UUID) (*models.User, error) { return s.user, s.err }

func (s *stubUserService) Create(_ context.Context, input users.CreateInput) (*models.User, error) {
	s.gotCreate = input
	return s.user, s.err
}

func (s *stubUserService) Update(_ context.Context, _ uuid.UUID, input users.UpdateInput) (*models.User, error) {
	s.gotUpdate = input
	return s.user, s.err
}

func (s *stubUserService) Delete(context.Context, uuid.UUID) error { return s.err }

func TestCreateUserDefaultsRole(t *testing.T) {
	svc := &stubUserService{user: &models.User{ID: uuid.New(), Username: "maria", Role: enums.RoleUser}}
	rec := httptest.NewRecorder()

	CreateUser(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/users", `{"username":"maria","password":"secret1"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, enums.RoleUser, svc.gotCreate.Role)

	var dto users.UserDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, "maria", dto.Username)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := &stubUserService{}
	rec := httptest.NewRecorder()

	CreateUser(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/users", `{"username":"maria","password":"secret1","role":"owner"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	svc := &stubUserService{err: pkgerrors.New(pkgerrors.CodeConflict, "username already taken")}
	rec := httptest.NewRecorder()

	CreateUser(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/users", `{"username":"maria","password":"secret1"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), decodeError(t, rec).Error.Code)
}

func TestUpdateUserParsesRole(t *testing.T) {
	id := uuid.New()
	svc := &stubUserService{user: &models.User{ID: id, Username: "maria", Role: enums.RoleAdmin}}
	req := withURLParam(newRequest(http.MethodPut, "/api/v1/users/"+id.String(), `{"role":"ADMIN"}`), "id", id.String())
	rec := httptest.NewRecorder()

	UpdateUser(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotUpdate.Role)
	assert.Equal(t, enums.RoleAdmin, *svc.gotUpdate.Role)
	assert.Nil(t, svc.gotUpdate.Password)
}

func TestDeleteUserLastAdminConflict(t *testing.T) {
	id := uuid.New()
	svc := &stubUserService{err: pkgerrors.New(pkgerrors.CodeConflict, "cannot remove the last admin")}
	req := withURLParam(newRequest(http.MethodDelete, "/api/v1/users/"+id.String(), ""), "id", id.String())
	rec := httptest.NewRecorder()

	DeleteUser(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListUsers(t *testing.T) {
	svc := &stubUserService{list: []models.User{{ID: uuid.New(), Username: "Admin", Role: enums.RoleAdmin}}}
	rec := httptest.NewRecorder()

	ListUsers(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/users", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []users.UserDTO
	decodeData(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, enums.RoleAdmin, list[0].Role)
}
