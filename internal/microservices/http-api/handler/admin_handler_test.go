package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ryoozeen/RCS/internal/microservices/http-api/dto"
	"github.com/ryoozeen/RCS/internal/microservices/tcp"
	"github.com/ryoozeen/RCS/pkg/models"
)

type stubClients []tcp.ClientInfo

func (s stubClients) Snapshot() []tcp.ClientInfo { return s }

// MockOperatorRepository mocks the OperatorRepository interface
type MockOperatorRepository struct {
	mock.Mock
}

func (m *MockOperatorRepository) List(ctx context.Context, limit, offset int) ([]models.Operator, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Operator), args.Get(1).(int64), args.Error(2)
}

func (m *MockOperatorRepository) FindByLoginID(ctx context.Context, loginID string) (*models.Operator, error) {
	args := m.Called(loginID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (string, error) {
	if token == "good" {
		return "amy", nil
	}
	return "", errors.New("bad token")
}

func setupRouter(h *AdminHandler, opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(h, opts)
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleClients() stubClients {
	return stubClients{
		{ID: "10.0.0.5:51000", Role: tcp.RoleOperator},
		{ID: "10.0.0.9:40222", Role: tcp.RoleAgent},
	}
}

func TestHealth(t *testing.T) {
	r := setupRouter(NewAdminHandler(sampleClients(), nil), RouterOptions{Auth: stubValidator{}})

	w := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["clients"])
}

func TestListClients(t *testing.T) {
	r := setupRouter(NewAdminHandler(sampleClients(), nil), RouterOptions{})

	w := serve(r, http.MethodGet, "/clients", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body dto.ClientsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "Operator", body.Clients[0].Role)
	assert.Equal(t, "Agent", body.Clients[1].Role)
}

func TestListClientsRequiresToken(t *testing.T) {
	r := setupRouter(NewAdminHandler(sampleClients(), nil), RouterOptions{Auth: stubValidator{}})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/clients", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/clients", "bad").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/clients", "good").Code)

	req, _ := http.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Authorization", "Token good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListOperators(t *testing.T) {
	repo := new(MockOperatorRepository)
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	repo.On("List", 50, 0).Return([]models.Operator{
		{LoginID: "amy", PasswordHash: "$2a$10$secret", Username: "Amy", CarModel: "EV6", CreatedAt: created},
	}, int64(1), nil)

	r := setupRouter(NewAdminHandler(sampleClients(), repo), RouterOptions{})
	w := serve(r, http.MethodGet, "/operators", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret", "hashes never leave the server")

	var body dto.OperatorsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Total)
	require.Len(t, body.Operators, 1)
	assert.Equal(t, "amy", body.Operators[0].LoginID)
	assert.Equal(t, "EV6", body.Operators[0].CarModel)

	repo.AssertExpectations(t)
}

func TestListOperatorsPagingAndErrors(t *testing.T) {
	repo := new(MockOperatorRepository)
	repo.On("List", 10, 20).Return(nil, int64(0), errors.New("db down"))

	r := setupRouter(NewAdminHandler(sampleClients(), repo), RouterOptions{})
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/operators?limit=10&offset=20", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/operators?limit=1000", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/operators?limit=abc", "").Code)
}

func TestListOperatorsWithoutDatabase(t *testing.T) {
	r := setupRouter(NewAdminHandler(sampleClients(), nil), RouterOptions{})
	assert.Equal(t, http.StatusNotImplemented, serve(r, http.MethodGet, "/operators", "").Code)
}

func TestGetOperator(t *testing.T) {
	repo := new(MockOperatorRepository)
	repo.On("FindByLoginID", "amy").Return(&models.Operator{LoginID: "amy", Username: "Amy"}, nil)
	repo.On("FindByLoginID", "ghost").Return(nil, gorm.ErrRecordNotFound)

	r := setupRouter(NewAdminHandler(sampleClients(), repo), RouterOptions{})

	w := serve(r, http.MethodGet, "/operators/amy", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body dto.OperatorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Amy", body.Username)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/operators/ghost", "").Code)
	repo.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewAdminHandler(sampleClients(), nil)

	r := setupRouter(h, RouterOptions{Metrics: true, Auth: stubValidator{}})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics", "").Code)

	r = setupRouter(h, RouterOptions{})
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics", "").Code)
}
