package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/faqline/faqline/internal/api/handlers"
	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/metrics"
	"github.com/faqline/faqline/internal/repository"
	"github.com/faqline/faqline/internal/retrieval"
)

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) Answer(ctx context.Context, tenantID, message string) (*retrieval.Result, error) {
	args := m.Called(ctx, tenantID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retrieval.Result), args.Error(1)
}

type MockTenantGetter struct {
	mock.Mock
}

func (m *MockTenantGetter) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

type MockPublishRunner struct {
	mock.Mock
}

func (m *MockPublishRunner) WithTx(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

type MockCacheInvalidator struct {
	mock.Mock
}

func (m *MockCacheInvalidator) InvalidateTenant(tenantID string) {
	m.Called(tenantID)
}

func setupRouter() (http.Handler, *MockAnswerService, *MockTenantGetter, *MockPublishRunner, *MockCacheInvalidator) {
	svc := new(MockAnswerService)
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	invalidator := new(MockCacheInvalidator)

	cfg := RouterConfig{
		AskHandler:     handlers.NewAskHandler(svc, nil),
		PublishHandler: handlers.NewPublishHandler(tenants, runner, invalidator),
		Metrics:        metrics.New("faqline"),
	}

	return NewRouter(cfg), svc, tenants, runner, invalidator
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Ask(t *testing.T) {
	router, svc, _, _, _ := setupRouter()

	svc.On("Answer", mock.Anything, "tenant-1", "what are your hours").Return(&retrieval.Result{
		Answer: "9 to 5 weekdays",
		Decision: domain.RetrievalDecision{
			Branch:       domain.BranchFactHit,
			ChosenItemID: "item-1",
			TopScore:     0.93,
		},
	}, nil)

	body := `{"tenant_id":"tenant-1","message":"what are your hours"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fact_hit", w.Header().Get("x-debug-branch"))
	svc.AssertExpectations(t)
}

func TestRouter_Publish_ResolvesTenantFromPath(t *testing.T) {
	router, _, tenants, runner, invalidator := setupRouter()

	tenants.On("GetByID", mock.Anything, "tenant-1").Return(&domain.Tenant{ID: "tenant-1"}, nil)
	runner.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	invalidator.On("InvalidateTenant", "tenant-1").Return()

	body := `{"items":[{"canonical_question":"what are your hours","answer":"9 to 5"}]}`
	req := httptest.NewRequest(http.MethodPost, "/tenants/tenant-1/publish", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	tenants.AssertExpectations(t)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

// TestRouter_BodyLimit pins the 64 KiB request body cap.
func TestRouter_BodyLimit(t *testing.T) {
	router, svc, _, _, _ := setupRouter()
	svc.On("Answer", mock.Anything, mock.Anything, mock.Anything).Return(&retrieval.Result{
		Decision: domain.RetrievalDecision{Branch: domain.BranchFactMiss},
	}, nil).Maybe()

	huge := `{"tenant_id":"tenant-1","message":"` + strings.Repeat("a", 70*1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(huge))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
