package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/repository"
)

// MockTenantGetter is a mock implementation of TenantGetter
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

// MockPublishRunner is a mock implementation of PublishRunner. It does not
// invoke the transaction body; the body itself is covered by the repository
// integration tests.
type MockPublishRunner struct {
	mock.Mock
}

func (m *MockPublishRunner) WithTx(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockCacheInvalidator is a mock implementation of CacheInvalidator
type MockCacheInvalidator struct {
	mock.Mock
}

func (m *MockCacheInvalidator) InvalidateTenant(tenantID string) {
	m.Called(tenantID)
}

func publishRequest(t *testing.T, tenantID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tenants/"+tenantID+"/publish", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("tenantID", tenantID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestPublishHandler_Success(t *testing.T) {
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	cache := new(MockCacheInvalidator)

	tenants.On("GetByID", mock.Anything, "tenant-1").Return(&domain.Tenant{ID: "tenant-1", Name: "Acme"}, nil)
	runner.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	cache.On("InvalidateTenant", "tenant-1").Return()

	body := `{"items":[
		{"canonical_question":"what are your hours","answer":"9 to 5","variants":["when are you open"]},
		{"canonical_question":"where are you","answer":"12 main street"}
	]}`

	h := NewPublishHandler(tenants, runner, cache)
	w := httptest.NewRecorder()
	h.Publish(w, publishRequest(t, "tenant-1", body))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data PublishResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Items)

	cache.AssertExpectations(t)
	runner.AssertExpectations(t)
}

func TestPublishHandler_UnknownTenant(t *testing.T) {
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	cache := new(MockCacheInvalidator)

	tenants.On("GetByID", mock.Anything, "nope").Return(nil, domain.ErrTenantNotFound)

	h := NewPublishHandler(tenants, runner, cache)
	w := httptest.NewRecorder()
	h.Publish(w, publishRequest(t, "nope", `{"items":[]}`))

	assert.Equal(t, http.StatusNotFound, w.Code)
	runner.AssertNotCalled(t, "WithTx", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "InvalidateTenant", mock.Anything)
}

func TestPublishHandler_InvalidItem(t *testing.T) {
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	cache := new(MockCacheInvalidator)

	tenants.On("GetByID", mock.Anything, "tenant-1").Return(&domain.Tenant{ID: "tenant-1"}, nil)

	// Enabled item without an answer violates the publish invariant.
	body := `{"items":[{"canonical_question":"what are your hours","answer":""}]}`

	h := NewPublishHandler(tenants, runner, cache)
	w := httptest.NewRecorder()
	h.Publish(w, publishRequest(t, "tenant-1", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	runner.AssertNotCalled(t, "WithTx", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "InvalidateTenant", mock.Anything)
}

func TestPublishHandler_DisabledItemWithoutAnswerAccepted(t *testing.T) {
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	cache := new(MockCacheInvalidator)

	tenants.On("GetByID", mock.Anything, "tenant-1").Return(&domain.Tenant{ID: "tenant-1"}, nil)
	runner.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	cache.On("InvalidateTenant", "tenant-1").Return()

	body := `{"items":[{"canonical_question":"what are your hours","enabled":false}]}`

	h := NewPublishHandler(tenants, runner, cache)
	w := httptest.NewRecorder()
	h.Publish(w, publishRequest(t, "tenant-1", body))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublishHandler_InvalidBody(t *testing.T) {
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	cache := new(MockCacheInvalidator)

	tenants.On("GetByID", mock.Anything, "tenant-1").Return(&domain.Tenant{ID: "tenant-1"}, nil)

	h := NewPublishHandler(tenants, runner, cache)
	w := httptest.NewRecorder()
	h.Publish(w, publishRequest(t, "tenant-1", `{not json`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublishHandler_TxFailureSkipsInvalidation(t *testing.T) {
	tenants := new(MockTenantGetter)
	runner := new(MockPublishRunner)
	cache := new(MockCacheInvalidator)

	tenants.On("GetByID", mock.Anything, "tenant-1").Return(&domain.Tenant{ID: "tenant-1"}, nil)
	runner.On("WithTx", mock.Anything, mock.Anything).Return(assert.AnError)

	body := `{"items":[{"canonical_question":"what are your hours","answer":"9 to 5"}]}`

	h := NewPublishHandler(tenants, runner, cache)
	w := httptest.NewRecorder()
	h.Publish(w, publishRequest(t, "tenant-1", body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// The swap did not commit, so the cache keeps serving the old set.
	cache.AssertNotCalled(t, "InvalidateTenant", mock.Anything)
}
