package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/warden/auth"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testIssuer   = "warden-auth"
	testAudience = "warden-api"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type createTaskRequest struct {
	Name     string   `json:"name" validate:"required,max=32"`
	Priority int      `json:"priority" validate:"gte=1,lte=5"`
	Tags     []string `json:"tags" validate:"max=3"`
}

type createTaskResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (createTaskResponse) StatusCode() int { return http.StatusCreated }

func newPolicy(t *testing.T) *auth.Policy {
	t.Helper()
	p, err := auth.Build(&auth.Settings{
		SecretKey:                   testSecret,
		Issuer:                      testIssuer,
		Audience:                    testAudience,
		AccessTokenLifetimeMinutes:  15,
		RefreshTokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)
	return p
}

func validToken(t *testing.T) string {
	t.Helper()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type fixture struct {
	engine *gin.Engine
	logs   *bytes.Buffer
	calls  int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{logs: &bytes.Buffer{}}

	logger, err := clog.New(&clog.Config{Level: "debug", Format: "json"}, clog.WithOutput(f.logs))
	require.NoError(t, err)

	p, err := New(newPolicy(t), append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	f.engine = gin.New()
	api := p.Install(f.engine)
	api.POST("/tasks", Handle(p, func(ctx context.Context, req *createTaskRequest) (createTaskResponse, error) {
		f.calls++
		switch req.Name {
		case "explode":
			panic("task store corrupted")
		case "fail":
			return createTaskResponse{}, errors.New("db password=hunter2 rejected")
		case "taken":
			return createTaskResponse{}, NewValidationError(FieldError{Field: "name", Error: "already exists"})
		}
		return createTaskResponse{ID: "task-1", Name: req.Name}, nil
	}))
	f.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body ValidationErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	out := make(map[string]string, len(body.Errors))
	for _, fe := range body.Errors {
		out[fe.Field] = fe.Error
	}
	return out
}

func TestNew_RequiresPolicy(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrPolicyRequired)
}

func TestHandle_Success(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":2}`, validToken(t))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, map[string]any{"id": "task-1", "name": "backup"}, decode(t, rec))
	assert.Equal(t, 1, f.calls)
}

func TestHandle_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", `{"priority":9,"tags":["a","b","c","d"]}`, validToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, map[string]string{
		"name":     "is required",
		"priority": "must be less than or equal to 5",
		"tags":     "must contain at most 3 items",
	}, fieldErrors(t, rec))
	assert.Zero(t, f.calls, "handler must not run when validation fails")
}

func TestHandle_HandlerValidationError(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"taken","priority":1}`, validToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"name": "already exists"}, fieldErrors(t, rec))
}

func TestHandle_MalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":`, validToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := fieldErrors(t, rec)
	assert.Contains(t, errs, "body")

	rec = f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":"high"}`, validToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"priority": "must be an integer"}, fieldErrors(t, rec))

	assert.Zero(t, f.calls)
}

// 请求体解码失败时同样记录 "handling request"，带上请求类型
func TestHandle_MalformedBodyIsLogged(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":"high"}`, validToken(t))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	logs := f.logs.String()
	require.Contains(t, logs, "handling request")
	assert.Contains(t, logs, `"request":"createTaskRequest"`)
	assert.Less(t, strings.Index(logs, "handling request"), strings.Index(logs, "request rejected"))
	assert.NotContains(t, logs, "request handled successfully")
}

func TestHandle_EmptyBodyIsValidated(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", "", validToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := fieldErrors(t, rec)
	assert.Equal(t, "is required", errs["name"])
}

func TestHandle_UnclassifiedErrorIsOpaque(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"fail","priority":1}`, validToken(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": UnexpectedErrorMessage}, decode(t, rec))
	assert.NotContains(t, rec.Body.String(), "hunter2")
	// 细节只出现在服务端日志
	assert.Contains(t, f.logs.String(), "request failed")
}

func TestRecover_Panic(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"explode","priority":1}`, validToken(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, map[string]any{"error": UnexpectedErrorMessage}, decode(t, rec))
	assert.NotContains(t, rec.Body.String(), "corrupted")

	logs := f.logs.String()
	assert.Contains(t, logs, "panic recovered")
	assert.Contains(t, logs, "task store corrupted")
	assert.Contains(t, logs, `"status":500`)
}

func TestRecover_ErrorsLeftByForeignHandlers(t *testing.T) {
	p, err := New(newPolicy(t))
	require.NoError(t, err)

	engine := gin.New()
	p.Install(engine)
	engine.GET("/raw", func(c *gin.Context) {
		_ = c.Error(NewValidationError(FieldError{Field: "q", Error: "is required"}))
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"q": "is required"}, fieldErrors(t, rec))
}

func TestAuthRunsBeforeHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":1}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "unauthorized"}, decode(t, rec))

	rec = f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":1}`, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, f.calls)
}

func TestUnprotectedRoutesAndNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"error": "not found"}, decode(t, rec))
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestLoggingBehavior_WritesStartAndCompletion(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":2}`, validToken(t))

	logs := f.logs.String()
	require.Contains(t, logs, "handling request")
	require.Contains(t, logs, "request handled successfully")
	assert.Less(t, strings.Index(logs, "handling request"), strings.Index(logs, "request handled successfully"))
	assert.Contains(t, logs, `"request":"createTaskRequest"`)
	assert.Contains(t, logs, `"name":"backup"`)
}

func TestWithBehaviors_OrderAndShortCircuit(t *testing.T) {
	var order []string
	record := func(name string) Behavior {
		return func(ctx context.Context, req any, next Next) (any, error) {
			order = append(order, name)
			return next(ctx)
		}
	}
	deny := func(ctx context.Context, req any, next Next) (any, error) {
		order = append(order, "deny")
		return nil, NewValidationError(FieldError{Field: "name", Error: "is reserved"})
	}

	f := newFixture(t, WithBehaviors(record("first"), record("second"), deny))
	rec := f.do(t, http.MethodPost, "/api/tasks", `{"name":"backup","priority":1}`, validToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"first", "second", "deny"}, order)
	assert.Zero(t, f.calls)
}

func TestHTTPMetrics(t *testing.T) {
	meter, err := metrics.New(&metrics.Config{Enabled: true})
	require.NoError(t, err)
	defer func() { _ = meter.Shutdown(context.Background()) }()

	f := newFixture(t, WithMeter(meter), WithServiceName("tasks"))
	f.do(t, http.MethodPost, "/api/tasks", `{"name":"explode","priority":1}`, validToken(t))

	assert.HTTPBodyContains(t, meter.Handler().ServeHTTP, "GET", "/metrics", nil, `route="/api/tasks"`)
	assert.HTTPBodyContains(t, meter.Handler().ServeHTTP, "GET", "/metrics", nil, `status_class="5xx"`)
}

func TestClassify(t *testing.T) {
	ok := Classify(nil)
	assert.Equal(t, KindSuccess, ok.Kind)
	assert.True(t, IsSuccess(ok.Status))

	verr := NewValidationError(FieldError{Field: "name", Error: "is required"})
	out := Classify(fmt.Errorf("create task: %w", verr))
	assert.Equal(t, KindValidation, out.Kind)
	assert.Equal(t, http.StatusBadRequest, out.Status)
	assert.Equal(t, ValidationErrorBody{Errors: verr.Fields}, out.Body)

	out = Classify(context.DeadlineExceeded)
	assert.Equal(t, KindUnclassified, out.Kind)
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, ErrorBody{Error: UnexpectedErrorMessage}, out.Body)
	assert.False(t, IsSuccess(out.Status))
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "/api", normalizePrefix("api/"))
	assert.Equal(t, "/", normalizePrefix(""))
	assert.Equal(t, "/v1/api", normalizePrefix("/v1/api"))
}
