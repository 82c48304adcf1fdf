package httpapi_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/service/catalog"
	"github.com/mallorca-activities/activitystore-go/service/httpapi"
	"github.com/mallorca-activities/activitystore-go/testutil/helper"
)

const (
	jwtSecret = "test-secret"
	sailingID = "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	unknownID = "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4aff"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	IsSuccess bool                     `json:"isSuccess"`
	Message   string                   `json:"message"`
	Code      activitystore.ResultCode `json:"code"`
	Data      jsoniter.RawMessage      `json:"data"`
}

type fixture struct {
	store  *helper.StoreStub
	engine *gin.Engine
}

func givenRouter(t *testing.T, options ...httpapi.Option) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := helper.NewStoreStub(
		helper.FixtureActivity(sailingID, "sailing-adventure", "Sailing Adventure", activitystore.CategoryWaterSports, "85.00"),
	)

	service, err := catalog.NewService(store)
	require.NoError(t, err)

	engine, err := httpapi.NewRouter(service, append([]httpapi.Option{httpapi.WithJWTSecret(jwtSecret)}, options...)...)
	require.NoError(t, err)

	return fixture{store: store, engine: engine}
}

func adminToken(t *testing.T, role string) string {
	t.Helper()

	token, err := httpapi.SignAdminToken(jwtSecret, httpapi.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	return token
}

func serve(t *testing.T, f fixture, method, target, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)

	var env envelope
	if recorder.Body.Len() > 0 {
		_ = json.Unmarshal(recorder.Body.Bytes(), &env)
	}

	return recorder, env
}

func Test_NewRouter_RejectsNilCatalog(t *testing.T) {
	// act
	engine, err := httpapi.NewRouter(nil)

	// assert
	assert.ErrorIs(t, err, httpapi.ErrNilCatalog)
	assert.Nil(t, engine)
}

func Test_Healthz(t *testing.T) {
	// setup
	f := givenRouter(t)

	// act
	recorder, _ := serve(t, f, http.MethodGet, "/healthz", "", nil)

	// assert
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func Test_PublicRoutes_StatusFollowsEnvelopeCode(t *testing.T) {
	tests := []struct {
		name           string
		arrange        func(store *helper.StoreStub)
		target         string
		expectedStatus int
		expectedCode   activitystore.ResultCode
	}{
		{
			name:           "list",
			target:         "/api/activities?category=water_sports&sortBy=price_low&limit=10",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "list_with_unknown_category_is_rejected_at_binding",
			target:         "/api/activities?category=skydiving",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
		{
			name:           "list_with_negative_price_is_rejected_at_binding",
			target:         "/api/activities?minPrice=-5",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
		{
			name:           "list_backend_error",
			arrange:        func(store *helper.StoreStub) { store.QueryErr = errors.New("connection refused") },
			target:         "/api/activities",
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   activitystore.CodeBackendError,
		},
		{
			name:           "featured",
			target:         "/api/activities/featured?limit=3",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "featured_with_bad_limit",
			target:         "/api/activities/featured?limit=abc",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
		{
			name:           "search",
			target:         "/api/activities/search?q=boat",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "category",
			target:         "/api/activities/category/cultural",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "by_slug",
			target:         "/api/activities/sailing-adventure",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "by_id",
			target:         "/api/activities/" + sailingID,
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "unknown_slug",
			target:         "/api/activities/unknown-tour",
			expectedStatus: http.StatusNotFound,
			expectedCode:   activitystore.CodeNotFound,
		},
		{
			name:           "fallback_after_backend_error",
			arrange:        func(store *helper.StoreStub) { store.LookupErr = errors.New("timeout") },
			target:         "/api/activities/palma-cathedral-tour",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeFallback,
		},
		{
			name:           "similar",
			target:         "/api/activities/sailing-adventure/similar?limit=2",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			f := givenRouter(t)

			// arrange
			if tc.arrange != nil {
				tc.arrange(f.store)
			}

			// act
			recorder, env := serve(t, f, http.MethodGet, tc.target, "", nil)

			// assert
			assert.Equal(t, tc.expectedStatus, recorder.Code)
			assert.Equal(t, tc.expectedCode, env.Code)
		})
	}
}

func Test_ListActivities_PassesBoundParametersToTheStore(t *testing.T) {
	// setup
	f := givenRouter(t)

	// act
	recorder, _ := serve(t, f, http.MethodGet, "/api/activities?category=cultural&limit=5&page=2", "", nil)

	// assert
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 1, f.store.QueryCount())
	assert.Equal(t, 5, f.store.LastQuery().Limit())
	assert.Equal(t, 5, f.store.LastQuery().Offset())
}

func Test_GetActivity_ReturnsTheActivityAsData(t *testing.T) {
	// setup
	f := givenRouter(t)

	// act
	_, env := serve(t, f, http.MethodGet, "/api/activities/sailing-adventure", "", nil)

	// assert
	var activity activitystore.ActivityWithDetails
	require.NoError(t, json.Unmarshal(env.Data, &activity))
	assert.True(t, env.IsSuccess)
	assert.Equal(t, sailingID, activity.ID)
	assert.Equal(t, "Sailing Adventure", activity.Title)
}

func Test_AdminRoutes_RequireAnAdminToken(t *testing.T) {
	tests := []struct {
		name           string
		options        []httpapi.Option
		token          func(t *testing.T) string
		expectedStatus int
	}{
		{
			name:           "missing_token",
			token:          func(*testing.T) string { return "" },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage_token",
			token:          func(*testing.T) string { return "not-a-jwt" },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "token_signed_with_other_secret",
			token: func(t *testing.T) string {
				token, err := httpapi.SignAdminToken("other-secret", httpapi.Claims{})
				require.NoError(t, err)
				return token
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "expired_token",
			token: func(t *testing.T) string {
				token, err := httpapi.SignAdminToken(jwtSecret, httpapi.Claims{
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
				})
				require.NoError(t, err)
				return token
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "non_admin_role",
			token:          func(t *testing.T) string { return adminToken(t, "customer") },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "admin",
			token:          func(t *testing.T) string { return adminToken(t, httpapi.RoleAdmin) },
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			f := givenRouter(t, tc.options...)

			// act
			recorder, _ := serve(t, f, http.MethodGet, "/api/admin/activities/stats", tc.token(t), nil)

			// assert
			assert.Equal(t, tc.expectedStatus, recorder.Code)
		})
	}
}

func Test_AdminRoutes_AreClosedWithoutSecret(t *testing.T) {
	// setup
	gin.SetMode(gin.TestMode)
	service, err := catalog.NewService(helper.NewStoreStub())
	require.NoError(t, err)
	engine, err := httpapi.NewRouter(service)
	require.NoError(t, err)
	f := fixture{engine: engine}

	// act
	recorder, env := serve(t, f, http.MethodGet, "/api/admin/activities", adminToken(t, httpapi.RoleAdmin), nil)

	// assert
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, httpapi.CodeUnauthorized, env.Code)
}

func Test_AdminRoutes_Operations(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		target         string
		body           any
		expectedStatus int
		expectedCode   activitystore.ResultCode
		validate       func(t *testing.T, store *helper.StoreStub)
	}{
		{
			name:           "list_for_admin",
			method:         http.MethodGet,
			target:         "/api/admin/activities?status=draft",
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
			validate: func(t *testing.T, store *helper.StoreStub) {
				assert.Equal(t, activitystore.ScopeAdmin, store.LastQuery().Scope())
			},
		},
		{
			name:           "list_for_admin_with_unknown_status",
			method:         http.MethodGet,
			target:         "/api/admin/activities?status=archived",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
		{
			name:           "by_id",
			method:         http.MethodGet,
			target:         "/api/admin/activities/" + sailingID,
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
		},
		{
			name:           "by_id_not_a_uuid",
			method:         http.MethodGet,
			target:         "/api/admin/activities/sailing-adventure",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
		{
			name:   "create",
			method: http.MethodPost,
			target: "/api/admin/activities",
			body: map[string]any{
				"title":           "Sunset Catamaran Cruise",
				"category":        "water_sports",
				"location":        "Port d'Andratx",
				"durationMinutes": 180,
				"minParticipants": 1,
				"maxParticipants": 40,
			},
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
			validate: func(t *testing.T, store *helper.StoreStub) {
				require.Len(t, store.Created, 1)
				assert.Equal(t, "sunset-catamaran-cruise", store.Created[0].Slug)
			},
		},
		{
			name:           "create_with_invalid_category",
			method:         http.MethodPost,
			target:         "/api/admin/activities",
			body:           map[string]any{"title": "Cruise", "category": "skydiving", "location": "Palma", "durationMinutes": 60, "maxParticipants": 4},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
			validate: func(t *testing.T, store *helper.StoreStub) {
				assert.Empty(t, store.Created)
			},
		},
		{
			name:           "update",
			method:         http.MethodPatch,
			target:         "/api/admin/activities/" + sailingID,
			body:           map[string]any{"featured": true},
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
			validate: func(t *testing.T, store *helper.StoreStub) {
				require.Contains(t, store.Updated, sailingID)
				assert.True(t, *store.Updated[sailingID].Featured)
			},
		},
		{
			name:           "update_without_fields",
			method:         http.MethodPatch,
			target:         "/api/admin/activities/" + sailingID,
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
		{
			name:           "delete",
			method:         http.MethodDelete,
			target:         "/api/admin/activities/" + sailingID,
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
			validate: func(t *testing.T, store *helper.StoreStub) {
				assert.Equal(t, []string{sailingID}, store.Deleted)
			},
		},
		{
			name:           "delete_unknown",
			method:         http.MethodDelete,
			target:         "/api/admin/activities/" + unknownID,
			expectedStatus: http.StatusNotFound,
			expectedCode:   activitystore.CodeNotFound,
		},
		{
			name:           "add_image_uses_path_id",
			method:         http.MethodPost,
			target:         "/api/admin/activities/" + sailingID + "/images",
			body:           map[string]any{"activityId": "ignored", "imageUrl": "https://cdn.example.com/sail.jpg", "isPrimary": true},
			expectedStatus: http.StatusOK,
			expectedCode:   activitystore.CodeOK,
			validate: func(t *testing.T, store *helper.StoreStub) {
				require.Len(t, store.Images, 1)
				assert.Equal(t, sailingID, store.Images[0].ActivityID)
			},
		},
		{
			name:           "malformed_json",
			method:         http.MethodPost,
			target:         "/api/admin/activities",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   activitystore.CodeInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			f := givenRouter(t)

			// act
			recorder, env := serve(t, f, tc.method, tc.target, adminToken(t, httpapi.RoleAdmin), tc.body)

			// assert
			assert.Equal(t, tc.expectedStatus, recorder.Code, recorder.Body.String())
			assert.Equal(t, tc.expectedCode, env.Code)
			if tc.validate != nil {
				tc.validate(t, f.store)
			}
		})
	}
}

func Test_CORS_AllowsConfiguredOrigins(t *testing.T) {
	// setup
	f := givenRouter(t, httpapi.WithCORSOrigins("https://mallorca.example"))

	req := httptest.NewRequest(http.MethodOptions, "/api/activities", nil)
	req.Header.Set("Origin", "https://mallorca.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	recorder := httptest.NewRecorder()

	// act
	f.engine.ServeHTTP(recorder, req)

	// assert
	assert.Equal(t, "https://mallorca.example", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func Test_RequestLog_IsWrittenPerRequest(t *testing.T) {
	// setup
	logSpy := helper.NewLogHandlerSpy(false)
	f := givenRouter(t, httpapi.WithLogger(slog.New(logSpy)))

	// act
	serve(t, f, http.MethodGet, "/api/activities/sailing-adventure", "", nil)

	// assert
	assert.True(t,
		logSpy.HasInfoLogWithMessage("http request served").
			WithAttr("route", "/api/activities/:identifier").
			WithAttr("status", "200").
			WithDurationMS().
			Assert())
}
