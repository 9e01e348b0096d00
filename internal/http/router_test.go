package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/nearby-backend/internal/data/db"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nearby-backend/internal/domain"
	httpH "github.com/yungbote/nearby-backend/internal/http/handlers"
	httpMW "github.com/yungbote/nearby-backend/internal/http/middleware"
	"github.com/yungbote/nearby-backend/internal/jobs/queue"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/services"
)

const routerSecret = "router-secret"

type testAPI struct {
	t         *testing.T
	engine    *gin.Engine
	db        *gorm.DB
	scheduler services.PairScheduler
	metrics   *observability.Metrics
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(gdb, log)
	q := queue.New(log, set.Jobs, queue.Config{})
	index := services.NewProximityIndex(log, set.Profiles)
	sched := services.NewPairScheduler(log, index, set.Blocks, q)
	profiles := services.NewProfileService(log, set.Profiles, sched, q, 2000)
	metrics := observability.NewMetrics()

	engine := NewRouter(RouterConfig{
		Log:             log,
		Metrics:         metrics,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, services.NewAuthService(log, routerSecret), profiles),
		NearbyHandler:   httpH.NewNearbyHandler(services.NewNearbyService(log, index), 2000),
		ScheduleHandler: httpH.NewScheduleHandler(log, sched, 2000),
		AnalysisHandler: httpH.NewAnalysisHandler(services.NewAnalysisService(log, set.Profiles, set.Blocks, set.Analyses, q)),
		ProfileHandler:  httpH.NewProfileHandler(profiles),
		BlockHandler:    httpH.NewBlockHandler(services.NewBlockService(log, db.NewTxRunner(gdb), set.Profiles, set.Blocks, set.Analyses)),
		HealthHandler:   httpH.NewHealthHandler(gdb),
	})
	return &testAPI{t: t, engine: engine, db: gdb, scheduler: sched, metrics: metrics}
}

func (a *testAPI) token(userID uuid.UUID) string {
	a.t.Helper()
	claims := services.JWTClaims{
		Name: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(routerSecret))
	require.NoError(a.t, err)
	return s
}

func (a *testAPI) do(method, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+a.token(userID))
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) countJobs() int64 {
	a.t.Helper()
	var n int64
	require.NoError(a.t, a.db.Model(&types.AnalysisJob{}).Count(&n).Error)
	return n
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/healthcheck", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = api.do(http.MethodGet, "/metrics", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthcheck")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/me/profile", uuid.Nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)

	req := httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileLifecycle(t *testing.T) {
	api := newTestAPI(t)
	me := uuid.New()

	rec := api.do(http.MethodGet, "/api/me/profile", me, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got struct {
		Profile services.OwnProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, me, got.Profile.UserID)
	assert.Equal(t, "tester", got.Profile.DisplayName)
	assert.Nil(t, got.Profile.Lat)

	rec = api.do(http.MethodPut, "/api/me/location", me, map[string]float64{"lat": 52.23, "lng": 21.01})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPut, "/api/me/location", me, map[string]float64{"lat": 120, "lng": 21.01})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_argument")

	rec = api.do(http.MethodPut, "/api/me/location", me, map[string]float64{"lat": 52.23})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/me/visibility", me, map[string]bool{"visible": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodPut, "/api/me/visibility", me, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/me/descriptor", me, map[string]any{"bio": "climber", "interestTags": []string{"chess"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "enrichment_scheduled")
	assert.Equal(t, int64(1), api.countJobs())

	rec = api.do(http.MethodGet, "/api/me/profile", me, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Profile.Lat)
	assert.Equal(t, 52.23, *got.Profile.Lat)
	assert.True(t, got.Profile.Visible)
	assert.Equal(t, []string{"chess"}, got.Profile.InterestTags)

	rec = api.do(http.MethodPut, "/api/me/location", me, map[string]bool{"clear": true})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNearbyEndpoint(t *testing.T) {
	api := newTestAPI(t)
	ctx := t.Context()
	other := testutil.SeedProfile(t, ctx, api.db, testutil.At(52.2301, 21.0101), testutil.Named("bob"))
	me := uuid.New()

	rec := api.do(http.MethodGet, "/api/nearby?lat=52.23&lng=21.01&radius=500", me, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, other.UserID.String())
	assert.NotContains(t, body, "52.2301")

	rec = api.do(http.MethodGet, "/api/nearby?lat=52.23", me, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/nearby?lat=52.23&lng=21.01&radius=-1", me, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/nearby?lat=52.23&lng=21.01&limit=x", me, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleEndpoints(t *testing.T) {
	api := newTestAPI(t)
	ctx := t.Context()
	other := testutil.SeedProfile(t, ctx, api.db, testutil.At(1.001, 1))
	me := uuid.New()

	rec := api.do(http.MethodPost, "/api/schedule/neighborhood", me, map[string]float64{"lat": 1, "lng": 1, "radius": 1000})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	api.scheduler.Wait()
	assert.Equal(t, int64(1), api.countJobs())

	rec = api.do(http.MethodPost, "/api/schedule/neighborhood", me, map[string]float64{"lat": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/schedule/promote", me, map[string]string{"userId": other.UserID.String()})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var job types.AnalysisJob
	require.NoError(t, api.db.First(&job, "id = ?", types.PairJobID(me, other.UserID)).Error)
	assert.Equal(t, 10, job.Priority)

	rec = api.do(http.MethodPost, "/api/schedule/promote", me, map[string]string{"userId": me.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/schedule/promote", me, map[string]string{"userId": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromoteHidesBlocks(t *testing.T) {
	api := newTestAPI(t)
	ctx := t.Context()
	other := testutil.SeedProfile(t, ctx, api.db)
	me := uuid.New()
	testutil.SeedBlock(t, ctx, api.db, other.UserID, me)

	rec := api.do(http.MethodPost, "/api/schedule/promote", me, map[string]string{"userId": other.UserID.String()})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int64(0), api.countJobs())
}

func TestAnalysisAndBlockEndpoints(t *testing.T) {
	api := newTestAPI(t)
	ctx := t.Context()
	other := testutil.SeedProfile(t, ctx, api.db, testutil.At(1.001, 1))
	me := uuid.New()

	rec := api.do(http.MethodGet, "/api/analyses/"+other.UserID.String(), me, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"ready":false`)

	rec = api.do(http.MethodGet, "/api/analyses/"+uuid.NewString(), me, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/analyses/not-a-uuid", me, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/blocks/"+other.UserID.String(), me, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/nearby?lat=1&lng=1&radius=1000", me, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), other.UserID.String()))

	rec = api.do(http.MethodDelete, "/api/blocks/"+other.UserID.String(), me, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodPost, "/api/blocks/"+me.String(), me, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
