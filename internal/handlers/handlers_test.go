package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/prisvakt/compliance-service/internal/cache"
	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/middleware"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

const (
	testKey  = "secret"
	testShop = "demo.myshop.no"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	shops        map[string]*database.Shop
	evaluations  map[compliance.VariantKey]*database.EvaluationRecord
	observations []compliance.PriceObservation
	lastFilter   database.EvaluationFilter
	historyCalls int
}

func newFakeStore() *fakeStore {
	start := testNow.AddDate(0, 0, -10)
	key := compliance.VariantKey{Shop: testShop, ProductID: "1", VariantID: "11"}
	store := &fakeStore{
		shops: map[string]*database.Shop{
			testShop: {Domain: testShop, CountryCode: "NO", Active: true},
		},
		evaluations: map[compliance.VariantKey]*database.EvaluationRecord{
			key: {
				VariantKey: key,
				Evaluation: compliance.Evaluation{
					IsCompliant:   false,
					IsOnSale:      true,
					SaleStartDate: &start,
					LastChecked:   testNow,
					Issues: []compliance.Issue{{
						Rule: compliance.RuleReferencePrice, Severity: compliance.SeverityViolation, Message: "too high",
					}},
				},
				Price: decimal.NewNullDecimal(decimal.NewFromInt(80)),
			},
		},
	}
	for d := 40; d >= 11; d-- {
		store.observations = append(store.observations, observation(d, "100", ""))
	}
	store.observations[5].Price = decimal.NewFromInt(95)
	for d := 10; d >= 0; d-- {
		store.observations = append(store.observations, observation(d, "80", "150"))
	}
	return store
}

func observation(daysAgo int, price, compareAt string) compliance.PriceObservation {
	o := compliance.PriceObservation{
		Shop: testShop, ProductID: "1", VariantID: "11",
		Price:      decimal.RequireFromString(price),
		ObservedAt: testNow.AddDate(0, 0, -daysAgo),
	}
	if compareAt != "" {
		o.CompareAtPrice = decimal.NewNullDecimal(decimal.RequireFromString(compareAt))
	}
	return o
}

func (f *fakeStore) GetShop(_ context.Context, domain string) (*database.Shop, error) {
	if shop, ok := f.shops[domain]; ok {
		return shop, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) UpsertShop(_ context.Context, shop database.Shop) (*database.Shop, error) {
	f.shops[shop.Domain] = &shop
	return &shop, nil
}

func (f *fakeStore) GetEvaluation(_ context.Context, key compliance.VariantKey) (*database.EvaluationRecord, error) {
	if rec, ok := f.evaluations[key]; ok {
		return rec, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) ListEvaluations(_ context.Context, _ string, filter database.EvaluationFilter) ([]database.EvaluationRecord, error) {
	f.lastFilter = filter
	out := make([]database.EvaluationRecord, 0)
	for _, rec := range f.evaluations {
		if filter.OnlyCompliant && !rec.IsCompliant {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeStore) Summary(_ context.Context, shop string) (*database.ShopSummary, error) {
	return &database.ShopSummary{
		Shop: shop, Variants: 1, OnSale: 1, NonCompliant: 1,
		IssuesByRule: map[compliance.RuleType]int{compliance.RuleReferencePrice: 1},
	}, nil
}

func (f *fakeStore) ListObservations(_ context.Context, _ compliance.VariantKey, since time.Time) ([]compliance.PriceObservation, error) {
	f.historyCalls++
	out := make([]compliance.PriceObservation, 0)
	for _, o := range f.observations {
		if !o.ObservedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeQueue struct {
	scheduled []taskqueue.ScheduleTaskInput
	duplicate bool
}

func (q *fakeQueue) ScheduleTask(_ context.Context, input taskqueue.ScheduleTaskInput) taskqueue.ScheduleTaskResult {
	q.scheduled = append(q.scheduled, input)
	if q.duplicate {
		return taskqueue.ScheduleTaskResult{Duplicate: true}
	}
	return taskqueue.ScheduleTaskResult{ID: "6f1c7a52-3a53-4f2e-9b7e-1d1a3f0c9e11"}
}

func (q *fakeQueue) GetTask(_ context.Context, id string) (*taskqueue.Task, error) {
	if id != "6f1c7a52-3a53-4f2e-9b7e-1d1a3f0c9e11" {
		return nil, taskqueue.ErrTaskNotFound
	}
	return &taskqueue.Task{ID: id, TaskType: taskqueue.TaskTypeScanShop, Status: taskqueue.StatusPending}, nil
}

type fakeRechecker struct {
	err error
}

func (f *fakeRechecker) RecheckVariant(_ context.Context, domain, productID, variantID string) (*database.EvaluationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &database.EvaluationRecord{
		VariantKey: compliance.VariantKey{Shop: domain, ProductID: productID, VariantID: variantID},
		Evaluation: compliance.Evaluation{IsCompliant: true, LastChecked: testNow},
	}, nil
}

type memoryCache struct {
	entries map[compliance.VariantKey][]byte
}

func (m *memoryCache) Get(_ context.Context, key compliance.VariantKey, out any) error {
	data, ok := m.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(data, out)
}

func (m *memoryCache) Set(_ context.Context, key compliance.VariantKey, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

type testEnv struct {
	router  *gin.Engine
	store   *fakeStore
	queue   *fakeQueue
	cache   *memoryCache
	recheck *fakeRechecker
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:   newFakeStore(),
		queue:   &fakeQueue{},
		cache:   &memoryCache{entries: make(map[compliance.VariantKey][]byte)},
		recheck: &fakeRechecker{},
	}
	Init(Dependencies{
		Store:     env.store,
		Rechecker: env.recheck,
		Queue:     env.queue,
		Cache:     env.cache,
		Clock:     func() time.Time { return testNow },
	})

	env.router = gin.New()
	RegisterRoutes(env.router, RouteConfig{
		InternalAPIKey: testKey,
		WidgetLimiter:  middleware.NewIPRateLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 1000}),
	})
	return env
}

func (e *testEnv) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, testKey)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestInternalRoutesRequireAPIKey(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/internal/compliance/"+testShop, nil, middleware.APIKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not configured", decode[HealthResponse](t, w).Database)
}

func TestHealthCheckRedis(t *testing.T) {
	tests := []struct {
		name       string
		ping       func(ctx context.Context) error
		wantStatus string
		wantRedis  string
	}{
		{name: "not configured", wantStatus: "ok"},
		{name: "connected", ping: func(context.Context) error { return nil }, wantStatus: "ok", wantRedis: "connected"},
		{name: "down", ping: func(context.Context) error { return errors.New("refused") }, wantStatus: "degraded", wantRedis: "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			deps.RedisPing = tt.ping

			w := env.do(http.MethodGet, "/health", nil)
			assert.Equal(t, http.StatusOK, w.Code)
			resp := decode[HealthResponse](t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantRedis, resp.Redis)
		})
	}
}

func TestListEvaluations(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
		check      func(t *testing.T, f database.EvaluationFilter)
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantCount: 1, check: func(t *testing.T, f database.EvaluationFilter) {
			assert.Equal(t, 100, f.Limit)
		}},
		{name: "non-compliant", query: "?compliant=false&limit=5", wantStatus: http.StatusOK, wantCount: 1, check: func(t *testing.T, f database.EvaluationFilter) {
			assert.True(t, f.OnlyNonCompliant)
			assert.Equal(t, 5, f.Limit)
		}},
		{name: "compliant", query: "?compliant=true", wantStatus: http.StatusOK, wantCount: 0, check: func(t *testing.T, f database.EvaluationFilter) {
			assert.True(t, f.OnlyCompliant)
		}},
		{name: "bad limit", query: "?limit=5000", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/internal/compliance/"+testShop+tt.query, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := decode[ListEvaluationsResponse](t, w)
			assert.Len(t, resp.Evaluations, tt.wantCount)
			tt.check(t, env.store.lastFilter)
		})
	}

	w := env.do(http.MethodGet, "/internal/compliance/unknown.myshop.no", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetEvaluation(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/internal/compliance/"+testShop+"/1/11", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["isCompliant"])
	assert.Equal(t, "11", body["variantId"])
	assert.Equal(t, "80", body["price"])

	w = env.do(http.MethodGet, "/internal/compliance/"+testShop+"/1/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecheckVariant(t *testing.T) {
	t.Run("synchronous", func(t *testing.T) {
		env := setup(t)
		w := env.do(http.MethodPost, "/internal/compliance/"+testShop+"/1/11/recheck", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode[map[string]any](t, w)["isCompliant"])
	})

	t.Run("queued", func(t *testing.T) {
		env := setup(t)
		w := env.do(http.MethodPost, "/internal/compliance/"+testShop+"/1/11/recheck?async=true", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, env.queue.scheduled, 1)
		assert.Equal(t, taskqueue.TaskTypeRecheckVariant, env.queue.scheduled[0].TaskType)
		assert.Equal(t, "queued", decode[ScheduleResponse](t, w).Status)
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unknown variant", err: database.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid price", err: compliance.ErrInvalidPrice, wantStatus: http.StatusBadRequest},
		{name: "commerce outage", err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			env.recheck.err = tt.err
			w := env.do(http.MethodPost, "/internal/compliance/"+testShop+"/1/11/recheck", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGetHistory(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/internal/compliance/"+testShop+"/1/11/history?days=20", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HistoryResponse](t, w)
	assert.Len(t, resp.Observations, 21)
	require.Len(t, resp.SalePeriods, 1)
	assert.True(t, resp.SalePeriods[0].Ongoing)
	assert.Equal(t, testNow.AddDate(0, 0, -10), resp.SalePeriods[0].Start)

	w = env.do(http.MethodGet, "/internal/compliance/"+testShop+"/1/11/history?days=0x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSummaryAndReport(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/internal/compliance/"+testShop+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[database.ShopSummary](t, w).NonCompliant)

	w = env.do(http.MethodGet, "/internal/compliance/"+testShop+"/report.xlsx?lang=en", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "compliance-demo.myshop.no-2026-10-18.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Issues")
}

func TestEnqueueScan(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodPost, "/internal/scans/"+testShop, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[ScheduleResponse](t, w)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, taskqueue.ScanShopPayload{Shop: testShop}, env.queue.scheduled[0].Payload)
	assert.True(t, env.queue.scheduled[0].Dedupe)

	w = env.do(http.MethodGet, "/internal/tasks/"+resp.TaskID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/internal/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.queue.duplicate = true
	w = env.do(http.MethodPost, "/internal/scans/"+testShop, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_queued", decode[ScheduleResponse](t, w).Status)

	w = env.do(http.MethodPost, "/internal/scans/unknown.myshop.no", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpsertShop(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodPut, "/internal/shops/New.MyShop.no", UpsertShopRequest{AccessToken: "shpat_x", CountryCode: "se"})
	require.Equal(t, http.StatusOK, w.Code)
	shop := env.store.shops["new.myshop.no"]
	require.NotNil(t, shop)
	assert.Equal(t, "SE", shop.CountryCode)
	assert.True(t, shop.Active)
	assert.NotContains(t, w.Body.String(), "shpat_x")

	w = env.do(http.MethodPut, "/internal/shops/x.myshop.no", map[string]string{"countryCode": "NO"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetWidget(t *testing.T) {
	env := setup(t)
	path := "/widget/" + testShop + "/1/11"

	w := env.do(http.MethodGet, path, nil, "Accept-Language", "en-US,en;q=0.9")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[WidgetResponse](t, w)
	assert.True(t, resp.IsOnSale)
	assert.Equal(t, 30, resp.LookbackDays)
	require.True(t, resp.LowestPrice.Valid)
	// the 95 observation is 35 days before now, 25 days before the sale
	assert.True(t, resp.LowestPrice.Decimal.Equal(decimal.NewFromInt(95)))
	assert.Len(t, resp.Series, 31)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, "On sale", resp.Labels.Status)
	assert.Equal(t, "Lowest price in the last 30 days: NOK 95.00", resp.Labels.LowestPrice)

	// served from cache, relabelled in Norwegian
	w = env.do(http.MethodGet, path+"?lang=nb", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.store.historyCalls)
	resp = decode[WidgetResponse](t, w)
	assert.Equal(t, "På salg", resp.Labels.Status)
	assert.Contains(t, resp.Labels.SaleSince, "08.10.2026")

	w = env.do(http.MethodGet, "/widget/"+testShop+"/1/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetWidgetLabelsConfiguredLookback(t *testing.T) {
	env := setup(t)
	deps.Rules = func(string) compliance.RuleSet {
		return compliance.NewRuleSet("NO", compliance.Defaults{LookbackDays: 45})
	}

	w := env.do(http.MethodGet, "/widget/"+testShop+"/1/11?lang=en", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[WidgetResponse](t, w)
	assert.Equal(t, 45, resp.LookbackDays)
	assert.Equal(t, "Lowest price in the last 45 days: NOK 95.00", resp.Labels.LowestPrice)
}

func TestDailySeries(t *testing.T) {
	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	history := []compliance.PriceObservation{
		{Price: decimal.NewFromInt(100), ObservedAt: day.Add(2 * time.Hour)},
		{Price: decimal.NewFromInt(90), ObservedAt: day.Add(20 * time.Hour)},
		{Price: decimal.NewFromInt(80), CompareAtPrice: decimal.NewNullDecimal(decimal.NewFromInt(100)), ObservedAt: day.Add(30 * time.Hour)},
	}

	points := dailySeries(history, day)
	require.Len(t, points, 2)
	assert.True(t, points[0].Price.Equal(decimal.NewFromInt(90)))
	assert.True(t, points[1].OnSale)

	assert.Empty(t, dailySeries(history, day.AddDate(0, 0, 5)))
}
