package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"fundwatch/internal/database"
	"fundwatch/internal/holdings"
	"fundwatch/internal/models"
	"fundwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	vals map[string]models.Valuation
}

func (s *stubProvider) Fetch(_ context.Context, code string) (models.Valuation, error) {
	if v, ok := s.vals[code]; ok {
		return v, nil
	}
	return models.UnknownValuation(), nil
}

type stubSuggester struct {
	candidates []service.Candidate
	calls      atomic.Int32
}

func (s *stubSuggester) Suggest(context.Context, string) ([]service.Candidate, error) {
	s.calls.Add(1)
	return s.candidates, nil
}

type testEnv struct {
	router    *gin.Engine
	store     *holdings.Store
	sink      *database.FileSink
	suggester *stubSuggester
}

func newEnv(t *testing.T, path string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	sink := database.NewFileSink(path, log)
	store := holdings.New(context.Background(), sink, nil, log)
	provider := &stubProvider{vals: map[string]models.Valuation{
		"000311": {Value: "1.3000", Rate: "+0.45%", Kind: models.ValuationLive},
	}}
	suggester := &stubSuggester{candidates: []service.Candidate{{Code: "000311", Name: "景顺长城沪深300"}}}
	funds := service.NewFundService(provider, suggester, 2, log)

	return &testEnv{
		router:    NewRouter(NewHandler(store, funds, log), []string{"*"}, log),
		store:     store,
		sink:      sink,
		suggester: suggester,
	}
}

func setupEnv(t *testing.T) *testEnv {
	return newEnv(t, filepath.Join(t.TempDir(), "hold_funds.json"))
}

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

const addBody = `{"code":"000311","name":"景顺长城沪深300","cost":1.2345,"share":1000}`

func TestAddFund(t *testing.T) {
	e := setupEnv(t)

	w, env := e.do(t, http.MethodPost, "/api/fund/add", addBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, env.Code)
	assert.Equal(t, "fund added", env.Msg)

	var funds []models.Holding
	require.NoError(t, json.Unmarshal(env.Data, &funds))
	require.Len(t, funds, 1)
	assert.Equal(t, "1.2345", funds[0].Cost.StringFixed(4))

	stored, err := e.sink.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	w, env = e.do(t, http.MethodPost, "/api/fund/add", `{"code":"000311","name":"X","cost":2,"share":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fund already held, nothing added", env.Msg)
	assert.Equal(t, 1, e.store.Len())
	assert.Equal(t, "景顺长城沪深300", e.store.List()[0].Name)
}

func TestAddFund_Rejected(t *testing.T) {
	e := setupEnv(t)
	cases := map[string]string{
		"malformed code": `{"code":"00031","name":"A","cost":1,"share":1}`,
		"missing share":  `{"code":"000311","name":"A","cost":1}`,
		"zero cost":      `{"code":"000311","name":"A","cost":0,"share":1}`,
		"not json":       `code=000311`,
		"huge cost":      `{"code":"000311","name":"A","cost":"1e5000000","share":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w, env := e.do(t, http.MethodPost, "/api/fund/add", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 400, env.Code)
			assert.NotEmpty(t, env.Detail)
			assert.LessOrEqual(t, len([]rune(env.Detail)), models.MaxDetailRunes)
		})
	}
	assert.Equal(t, 0, e.store.Len())
}

func TestDeleteFund(t *testing.T) {
	e := setupEnv(t)
	e.do(t, http.MethodPost, "/api/fund/add", addBody)

	w, env := e.do(t, http.MethodPost, "/api/fund/delete", `{"code":"000999"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 404, env.Code)
	assert.Equal(t, 1, e.store.Len())

	w, _ = e.do(t, http.MethodPost, "/api/fund/delete", `{"code":"12"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/fund/delete", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = e.do(t, http.MethodPost, "/api/fund/delete", `{"code":"000311"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fund deleted", env.Msg)
	assert.Equal(t, 0, e.store.Len())

	_, env = e.do(t, http.MethodGet, "/api/fund/profit", "")
	var report models.ProfitReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Empty(t, report.Funds)
	assert.Equal(t, 0, report.Total.FundCount)
}

func TestClearFunds(t *testing.T) {
	e := setupEnv(t)
	e.do(t, http.MethodPost, "/api/fund/add", addBody)
	e.do(t, http.MethodPost, "/api/fund/add", `{"code":"110022","name":"B","cost":2,"share":50}`)

	w, env := e.do(t, http.MethodPost, "/api/fund/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fund_count":0}`, string(env.Data))

	raw, err := os.ReadFile(e.sink.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestGetProfit(t *testing.T) {
	e := setupEnv(t)
	e.do(t, http.MethodPost, "/api/fund/add", addBody)

	w, env := e.do(t, http.MethodGet, "/api/fund/profit", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report models.ProfitReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Len(t, report.Funds, 1)
	assert.Equal(t, "1234.50", report.Funds[0].TotalCost)
	assert.Equal(t, "65.50", report.Funds[0].FloatProfit)
	assert.Equal(t, "5.31", report.Funds[0].ProfitRate)
	assert.Equal(t, "1234.50", report.Total.TotalCost)
	assert.Equal(t, "65.50", report.Total.TotalFloatProfit)
	assert.Equal(t, "5.31", report.Total.TotalProfitRate)
}

func TestListFunds(t *testing.T) {
	e := setupEnv(t)
	e.do(t, http.MethodPost, "/api/fund/add", addBody)

	w, env := e.do(t, http.MethodGet, "/api/fund/list", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fund_count":1,"funds":[{"code":"000311","name":"景顺长城沪深300","cost":1.2345,"share":1000.00}]}`, string(env.Data))
}

func TestSearchFunds(t *testing.T) {
	e := setupEnv(t)

	w, env := e.do(t, http.MethodGet, "/api/fund/search?keyword=a", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 400, env.Code)
	assert.Equal(t, int32(0), e.suggester.calls.Load())

	w, env = e.do(t, http.MethodGet, "/api/fund/search?keyword=%E6%B2%AA%E6%B7%B1300", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "search succeeded", env.Msg)
	var results []models.SearchResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "+0.45%", results[0].ChangeRate)

	e.suggester.candidates = nil
	_, env = e.do(t, http.MethodGet, "/api/fund/search?keyword=zzzz", "")
	assert.Equal(t, "no matching fund", env.Msg)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestPersistenceFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	e := newEnv(t, filepath.Join(blocker, "hold_funds.json"))

	w, env := e.do(t, http.MethodPost, "/api/fund/add", addBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to save holdings", env.Detail)
	assert.Equal(t, 0, e.store.Len())
}

func TestRequestIDAndCORS(t *testing.T) {
	e := setupEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodOptions, "/api/fund/add", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
