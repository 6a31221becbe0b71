package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	generalAAPL = `{"fundamentals":{"profile":{"data":[{"industry":"Consumer Electronics","sector":"Technology"}]}}}`
	incomeAAPL  = `{"fundamentals":{"financials":{"income_statement":{"data":[
		{"symbol":"AAPL.US","period":"Q2","date":"2024-03-30","calendarYear":"2024","revenue":90753000000,"netIncome":23636000000,"eps":1.53},
		{"symbol":"AAPL.US","period":"FY","date":"2023-09-30","calendarYear":"2023","revenue":383285000000,"netIncome":96995000000,"eps":6.16},
		{"symbol":"AAPL.US","period":"Q4","date":"2023-09-30","calendarYear":"2023","revenue":89498000000,"netIncome":22956000000,"eps":1.46},
		{"symbol":"AAPL.US","period":"Q3","date":"2024-06-29","calendarYear":"2024","revenue":85777000000,"netIncome":21448000000,"eps":1.40},
		{"symbol":"AAPL.US","period":"Q1","date":"2023-12-30","calendarYear":"2024","revenue":119575000000,"netIncome":33916000000,"eps":2.18}
	]}}}}`
	balanceAAPL = `{"fundamentals":{"financials":{"balance_sheet_statement":{"data":[
		{"symbol":"AAPL.US","period":"FY","date":"2022-09-24","totalDebt":120069000000,"totalEquity":50672000000},
		{"symbol":"AAPL.US","period":"FY","date":"2023-09-30","totalDebt":111088000000,"totalEquity":62146000000},
		{"symbol":"AAPL.US","period":"Q3","date":"2024-06-29","totalDebt":101304000000,"totalEquity":66708000000}
	]}}}}`
	eodAAPL = `{"stockprice":{"data":[
		{"date":"2024-07-01","open":212.09,"close":216.75},
		{"date":"2024-07-03","open":220.00,"close":"221.55"},
		{"date":"2024-07-02","open":216.15,"close":220.27}
	]}}`
)

type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]func(w http.ResponseWriter)
	hits   map[string]int
	auth   []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{routes: map[string]func(w http.ResponseWriter){}, hits: map[string]int{}}
}

func (f *fakeAPI) json(path, body string) {
	f.routes[path] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func (f *fakeAPI) status(path string, code int) {
	f.routes[path] = func(w http.ResponseWriter) {
		w.WriteHeader(code)
		fmt.Fprint(w, http.StatusText(code))
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	h, ok := f.routes[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w)
}

func (f *fakeAPI) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func aaplRoutes(f *fakeAPI) {
	f.json("/api/v1/general/AAPL.US", generalAAPL)
	f.json("/api/v1/financials/AAPL.US/income_statement", incomeAAPL)
	f.json("/api/v1/financials/AAPL.US/balance_sheet_statement", balanceAAPL)
	f.json("/api/v1/eod/AAPL.US", eodAAPL)
}

func newTestClient(t *testing.T, srv *httptest.Server, opts FiindoOptions) *FiindoClient {
	t.Helper()
	if opts.Backoff == 0 {
		opts.Backoff = 5 * time.Millisecond
	}
	opts.Logger = zaptest.NewLogger(t)
	return NewFiindoClient(srv.URL+"/", "test.user", opts)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewFiindoClient_TrimsBaseURL(t *testing.T) {
	c := NewFiindoClient("https://api.test.fiindo.com/", "first.last", FiindoOptions{})
	assert.Equal(t, "https://api.test.fiindo.com", c.baseURL)
	assert.Equal(t, 1, c.retry.MaxAttempts, "zero retries still makes one attempt")
}

func TestListSymbols(t *testing.T) {
	api := newFakeAPI()
	api.json("/api/v1/symbols", `{"symbols":["AAPL.US","MSFT.US"," ","AAPL.US","JPM.US"]}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := newTestClient(t, srv, FiindoOptions{})
	symbols, err := c.ListSymbols(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL.US", "MSFT.US", "JPM.US"}, symbols)
	assert.Equal(t, []string{"Bearer test.user"}, api.auth)
}

func TestListSymbols_MissingField(t *testing.T) {
	api := newFakeAPI()
	api.json("/api/v1/symbols", `{"tickers":[]}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{}).ListSymbols(context.Background())

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindParse, Kind(err))
}

func TestListSymbols_EmptyList(t *testing.T) {
	api := newFakeAPI()
	api.json("/api/v1/symbols", `{"symbols":[]}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	symbols, err := newTestClient(t, srv, FiindoOptions{}).ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestFetchFinancials(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	srv := httptest.NewServer(api)
	defer srv.Close()

	f, err := newTestClient(t, srv, FiindoOptions{}).FetchFinancials(context.Background(), "AAPL.US")
	require.NoError(t, err)

	assert.Equal(t, "AAPL.US", f.Symbol)
	assert.Equal(t, "Consumer Electronics", f.Industry)
	require.NotNil(t, f.PeriodEnd)
	assert.Equal(t, "2024-06-29", f.PeriodEnd.Format("2006-01-02"))

	// Newest close, quoted number accepted.
	assert.True(t, f.Price.Valid)
	assert.True(t, f.Price.Decimal.Equal(dec("221.55")))

	// Q3 2024 is the latest quarter, Q2 2024 the one before.
	assert.True(t, f.EPS.Decimal.Equal(dec("1.40")))
	assert.True(t, f.RevenuePrev.Decimal.Equal(dec("85777000000")))
	assert.True(t, f.RevenuePrev2.Decimal.Equal(dec("90753000000")))

	require.Len(t, f.NetIncomeQuarters, 4)
	assert.True(t, f.NetIncomeQuarters[3].Decimal.Equal(dec("22956000000")))

	// FY 2023 balance sheet, quarterly rows ignored.
	assert.True(t, f.TotalDebt.Decimal.Equal(dec("111088000000")))
	assert.True(t, f.TotalEquity.Decimal.Equal(dec("62146000000")))
}

func TestFetchFinancials_MissingQuarters(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	api.json("/api/v1/financials/AAPL.US/income_statement", `{"fundamentals":{"financials":{"income_statement":{"data":[]}}}}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	f, err := newTestClient(t, srv, FiindoOptions{}).FetchFinancials(context.Background(), "AAPL.US")
	require.NoError(t, err)

	assert.Nil(t, f.PeriodEnd)
	assert.False(t, f.EPS.Valid)
	assert.False(t, f.RevenuePrev.Valid)
	assert.False(t, f.RevenuePrev2.Valid)
	assert.Empty(t, f.NetIncomeQuarters)
}

func TestFetchFinancials_NoPriceIsParseError(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	api.json("/api/v1/eod/AAPL.US", `{"stockprice":{"data":[]}}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{}).FetchFinancials(context.Background(), "AAPL.US")

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "AAPL.US", pe.Symbol)
	assert.Contains(t, err.Error(), "Price")
}

func TestFetchFinancials_MissingIndustry(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	api.json("/api/v1/general/AAPL.US", `{"fundamentals":{"profile":{"data":[]}}}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{}).FetchFinancials(context.Background(), "AAPL.US")
	assert.Equal(t, KindParse, Kind(err))
	assert.Zero(t, api.hitCount("/api/v1/eod/AAPL.US"))
}

func TestFetchFinancials_MalformedJSON(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	api.json("/api/v1/financials/AAPL.US/income_statement", `{"fundamentals":`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{}).FetchFinancials(context.Background(), "AAPL.US")
	assert.Equal(t, KindParse, Kind(err))
}

func TestFetchFinancials_BadDate(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	api.json("/api/v1/eod/AAPL.US", `{"stockprice":{"data":[{"date":"yesterday","close":1}]}}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{}).FetchFinancials(context.Background(), "AAPL.US")
	assert.Equal(t, KindParse, Kind(err))
}

func TestFetchFinancials_IndustryExcluded(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := newTestClient(t, srv, FiindoOptions{Industries: []string{"Banks - Diversified"}})
	_, err := c.FetchFinancials(context.Background(), "AAPL.US")

	assert.ErrorIs(t, err, ErrIndustryExcluded)
	assert.Equal(t, 1, api.hitCount("/api/v1/general/AAPL.US"))
	assert.Zero(t, api.hitCount("/api/v1/financials/AAPL.US/income_statement"))
}

func TestFetchFinancials_ClientErrorNotRetried(t *testing.T) {
	api := newFakeAPI()
	api.status("/api/v1/general/NOPE.US", http.StatusNotFound)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{Retries: 3}).FetchFinancials(context.Background(), "NOPE.US")

	var ce *ClientAPIError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusNotFound, ce.StatusCode)
	assert.Equal(t, "NOPE.US", ce.Symbol)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 1, api.hitCount("/api/v1/general/NOPE.US"))
}

func TestFetchFinancials_ServerErrorIsTransient(t *testing.T) {
	api := newFakeAPI()
	aaplRoutes(api)
	api.status("/api/v1/eod/AAPL.US", http.StatusServiceUnavailable)
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestClient(t, srv, FiindoOptions{Retries: 2}).FetchFinancials(context.Background(), "AAPL.US")

	var te *TransientAPIError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, api.hitCount("/api/v1/eod/AAPL.US"))
}

func TestFetchFinancials_TimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := newTestClient(t, srv, FiindoOptions{Timeout: 50 * time.Millisecond})
	_, err := c.FetchFinancials(context.Background(), "SLOW.US")

	var te *TransientAPIError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Equal(t, KindTransient, Kind(err))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, KindUnknown, Kind(errors.New("boom")))
	assert.Equal(t, KindCanceled, Kind(&TransientAPIError{Err: context.Canceled}))
	assert.Equal(t, KindClient, Kind(fmt.Errorf("wrapped: %w", &ClientAPIError{StatusCode: 403})))
}

func TestGet_RetriesRespectRateLimit(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// 5 req/s with burst 5: the first five attempts go out at once, the
	// sixth has to wait for a fresh token even though backoff is tiny.
	c := newTestClient(t, srv, FiindoOptions{Retries: 5, Backoff: time.Millisecond, RateLimit: 5})
	_, err := c.ListSymbols(context.Background())

	var te *TransientAPIError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, times, 6)
	assert.GreaterOrEqual(t, times[5].Sub(times[0]), 150*time.Millisecond,
		"retry attempts must wait on the limiter")
}

func TestGet_LimiterWaitHonorsContext(t *testing.T) {
	api := newFakeAPI()
	api.json("/api/v1/symbols", `{"symbols":["A.US"]}`)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := newTestClient(t, srv, FiindoOptions{RateLimit: 0.5})
	_, err := c.ListSymbols(context.Background())
	require.NoError(t, err)

	// The single token is spent; the next wait would exceed the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListSymbols(ctx)

	var te *TransientAPIError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, api.hitCount("/api/v1/symbols"))
}
