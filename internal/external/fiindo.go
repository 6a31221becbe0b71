package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjannette/fiindo-etl/internal/httputil"
	"github.com/kjannette/fiindo-etl/internal/models"
)

const (
	DefaultBaseURL = "https://api.test.fiindo.com"

	statementIncome  = "income_statement"
	statementBalance = "balance_sheet_statement"
)

// FiindoClient talks to the Fiindo REST API. It is safe for concurrent use.
type FiindoClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      httputil.RetryConfig
	limiter    *rate.Limiter
	industries map[string]struct{}
	validate   *validator.Validate
	logger     *zap.Logger
}

type FiindoOptions struct {
	Timeout    time.Duration
	Retries    int           // extra attempts after the first, 0 disables retry
	Backoff    time.Duration // first retry delay, doubled per attempt
	RateLimit  float64       // requests per second across all callers, 0 = unlimited
	Industries []string      // allow list, empty = every industry
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewFiindoClient(baseURL, token string, opts FiindoOptions) *FiindoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &FiindoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		retry: httputil.RetryConfig{
			MaxAttempts: retries + 1,
			BaseDelay:   backoff,
			MaxDelay:    16 * backoff,
			Logger:      logger,
		},
		validate: newValidator(),
		logger:   logger,
	}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	if len(opts.Industries) > 0 {
		c.industries = make(map[string]struct{}, len(opts.Industries))
		for _, ind := range opts.Industries {
			c.industries[ind] = struct{}{}
		}
	}

	return c
}

// ListSymbols returns the ticker universe with blanks and duplicates removed,
// keeping first-seen order.
func (c *FiindoClient) ListSymbols(ctx context.Context) ([]string, error) {
	const endpoint = "/api/v1/symbols"

	var data symbolsResponse
	if err := c.get(ctx, "", endpoint, &data); err != nil {
		return nil, err
	}
	if data.Symbols == nil {
		return nil, &ParseError{Endpoint: endpoint, Err: errors.New("missing or invalid 'symbols' field")}
	}

	seen := make(map[string]struct{}, len(*data.Symbols))
	out := make([]string, 0, len(*data.Symbols))
	for _, s := range *data.Symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if len(out) == 0 {
		c.logger.Warn("fiindo returned an empty symbol list")
	}
	c.logger.Info("fetched symbols", zap.Int("count", len(out)))
	return out, nil
}

// FetchFinancials gathers everything the calculations need for one symbol:
// industry, quarterly income statements, the latest fiscal-year balance
// sheet and the latest close.
func (c *FiindoClient) FetchFinancials(ctx context.Context, symbol string) (*models.TickerFinancials, error) {
	industry, err := c.GetIndustry(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if c.industries != nil {
		if _, ok := c.industries[industry]; !ok {
			return nil, ErrIndustryExcluded
		}
	}

	incomePath := statementPath(symbol, statementIncome)
	var income statementResponse[incomeRow]
	if err := c.get(ctx, symbol, incomePath, &income); err != nil {
		return nil, err
	}
	qs, err := quarters(income.rows(statementIncome))
	if err != nil {
		return nil, &ParseError{Endpoint: incomePath, Symbol: symbol, Err: err}
	}

	balancePath := statementPath(symbol, statementBalance)
	var balance statementResponse[balanceRow]
	if err := c.get(ctx, symbol, balancePath, &balance); err != nil {
		return nil, err
	}
	fy, err := latestFiscalYear(balance.rows(statementBalance))
	if err != nil {
		return nil, &ParseError{Endpoint: balancePath, Symbol: symbol, Err: err}
	}

	eodPath := "/api/v1/eod/" + url.PathEscape(symbol)
	var eod eodResponse
	if err := c.get(ctx, symbol, eodPath, &eod); err != nil {
		return nil, err
	}
	price, err := latestClose(eod.StockPrice.Data)
	if err != nil {
		return nil, &ParseError{Endpoint: eodPath, Symbol: symbol, Err: err}
	}

	f := &models.TickerFinancials{
		Symbol:   symbol,
		Industry: industry,
		Price:    price,
	}
	if len(qs) > 0 {
		end := qs[0].periodEnd
		f.PeriodEnd = &end
		f.EPS = qs[0].EPS
		f.RevenuePrev = qs[0].Revenue
	}
	if len(qs) > 1 {
		f.RevenuePrev2 = qs[1].Revenue
	}
	for i := 0; i < len(qs) && i < 4; i++ {
		f.NetIncomeQuarters = append(f.NetIncomeQuarters, qs[i].NetIncome)
	}
	if fy != nil {
		f.TotalDebt = fy.TotalDebt
		f.TotalEquity = fy.TotalEquity
	}

	if err := c.validate.Struct(f); err != nil {
		return nil, &ParseError{Endpoint: "financials", Symbol: symbol, Err: err}
	}
	return f, nil
}

// GetIndustry returns the industry classification from the general endpoint.
func (c *FiindoClient) GetIndustry(ctx context.Context, symbol string) (string, error) {
	path := "/api/v1/general/" + url.PathEscape(symbol)

	var general generalResponse
	if err := c.get(ctx, symbol, path, &general); err != nil {
		return "", err
	}
	industry := general.industry()
	if industry == "" {
		return "", &ParseError{Endpoint: path, Symbol: symbol, Err: errors.New("missing industry classification")}
	}
	return industry, nil
}

func (c *FiindoClient) get(ctx context.Context, symbol, path string, out any) error {
	c.logger.Debug("GET", zap.String("path", path), zap.String("symbol", symbol))

	// buildReq runs once per attempt, so retries spend rate tokens too.
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return &TransientAPIError{Endpoint: path, Symbol: symbol, StatusCode: se.StatusCode, Err: err}
		}
		return &TransientAPIError{Endpoint: path, Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ClientAPIError{
			Endpoint:   path,
			Symbol:     symbol,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Endpoint: path, Symbol: symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func statementPath(symbol, statement string) string {
	return fmt.Sprintf("/api/v1/financials/%s/%s", url.PathEscape(symbol), statement)
}

// newValidator teaches validator that an invalid NullDecimal is "empty".
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.NullDecimal); ok && d.Valid {
			return d.Decimal.String()
		}
		return nil
	}, decimal.NullDecimal{})
	return v
}
