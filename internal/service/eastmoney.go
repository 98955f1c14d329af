package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundwatch/internal/metrics"
	"fundwatch/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultEstimateBaseURL = "https://fundgz.1234567.com.cn"
	DefaultDetailBaseURL   = "https://fund.eastmoney.com"
	DefaultSearchBaseURL   = "https://fundsuggest.eastmoney.com"
	DefaultTimeout         = 10 * time.Second
	DefaultRateLimit       = 10 // requests per second

	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer     = "https://fund.eastmoney.com/"
	maxBodySize = 2 << 20
)

// EastmoneyClient reads fund valuations and search suggestions from the
// eastmoney fund site.
type EastmoneyClient struct {
	estimateBaseURL string
	detailBaseURL   string
	searchBaseURL   string
	timeout         time.Duration
	httpClient      *http.Client
	limiter         *rate.Limiter
	log             *logrus.Logger
}

type ClientOption func(*EastmoneyClient)

func WithEstimateBaseURL(u string) ClientOption {
	return func(c *EastmoneyClient) { c.estimateBaseURL = u }
}

func WithDetailBaseURL(u string) ClientOption {
	return func(c *EastmoneyClient) { c.detailBaseURL = u }
}

func WithSearchBaseURL(u string) ClientOption {
	return func(c *EastmoneyClient) { c.searchBaseURL = u }
}

// WithTimeout sets the hard ceiling for a whole Fetch or Suggest call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *EastmoneyClient) {
		c.timeout = d
		c.httpClient.Timeout = d
	}
}

func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *EastmoneyClient) {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func WithProxy(proxyURL string) ClientOption {
	return func(c *EastmoneyClient) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			c.log.Warnf("ignoring invalid proxy %q: %v", proxyURL, err)
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = http.ProxyURL(u)
		c.httpClient.Transport = tr
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *EastmoneyClient) { c.httpClient = hc }
}

func NewEastmoneyClient(log *logrus.Logger, opts ...ClientOption) *EastmoneyClient {
	c := &EastmoneyClient{
		estimateBaseURL: DefaultEstimateBaseURL,
		detailBaseURL:   DefaultDetailBaseURL,
		searchBaseURL:   DefaultSearchBaseURL,
		timeout:         DefaultTimeout,
		httpClient:      &http.Client{Timeout: DefaultTimeout},
		limiter:         rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:             log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the current valuation of a fund. The estimate feed is tried
// first; the detail page is only requested when no live estimate is
// available. Only when both sources fail is an error returned.
func (c *EastmoneyClient) Fetch(ctx context.Context, code string) (models.Valuation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	est, estErr := c.fetchEstimate(ctx, code)
	if estErr == nil {
		if v, ok := est.live(); ok {
			metrics.Valuations.WithLabelValues(string(v.Kind)).Inc()
			return v, nil
		}
	} else {
		c.log.Warnf("estimate for %s unavailable: %v", code, estErr)
	}

	det, detErr := c.fetchDetail(ctx, code)
	if detErr != nil {
		if estErr != nil {
			return models.UnknownValuation(), classify("valuation fetch failed", detErr)
		}
		c.log.Warnf("detail page for %s unavailable: %v", code, detErr)
	}

	v := resolve(det.merge(est))
	metrics.Valuations.WithLabelValues(string(v.Kind)).Inc()
	return v, nil
}

func (c *EastmoneyClient) fetchEstimate(ctx context.Context, code string) (quoteFields, error) {
	u := fmt.Sprintf("%s/js/%s.js?rt=%d", c.estimateBaseURL, url.PathEscape(code), time.Now().UnixMilli())
	body, err := c.get(ctx, "estimate", u)
	if err != nil {
		return quoteFields{}, err
	}
	return parseEstimate(body)
}

func (c *EastmoneyClient) fetchDetail(ctx context.Context, code string) (quoteFields, error) {
	u := fmt.Sprintf("%s/%s.html", c.detailBaseURL, url.PathEscape(code))
	body, err := c.get(ctx, "detail", u)
	if err != nil {
		return quoteFields{}, err
	}
	return parseDetail(body)
}

type suggestResponse struct {
	ErrCode int `json:"ErrCode"`
	Datas   []struct {
		Code string `json:"CODE"`
		Name string `json:"NAME"`
	} `json:"Datas"`
}

// Candidate is a fund matched by the suggestion API.
type Candidate struct {
	Code string
	Name string
}

// Suggest resolves a keyword (code or name fragment) to candidate funds.
func (c *EastmoneyClient) Suggest(ctx context.Context, keyword string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("m", "1")
	params.Set("key", keyword)
	u := fmt.Sprintf("%s/FundSearch/api/FundSearchAPI.ashx?%s", c.searchBaseURL, params.Encode())

	body, err := c.get(ctx, "search", u)
	if err != nil {
		return nil, classify("fund search failed", err)
	}
	var resp suggestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, classify("fund search failed", fmt.Errorf("decode suggestions: %w", err))
	}

	out := make([]Candidate, 0, len(resp.Datas))
	for _, d := range resp.Datas {
		if d.Code == "" {
			continue
		}
		out = append(out, Candidate{Code: d.Code, Name: d.Name})
	}
	return out, nil
}

// get performs a rate-limited GET and returns the body of a 2xx response.
func (c *EastmoneyClient) get(ctx context.Context, source, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// the next token would only arrive after the deadline
			return nil, fmt.Errorf("rate limit wait: %w: %v", context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("%s read body: %w", source, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(source, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("%s: status %d", source, resp.StatusCode)
	}
	metrics.UpstreamRequests.WithLabelValues(source, "ok").Inc()
	return body, nil
}

// classify maps a transport error onto the upstream error kinds.
func classify(msg string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.NewError(models.KindUpstreamTimeout, msg+" (timeout)", err)
	}
	return models.NewError(models.KindUpstreamFetch, msg, err)
}
