package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"fundwatch/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	MinKeywordLength   = 2
	MaxSearchResults   = 10
	DefaultConcurrency = 4
)

// ValuationProvider fetches the current valuation of a fund.
type ValuationProvider interface {
	Fetch(ctx context.Context, code string) (models.Valuation, error)
}

// Suggester resolves a search keyword to candidate funds.
type Suggester interface {
	Suggest(ctx context.Context, keyword string) ([]Candidate, error)
}

// FundService combines valuations with holdings and search results.
type FundService struct {
	provider    ValuationProvider
	suggester   Suggester
	concurrency int
	log         *logrus.Logger
}

func NewFundService(p ValuationProvider, s Suggester, concurrency int, log *logrus.Logger) *FundService {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &FundService{provider: p, suggester: s, concurrency: concurrency, log: log}
}

// Profit values every holding and aggregates the result. A failed fetch
// only affects its own line, which is valued as unknown and carries the
// error detail.
func (s *FundService) Profit(ctx context.Context, holdings []models.Holding) models.ProfitReport {
	codes := make([]string, len(holdings))
	for i, h := range holdings {
		codes[i] = h.Code
	}
	vals, errs := s.valuations(ctx, codes)

	funds := make([]models.ProfitItem, len(holdings))
	profits := make([]Profit, len(holdings))
	for i, h := range holdings {
		p := ComputeProfit(h, vals[i])
		profits[i] = p
		funds[i] = models.ProfitItem{
			Code:         h.Code,
			Name:         h.Name,
			Cost:         h.Cost.StringFixed(4),
			Share:        h.Share.StringFixed(2),
			CurrentValue: vals[i].Value,
			ChangeRate:   vals[i].Rate,
			DataType:     vals[i].DataType(),
			TotalCost:    p.TotalCost.StringFixed(2),
			FloatProfit:  p.FloatProfit.StringFixed(2),
			ProfitRate:   p.ProfitRate.StringFixed(2),
		}
		if errs[i] != nil {
			funds[i].Error = errorDetail(errs[i])
		}
	}

	total := SumProfit(profits)
	return models.ProfitReport{
		Funds: funds,
		Total: models.ProfitTotal{
			FundCount:        len(holdings),
			TotalCost:        total.TotalCost.StringFixed(2),
			TotalFloatProfit: total.FloatProfit.StringFixed(2),
			TotalProfitRate:  total.ProfitRate.StringFixed(2),
		},
	}
}

// Search looks up funds matching keyword and values up to
// MaxSearchResults of them. No match is an empty, successful result.
func (s *FundService) Search(ctx context.Context, keyword string) ([]models.SearchResult, error) {
	keyword = strings.TrimSpace(keyword)
	if utf8.RuneCountInString(keyword) < MinKeywordLength {
		return nil, models.ValidationErrorf("keyword must be at least %d characters", MinKeywordLength)
	}

	candidates, err := s.suggester.Suggest(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if len(candidates) > MaxSearchResults {
		candidates = candidates[:MaxSearchResults]
	}

	codes := make([]string, len(candidates))
	for i, c := range candidates {
		codes[i] = c.Code
	}
	vals, _ := s.valuations(ctx, codes)

	out := make([]models.SearchResult, len(candidates))
	for i, c := range candidates {
		out[i] = models.SearchResult{
			Code:         c.Code,
			Name:         c.Name,
			CurrentValue: vals[i].Value,
			ChangeRate:   vals[i].Rate,
			DataType:     vals[i].DataType(),
		}
	}
	return out, nil
}

// valuations fetches codes with at most s.concurrency requests in flight.
// Results keep the input order; failures become unknown valuations.
func (s *FundService) valuations(ctx context.Context, codes []string) ([]models.Valuation, []error) {
	vals := make([]models.Valuation, len(codes))
	errs := make([]error, len(codes))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			v, err := s.provider.Fetch(ctx, code)
			if err != nil {
				s.log.Warnf("valuation for %s failed: %v", code, err)
				v = models.UnknownValuation()
			}
			vals[i], errs[i] = v, err
			return nil
		})
	}
	_ = g.Wait()
	return vals, errs
}

func errorDetail(err error) string {
	var e *models.Error
	if errors.As(err, &e) {
		return e.Detail()
	}
	return models.Truncate(err.Error(), models.MaxDetailRunes)
}
