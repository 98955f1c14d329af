// Package holdings owns the shared list of fund holdings and mirrors every
// change to a persistence sink.
package holdings

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"fundwatch/internal/database"
	"fundwatch/internal/metrics"
	"fundwatch/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Bounds on client supplied numbers: cost below 1e6, share below 1e12.
const (
	maxCostDigits        = 6
	maxShareDigits       = 12
	maxFractionDigits    = 18
	maxSignificantDigits = 30
)

// Sink is a load-all/save-all blob store for the holdings list.
type Sink interface {
	Load(ctx context.Context) ([]models.Holding, error)
	Save(ctx context.Context, holdings []models.Holding) error
}

// Input is an unvalidated holding as received from a client. Nil fields
// were absent from the request.
type Input struct {
	Code  *string          `json:"code"`
	Name  *string          `json:"name"`
	Cost  *decimal.Decimal `json:"cost"`
	Share *decimal.Decimal `json:"share"`
}

type Store struct {
	mu    sync.Mutex
	items []models.Holding
	sink  Sink
	log   *logrus.Logger
}

// New loads the holdings from sink. A missing or unreadable sink falls back
// to defaults. Invalid or repeated records, stored or default, are skipped.
func New(ctx context.Context, sink Sink, defaults []Input, log *logrus.Logger) *Store {
	s := &Store{sink: sink, log: log}

	items, err := sink.Load(ctx)
	switch {
	case err == nil:
		stored := make([]Input, len(items))
		for i, h := range items {
			stored[i] = inputOf(h)
		}
		s.items = s.sanitize("stored", stored)
		log.Infof("loaded %d holdings", len(s.items))
	case errors.Is(err, database.ErrNotFound):
		log.Infof("no stored holdings, using %d defaults", len(defaults))
		s.items = s.sanitize("default", defaults)
	default:
		log.Warnf("load holdings failed, using defaults: %v", err)
		s.items = s.sanitize("default", defaults)
	}
	metrics.Holdings.Set(float64(len(s.items)))
	return s
}

func (s *Store) sanitize(source string, inputs []Input) []models.Holding {
	items := make([]models.Holding, 0, len(inputs))
	for _, in := range inputs {
		h, err := Validate(in)
		if err != nil {
			s.log.Warnf("skipping %s holding: %v", source, err)
			continue
		}
		if indexOf(items, h.Code) >= 0 {
			s.log.Warnf("skipping duplicate %s holding %s", source, h.Code)
			continue
		}
		items = append(items, h)
	}
	return items
}

func inputOf(h models.Holding) Input {
	code, name, cost, share := h.Code, h.Name, h.Cost, h.Share
	return Input{Code: &code, Name: &name, Cost: &cost, Share: &share}
}

// Validate checks an Input and returns the rounded Holding.
func Validate(in Input) (models.Holding, error) {
	if in.Code == nil || in.Name == nil || in.Cost == nil || in.Share == nil {
		return models.Holding{}, models.ValidationErrorf("code, name, cost and share are required")
	}
	code := strings.TrimSpace(*in.Code)
	if err := ValidateCode(code); err != nil {
		return models.Holding{}, err
	}
	name := strings.TrimSpace(*in.Name)
	if name == "" {
		return models.Holding{}, models.ValidationErrorf("name must not be empty")
	}
	if !in.Cost.IsPositive() {
		return models.Holding{}, models.ValidationErrorf("cost must be greater than 0")
	}
	if !in.Share.IsPositive() {
		return models.Holding{}, models.ValidationErrorf("share must be greater than 0")
	}
	if !withinDigits(*in.Cost, maxCostDigits) {
		return models.Holding{}, models.ValidationErrorf("cost must be below 1e%d", maxCostDigits)
	}
	if !withinDigits(*in.Share, maxShareDigits) {
		return models.Holding{}, models.ValidationErrorf("share must be below 1e%d", maxShareDigits)
	}
	h := models.Holding{
		Code:  code,
		Name:  name,
		Cost:  in.Cost.Round(4),
		Share: in.Share.Round(2),
	}
	if !h.Cost.IsPositive() || !h.Share.IsPositive() {
		return models.Holding{}, models.ValidationErrorf("cost and share must stay positive after rounding")
	}
	return h, nil
}

// withinDigits reports whether d has at most intDigits integer digits and a
// bounded precision. Only the coefficient and exponent are inspected, so
// inputs like 1e2000000000 are rejected without being expanded.
func withinDigits(d decimal.Decimal, intDigits int) bool {
	exp := int(d.Exponent())
	if exp < -maxFractionDigits || d.NumDigits() > maxSignificantDigits {
		return false
	}
	return d.NumDigits()+exp <= intDigits
}

// ValidateCode accepts exactly six ASCII digits.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return models.ValidationErrorf("code must be 6 digits, got %q", code)
	}
	return nil
}

// List returns a copy of the holdings in display order.
func (s *Store) List() []models.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add appends a holding. Adding a code that is already held is a no-op and
// reports duplicate=true.
func (s *Store) Add(ctx context.Context, in Input) (holdings []models.Holding, duplicate bool, err error) {
	h, err := Validate(in)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.items, h.Code) >= 0 {
		s.log.Infof("holding %s already present, skipping", h.Code)
		return clone(s.items), true, nil
	}
	next := append(clone(s.items), h)
	if err := s.commit(ctx, next); err != nil {
		return nil, false, err
	}
	s.log.Infof("added holding %s (%s)", h.Code, h.Name)
	return clone(s.items), false, nil
}

func (s *Store) Delete(ctx context.Context, code string) ([]models.Holding, error) {
	code = strings.TrimSpace(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, code)
	if i < 0 {
		return nil, models.NotFoundErrorf("fund %s is not held", code)
	}
	next := make([]models.Holding, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	s.log.Infof("deleted holding %s", code)
	return clone(s.items), nil
}

func (s *Store) Clear(ctx context.Context) ([]models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(ctx, []models.Holding{}); err != nil {
		return nil, err
	}
	s.log.Info("cleared all holdings")
	return clone(s.items), nil
}

// commit persists next and only then swaps it in; callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []models.Holding) error {
	if err := s.sink.Save(ctx, next); err != nil {
		s.log.Errorf("save holdings failed: %v", err)
		return models.NewError(models.KindPersistence, "failed to save holdings", err)
	}
	s.items = next
	metrics.Holdings.Set(float64(len(next)))
	return nil
}

func indexOf(items []models.Holding, code string) int {
	for i, h := range items {
		if h.Code == code {
			return i
		}
	}
	return -1
}

func clone(items []models.Holding) []models.Holding {
	out := make([]models.Holding, len(items))
	copy(out, items)
	return out
}
