package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/lock"
	"storeledger/internal/core/numerator"
	"storeledger/internal/core/tx"
	"storeledger/pkg/logger"
)

var tracer = otel.Tracer("storeledger/stock")

// Service is the only path by which stock quantities change.
type Service struct {
	repo    Repository
	txm     tx.ReadOnlyManager
	locker  lock.Locker
	codes   numerator.Generator
	metrics Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process per-item locker.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithNumerator enables generated item codes for items created without one.
func WithNumerator(g numerator.Generator) Option {
	return func(s *Service) { s.codes = g }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for movements without a business date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the stock ledger service.
func NewService(repo Repository, txm tx.ReadOnlyManager, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		txm:     txm,
		locker:  lock.NewLocal(),
		metrics: NopMetrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewItem is the input of CreateItem.
type NewItem struct {
	// Code may be empty when a numerator is configured; one is then
	// generated from the category prefix (RM-00001).
	Code     string
	Name     string
	Category string
	Unit     string
}

// categoryPrefixes maps known categories to code prefixes.
var categoryPrefixes = map[string]string{
	"raw material": "RM",
	"consumable":   "CON",
	"hardware":     "HW",
	"spare part":   "SP",
	"electrical":   "EL",
	"lubricant":    "LUB",
	"tyre":         "TYR",
}

// CodePrefix returns the generated-code prefix for a category.
func CodePrefix(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if p, ok := categoryPrefixes[c]; ok {
		return p
	}
	letters := make([]rune, 0, 3)
	for _, r := range strings.ToUpper(c) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
		if len(letters) == 3 {
			break
		}
	}
	if len(letters) == 0 {
		return "ITM"
	}
	return string(letters)
}

// CreateItem registers a stock item with an empty snapshot.
// Items are never created implicitly by a movement.
func (s *Service) CreateItem(ctx context.Context, in NewItem) (*entity.StockItem, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" && s.codes != nil {
		generated, err := s.codes.GetNextNumber(ctx, numerator.ItemCodeConfig(CodePrefix(in.Category)), nil, s.now())
		if err != nil {
			return nil, fmt.Errorf("generate item code: %w", err)
		}
		code = generated
	}

	item := entity.NewStockItem(code, in.Name, in.Category, in.Unit)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.CreateItem(ctx, item)
	}); err != nil {
		return nil, err
	}

	logger.Info(ctx, "created stock item", "item_id", item.ID, "code", item.Code)
	return item, nil
}

// GetItem returns an item with its current snapshot.
func (s *Service) GetItem(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	if id.IsNil(itemID) {
		return nil, apperror.NewInvalidMovement("item reference is required")
	}
	return s.repo.GetItem(ctx, itemID)
}

// GetItemByCode returns an item by its code.
func (s *Service) GetItemByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	return s.repo.GetItemByCode(ctx, strings.TrimSpace(code))
}

// ListItems returns items ordered by code.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]entity.StockItem, error) {
	return s.repo.ListItems(ctx, filter)
}

// lockItems takes the per-item locks for ids in sorted order.
func (s *Service) lockItems(ctx context.Context, ids []id.ID) (lock.Release, error) {
	keys := make([]string, 0, len(ids))
	for _, itemID := range ids {
		keys = append(keys, lock.ItemKey(itemID.String()))
	}
	return s.locker.Lock(ctx, keys...)
}

// Entries returns ledger entries matching filter, by business date then
// append order.
func (s *Service) Entries(ctx context.Context, filter EntryFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ListEntries(ctx, filter)
		return err
	})
	return out, err
}
