// Package numerator provides the PostgreSQL implementation of sequence
// allocation (core/numerator.Generator) over the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	corenumerator "storeledger/internal/core/numerator"
)

const (
	sequencesTable = "sys_sequences"

	defaultRangeSize = 50

	// the inserted value is the step for addSuffix and the new value for setSuffix
	addSuffix = "ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + EXCLUDED.current_val RETURNING current_val"
	setSuffix = "ON CONFLICT (key) DO UPDATE SET current_val = EXCLUDED.current_val RETURNING current_val"
)

// Querier is the subset of pgx used for sequence updates.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// block is a reserved range (next, last] handed out from memory.
type block struct {
	next int64
	last int64
}

func (b *block) spent() bool { return b.next >= b.last }

// Service allocates numbers from sys_sequences.
// Calls run outside business transactions, so a rolled-back movement can
// leave a gap in a strict sequence; that is accepted.
type Service struct {
	querier Querier
	builder squirrel.StatementBuilderType

	mu     sync.Mutex
	blocks map[string]*block
}

var _ corenumerator.Generator = (*Service)(nil)

func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		blocks:  make(map[string]*block),
	}
}

// GetNextNumber returns the next formatted number for cfg.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := sequenceKey(cfg, period)

	var (
		n   int64
		err error
	)
	if opts.Strategy == corenumerator.StrategyCached {
		n, err = s.nextFromBlock(ctx, key, opts.RangeSize)
	} else {
		n, err = s.upsert(ctx, key, 1, addSuffix)
	}
	if err != nil {
		return "", err
	}
	return formatNumber(cfg, period, n), nil
}

// nextFromBlock serves numbers from memory and reserves a new block of
// size when the current one is spent. current_val is always the last
// reserved value.
func (s *Service) nextFromBlock(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = defaultRangeSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blocks[key]
	if !ok || b.spent() {
		last, err := s.upsert(ctx, key, size, addSuffix)
		if err != nil {
			return 0, err
		}
		b = &block{next: last - size, last: last}
		s.blocks[key] = b
	}
	b.next++
	return b.next, nil
}

// SetNextNumber makes value the next number handed out for cfg and drops
// any block reserved in this process.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := sequenceKey(cfg, period)

	s.mu.Lock()
	delete(s.blocks, key)
	s.mu.Unlock()

	_, err := s.upsert(ctx, key, value-1, setSuffix)
	return err
}

func (s *Service) upsert(ctx context.Context, key string, val int64, suffix string) (int64, error) {
	sql, args, err := s.builder.Insert(sequencesTable).
		Columns("key", "current_val").
		Values(key, val).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sequence upsert: %w", err)
	}

	var cur int64
	if err := s.querier.QueryRow(ctx, sql, args...).Scan(&cur); err != nil {
		return 0, fmt.Errorf("sequence %s: %w", key, err)
	}
	return cur, nil
}

func sequenceKey(cfg corenumerator.Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return cfg.Prefix + "_" + period.Format("2006_01")
	case "year":
		return cfg.Prefix + "_" + period.Format("2006")
	}
	return cfg.Prefix
}

func formatNumber(cfg corenumerator.Config, period time.Time, n int64) string {
	width := cfg.PadWidth
	if width == 0 {
		width = 5
	}
	prefix := cfg.Prefix
	if cfg.IncludeYear {
		prefix += "-" + period.Format("2006")
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}

// ParseNumber returns the numeric tail of a formatted number
// (ISS-00042 -> 42, GI-2026-00007 -> 7), or -1.
func ParseNumber(formatted string) int64 {
	_, tail, ok := cutLast(formatted, "-")
	if !ok || tail == "" {
		return -1
	}
	n, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
