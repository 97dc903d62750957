package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dgenerate/core/events"
	"dgenerate/core/runtime"
	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/observability/metrics"
)

// RewardRecord is one committed payout.
type RewardRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TxHash      string    `gorm:"size:66;uniqueIndex" json:"txHash"`
	Height      uint64    `gorm:"index" json:"height"`
	Ledger      string    `gorm:"size:80;index" json:"ledger"`
	Recipient   string    `gorm:"size:80;index" json:"recipient"`
	Caller      string    `gorm:"size:80" json:"caller"`
	Amount      uint64    `gorm:"not null" json:"amount"`
	TotalMinted uint64    `gorm:"not null" json:"totalMinted"`
	NextReward  uint64    `gorm:"not null" json:"nextReward"`
	Halved      bool      `json:"halved"`
	PaidAt      time.Time `gorm:"index" json:"paidAt"`
	CreatedAt   time.Time `json:"-"`
}

// BeforeCreate assigns a random primary key when none was set.
func (r *RewardRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// LeaderboardEntry aggregates the payouts of one recipient on a ledger.
type LeaderboardEntry struct {
	Recipient string `json:"recipient"`
	Total     uint64 `json:"total"`
	Payouts   int64  `json:"payouts"`
}

// DefaultLimit caps queries that do not ask for a limit.
const DefaultLimit = 100

// MaxLimit caps every query.
const MaxLimit = 1000

var ErrInvalidRecord = errors.New("index: invalid reward record")

// Store persists reward history in a SQL database.
type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.IndexMetrics
}

// Open connects to dsn. URLs starting with postgres:// or postgresql:// and
// key=value strings containing host= use postgres; anything else is handed to
// sqlite as a file name or URI.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("index: dsn required")
	}
	var dialector gorm.Dialector
	if isPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	return New(db, logger)
}

// New wraps an already opened database and migrates the schema.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("index: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("index: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:      db,
		logger:  logger.With(slog.String("component", "index")),
		metrics: metrics.Index(),
	}, nil
}

// AutoMigrate performs the schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&RewardRecord{})
}

func isPostgres(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ingest records every reward.paid event carried by receipt. Re-ingesting a
// receipt is a no-op.
func (s *Store) Ingest(ctx context.Context, receipt *runtime.Receipt) (int, error) {
	if receipt == nil {
		return 0, nil
	}
	records := make([]*RewardRecord, 0, 1)
	for _, evt := range receipt.Events {
		if evt == nil || evt.Type != events.TypeRewardPaid {
			continue
		}
		record, err := recordFromEvent(receipt, evt)
		if err != nil {
			s.metrics.IncFailure("decode")
			return 0, err
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_hash"}}, DoNothing: true}).
		Create(&records)
	if result.Error != nil {
		s.metrics.IncFailure("write")
		return 0, fmt.Errorf("index: write: %w", result.Error)
	}
	s.metrics.ObserveIngested(events.TypeRewardPaid, int(result.RowsAffected))
	return int(result.RowsAffected), nil
}

func recordFromEvent(receipt *runtime.Receipt, evt *types.Event) (*RewardRecord, error) {
	attrs := evt.Attributes
	ledger, err := crypto.ParseIdentity(attrs["ledger"])
	if err != nil {
		return nil, fmt.Errorf("%w: ledger: %v", ErrInvalidRecord, err)
	}
	recipient, err := crypto.ParseIdentity(attrs["recipient"])
	if err != nil {
		return nil, fmt.Errorf("%w: recipient: %v", ErrInvalidRecord, err)
	}
	amount, err := strconv.ParseUint(attrs["amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrInvalidRecord, err)
	}
	total, err := strconv.ParseUint(attrs["totalMinted"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: totalMinted: %v", ErrInvalidRecord, err)
	}
	next, err := strconv.ParseUint(attrs["nextReward"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: nextReward: %v", ErrInvalidRecord, err)
	}
	halved, _ := strconv.ParseBool(attrs["halved"])
	return &RewardRecord{
		TxHash:      receipt.TxHash.Hex(),
		Height:      receipt.Height,
		Ledger:      ledger.String(),
		Recipient:   recipient.String(),
		Caller:      attrs["caller"],
		Amount:      amount,
		TotalMinted: total,
		NextReward:  next,
		Halved:      halved,
		PaidAt:      receipt.Timestamp.UTC(),
	}, nil
}

// Run ingests receipts until ctx is done or the channel closes. Failures are
// logged and do not stop the loop.
func (s *Store) Run(ctx context.Context, receipts <-chan *runtime.Receipt) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case receipt, ok := <-receipts:
			if !ok {
				return nil
			}
			if _, err := s.Ingest(ctx, receipt); err != nil {
				s.logger.Error("index ingest failed",
					slog.String("tx", receipt.TxHash.Hex()),
					slog.Any("error", err))
			}
		}
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// History returns the most recent payouts to recipient, newest first.
func (s *Store) History(ctx context.Context, recipient crypto.Identity, limit int) ([]RewardRecord, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("history", time.Since(start)) }()

	var records []RewardRecord
	err := s.db.WithContext(ctx).
		Where("recipient = ?", recipient.String()).
		Order("height desc").
		Limit(clampLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("index: history: %w", err)
	}
	return records, nil
}

// Leaderboard ranks recipients of ledger by total amount received.
func (s *Store) Leaderboard(ctx context.Context, ledger crypto.Identity, limit int) ([]LeaderboardEntry, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("leaderboard", time.Since(start)) }()

	var entries []LeaderboardEntry
	err := s.db.WithContext(ctx).
		Model(&RewardRecord{}).
		Select("recipient, SUM(amount) AS total, COUNT(*) AS payouts").
		Where("ledger = ?", ledger.String()).
		Group("recipient").
		Order("total desc, recipient asc").
		Limit(clampLimit(limit)).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("index: leaderboard: %w", err)
	}
	return entries, nil
}

// Records streams every record of ledger in height order to fn. A zero ledger
// selects all ledgers.
func (s *Store) Records(ctx context.Context, ledger crypto.Identity, fn func(*RewardRecord) error) error {
	query := s.db.WithContext(ctx).Model(&RewardRecord{}).Order("height asc")
	if !ledger.IsZero() {
		query = query.Where("ledger = ?", ledger.String())
	}
	rows, err := query.Rows()
	if err != nil {
		return fmt.Errorf("index: records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var record RewardRecord
		if err := s.db.ScanRows(rows, &record); err != nil {
			return fmt.Errorf("index: scan: %w", err)
		}
		if err := fn(&record); err != nil {
			return err
		}
	}
	return rows.Err()
}
