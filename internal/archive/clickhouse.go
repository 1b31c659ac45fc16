// Package archive appends resolved pricing decisions to ClickHouse.
// The rows exist for offline calibration: the bundle-ratio and
// size-ratio thresholds are hand-tuned constants, and this table is
// the data they will eventually be tuned against.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"snaplist/internal/pricing"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "snaplist",
		Username: "default",
	}
}

// Schema is the DDL for the signal archive.
const Schema = `
CREATE TABLE IF NOT EXISTS pricing_signals (
    decision_id       UUID,
    query_title       String,
    query_brand       String,
    source            LowCardinality(String),
    price             Decimal(18, 2),
    shipping          Nullable(Decimal(18, 2)),
    matches_brand     Bool,
    pack_count        UInt16,
    confidence        Float64,
    chosen            Bool,
    recommended       Decimal(18, 2),
    decision_ok       Bool,
    decision_reason   String,
    created_at        DateTime
) ENGINE = MergeTree()
ORDER BY (created_at, decision_id)
`

// Store implements pricing.Archive on ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore connects to ClickHouse and ensures the archive table.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("archive connect: %w", err)
	}
	s := &Store{conn: conn, cfg: cfg}
	if err := conn.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("archive migrate: %w", err)
	}
	return s, nil
}

// Append writes one row per candidate signal in the decision.
func (s *Store) Append(ctx context.Context, rec pricing.DecisionRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO pricing_signals")
	if err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}

	decisionID, err := uuid.Parse(rec.DecisionID)
	if err != nil {
		decisionID = uuid.New()
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	recommended := centsToDecimal(rec.RecommendedCents)

	for _, sig := range rec.Candidates {
		var shipping *decimal.Decimal
		if sig.ShippingCents != nil {
			d := centsToDecimal(*sig.ShippingCents)
			shipping = &d
		}
		err := batch.Append(
			decisionID,
			rec.QueryTitle,
			rec.QueryBrand,
			string(sig.Source),
			centsToDecimal(sig.PriceCents),
			shipping,
			sig.MatchesBrand,
			uint16(sig.PackCount),
			sig.Confidence,
			sig.Source == rec.ChosenSource,
			recommended,
			rec.OK,
			rec.Reason,
			created,
		)
		if err != nil {
			return fmt.Errorf("archive append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("archive send: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.conn.Close() }

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
