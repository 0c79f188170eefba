// Package postgres is a Postgres-backed snapshotstore.Store.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/models"
	"github.com/arjunamarcelino/velobid/go/internal/snapshotstore"
	"github.com/arjunamarcelino/velobid/go/internal/sqlutil"
	"github.com/arjunamarcelino/velobid/go/internal/units"
)

//go:embed migrations/*.sql
var migrations embed.FS

var auctionColumns = []string{
	"position", "auction_id", "name", "description", "end_time", "starting_bid",
	"highest_bid", "highest_bidder", "ended", "winner", "total_volume_bid", "beneficiary",
}

// Store keeps exactly one view: the last one saved.
type Store struct {
	pool *pgxpool.Pool
}

var _ snapshotstore.Store = (*Store)(nil)

// NewPool creates a connection pool and verifies it with a ping.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded schema. Every migration is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := migrations.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		log.Debug().Str("migration", file).Msg("applied migration")
	}
	return nil
}

// SaveView replaces the stored view in one transaction.
func (s *Store) SaveView(ctx context.Context, view models.CategorizedView) error {
	rows := make([][]interface{}, 0, len(view.All))
	for i, rec := range view.All {
		rows = append(rows, []interface{}{
			i, int64(rec.AuctionID), rec.Name, rec.Description, rec.EndTime,
			amountText(rec.StartingBid), amountText(rec.HighestBid), rec.HighestBidder,
			rec.Ended, rec.Winner, amountText(rec.TotalVolumeBid), rec.Beneficiary,
		})
	}

	err := sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO published_view (id, generation, synced_at) VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET generation = EXCLUDED.generation, synced_at = EXCLUDED.synced_at`,
			int64(view.Generation), view.SyncedAt,
		); err != nil {
			return fmt.Errorf("upsert view header: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM published_auctions`); err != nil {
			return fmt.Errorf("clear auctions: %w", err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"published_auctions"}, auctionColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy auctions: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save view generation %d: %w", view.Generation, err)
	}
	return nil
}

// LoadView returns the stored view, or snapshotstore.ErrNotFound.
func (s *Store) LoadView(ctx context.Context) (models.CategorizedView, error) {
	var (
		generation int64
		syncedAt   time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT generation, synced_at FROM published_view WHERE id = 1`).Scan(&generation, &syncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CategorizedView{}, snapshotstore.ErrNotFound
	}
	if err != nil {
		return models.CategorizedView{}, fmt.Errorf("load view header: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT auction_id, name, description, end_time, starting_bid, highest_bid,
		       highest_bidder, ended, winner, total_volume_bid, beneficiary
		FROM published_auctions ORDER BY position`)
	if err != nil {
		return models.CategorizedView{}, fmt.Errorf("load auctions: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanAuction)
	if err != nil {
		return models.CategorizedView{}, fmt.Errorf("scan auctions: %w", err)
	}

	return models.Categorize(records, uint64(generation), syncedAt.UTC()), nil
}

func scanAuction(row pgx.CollectableRow) (models.AuctionRecord, error) {
	var (
		rec                       models.AuctionRecord
		id                        int64
		starting, highest, volume string
	)
	if err := row.Scan(&id, &rec.Name, &rec.Description, &rec.EndTime, &starting, &highest,
		&rec.HighestBidder, &rec.Ended, &rec.Winner, &volume, &rec.Beneficiary); err != nil {
		return models.AuctionRecord{}, err
	}
	rec.AuctionID = uint64(id)
	rec.EndTime = rec.EndTime.UTC()

	var err error
	if rec.StartingBid, err = parseAmount(starting); err != nil {
		return models.AuctionRecord{}, err
	}
	if rec.HighestBid, err = parseAmount(highest); err != nil {
		return models.AuctionRecord{}, err
	}
	if rec.TotalVolumeBid, err = parseAmount(volume); err != nil {
		return models.AuctionRecord{}, err
	}
	return rec, nil
}

func amountText(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return units.ParseSmallest(s)
}
