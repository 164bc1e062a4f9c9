package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/invsnap/internal/core/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id              UUID PRIMARY KEY,
    marketplace     TEXT NOT NULL,
    taken_at        TIMESTAMPTZ NOT NULL,
    attempts        INTEGER NOT NULL,
    via_fallback    BOOLEAN NOT NULL DEFAULT FALSE,
    top_date        BIGINT NOT NULL,
    top_date_count  INTEGER NOT NULL,
    order_count     INTEGER NOT NULL,
    part_count      INTEGER NOT NULL,
    item_count      INTEGER NOT NULL,
    item_free_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_marketplace ON snapshots(marketplace, taken_at);

CREATE TABLE IF NOT EXISTS snapshot_items (
    snapshot_id    TEXT NOT NULL,
    seq            INTEGER NOT NULL,
    item_id        TEXT NOT NULL,
    type_id        TEXT NOT NULL DEFAULT '',
    color_id       INTEGER NOT NULL,
    category_id    INTEGER NOT NULL,
    quantity       INTEGER NOT NULL,
    price          DOUBLE PRECISION NOT NULL,
    bulk           INTEGER NOT NULL,
    lot_id         BIGINT NOT NULL,
    my_cost        DOUBLE PRECISION NOT NULL,
    condition_code TEXT NOT NULL DEFAULT '',
    comments       TEXT NOT NULL DEFAULT '',
    remarks        TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (snapshot_id, seq)
);
`

type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

func (p *PostgresAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (p *PostgresAdapter) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	inv := snap.Inventory
	if inv == nil {
		inv = domain.NewInventory()
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshots (id, marketplace, taken_at, attempts, via_fallback,
			top_date, top_date_count, order_count, part_count, item_count, item_free_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		snap.ID, string(snap.Marketplace), snap.TakenAt, snap.Attempts, snap.ViaFallback,
		snap.Orders.TopDate, snap.Orders.TopDateCount, snap.Orders.OrderCount,
		inv.PartCount, inv.ItemCount, inv.ItemFreeCount,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	id := snap.ID.String()
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"snapshot_items"}, itemColumns,
		pgx.CopyFromSlice(len(inv.Items), func(i int) ([]any, error) {
			return itemRow(id, i, inv.Items[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy items: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *PostgresAdapter) GetLatestSnapshot(ctx context.Context, marketplace domain.Marketplace) (*domain.Snapshot, error) {
	var (
		snap domain.Snapshot
		mp   string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, marketplace, taken_at, attempts, via_fallback, top_date, top_date_count, order_count
		FROM snapshots WHERE marketplace = $1
		ORDER BY taken_at DESC LIMIT 1`, string(marketplace),
	).Scan(&snap.ID, &mp, &snap.TakenAt, &snap.Attempts, &snap.ViaFallback,
		&snap.Orders.TopDate, &snap.Orders.TopDateCount, &snap.Orders.OrderCount)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snap.Marketplace = domain.Marketplace(mp)

	rows, err := p.pool.Query(ctx, `
		SELECT item_id, type_id, color_id, category_id, quantity, price, bulk, lot_id,
			my_cost, condition_code, comments, remarks
		FROM snapshot_items WHERE snapshot_id = $1 ORDER BY seq`, snap.ID.String())
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	snap.Inventory = domain.NewInventory()
	for rows.Next() {
		var it domain.Item
		var typeID, condition string
		if err := rows.Scan(&it.ID, &typeID, &it.ColorID, &it.CategoryID, &it.Quantity, &it.Price,
			&it.Bulk, &it.LotID, &it.MyCost, &condition, &it.Comments, &it.Remarks); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.TypeID = codeByte(typeID)
		it.Condition = codeByte(condition)
		snap.Inventory.Add(it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return &snap, nil
}
