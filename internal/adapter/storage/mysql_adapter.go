package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/invsnap/internal/core/domain"
)

const itemInsertBatch = 500

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id              CHAR(36) PRIMARY KEY,
		marketplace     VARCHAR(32) NOT NULL,
		taken_at        DATETIME(3) NOT NULL,
		attempts        INT NOT NULL,
		via_fallback    BOOLEAN NOT NULL DEFAULT FALSE,
		top_date        BIGINT NOT NULL,
		top_date_count  INT NOT NULL,
		order_count     INT NOT NULL,
		part_count      INT NOT NULL,
		item_count      INT NOT NULL,
		item_free_count INT NOT NULL,
		INDEX idx_snapshots_marketplace (marketplace, taken_at)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshot_items (
		snapshot_id    CHAR(36) NOT NULL,
		seq            INT NOT NULL,
		item_id        VARCHAR(64) NOT NULL,
		type_id        CHAR(1) NOT NULL DEFAULT '',
		color_id       INT NOT NULL,
		category_id    INT NOT NULL,
		quantity       INT NOT NULL,
		price          DOUBLE NOT NULL,
		bulk           INT NOT NULL,
		lot_id         BIGINT NOT NULL,
		my_cost        DOUBLE NOT NULL,
		condition_code CHAR(1) NOT NULL DEFAULT '',
		comments       TEXT NOT NULL,
		remarks        TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, seq)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	inv := snap.Inventory
	if inv == nil {
		inv = domain.NewInventory()
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, marketplace, taken_at, attempts, via_fallback,
			top_date, top_date_count, order_count, part_count, item_count, item_free_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID.String(), string(snap.Marketplace), snap.TakenAt.UTC(), snap.Attempts, snap.ViaFallback,
		snap.Orders.TopDate, snap.Orders.TopDateCount, snap.Orders.OrderCount,
		inv.PartCount, inv.ItemCount, inv.ItemFreeCount,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(itemColumns)), ", ") + ")"
	for start := 0; start < len(inv.Items); start += itemInsertBatch {
		end := min(start+itemInsertBatch, len(inv.Items))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(itemColumns))
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			args = append(args, itemRow(snap.ID.String(), i, inv.Items[i])...)
		}
		query := "INSERT INTO snapshot_items (" + strings.Join(itemColumns, ", ") + ") VALUES " + strings.Join(values, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetLatestSnapshot(ctx context.Context, marketplace domain.Marketplace) (*domain.Snapshot, error) {
	var (
		snap    domain.Snapshot
		id      string
		mp      string
		takenAt time.Time
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, marketplace, taken_at, attempts, via_fallback, top_date, top_date_count, order_count
		FROM snapshots WHERE marketplace = ?
		ORDER BY taken_at DESC LIMIT 1`, string(marketplace),
	).Scan(&id, &mp, &takenAt, &snap.Attempts, &snap.ViaFallback,
		&snap.Orders.TopDate, &snap.Orders.TopDateCount, &snap.Orders.OrderCount)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	snap.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("snapshot id %q: %w", id, err)
	}
	snap.Marketplace = domain.Marketplace(mp)
	snap.TakenAt = takenAt

	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, type_id, color_id, category_id, quantity, price, bulk, lot_id,
			my_cost, condition_code, comments, remarks
		FROM snapshot_items WHERE snapshot_id = ? ORDER BY seq`, id)
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
