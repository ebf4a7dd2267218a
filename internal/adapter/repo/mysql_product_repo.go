package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

type MySQLProductRepo struct{ db *sql.DB }

func NewMySQLProductRepo(db *sql.DB) *MySQLProductRepo { return &MySQLProductRepo{db: db} }

func (r *MySQLProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, price_sats, stock FROM products WHERE id=?`, id)
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Title, &p.PriceSats, &p.Stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, usecase.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DecrementStock is conditional on sufficient stock so a race between two
// paid orders can never drive inventory negative.
func (r *MySQLProductRepo) DecrementStock(ctx context.Context, productID string, qty int) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE products
        SET stock = stock - ?
        WHERE id = ? AND stock >= ?`,
		qty, productID, qty)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return usecase.ErrNoStock
	}
	return nil
}

var _ usecase.ProductRepo = (*MySQLProductRepo)(nil)
