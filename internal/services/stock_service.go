package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/festpay/backend/internal/models"
)

// StockService owns the mutable stock counter per product. The guarded
// UPDATE keeps stock from ever being written negative, even when two
// agents race on the last units.
type StockService struct {
	db *sql.DB
}

func NewStockService(db *sql.DB) *StockService {
	return &StockService{db: db}
}

// Get fetches a product with its current stock level.
func (s *StockService) Get(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, event_id, active, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.EventID, &p.Active, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("product read failed: %w", err)
	}
	return &p, nil
}

// Decrement removes quantity units of stock and returns the new level.
// Fails with ErrInsufficientStock without writing when stock is short.
func (s *StockService) Decrement(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}

	var newStock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND active = true AND stock >= $1
		RETURNING stock
	`, quantity, productID).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("stock decrement failed: %w", err)
	}

	// Guard rejected the write: distinguish a missing product from a
	// stock shortage.
	var stock int
	err = s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1 AND active = true
	`, productID).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stock read failed: %w", err)
	}
	return stock, ErrInsufficientStock
}

// Restore puts quantity units back. Used only as the compensating write
// when a later settlement step fails after a successful decrement.
func (s *StockService) Restore(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2
	`, quantity, productID)
	if err != nil {
		return fmt.Errorf("stock restore failed: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrProductNotFound
	}
	return nil
}
