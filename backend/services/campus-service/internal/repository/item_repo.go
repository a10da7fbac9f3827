package repository

import (
	"context"
	"database/sql"
	"errors"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

const itemColumns = `id, type, name, price, quantity, topics, author, isbn, publisher, year, created_at, updated_at`

// ItemRepo handles the items table.
type ItemRepo struct {
	q querier
}

// Create inserts a catalog item.
func (r *ItemRepo) Create(ctx context.Context, item *models.Item) error {
	const query = `
		INSERT INTO items (id, type, name, price, quantity, topics, author, isbn, publisher, year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		item.ID,
		string(item.Type),
		item.Name,
		int64(item.Price),
		item.Quantity,
		joinList(item.Topics),
		item.Author,
		item.ISBN,
		item.Publisher,
		item.Year,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	return duplicate(err)
}

// GetByID fetches an item.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	item, err := scanItem(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

// List returns items of one type, or all items when itemType is empty.
func (r *ItemRepo) List(ctx context.Context, itemType models.Module) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE ($1 = '' OR type = $1) ORDER BY name`
	rows, err := r.q.QueryContext(ctx, query, string(itemType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update overwrites editable item fields.
func (r *ItemRepo) Update(ctx context.Context, item *models.Item) error {
	const query = `
		UPDATE items
		SET type = $2,
		    name = $3,
		    price = $4,
		    quantity = $5,
		    topics = $6,
		    author = $7,
		    isbn = $8,
		    publisher = $9,
		    year = $10,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		item.ID,
		string(item.Type),
		item.Name,
		int64(item.Price),
		item.Quantity,
		joinList(item.Topics),
		item.Author,
		item.ISBN,
		item.Publisher,
		item.Year,
	).Scan(&item.UpdatedAt)
	return notFound(err)
}

// Delete removes an item. Transactions keep their rows with the item reference cleared.
func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// Reserve takes n units of stock if that many are available.
func (r *ItemRepo) Reserve(ctx context.Context, id string, n int) (int, error) {
	const query = `
		UPDATE items
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity
	`
	var quantity int
	if err := r.q.QueryRowContext(ctx, query, id, n).Scan(&quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrConditionFailed
		}
		return 0, err
	}
	return quantity, nil
}

// Release returns n units to stock.
func (r *ItemRepo) Release(ctx context.Context, id string, n int) (int, error) {
	const query = `
		UPDATE items
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity
	`
	var quantity int
	if err := r.q.QueryRowContext(ctx, query, id, n).Scan(&quantity); err != nil {
		return 0, notFound(err)
	}
	return quantity, nil
}

// DecrementFloor takes one unit, stopping at zero.
func (r *ItemRepo) DecrementFloor(ctx context.Context, id string) (int, error) {
	const query = `
		UPDATE items
		SET quantity = GREATEST(quantity - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING quantity
	`
	var quantity int
	if err := r.q.QueryRowContext(ctx, query, id).Scan(&quantity); err != nil {
		return 0, notFound(err)
	}
	return quantity, nil
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item     models.Item
		itemType string
		price    int64
		topics   string
	)
	if err := row.Scan(
		&item.ID,
		&itemType,
		&item.Name,
		&price,
		&item.Quantity,
		&topics,
		&item.Author,
		&item.ISBN,
		&item.Publisher,
		&item.Year,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Type = models.Module(itemType)
	item.Price = money.Amount(price)
	item.Topics = splitList(topics)
	return &item, nil
}
