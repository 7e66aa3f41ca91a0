package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/catalog"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// CatalogRepository implements the catalog.Repository interface for PostgreSQL
type CatalogRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCatalogRepository creates a new PostgreSQL catalog repository
func NewCatalogRepository(logger *slog.Logger, db *persistence.PostgresDB) catalog.Repository {
	return &CatalogRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *CatalogRepository) WithTx(tx pgx.Tx) catalog.Repository {
	return &CatalogRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetProductByID retrieves a product by its ID
func (r *CatalogRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	query := `
		SELECT id, name, description, price, created_at
		FROM products
		WHERE id = $1
	`

	var p catalog.Product
	err := r.querier.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound{ProductID: id}
		}
		r.logger.Error("Failed to get product", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// GetAllProducts retrieves the full product catalog
func (r *CatalogRepository) GetAllProducts(ctx context.Context) ([]*catalog.Product, error) {
	query := `
		SELECT id, name, description, price, created_at
		FROM products
		ORDER BY name ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to get products", "error", err)
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	var products []*catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}

	return products, rows.Err()
}

// GetCustomerByID retrieves a customer by its ID
func (r *CatalogRepository) GetCustomerByID(ctx context.Context, id uuid.UUID) (*catalog.Customer, error) {
	query := `
		SELECT id, name, email, address, bank_account_id, created_at
		FROM customers
		WHERE id = $1
	`

	var c catalog.Customer
	err := r.querier.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Address, &c.BankAccountID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCustomerNotFound{CustomerID: id}
		}
		r.logger.Error("Failed to get customer", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return &c, nil
}
