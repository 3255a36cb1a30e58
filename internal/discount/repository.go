package discount

import (
	"context"
	"database/sql"
	"errors"

	"retail-be/internal/logger"
	"retail-be/internal/pricing"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, input Input) (*Discount, error)
	GetByID(ctx context.Context, id uint) (*Discount, error)
	List(ctx context.Context, limit, page int32) ([]*Discount, error)
	Update(ctx context.Context, id uint, input Input) (*Discount, error)
	Delete(ctx context.Context, id uint) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, input Input) (*Discount, error) {
	d := Discount{Name: input.Name, Value: input.Value, Type: input.Type}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO discounts (name, value, type)
		VALUES ($1, $2, $3)
		RETURNING id
	`, input.Name, input.Value, input.Type).Scan(&d.ID)
	if isCheckViolation(err) {
		return nil, pricing.ErrInvalidValue
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert discount",
			zap.String("layer", "repository"),
			zap.Error(err),
		)
		return nil, err
	}
	return &d, nil
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Discount, error) {
	var d Discount
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, value, type
		FROM discounts
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Value, &d.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) List(ctx context.Context, limit, page int32) ([]*Discount, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, value, type
		FROM discounts
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []*Discount
	for rows.Next() {
		var d Discount
		if err := rows.Scan(&d.ID, &d.Name, &d.Value, &d.Type); err != nil {
			return nil, err
		}
		discounts = append(discounts, &d)
	}
	return discounts, rows.Err()
}

func (r *repository) Update(ctx context.Context, id uint, input Input) (*Discount, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE discounts
		SET name = $1, value = $2, type = $3
		WHERE id = $4
	`, input.Name, input.Value, input.Type, id)
	if isCheckViolation(err) {
		return nil, pricing.ErrInvalidValue
	}
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrDiscountNotFound
	}
	return &Discount{ID: id, Name: input.Name, Value: input.Value, Type: input.Type}, nil
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgForeignKeyViolation {
			return ErrDiscountInUse
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDiscountNotFound
	}
	return nil
}

// isCheckViolation reports a row rejected by discounts_value_range, which
// mirrors the value rules of the pricing engine.
func isCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == PgCheckViolation
}
