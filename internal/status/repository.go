package status

import (
	"context"
	"database/sql"
	"errors"

	"retail-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, name string, code int16) (*Status, error)
	GetByCode(ctx context.Context, code int16) (*Status, error)
	List(ctx context.Context) ([]*Status, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, name string, code int16) (*Status, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("name", name),
		zap.Int16("code", code),
	)

	s := Status{Name: name, Code: code}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO statuses (name, code)
		VALUES ($1, $2)
		RETURNING id
	`, name, code).Scan(&s.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			log.Warn("duplicate status")
			return nil, ErrStatusExists
		}
		log.Error("failed to insert status", zap.Error(err))
		return nil, err
	}

	return &s, nil
}

func (r *repository) GetByCode(ctx context.Context, code int16) (*Status, error) {
	var s Status
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, code
		FROM statuses
		WHERE code = $1
	`, code).Scan(&s.ID, &s.Name, &s.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) List(ctx context.Context) ([]*Status, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, code FROM statuses ORDER BY code`)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list statuses", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var statuses []*Status
	for rows.Next() {
		var s Status
		if err := rows.Scan(&s.ID, &s.Name, &s.Code); err != nil {
			return nil, err
		}
		statuses = append(statuses, &s)
	}
	return statuses, rows.Err()
}
