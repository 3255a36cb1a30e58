package discount

import (
	"context"

	"retail-be/internal/logger"
	"retail-be/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	Create(ctx context.Context, input Input) (*Discount, error)
	Get(ctx context.Context, id uint) (*Discount, error)
	List(ctx context.Context, limit, page int32) ([]*Discount, error)
	Update(ctx context.Context, id uint, input Input) (*Discount, error)
	Delete(ctx context.Context, id uint) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// validate applies the same rules the pricing engine enforces when the
// discount is later used on an order.
func validate(input Input) error {
	_, err := pricing.DiscountAmount(pricing.Discount{Value: input.Value, Type: input.Type}, decimal.Zero)
	return err
}

func (s *service) Create(ctx context.Context, input Input) (*Discount, error) {
	if err := validate(input); err != nil {
		logger.FromCtx(ctx).Warn("rejected discount",
			zap.String("type", string(input.Type)),
			zap.String("value", input.Value.String()),
			zap.Error(err),
		)
		return nil, err
	}
	input.Value = input.Value.Round(pricing.Places)
	return s.repo.Create(ctx, input)
}

func (s *service) Get(ctx context.Context, id uint) (*Discount, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, limit, page int32) ([]*Discount, error) {
	return s.repo.List(ctx, limit, page)
}

func (s *service) Update(ctx context.Context, id uint, input Input) (*Discount, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	input.Value = input.Value.Round(pricing.Places)
	return s.repo.Update(ctx, id, input)
}

func (s *service) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}
