package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retail-be/internal/discount"
	"retail-be/internal/logger"
	"retail-be/internal/metrics"
	"retail-be/internal/pricing"
	"retail-be/internal/status"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetSummary(ctx context.Context, orderID uint) (*pricing.Summary, error)
	ListSummaries(
		ctx context.Context,
		filter *OrderFilterInput,
		sort *OrderSortInput,
		limit, page int32,
	) ([]*OrderSummary, error)

	Recalculate(ctx context.Context, orderID uint) (*pricing.Summary, error)
	RecalculateAll(ctx context.Context, opts RecalcOptions) (metrics.BatchReport, error)

	RemoveItem(ctx context.Context, orderID, itemID uint) (*pricing.Summary, error)
	ApplyDiscount(ctx context.Context, orderID, discountID uint) (*pricing.Summary, error)
	RemoveDiscount(ctx context.Context, orderID, discountID uint) (*pricing.Summary, error)

	ChangeStatus(ctx context.Context, orderID uint, code int16) error
	GetTimeline(ctx context.Context, orderID uint) ([]*TimelineEntry, error)
}

type service struct {
	repo         Repository
	discountRepo discount.Repository
	statusRepo   status.Repository
}

func NewService(repo Repository, discountRepo discount.Repository, statusRepo status.Repository) Service {
	return &service{
		repo:         repo,
		discountRepo: discountRepo,
		statusRepo:   statusRepo,
	}
}

func (s *service) validateCombos(ctx context.Context, items []pricing.Item) error {
	ids := pricing.ComboIDs(items)
	if len(ids) == 0 {
		return nil
	}
	known, err := s.repo.ExistingCombos(ctx, ids)
	if err != nil {
		return err
	}
	return pricing.ValidateCombos(items, known)
}

// CreateOrder prices the items, fixes sub_total and total, and persists the
// order with its items and discount links in one transaction.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Int("item_count", len(input.Items)),
	)

	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	o := &Order{
		EditStock:    input.EditStock,
		CustomerID:   input.CustomerID,
		AddressID:    input.AddressID,
		RetailShopID: input.RetailShopID,
		Items:        make([]*Item, 0, len(input.Items)),
	}
	for i, item := range input.Items {
		if item == nil {
			return nil, fmt.Errorf("%w: item %d is missing", pricing.ErrInvalidValue, i)
		}
		o.Items = append(o.Items, newItemFrom(item))
	}

	for _, id := range input.DiscountIDs {
		d, err := s.discountRepo.GetByID(ctx, id)
		if err != nil {
			log.Warn("discount lookup failed", zap.Uint("discount_id", id), zap.Error(err))
			return nil, err
		}
		o.Discounts = append(o.Discounts, d)
	}

	snap := ToPricingOrder(o)
	if err := s.validateCombos(ctx, snap.Items); err != nil {
		return nil, err
	}
	subTotal, err := pricing.OrderSubtotalRecompute(snap, snap.Items)
	if err != nil {
		log.Warn("order rejected by pricing", zap.Error(err))
		return nil, err
	}
	snap.Total = subTotal
	if _, err := pricing.OrderTotalDiscount(snap); err != nil {
		return nil, err
	}

	o.SubTotal = subTotal
	o.Total = subTotal

	if err := s.repo.CreateOrderTx(ctx, o); err != nil {
		log.Error("failed to persist order", zap.Error(err))
		return nil, err
	}

	log.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.String("sub_total", o.SubTotal.StringFixed(pricing.Places)),
	)
	return o, nil
}

// GetSummary derives every figure from the stored order without writing.
func (s *service) GetSummary(ctx context.Context, orderID uint) (*pricing.Summary, error) {
	o, err := s.repo.GetOrderSnapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary, err := pricing.Summarize(ToPricingOrder(o))
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *service) ListSummaries(
	ctx context.Context,
	filter *OrderFilterInput,
	sort *OrderSortInput,
	limit, page int32,
) ([]*OrderSummary, error) {
	return s.repo.ListOrderSummaries(ctx, filter, sort, limit, page)
}

// Recalculate recomputes sub_total from the items and stores it as both
// sub_total and total. Order-level discounts stay out of total and are only
// applied in the summary's TotalAmount.
func (s *service) Recalculate(ctx context.Context, orderID uint) (*pricing.Summary, error) {
	summary, _, err := s.recalculate(ctx, orderID)
	return summary, err
}

func (s *service) recalculate(ctx context.Context, orderID uint) (*pricing.Summary, bool, error) {
	return s.withTotals(ctx, "Recalculate", orderID, func(compute TotalsFunc) error {
		return s.repo.Recalculate(ctx, orderID, compute)
	})
}

// recompute is the TotalsFunc behind every write: combo references are
// checked, sub_total is re-derived from the items and total follows it. The
// summary of the new state is stored in out.
func recompute(out *pricing.Summary) TotalsFunc {
	return func(o *Order, combos map[uint]bool) (bool, error) {
		snap := ToPricingOrder(o)
		if err := pricing.ValidateCombos(snap.Items, combos); err != nil {
			return false, err
		}

		subTotal, err := pricing.OrderSubtotalRecompute(snap, snap.Items)
		if err != nil {
			return false, err
		}
		snap.SubTotal = subTotal
		snap.Total = subTotal

		summary, err := pricing.Summarize(snap)
		if err != nil {
			return false, err
		}
		*out = summary

		changed := !o.SubTotal.Equal(subTotal) || !o.Total.Equal(subTotal)
		o.SubTotal = subTotal
		o.Total = subTotal
		return changed, nil
	}
}

// withTotals runs write with the shared recompute and logs the outcome.
func (s *service) withTotals(
	ctx context.Context,
	method string,
	orderID uint,
	write func(compute TotalsFunc) error,
) (*pricing.Summary, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", method),
		zap.Uint("order_id", orderID),
	)

	var summary pricing.Summary
	changed := false
	compute := recompute(&summary)

	err := write(func(o *Order, combos map[uint]bool) (bool, error) {
		var err error
		changed, err = compute(o, combos)
		return changed, err
	})
	switch {
	case err == nil:
	case errors.Is(err, pricing.ErrInvalidValue), errors.Is(err, pricing.ErrInconsistentState):
		log.Warn("recompute rejected", zap.Error(err))
		return nil, false, err
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrDiscountNotAttached), errors.Is(err, discount.ErrDiscountNotFound):
		return nil, false, err
	default:
		log.Error("failed to store totals", zap.Error(err))
		return nil, false, err
	}

	if !changed {
		log.Debug("totals unchanged")
		return &summary, false, nil
	}
	log.Info("totals updated",
		zap.String("sub_total", summary.SubTotal.StringFixed(pricing.Places)),
		zap.String("total_amount", summary.TotalAmount.StringFixed(pricing.Places)),
	)
	return &summary, true, nil
}

// RecalculateAll recomputes every order with bounded concurrency and a
// global rate limit. Orders whose data the pricing rules reject are counted
// as failed and skipped; any other error stops the run.
func (s *service) RecalculateAll(ctx context.Context, opts RecalcOptions) (metrics.BatchReport, error) {
	ctx = logger.NewTrace(ctx)
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RecalculateAll"),
		zap.Int("concurrency", opts.Concurrency),
		zap.Float64("rate", opts.RatePerSecond),
	)

	batch := metrics.NewBatch()

	ids, err := s.repo.ListOrderIDs(ctx)
	if err != nil {
		return batch.Report(), err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range ids {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			_, changed, err := s.recalculate(gctx, id)
			took := time.Since(start)

			switch {
			case err == nil && changed:
				batch.Record(metrics.OutcomeUpdated, took)
			case err == nil:
				batch.Record(metrics.OutcomeUnchanged, took)
			case errors.Is(err, pricing.ErrInvalidValue), errors.Is(err, pricing.ErrInconsistentState):
				batch.Record(metrics.OutcomeFailed, took)
				log.Warn("skipping order", zap.Uint("order_id", id), zap.Error(err))
			default:
				batch.Record(metrics.OutcomeFailed, took)
				return fmt.Errorf("recalculate order %d: %w", id, err)
			}
			return nil
		})
	}

	err = g.Wait()
	report := batch.Report()
	log.Info("recalculation finished",
		zap.Int("orders", len(ids)),
		zap.Uint64("updated", report.Updated),
		zap.Uint64("unchanged", report.Unchanged),
		zap.Uint64("failed", report.Failed),
		zap.Duration("busy", report.Busy),
		zap.Duration("elapsed", report.Elapsed),
	)
	if err == nil {
		err = ctx.Err()
	}
	return report, err
}

func (s *service) RemoveItem(ctx context.Context, orderID, itemID uint) (*pricing.Summary, error) {
	summary, _, err := s.withTotals(ctx, "RemoveItem", orderID, func(compute TotalsFunc) error {
		return s.repo.RemoveItem(ctx, orderID, itemID, compute)
	})
	return summary, err
}

func (s *service) ApplyDiscount(ctx context.Context, orderID, discountID uint) (*pricing.Summary, error) {
	summary, _, err := s.withTotals(ctx, "ApplyDiscount", orderID, func(compute TotalsFunc) error {
		return s.repo.AttachDiscount(ctx, orderID, discountID, compute)
	})
	return summary, err
}

func (s *service) RemoveDiscount(ctx context.Context, orderID, discountID uint) (*pricing.Summary, error) {
	summary, _, err := s.withTotals(ctx, "RemoveDiscount", orderID, func(compute TotalsFunc) error {
		return s.repo.DetachDiscount(ctx, orderID, discountID, compute)
	})
	return summary, err
}

func (s *service) ChangeStatus(ctx context.Context, orderID uint, code int16) error {
	st, err := s.statusRepo.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	if err := s.repo.AppendStatus(ctx, orderID, st.ID); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("order status changed",
		zap.Uint("order_id", orderID),
		zap.String("status", st.Name),
	)
	return nil
}

func (s *service) GetTimeline(ctx context.Context, orderID uint) ([]*TimelineEntry, error) {
	return s.repo.GetTimeline(ctx, orderID)
}
