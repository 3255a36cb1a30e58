package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"retail-be/internal/discount"
	"retail-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// The listing columns below use the same formulas as pricing.OrderItemsCount,
// pricing.DiscountAmount and pricing.OrderTotalAmount. Change them together.
const (
	itemsCountExpr = `(SELECT COUNT(i.id) FROM items i WHERE i.order_id = o.id)`

	totalDiscountExpr = `COALESCE((
			SELECT SUM(CASE d.type
				WHEN 'FIXED' THEN ROUND(d.value, 2)
				WHEN 'PERCENTAGE' THEN ROUND(o.total * d.value / 100, 2)
			END)
			FROM order_discounts od
			JOIN discounts d ON d.id = od.discount_id
			WHERE od.order_id = o.id
		), 0)`
)

type Repository interface {
	GetOrderSnapshot(ctx context.Context, orderID uint) (*Order, error)
	ListOrderSummaries(
		ctx context.Context,
		filter *OrderFilterInput,
		sort *OrderSortInput,
		limit, page int32,
	) ([]*OrderSummary, error)
	ListOrderIDs(ctx context.Context) ([]uint, error)

	CreateOrderTx(ctx context.Context, order *Order) error

	// The methods below lock the order row, apply their change, reload the
	// order and store what compute derives, all in one transaction.
	Recalculate(ctx context.Context, orderID uint, compute TotalsFunc) error
	RemoveItem(ctx context.Context, orderID, itemID uint, compute TotalsFunc) error
	AttachDiscount(ctx context.Context, orderID, discountID uint, compute TotalsFunc) error
	DetachDiscount(ctx context.Context, orderID, discountID uint, compute TotalsFunc) error

	AppendStatus(ctx context.Context, orderID, statusID uint) error
	GetTimeline(ctx context.Context, orderID uint) ([]*TimelineEntry, error)

	ExistingCombos(ctx context.Context, comboIDs []uint) (map[uint]bool, error)
}

// TotalsFunc recomputes the totals of a locked order in place and reports
// whether they changed. combos tells which combo ids referenced by the
// order's items exist. An error aborts the transaction.
type TotalsFunc func(o *Order, combos map[uint]bool) (changed bool, err error)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// GetOrderSnapshot reads the order with its items, item taxes, item add-ons
// and discounts inside one repeatable-read transaction, so the result is a
// consistent snapshot even while writers touch the order.
func (r *repository) GetOrderSnapshot(ctx context.Context, orderID uint) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetOrderSnapshot"),
		zap.Uint("order_id", orderID),
	)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		log.Error("failed to begin snapshot transaction", zap.Error(err))
		return nil, err
	}
	defer tx.Rollback()

	o, err := loadOrder(ctx, tx, orderID, false)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			log.Error("failed to query order", zap.Error(err))
		}
		return nil, err
	}
	if err := loadChildren(ctx, tx, o); err != nil {
		log.Error("failed to load order children", zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Debug("snapshot loaded",
		zap.Int("item_count", len(o.Items)),
		zap.Int("discount_count", len(o.Discounts)),
	)
	return o, nil
}

// loadOrder reads the order row. With lock set the row stays locked
// against other writers until tx ends.
func loadOrder(ctx context.Context, tx *sql.Tx, orderID uint, lock bool) (*Order, error) {
	query := `
		SELECT id, edit_stock, sub_total, total, customer_id, address_id,
			retail_shop_id, current_status_id, created_at, updated_at
		FROM orders
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var o Order
	err := tx.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.EditStock, &o.SubTotal, &o.Total, &o.CustomerID, &o.AddressID,
		&o.RetailShopID, &o.CurrentStatusID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func loadChildren(ctx context.Context, tx *sql.Tx, o *Order) error {
	var err error
	if o.Items, err = loadItems(ctx, tx, o.ID); err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	if o.Discounts, err = loadDiscounts(ctx, tx, o.ID); err != nil {
		return fmt.Errorf("failed to load discounts: %w", err)
	}
	return nil
}

func loadItems(ctx context.Context, tx *sql.Tx, orderID uint) ([]*Item, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, stock_id, combo_id, unit_price, quantity, discount
		FROM items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	byID := make(map[uint]*Item)
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.StockID, &it.ComboID,
			&it.UnitPrice, &it.Quantity, &it.Discount,
		); err != nil {
			return nil, err
		}
		items = append(items, &it)
		byID[it.ID] = &it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	taxRows, err := tx.QueryContext(ctx, `
		SELECT t.id, t.item_id, t.tax_id, t.tax_value
		FROM item_taxes t
		JOIN items i ON i.id = t.item_id
		WHERE i.order_id = $1
		ORDER BY t.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer taxRows.Close()

	for taxRows.Next() {
		var t ItemTax
		if err := taxRows.Scan(&t.ID, &t.ItemID, &t.TaxID, &t.TaxValue); err != nil {
			return nil, err
		}
		if it, ok := byID[t.ItemID]; ok {
			it.Taxes = append(it.Taxes, &t)
		}
	}
	if err := taxRows.Err(); err != nil {
		return nil, err
	}

	addOnRows, err := tx.QueryContext(ctx, `
		SELECT a.id, a.item_id, a.add_on_id
		FROM item_add_ons a
		JOIN items i ON i.id = a.item_id
		WHERE i.order_id = $1
		ORDER BY a.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer addOnRows.Close()

	for addOnRows.Next() {
		var a ItemAddOn
		if err := addOnRows.Scan(&a.ID, &a.ItemID, &a.AddOnID); err != nil {
			return nil, err
		}
		if it, ok := byID[a.ItemID]; ok {
			it.AddOns = append(it.AddOns, &a)
		}
	}
	return items, addOnRows.Err()
}

func loadDiscounts(ctx context.Context, tx *sql.Tx, orderID uint) ([]*discount.Discount, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT d.id, d.name, d.value, d.type
		FROM discounts d
		JOIN order_discounts od ON od.discount_id = d.id
		WHERE od.order_id = $1
		ORDER BY d.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []*discount.Discount
	for rows.Next() {
		var d discount.Discount
		if err := rows.Scan(&d.ID, &d.Name, &d.Value, &d.Type); err != nil {
			return nil, err
		}
		discounts = append(discounts, &d)
	}
	return discounts, rows.Err()
}

func (r *repository) ListOrderSummaries(
	ctx context.Context,
	filter *OrderFilterInput,
	sort *OrderSortInput,
	limit, page int32,
) ([]*OrderSummary, error) {

	// ---------- PAGINATION ----------
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

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrderSummaries"),
		zap.Int32("limit", limit),
		zap.Int32("page", page),
	)

	// ---------- BASE QUERY ----------
	inner := fmt.Sprintf(`
		SELECT
			o.id,
			o.sub_total,
			o.total,
			o.current_status_id,
			o.created_at,
			%s AS items_count,
			%s AS total_discount
		FROM orders o
		WHERE 1=1`, itemsCountExpr, totalDiscountExpr)

	args := []any{}
	argIndex := 1

	// ---------- FILTERING ----------
	if filter != nil {
		if filter.CustomerID != nil {
			inner += fmt.Sprintf(" AND o.customer_id = $%d", argIndex)
			args = append(args, *filter.CustomerID)
			argIndex++
		}
		if filter.RetailShopID != nil {
			inner += fmt.Sprintf(" AND o.retail_shop_id = $%d", argIndex)
			args = append(args, *filter.RetailShopID)
			argIndex++
		}
		if filter.StatusID != nil {
			inner += fmt.Sprintf(" AND o.current_status_id = $%d", argIndex)
			args = append(args, *filter.StatusID)
			argIndex++
		}
		if filter.DateFrom != nil {
			inner += fmt.Sprintf(" AND o.created_at >= $%d", argIndex)
			args = append(args, *filter.DateFrom)
			argIndex++
		}
		if filter.DateTo != nil {
			inner += fmt.Sprintf(" AND o.created_at <= $%d", argIndex)
			args = append(args, *filter.DateTo)
			argIndex++
		}
	}

	// ---------- SORTING ----------
	orderBy := "s.created_at DESC"
	if sort != nil {
		dir := strings.ToUpper(string(sort.Direction))
		if dir != "ASC" && dir != "DESC" {
			dir = "DESC"
		}

		switch sort.Field {
		case OrderSortFieldCreatedAt:
			orderBy = "s.created_at " + dir
		case OrderSortFieldTotal:
			orderBy = "s.total " + dir
		case OrderSortFieldTotalAmount:
			orderBy = "total_amount " + dir
		case OrderSortFieldItemsCount:
			orderBy = "s.items_count " + dir
		}
	}

	query := `
		SELECT
			s.id, s.sub_total, s.total, s.current_status_id, s.created_at,
			s.items_count, s.total_discount,
			ROUND(s.total, 2) - s.total_discount AS total_amount
		FROM (` + inner + `
		) s
		ORDER BY ` + orderBy + `, s.id` +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	log.Debug("executing list query", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query order summaries", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var summaries []*OrderSummary
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(
			&s.ID, &s.SubTotal, &s.Total, &s.CurrentStatusID, &s.CreatedAt,
			&s.ItemsCount, &s.TotalDiscount, &s.TotalAmount,
		); err != nil {
			log.Error("failed to scan summary row", zap.Error(err))
			return nil, err
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Info("list order summaries success", zap.Int("count", len(summaries)))
	return summaries, nil
}

func (r *repository) ListOrderIDs(ctx context.Context) ([]uint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateOrderTx persists the order together with its items, their taxes and
// add-ons, and its discount links. IDs are written back onto order.
func (r *repository) CreateOrderTx(ctx context.Context, order *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrderTx"),
		zap.Int("item_count", len(order.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			edit_stock, sub_total, total, customer_id, address_id,
			retail_shop_id, current_status_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at
	`,
		order.EditStock,
		order.SubTotal,
		order.Total,
		order.CustomerID,
		order.AddressID,
		order.RetailShopID,
		order.CurrentStatusID,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for i, item := range order.Items {
		item.OrderID = order.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO items (
				order_id, product_id, stock_id, combo_id,
				unit_price, quantity, discount
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`,
			item.OrderID,
			item.ProductID,
			item.StockID,
			item.ComboID,
			item.UnitPrice,
			item.Quantity,
			item.Discount,
		).Scan(&item.ID)
		if err != nil {
			log.Error("failed to insert item", zap.Int("item_index", i), zap.Error(err))
			return err
		}

		for _, tax := range item.Taxes {
			tax.ItemID = item.ID
			err = tx.QueryRowContext(ctx, `
				INSERT INTO item_taxes (item_id, tax_id, tax_value)
				VALUES ($1,$2,$3)
				RETURNING id
			`, tax.ItemID, tax.TaxID, tax.TaxValue).Scan(&tax.ID)
			if err != nil {
				log.Error("failed to insert item tax", zap.Int("item_index", i), zap.Error(err))
				return err
			}
		}

		for _, addOn := range item.AddOns {
			addOn.ItemID = item.ID
			err = tx.QueryRowContext(ctx, `
				INSERT INTO item_add_ons (item_id, add_on_id)
				VALUES ($1,$2)
				RETURNING id
			`, addOn.ItemID, addOn.AddOnID).Scan(&addOn.ID)
			if err != nil {
				log.Error("failed to insert item add-on", zap.Int("item_index", i), zap.Error(err))
				return err
			}
		}
	}

	for _, d := range order.Discounts {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_discounts (order_id, discount_id)
			VALUES ($1,$2)
		`, order.ID, d.ID); err != nil {
			log.Error("failed to link discount", zap.Uint("discount_id", d.ID), zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order created", zap.Uint("order_id", order.ID))
	return nil
}

// withLockedOrder is the write path shared by every totals-changing
// operation: the order row is locked FOR UPDATE, change runs against the
// locked order, and the reloaded order is handed to compute. Totals are
// written only when compute reports a change. Concurrent callers on the
// same order are serialized on the row lock, so none of them can store
// totals derived from a superseded state.
func (r *repository) withLockedOrder(
	ctx context.Context,
	method string,
	orderID uint,
	change func(tx *sql.Tx) error,
	compute TotalsFunc,
) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", method),
		zap.Uint("order_id", orderID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return err
	}

	if change != nil {
		if err := change(tx); err != nil {
			return err
		}
	}

	if err := loadChildren(ctx, tx, o); err != nil {
		log.Error("failed to reload order", zap.Error(err))
		return err
	}

	combos := map[uint]bool{}
	if ids := itemComboIDs(o.Items); len(ids) > 0 {
		if combos, err = existingCombos(ctx, tx, ids); err != nil {
			return fmt.Errorf("failed to look up combos: %w", err)
		}
	}

	changed, err := compute(o, combos)
	if err != nil {
		return err
	}

	if changed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET sub_total = $1, total = $2, updated_at = NOW()
			WHERE id = $3
		`, o.SubTotal, o.Total, o.ID); err != nil {
			log.Error("failed to write totals", zap.Error(err))
			return fmt.Errorf("failed to write totals: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) Recalculate(ctx context.Context, orderID uint, compute TotalsFunc) error {
	return r.withLockedOrder(ctx, "Recalculate", orderID, nil, compute)
}

// RemoveItem deletes an item of the order along with its taxes and add-ons.
func (r *repository) RemoveItem(ctx context.Context, orderID, itemID uint, compute TotalsFunc) error {
	return r.withLockedOrder(ctx, "RemoveItem", orderID, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM items WHERE id = $1 AND order_id = $2)
		`, itemID, orderID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrItemNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM item_taxes WHERE item_id = $1`, itemID); err != nil {
			return fmt.Errorf("failed to delete item taxes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_add_ons WHERE item_id = $1`, itemID); err != nil {
			return fmt.Errorf("failed to delete item add-ons: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND order_id = $2`, itemID, orderID); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
		return nil
	}, compute)
}

// AttachDiscount links the discount to the order. Linking twice is a no-op.
func (r *repository) AttachDiscount(ctx context.Context, orderID, discountID uint, compute TotalsFunc) error {
	return r.withLockedOrder(ctx, "AttachDiscount", orderID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_discounts (order_id, discount_id)
			VALUES ($1, $2)
			ON CONFLICT (order_id, discount_id) DO NOTHING
		`, orderID, discountID)

		// The order row is locked, so a foreign key miss is the discount.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == discount.PgForeignKeyViolation {
			return discount.ErrDiscountNotFound
		}
		return err
	}, compute)
}

func (r *repository) DetachDiscount(ctx context.Context, orderID, discountID uint, compute TotalsFunc) error {
	return r.withLockedOrder(ctx, "DetachDiscount", orderID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM order_discounts
			WHERE order_id = $1 AND discount_id = $2
		`, orderID, discountID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrDiscountNotAttached
		}
		return nil
	}, compute)
}

// AppendStatus adds a time line entry and points current_status_id at it in
// the same transaction.
func (r *repository) AppendStatus(ctx context.Context, orderID, statusID uint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET current_status_id = $1, updated_at = NOW()
		WHERE id = $2
	`, statusID, orderID)
	if err != nil {
		return fmt.Errorf("failed to update current status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_statuses (order_id, status_id)
		VALUES ($1, $2)
	`, orderID, statusID); err != nil {
		return fmt.Errorf("failed to append status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) GetTimeline(ctx context.Context, orderID uint) ([]*TimelineEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT os.status_id, s.name, s.code, os.created_at
		FROM order_statuses os
		JOIN statuses s ON s.id = os.status_id
		WHERE os.order_id = $1
		ORDER BY os.created_at, os.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.StatusID, &e.Name, &e.Code, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *repository) ExistingCombos(ctx context.Context, comboIDs []uint) (map[uint]bool, error) {
	if len(comboIDs) == 0 {
		return map[uint]bool{}, nil
	}
	return existingCombos(ctx, r.db, comboIDs)
}

func existingCombos(ctx context.Context, q queryer, comboIDs []uint) (map[uint]bool, error) {
	found := make(map[uint]bool, len(comboIDs))

	ids := make([]int64, len(comboIDs))
	for i, id := range comboIDs {
		ids[i] = int64(id)
	}

	rows, err := q.QueryContext(ctx, `SELECT id FROM combos WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}
