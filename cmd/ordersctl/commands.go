package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"retail-be/internal/discount"
	"retail-be/internal/logger"
	"retail-be/internal/metrics"
	"retail-be/internal/order"
	"retail-be/internal/pricing"
	"retail-be/internal/status"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

const dateLayout = "2006-01-02"

// App holds what the commands need. main wires it against Postgres; tests
// wire it against mocks.
type App struct {
	Orders    order.Service
	Discounts discount.Service
	Statuses  status.Service
	Recalc    order.RecalcOptions
	In        io.Reader
	Out       io.Writer
}

func newCLI(a *App) *cli.App {
	return &cli.App{
		Name:   "ordersctl",
		Usage:  "inspect and maintain order pricing",
		Writer: a.Out,
		Before: func(c *cli.Context) error {
			c.Context = logger.NewTrace(c.Context)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "price and store a new order read from a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "order JSON, - for stdin"},
				},
				Action: a.createOrder,
			},
			{
				Name:   "summary",
				Usage:  "print the derived figures of one order",
				Flags:  []cli.Flag{orderIDFlag()},
				Action: a.summary,
			},
			{
				Name:  "list",
				Usage: "list order summaries",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "customer"},
					&cli.UintFlag{Name: "shop"},
					&cli.UintFlag{Name: "status"},
					&cli.StringFlag{Name: "from", Usage: "created on or after, " + dateLayout},
					&cli.StringFlag{Name: "to", Usage: "created on or before, " + dateLayout},
					&cli.StringFlag{Name: "sort", Usage: "CREATED_AT, TOTAL, TOTAL_AMOUNT or ITEMS_COUNT"},
					&cli.StringFlag{Name: "dir", Value: "DESC"},
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.IntFlag{Name: "page", Value: 1},
				},
				Action: a.list,
			},
			{
				Name:  "recalc",
				Usage: "recompute stored totals of one order, or of every order",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Usage: "order id; all orders when omitted"},
					&cli.IntFlag{Name: "concurrency"},
					&cli.Float64Flag{Name: "rate", Usage: "orders per second"},
				},
				Action: a.recalc,
			},
			{
				Name:   "timeline",
				Usage:  "print the status history of an order",
				Flags:  []cli.Flag{orderIDFlag()},
				Action: a.timeline,
			},
			{
				Name:  "status",
				Usage: "move an order to the status with the given code",
				Flags: []cli.Flag{
					orderIDFlag(),
					&cli.IntFlag{Name: "code", Required: true},
				},
				Action: a.changeStatus,
			},
			{
				Name:  "item",
				Usage: "order item maintenance",
				Subcommands: []*cli.Command{
					{
						Name:  "remove",
						Usage: "delete an item and recompute the order",
						Flags: []cli.Flag{
							orderIDFlag(),
							&cli.UintFlag{Name: "item", Required: true},
						},
						Action: a.removeItem,
					},
				},
			},
			{
				Name:  "discount",
				Usage: "discount catalog and order links",
				Subcommands: []*cli.Command{
					{
						Name: "create",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name"},
							&cli.StringFlag{Name: "value", Required: true},
							&cli.StringFlag{Name: "type", Required: true, Usage: "PERCENTAGE or FIXED"},
						},
						Action: a.createDiscount,
					},
					{
						Name: "list",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 20},
							&cli.IntFlag{Name: "page", Value: 1},
						},
						Action: a.listDiscounts,
					},
					{
						Name:   "apply",
						Flags:  []cli.Flag{orderIDFlag(), discountIDFlag()},
						Action: a.applyDiscount,
					},
					{
						Name:   "remove",
						Flags:  []cli.Flag{orderIDFlag(), discountIDFlag()},
						Action: a.removeDiscount,
					},
				},
			},
			{
				Name:  "statuses",
				Usage: "status catalog",
				Subcommands: []*cli.Command{
					{
						Name: "create",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true},
							&cli.IntFlag{Name: "code", Required: true},
						},
						Action: a.createStatus,
					},
					{
						Name:   "list",
						Action: a.listStatuses,
					},
				},
			},
		},
	}
}

func orderIDFlag() cli.Flag {
	return &cli.UintFlag{Name: "id", Aliases: []string{"order"}, Required: true}
}

func discountIDFlag() cli.Flag {
	return &cli.UintFlag{Name: "discount", Required: true}
}

// ---------- VIEWS ----------

func money(d decimal.Decimal) string {
	return d.StringFixed(pricing.Places)
}

type summaryView struct {
	OrderID       uint   `json:"order_id,omitempty"`
	ItemsCount    int    `json:"items_count"`
	SubTotal      string `json:"sub_total"`
	Total         string `json:"total"`
	TotalDiscount string `json:"total_discount"`
	TotalAmount   string `json:"total_amount"`
}

func toSummaryView(id uint, s *pricing.Summary) summaryView {
	return summaryView{
		OrderID:       id,
		ItemsCount:    s.ItemsCount,
		SubTotal:      money(s.SubTotal),
		Total:         money(s.Total),
		TotalDiscount: money(s.TotalDiscount),
		TotalAmount:   money(s.TotalAmount),
	}
}

type orderSummaryView struct {
	summaryView
	CurrentStatusID *uint     `json:"current_status_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type reportView struct {
	Updated   uint64 `json:"updated"`
	Unchanged uint64 `json:"unchanged"`
	Failed    uint64 `json:"failed"`
	Busy      string `json:"busy"`
	Elapsed   string `json:"elapsed"`
}

func toReportView(r metrics.BatchReport) reportView {
	return reportView{
		Updated:   r.Updated,
		Unchanged: r.Unchanged,
		Failed:    r.Failed,
		Busy:      r.Busy.Round(time.Millisecond).String(),
		Elapsed:   r.Elapsed.Round(time.Millisecond).String(),
	}
}

type discountView struct {
	ID    uint    `json:"id"`
	Name  *string `json:"name"`
	Value string  `json:"value"`
	Type  string  `json:"type"`
}

func toDiscountView(d *discount.Discount) discountView {
	return discountView{ID: d.ID, Name: d.Name, Value: money(d.Value), Type: string(d.Type)}
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCode(v int) (int16, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, fmt.Errorf("status code %d out of range", v)
	}
	return int16(v), nil
}

func parseDate(c *cli.Context, name string) (*time.Time, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, c.String(name))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &t, nil
}

func optionalUint(c *cli.Context, name string) *uint {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Uint(name)
	return &v
}

// ---------- ACTIONS ----------

func (a *App) summary(c *cli.Context) error {
	id := c.Uint("id")
	s, err := a.Orders.GetSummary(c.Context, id)
	if err != nil {
		return err
	}
	return a.print(toSummaryView(id, s))
}

func (a *App) list(c *cli.Context) error {
	filter := &order.OrderFilterInput{
		CustomerID:   optionalUint(c, "customer"),
		RetailShopID: optionalUint(c, "shop"),
		StatusID:     optionalUint(c, "status"),
	}

	var err error
	if filter.DateFrom, err = parseDate(c, "from"); err != nil {
		return err
	}
	if filter.DateTo, err = parseDate(c, "to"); err != nil {
		return err
	}
	if filter.DateTo != nil {
		end := filter.DateTo.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}

	var sort *order.OrderSortInput
	if c.IsSet("sort") {
		sort = &order.OrderSortInput{
			Field:     order.OrderSortField(strings.ToUpper(c.String("sort"))),
			Direction: order.SortDirection(strings.ToUpper(c.String("dir"))),
		}
	}

	summaries, err := a.Orders.ListSummaries(c.Context, filter, sort, int32(c.Int("limit")), int32(c.Int("page")))
	if err != nil {
		return err
	}

	views := make([]orderSummaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, orderSummaryView{
			summaryView: summaryView{
				OrderID:       s.ID,
				ItemsCount:    s.ItemsCount,
				SubTotal:      money(s.SubTotal),
				Total:         money(s.Total),
				TotalDiscount: money(s.TotalDiscount),
				TotalAmount:   money(s.TotalAmount),
			},
			CurrentStatusID: s.CurrentStatusID,
			CreatedAt:       s.CreatedAt,
		})
	}
	return a.print(views)
}

func (a *App) recalc(c *cli.Context) error {
	if c.IsSet("id") {
		id := c.Uint("id")
		s, err := a.Orders.Recalculate(c.Context, id)
		if err != nil {
			return err
		}
		return a.print(toSummaryView(id, s))
	}

	opts := a.Recalc
	if c.IsSet("concurrency") {
		opts.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("rate") {
		opts.RatePerSecond = c.Float64("rate")
	}

	report, err := a.Orders.RecalculateAll(c.Context, opts)
	if printErr := a.print(toReportView(report)); printErr != nil && err == nil {
		err = printErr
	}
	return err
}

func (a *App) timeline(c *cli.Context) error {
	entries, err := a.Orders.GetTimeline(c.Context, c.Uint("id"))
	if err != nil {
		return err
	}
	return a.print(entries)
}

func (a *App) changeStatus(c *cli.Context) error {
	code, err := parseCode(c.Int("code"))
	if err != nil {
		return err
	}
	return a.Orders.ChangeStatus(c.Context, c.Uint("id"), code)
}

func (a *App) removeItem(c *cli.Context) error {
	id := c.Uint("id")
	s, err := a.Orders.RemoveItem(c.Context, id, c.Uint("item"))
	if err != nil {
		return err
	}
	return a.print(toSummaryView(id, s))
}

func (a *App) createDiscount(c *cli.Context) error {
	value, err := decimal.NewFromString(c.String("value"))
	if err != nil {
		return fmt.Errorf("invalid --value: %w", err)
	}

	input := discount.Input{
		Value: value,
		Type:  pricing.DiscountType(strings.ToUpper(c.String("type"))),
	}
	if c.IsSet("name") {
		name := c.String("name")
		input.Name = &name
	}

	d, err := a.Discounts.Create(c.Context, input)
	if err != nil {
		return err
	}
	return a.print(toDiscountView(d))
}

func (a *App) listDiscounts(c *cli.Context) error {
	discounts, err := a.Discounts.List(c.Context, int32(c.Int("limit")), int32(c.Int("page")))
	if err != nil {
		return err
	}
	views := make([]discountView, 0, len(discounts))
	for _, d := range discounts {
		views = append(views, toDiscountView(d))
	}
	return a.print(views)
}

func (a *App) applyDiscount(c *cli.Context) error {
	id := c.Uint("id")
	s, err := a.Orders.ApplyDiscount(c.Context, id, c.Uint("discount"))
	if err != nil {
		return err
	}
	return a.print(toSummaryView(id, s))
}

func (a *App) removeDiscount(c *cli.Context) error {
	id := c.Uint("id")
	s, err := a.Orders.RemoveDiscount(c.Context, id, c.Uint("discount"))
	if err != nil {
		return err
	}
	return a.print(toSummaryView(id, s))
}

func (a *App) createStatus(c *cli.Context) error {
	code, err := parseCode(c.Int("code"))
	if err != nil {
		return err
	}
	st, err := a.Statuses.Create(c.Context, c.String("name"), code)
	if err != nil {
		return err
	}
	return a.print(st)
}

func (a *App) listStatuses(c *cli.Context) error {
	statuses, err := a.Statuses.List(c.Context)
	if err != nil {
		return err
	}
	return a.print(statuses)
}
