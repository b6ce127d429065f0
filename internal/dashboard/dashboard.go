// Package dashboard computes the sales summary shown on the main panel from the order list
// and the catalogue. Days are calendar days in the shop time zone.
package dashboard

import (
	"cmp"
	"context"
	"slices"
	"time"
	_ "time/tzdata" // shop time zone on hosts without a zoneinfo database

	"github.com/plantitas/plantitas/pkg/shopapi"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultLowStockThreshold = 5
	DefaultTimeZone          = "America/Santiago"
	TopProducts              = 5
	SeriesDays               = 7
)

// Options tune the computation. Zero values select the defaults.
type Options struct {
	Location          *time.Location
	LowStockThreshold int
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		loc, err := time.LoadLocation(DefaultTimeZone)
		if err != nil {
			loc = time.UTC
		}
		o.Location = loc
	}
	if o.LowStockThreshold <= 0 {
		o.LowStockThreshold = DefaultLowStockThreshold
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type LowStock struct {
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// TopProduct aggregates sold lines by SKU, or by product name for lines without one.
type TopProduct struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Sold    int    `json:"sold"`
	Revenue int64  `json:"revenue"`
}

type DaySales struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Label string `json:"label"`
	Total int64  `json:"total"`
}

type Summary struct {
	SalesToday    int64        `json:"sales_today"`
	TicketsToday  int          `json:"tickets_today"`
	AverageTicket int64        `json:"average_ticket"`
	LowStock      []LowStock   `json:"low_stock"`
	Top           []TopProduct `json:"top_products"`
	Last7Days     []DaySales   `json:"last_7_days"`
}

var weekdays = [...]string{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// Compute builds the summary. Orders may come in any order.
func Compute(orders []shopapi.Order, products []shopapi.Product, opts Options) Summary {
	opts = opts.withDefaults()
	loc := opts.Location
	now := opts.Now().In(loc)
	today := dayKey(now, loc)

	byDay := map[string]int64{}
	var s Summary
	for _, o := range orders {
		day := dayKey(o.CreatedAt.Time, loc)
		byDay[day] += o.Total
		if day == today {
			s.SalesToday += o.Total
			s.TicketsToday++
		}
	}
	if s.TicketsToday > 0 {
		// round half up, as the panel always did
		s.AverageTicket = (2*s.SalesToday + int64(s.TicketsToday)) / (2 * int64(s.TicketsToday))
	}

	s.LowStock = []LowStock{}
	for _, p := range products {
		if p.Stock <= opts.LowStockThreshold {
			s.LowStock = append(s.LowStock, LowStock{SKU: p.SKU, Name: p.Name, Stock: p.Stock})
		}
	}

	s.Top = topProducts(orders)

	titler := cases.Title(language.Spanish)
	s.Last7Days = make([]DaySales, 0, SeriesDays)
	for i := SeriesDays - 1; i >= 0; i-- {
		d := time.Date(now.Year(), now.Month(), now.Day()-i, 12, 0, 0, 0, loc)
		key := d.Format(time.DateOnly)
		s.Last7Days = append(s.Last7Days, DaySales{
			Date:  key,
			Label: titler.String(weekdays[d.Weekday()]),
			Total: byDay[key],
		})
	}
	return s
}

func topProducts(orders []shopapi.Order) []TopProduct {
	grouped := map[string]*TopProduct{}
	var keys []string
	for _, o := range orders {
		for _, it := range o.Items {
			key := cmp.Or(it.SKU, it.Product)
			tp, ok := grouped[key]
			if !ok {
				tp = &TopProduct{Key: key, Name: it.Product}
				grouped[key] = tp
				keys = append(keys, key)
			}
			tp.Sold += it.Quantity
			tp.Revenue += it.LineTotal
		}
	}
	out := make([]TopProduct, 0, len(keys))
	for _, k := range keys {
		out = append(out, *grouped[k])
	}
	slices.SortStableFunc(out, func(a, b TopProduct) int {
		return cmp.Compare(b.Revenue, a.Revenue)
	})
	if len(out) > TopProducts {
		out = out[:TopProducts]
	}
	return out
}

// Source provides the data the summary is computed from. *shop.Client implements it.
type Source interface {
	ListOrders(ctx context.Context) ([]shopapi.Order, error)
	ListProducts(ctx context.Context, search string) ([]shopapi.Product, error)
}

// Load fetches orders and products concurrently and computes the summary.
func Load(ctx context.Context, src Source, opts Options) (*Summary, error) {
	var (
		orders   []shopapi.Order
		products []shopapi.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = src.ListOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		products, err = src.ListProducts(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s := Compute(orders, products, opts)
	return &s, nil
}
