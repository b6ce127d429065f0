package cli

import (
	"strings"

	"github.com/fatih/color"
	"github.com/plantitas/plantitas/internal/common/money"
	"github.com/plantitas/plantitas/internal/dashboard"
	"github.com/plantitas/plantitas/internal/session"
	"github.com/spf13/cobra"
)

const barWidth = 30

var (
	headingLabel = color.New(color.Bold)
	barColor     = color.New(color.FgGreen)
)

func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show today's sales, low stock and best sellers",
		Long: `Show today's sales, the average ticket, products running low, the five best
sellers and sales over the last seven days. Days follow the configured time zone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetInt("low-stock")
			cfg := GetConfig()
			if threshold <= 0 {
				threshold = cfg.LowStockThreshold
			}
			s, err := activeSession(session.RouteDashboard)
			if err != nil {
				return err
			}
			sum, err := dashboard.Load(cmd.Context(), s.Shop(), dashboard.Options{
				Location:          cfg.Location(),
				LowStockThreshold: threshold,
			})
			if err != nil {
				return err
			}
			return render(cmd, sum, func(w output) { printDashboard(w, sum) })
		},
	}
	cmd.Flags().Int("low-stock", 0, "Stock at or below which a product is listed as low (default from config)")
	return cmd
}

func printDashboard(w output, sum *dashboard.Summary) {
	headingLabel.Fprintln(w.w, "Today")
	w.printf("  Sales:          %s\n", money.FormatCLP(sum.SalesToday))
	w.printf("  Tickets:        %d\n", sum.TicketsToday)
	w.printf("  Average ticket: %s\n", money.FormatCLP(sum.AverageTicket))

	w.println()
	headingLabel.Fprintln(w.w, "Low stock")
	if len(sum.LowStock) == 0 {
		okLabel.Fprintln(w.w, "  All products are stocked")
	}
	for _, p := range sum.LowStock {
		label := warnLabel
		if p.Stock == 0 {
			label = errorLabel
		}
		label.Fprintf(w.w, "  %-12s %-28s %3d\n", p.SKU, p.Name, p.Stock)
	}

	w.println()
	headingLabel.Fprintln(w.w, "Best sellers")
	if len(sum.Top) == 0 {
		w.println("  No sales yet")
	} else {
		tw := w.table("  PRODUCT", "UNITS", "REVENUE")
		for _, t := range sum.Top {
			row(tw, "  "+t.Name, t.Sold, money.FormatCLP(t.Revenue))
		}
		tw.Flush()
	}

	w.println()
	headingLabel.Fprintln(w.w, "Last 7 days")
	var peak int64
	for _, d := range sum.Last7Days {
		peak = max(peak, d.Total)
	}
	for _, d := range sum.Last7Days {
		n := 0
		if peak > 0 {
			n = int(d.Total * barWidth / peak)
		}
		w.printf("  %-4s %s ", d.Label, d.Date[5:])
		barColor.Fprint(w.w, strings.Repeat("█", n))
		w.printf("%s %s\n", strings.Repeat(" ", barWidth-n), money.FormatCLP(d.Total))
	}
}
