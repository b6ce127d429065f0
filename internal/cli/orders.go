package cli

import (
	"github.com/plantitas/plantitas/internal/common/money"
	"github.com/plantitas/plantitas/internal/session"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func printOrder(w output, o *shopapi.Order) {
	loc := GetConfig().Location()
	w.printf("Order:    %s (#%d)\n", o.Code, o.ID)
	w.printf("Date:     %s\n", o.CreatedAt.In(loc).Format(timeLayout))
	w.printf("Customer: %s, %s\n", o.FullName, o.Phone)
	if o.DeliveryMode == shopapi.DeliveryEnvio {
		w.printf("Delivery: envio to %s\n", o.Address.String())
	} else {
		w.printf("Delivery: %s\n", o.DeliveryMode)
	}
	w.printf("Payment:  %s\n", o.PaymentMethod)
	tw := w.table("  SKU", "PRODUCT", "QTY", "PRICE", "TOTAL")
	for _, it := range o.Items {
		row(tw, "  "+it.SKU, it.Product, it.Quantity, money.FormatCLP(it.Price), money.FormatCLP(it.LineTotal))
	}
	tw.Flush()
	w.printf("Total:    %s\n", money.FormatCLP(o.Total))
}

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "Review sales",
		Long:    `Review sales. Requires the vendedor or admin role.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := activeSession(session.RouteOrders)
			if err != nil {
				return err
			}
			orders, err := s.Shop().ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, orders, func(w output) {
				loc := GetConfig().Location()
				tw := w.table("ID", "CODE", "DATE", "CUSTOMER", "DELIVERY", "PAYMENT", "TOTAL")
				for _, o := range orders {
					row(tw, o.ID, o.Code, o.CreatedAt.In(loc).Format(timeLayout), o.FullName, o.DeliveryMode, o.PaymentMethod, money.FormatCLP(o.Total))
				}
				tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := activeSession(session.RouteOrders)
			if err != nil {
				return err
			}
			o, err := s.Shop().GetOrder(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd, o, func(w output) { printOrder(w, o) })
		},
	})
	return cmd
}
