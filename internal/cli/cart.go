package cli

import (
	"github.com/plantitas/plantitas/internal/cart"
	"github.com/plantitas/plantitas/internal/common/money"
	"github.com/plantitas/plantitas/internal/session"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/plantitas/plantitas/pkg/types"
	"github.com/spf13/cobra"
)

// cartView is the printed state of the cart.
type cartView struct {
	Items    []cart.Item `json:"items"`
	Count    int         `json:"count"`
	Subtotal int64       `json:"subtotal"`
}

func viewCart(c *cart.Cart) cartView {
	return cartView{Items: c.Items(), Count: c.Count(), Subtotal: c.Subtotal()}
}

func printCart(w output, v cartView) {
	if len(v.Items) == 0 {
		w.println("The cart is empty")
		return
	}
	tw := w.table("ID", "NAME", "QTY", "PRICE", "TOTAL")
	for _, it := range v.Items {
		row(tw, it.ID, it.Name, it.Quantity, money.FormatCLP(it.Price), money.FormatCLP(it.LineTotal()))
	}
	tw.Flush()
	w.printf("%d units, subtotal %s\n", v.Count, money.FormatCLP(v.Subtotal))
}

// cartSession opens the cart after checking that the stored session may sell.
func cartSession() (*session.Session, *cart.Cart, error) {
	s, err := activeSession(session.RouteShop)
	if err != nil {
		return nil, nil, err
	}
	c, err := openCart()
	if err != nil {
		return nil, nil, err
	}
	return s, c, nil
}

func newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Build a sale and check it out",
		Long: `Build a sale and check it out. The cart is kept between runs until checkout or
"cart clear". Selling requires the vendedor or admin role.

Examples:
  plantitas cart add P001 --qty 2
  plantitas cart set P001 3
  plantitas cart show
  plantitas cart checkout --payment efectivo --cash 50000
  plantitas cart checkout --name "Ana Pérez" --phone 912345678 --delivery envio --address "Av. Siempre Viva 742" --payment tarjeta`,
	}
	cmd.AddCommand(
		newCartShowCmd(),
		newCartAddCmd(),
		newCartSetCmd(),
		newCartRemoveCmd(),
		newCartClearCmd(),
		newCartCheckoutCmd(),
	)
	return cmd
}

func newCartShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := cartSession()
			if err != nil {
				return err
			}
			v := viewCart(c)
			return render(cmd, v, func(w output) { printCart(w, v) })
		},
	}
}

func newCartAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add ID",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, _ := cmd.Flags().GetInt("qty")
			s, c, err := cartSession()
			if err != nil {
				return err
			}
			p, err := s.Shop().GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.Add(*p, qty); err != nil {
				return err
			}
			v := viewCart(c)
			return render(cmd, v, func(w output) {
				okLabel.Fprintf(w.w, "✓ Added %s\n", p.Name)
				printCart(w, v)
			})
		},
	}
	cmd.Flags().IntP("qty", "q", 1, "Units to add")
	return cmd
}

func newCartSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set ID QTY",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseID(args[1])
			if err != nil {
				return err
			}
			_, c, err := cartSession()
			if err != nil {
				return err
			}
			if err := c.SetQty(args[0], qty); err != nil {
				return err
			}
			v := viewCart(c)
			return render(cmd, v, func(w output) { printCart(w, v) })
		},
	}
}

func newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Remove a product from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := cartSession()
			if err != nil {
				return err
			}
			if err := c.Remove(args[0]); err != nil {
				return err
			}
			v := viewCart(c)
			return render(cmd, v, func(w output) { printCart(w, v) })
		},
	}
}

func newCartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := cartSession()
			if err != nil {
				return err
			}
			if err := c.Clear(); err != nil {
				return err
			}
			v := viewCart(c)
			return render(cmd, v, func(w output) { printCart(w, v) })
		},
	}
}

// receiptView is the printed result of a checkout.
type receiptView struct {
	Order  *shopapi.Order `json:"order"`
	Change int64          `json:"change"`
}

func newCartCheckoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Close the sale",
		Long: `Close the sale. Without a name and a phone the sale is recorded for a walk-in
customer. For cash payments --cash is the amount received; leave it out for exact change.
Payment methods are efectivo, debito, credito and transferencia; "tarjeta" means debito.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			co := cart.Checkout{}
			co.Customer.FullName, _ = f.GetString("name")
			co.Customer.Phone, _ = f.GetString("phone")
			email, _ := f.GetString("email")
			co.Customer.Email = types.OptionalString(email)
			co.DeliveryMode, _ = f.GetString("delivery")
			co.Address, _ = f.GetString("address")
			co.Notes, _ = f.GetString("notes")
			co.PaymentMethod, _ = f.GetString("payment")
			co.CashReceived, _ = f.GetInt64("cash")

			s, c, err := cartSession()
			if err != nil {
				return err
			}
			receipt, err := c.Checkout(cmd.Context(), s.Shop(), co)
			if err != nil {
				return err
			}
			v := receiptView{Order: receipt.Order, Change: receipt.Change}
			return render(cmd, v, func(w output) {
				okLabel.Fprintf(w.w, "✓ Order %s paid\n", v.Order.Code)
				printOrder(w, v.Order)
				if v.Order.PaymentMethod == shopapi.PaymentEfectivo && v.Change > 0 {
					w.printf("Change:   %s\n", money.FormatCLP(v.Change))
				}
			})
		},
	}
	f := cmd.Flags()
	f.String("name", "", "Customer full name")
	f.String("phone", "", "Customer phone")
	f.String("email", "", "Customer email")
	f.String("delivery", shopapi.DeliveryRetiro, "Delivery mode: retiro or envio")
	f.String("address", "", "Delivery address, required for envio")
	f.String("notes", "", "Delivery notes")
	f.String("payment", shopapi.PaymentEfectivo, "Payment method")
	f.Int64("cash", 0, "Cash received, for efectivo")
	return cmd
}
