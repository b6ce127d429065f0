package cart

import (
	"context"
	"strings"

	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/plantitas/plantitas/pkg/types"
	"github.com/rs/zerolog/log"
)

// Walk-in customer used by the point of sale when no customer details are given.
const (
	WalkInName  = "Cliente Demo"
	WalkInPhone = "99999999"
)

// paymentAliases maps the labels offered at the till to backend payment methods.
var paymentAliases = map[string]string{
	"tarjeta": shopapi.PaymentDebito,
	"card":    shopapi.PaymentDebito,
	"cash":    shopapi.PaymentEfectivo,
}

// NormalizePayment lowercases method and resolves till aliases such as "tarjeta".
func NormalizePayment(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if alias, ok := paymentAliases[method]; ok {
		return alias
	}
	return method
}

// OrderCreator posts orders. *shop.Client implements it.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in shopapi.OrderCreate) (*shopapi.Order, error)
}

// Checkout describes the sale being closed.
type Checkout struct {
	Customer      shopapi.Customer
	DeliveryMode  string
	Address       string
	Notes         string
	PaymentMethod string
	// CashReceived is the amount handed over for a cash payment. Zero means exact change.
	CashReceived int64
}

// Receipt is the result of a successful checkout.
type Receipt struct {
	Order  *shopapi.Order
	Change int64
}

// Payload builds the order payload for the current cart without sending it.
func (c *Cart) Payload(co Checkout) (shopapi.OrderCreate, error) {
	items := c.Items()
	if len(items) == 0 {
		return shopapi.OrderCreate{}, ErrEmptyCart
	}

	customer := co.Customer
	if strings.TrimSpace(customer.FullName) == "" && strings.TrimSpace(customer.Phone) == "" {
		customer.FullName, customer.Phone = WalkInName, WalkInPhone
	}
	customer.Email = types.OptionalString(customer.Email.String())

	mode := strings.ToLower(strings.TrimSpace(co.DeliveryMode))
	if mode == "" {
		mode = shopapi.DeliveryRetiro
	}
	address := types.NullString()
	if mode == shopapi.DeliveryEnvio {
		address = types.OptionalString(co.Address)
	}

	in := shopapi.OrderCreate{
		Customer:      customer,
		Delivery:      shopapi.Delivery{Mode: mode, Address: address, Notes: strings.TrimSpace(co.Notes)},
		PaymentMethod: NormalizePayment(co.PaymentMethod),
		Items:         make([]shopapi.OrderItemInput, 0, len(items)),
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = shopapi.PaymentEfectivo
	}
	for _, it := range items {
		in.Items = append(in.Items, shopapi.OrderItemInput{ProductID: it.ID, Quantity: it.Quantity})
	}
	if err := shopapi.Validate(in); err != nil {
		return shopapi.OrderCreate{}, ErrInvalidCheckout.MsgErr(err.Error(), err)
	}
	return in, nil
}

// Change returns the change due for a cash payment of received against total. Zero received
// means exact change.
func Change(total, received int64) (int64, error) {
	if received == 0 {
		return 0, nil
	}
	if received < total {
		return 0, ErrInsufficientCash
	}
	return received - total, nil
}

// Checkout validates the sale, posts the order and clears the cart. The cart is left as it
// was when anything fails.
func (c *Cart) Checkout(ctx context.Context, orders OrderCreator, co Checkout) (*Receipt, error) {
	in, err := c.Payload(co)
	if err != nil {
		return nil, err
	}
	var change int64
	if in.PaymentMethod == shopapi.PaymentEfectivo {
		if change, err = Change(c.Subtotal(), co.CashReceived); err != nil {
			return nil, err
		}
	}

	order, err := orders.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := c.Clear(); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("order", order.Code).Msg("order created but the cart could not be cleared")
	}
	if in.PaymentMethod == shopapi.PaymentEfectivo && co.CashReceived > 0 {
		change = co.CashReceived - order.Total
	}
	return &Receipt{Order: order, Change: max(change, 0)}, nil
}
