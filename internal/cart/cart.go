// Package cart is the point-of-sale cart. Lines are persisted in a key-value store so the
// cart survives between invocations, and checkout turns them into an order.
package cart

import (
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/plantitas/plantitas/internal/common/apperrors"
	"github.com/plantitas/plantitas/internal/kvstore"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
)

// StoreKey is the key holding the cart lines.
const StoreKey = "shop_cart"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrCart             = apperrors.New("cart error")
	ErrEmptyCart        = ErrCart.New("your cart is empty").SetStatusCode(http.StatusBadRequest)
	ErrNotInCart        = ErrCart.New("product is not in the cart").SetStatusCode(http.StatusNotFound)
	ErrInvalidCheckout  = ErrCart.New("invalid checkout").SetStatusCode(http.StatusBadRequest)
	ErrInsufficientCash = ErrCart.New("cash received does not cover the total").SetStatusCode(http.StatusBadRequest)
)

// Item is a cart line: a snapshot of the product when it was added, and the quantity.
type Item struct {
	ID       string `json:"id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
	Image    string `json:"image,omitempty"`
	Quantity int    `json:"qty"`
}

// LineTotal is price times quantity.
func (it Item) LineTotal() int64 {
	return it.Price * int64(it.Quantity)
}

// Cart is safe for concurrent use within a process.
type Cart struct {
	mu sync.Mutex
	kv kvstore.Store
}

func New(kv kvstore.Store) *Cart {
	return &Cart{kv: kv}
}

func (c *Cart) load() []Item {
	raw, ok := c.kv.Get(StoreKey)
	if !ok || raw == "" {
		return nil
	}
	var items []Item
	if err := json.UnmarshalFromString(raw, &items); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable cart")
		return nil
	}
	return items
}

func (c *Cart) save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.MarshalToString(items)
	if err != nil {
		return err
	}
	return c.kv.Set(StoreKey, raw)
}

// update applies fn to the stored lines and saves the result.
func (c *Cart) update(fn func([]Item) ([]Item, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := fn(c.load())
	if err != nil {
		return err
	}
	return c.save(items)
}

// Items returns the cart lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Add puts qty units of p in the cart, merging with an existing line for the same product.
// A quantity below 1 adds one unit.
func (c *Cart) Add(p shopapi.Product, qty int) error {
	qty = max(qty, 1)
	return c.update(func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].ID == p.ID {
				items[i].Quantity += qty
				return items, nil
			}
		}
		return append(items, Item{
			ID:       p.ID,
			SKU:      p.SKU,
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			Image:    p.Image,
			Quantity: qty,
		}), nil
	})
}

// Remove drops the line for product id. Removing a product that is not in the cart is not
// an error.
func (c *Cart) Remove(id string) error {
	return c.update(func(items []Item) ([]Item, error) {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out, nil
	})
}

// SetQty sets the quantity of a line, never below 1.
func (c *Cart) SetQty(id string, qty int) error {
	return c.update(func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = max(qty, 1)
				return items, nil
			}
		}
		return nil, ErrNotInCart.Msg("product " + id + " is not in the cart")
	})
}

func (c *Cart) Clear() error {
	return c.update(func([]Item) ([]Item, error) {
		return nil, nil
	})
}

// Count is the total number of units.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items() {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.Items() {
		total += it.LineTotal()
	}
	return total
}
