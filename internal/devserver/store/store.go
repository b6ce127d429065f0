// Package store is the in-memory catalogue and order book of the reference backend. All
// operations are safe for concurrent use; an order is applied atomically, so either every
// line's stock is decremented or none is.
package store

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/plantitas/plantitas/internal/common"
	"github.com/plantitas/plantitas/internal/common/apperrors"
	"github.com/plantitas/plantitas/internal/common/uuid"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/plantitas/plantitas/pkg/types"
)

var (
	ErrStore           = apperrors.New("store error")
	ErrNotFound        = ErrStore.New("No record matches the given query.").SetStatusCode(http.StatusNotFound)
	ErrProductHasSales = ErrStore.New("This product cannot be deleted because it has associated sales.").SetStatusCode(http.StatusConflict)
	ErrCategoryInUse   = ErrStore.New("This category cannot be deleted because it still has products.").SetStatusCode(http.StatusConflict)
)

// FieldError is a validation failure reported against fields.
type FieldError struct {
	Fields map[string][]string
}

func (e *FieldError) Error() string {
	for k, v := range e.Fields {
		return k + ": " + strings.Join(v, ", ")
	}
	return "invalid data"
}

func (e *FieldError) FieldMessages() map[string][]string {
	return e.Fields
}

func fieldError(field, msg string) *FieldError {
	return &FieldError{Fields: map[string][]string{field: {msg}}}
}

type product struct {
	shopapi.Product
	categoryID int
	sold       bool
}

type orderLine struct {
	productID string
	name      string
	sku       string
	quantity  int
	price     int64
}

type order struct {
	shopapi.Order
	lines []orderLine
}

// Store holds categories, products and orders.
type Store struct {
	mu         sync.RWMutex
	categories map[int]*shopapi.Category
	products   map[string]*product
	orders     []*order
	nextCatID  int
	nextOrder  int
	loc        *time.Location
	now        func() time.Time
}

// New returns an empty store. Order codes use the date in loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		categories: map[int]*shopapi.Category{},
		products:   map[string]*product{},
		nextCatID:  1,
		nextOrder:  1,
		loc:        loc,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for order timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Categories

func (s *Store) ListCategories() []shopapi.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shopapi.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b shopapi.Category) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func (s *Store) GetCategory(id int) (shopapi.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return shopapi.Category{}, ErrNotFound
	}
	return *c, nil
}

func (s *Store) categoryNameTaken(name string, except int) bool {
	for _, c := range s.categories {
		if c.ID != except && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(name string) (shopapi.Category, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryNameTaken(name, 0) {
		return shopapi.Category{}, fieldError("name", "category with this name already exists.")
	}
	c := &shopapi.Category{ID: s.nextCatID, Name: name}
	s.nextCatID++
	s.categories[c.ID] = c
	return *c, nil
}

func (s *Store) RenameCategory(id int, name string) (shopapi.Category, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return shopapi.Category{}, ErrNotFound
	}
	if s.categoryNameTaken(name, id) {
		return shopapi.Category{}, fieldError("name", "category with this name already exists.")
	}
	c.Name = name
	for _, p := range s.products {
		if p.categoryID == id {
			p.Category = &shopapi.Category{ID: id, Name: name}
		}
	}
	return *c, nil
}

// DeleteCategory removes an empty category. Categories are protected by their products.
func (s *Store) DeleteCategory(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return ErrNotFound
	}
	for _, p := range s.products {
		if p.categoryID == id {
			return ErrCategoryInUse
		}
	}
	delete(s.categories, id)
	return nil
}

// Products

// ListProducts returns products ordered by name. A non-empty search matches name or SKU,
// case-insensitively.
func (s *Store) ListProducts(search string) []shopapi.Product {
	search = strings.ToLower(strings.TrimSpace(search))
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shopapi.Product, 0, len(s.products))
	for _, p := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		out = append(out, p.Product)
	}
	slices.SortFunc(out, func(a, b shopapi.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s *Store) GetProduct(id string) (shopapi.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return shopapi.Product{}, ErrNotFound
	}
	return p.Product, nil
}

func (s *Store) skuTaken(sku, except string) bool {
	for _, p := range s.products {
		if p.ID != except && p.SKU == sku {
			return true
		}
	}
	return false
}

// CreateProduct adds a product. Without an ID, a 12 hex digit ID is generated.
func (s *Store) CreateProduct(in shopapi.ProductInput, image string) (shopapi.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, ok := s.categories[in.CategoryID]
	if !ok {
		return shopapi.Product{}, fieldError("category_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.CategoryID))
	}
	if s.skuTaken(in.SKU, "") {
		return shopapi.Product{}, fieldError("sku", "product with this sku already exists.")
	}
	id := in.ID
	if id == "" {
		for range 5 {
			id = uuid.ShortHex(12)
			if _, taken := s.products[id]; !taken {
				break
			}
		}
		if _, taken := s.products[id]; taken {
			id = uuid.ShortHex(32)
		}
	} else if _, taken := s.products[id]; taken {
		return shopapi.Product{}, fieldError("id", "product with this id already exists.")
	}

	p := &product{
		Product: shopapi.Product{
			ID:       id,
			SKU:      strings.TrimSpace(in.SKU),
			Name:     strings.TrimSpace(in.Name),
			Price:    in.Price,
			Stock:    in.Stock,
			Image:    image,
			Category: &shopapi.Category{ID: cat.ID, Name: cat.Name},
		},
		categoryID: cat.ID,
	}
	s.products[id] = p
	return p.Product, nil
}

// UpdateProduct applies a patch and, when image is non-empty, replaces the image.
func (s *Store) UpdateProduct(id string, patch shopapi.ProductPatch, image string) (shopapi.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return shopapi.Product{}, ErrNotFound
	}
	var cat *shopapi.Category
	if patch.CategoryID != nil {
		if cat, ok = s.categories[*patch.CategoryID]; !ok {
			return shopapi.Product{}, fieldError("category_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *patch.CategoryID))
		}
	}
	if patch.SKU != nil && s.skuTaken(*patch.SKU, id) {
		return shopapi.Product{}, fieldError("sku", "product with this sku already exists.")
	}

	if patch.SKU != nil {
		p.SKU = strings.TrimSpace(*patch.SKU)
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if cat != nil {
		p.categoryID = cat.ID
		p.Category = &shopapi.Category{ID: cat.ID, Name: cat.Name}
	}
	if image != "" {
		p.Image = image
	}
	return p.Product, nil
}

// DeleteProduct removes a product that has never been sold.
func (s *Store) DeleteProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	if p.sold {
		return ErrProductHasSales
	}
	delete(s.products, id)
	return nil
}

// Orders

// CreateOrder validates stock for every line, decrements it and records the order with
// name and SKU snapshots. Nothing changes when any line fails.
func (s *Store) CreateOrder(in shopapi.OrderCreate) (shopapi.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// quantities per product, so repeated lines are checked together
	need := map[string]int{}
	for _, it := range in.Items {
		p, ok := s.products[it.ProductID]
		if !ok {
			return shopapi.Order{}, fieldError("items", fmt.Sprintf("Product '%s' does not exist.", it.ProductID))
		}
		need[it.ProductID] += it.Quantity
		if p.Stock < need[it.ProductID] {
			return shopapi.Order{}, fieldError("items", fmt.Sprintf("Insufficient stock for %s. Available: %d.", p.Name, p.Stock))
		}
	}

	now := s.now()
	o := &order{
		Order: shopapi.Order{
			ID:            s.nextOrder,
			Code:          common.OrderCode(now.In(s.loc), s.nextOrder),
			CreatedAt:     types.Timestamp{Time: now.UTC()},
			Status:        shopapi.OrderPaid,
			FullName:      strings.TrimSpace(in.Customer.FullName),
			Phone:         strings.TrimSpace(in.Customer.Phone),
			DeliveryMode:  in.Delivery.Mode,
			Address:       in.Delivery.Address,
			PaymentMethod: in.PaymentMethod,
		},
	}
	if in.Delivery.Mode != shopapi.DeliveryEnvio {
		o.Address = types.NullString()
	}
	s.nextOrder++

	for _, it := range in.Items {
		p := s.products[it.ProductID]
		p.Stock -= it.Quantity
		p.sold = true
		o.lines = append(o.lines, orderLine{
			productID: p.ID,
			name:      p.Name,
			sku:       p.SKU,
			quantity:  it.Quantity,
			price:     p.Price,
		})
		o.Total += int64(it.Quantity) * p.Price
	}
	s.orders = append(s.orders, o)
	return s.render(o), nil
}

// render fills the order items, preferring live product data and falling back to the
// snapshots of deleted products.
func (s *Store) render(o *order) shopapi.Order {
	out := o.Order
	out.Items = make([]shopapi.OrderItem, 0, len(o.lines))
	for _, l := range o.lines {
		name, sku := l.name, l.sku
		if p, ok := s.products[l.productID]; ok {
			name, sku = p.Name, p.SKU
		}
		out.Items = append(out.Items, shopapi.OrderItem{
			Product:   name,
			SKU:       sku,
			Quantity:  l.quantity,
			Price:     l.price,
			LineTotal: int64(l.quantity) * l.price,
		})
	}
	return out
}

// ListOrders returns orders newest first.
func (s *Store) ListOrders() []shopapi.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shopapi.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		out = append(out, s.render(s.orders[i]))
	}
	return out
}

func (s *Store) GetOrder(id int) (shopapi.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return s.render(o), nil
		}
	}
	return shopapi.Order{}, ErrNotFound
}
