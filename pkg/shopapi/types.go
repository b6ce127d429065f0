// Package shopapi defines the JSON resources exchanged with the shop backend. The client and
// the reference backend share these types.
package shopapi

import (
	"github.com/plantitas/plantitas/pkg/types"
)

// API paths. Collection and detail paths keep their trailing slash.
const (
	PathToken        = "/api/token/"
	PathTokenRefresh = "/api/token/refresh/"
	PathMe           = "/api/me/"
	PathVersion      = "/api/version/"
	PathCategories   = "/api/categories/"
	PathProducts     = "/api/products/"
	PathOrders       = "/api/orders/"
	PathOrderList    = "/api/orders/list/"
)

// APIVersion is the version of the resource shapes defined here.
const APIVersion = "1.2.0"

// Roles are the backend groups a user can belong to.
const (
	RoleAdmin     = "admin"
	RoleVendedor  = "vendedor"
	RoleBodeguero = "bodeguero"
	RoleUser      = "user"
)

// Payment methods accepted by the order endpoint.
const (
	PaymentEfectivo      = "efectivo"
	PaymentDebito        = "debito"
	PaymentCredito       = "credito"
	PaymentTransferencia = "transferencia"
)

// PaymentMethods lists the accepted payment methods in display order.
var PaymentMethods = []string{PaymentEfectivo, PaymentDebito, PaymentCredito, PaymentTransferencia}

// Delivery modes.
const (
	DeliveryRetiro = "retiro"
	DeliveryEnvio  = "envio"
)

// Order statuses.
const (
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type AccessToken struct {
	Access string `json:"access"`
}

// Me is the authenticated user. Role is the first group, or "user" when there is none.
type Me struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
	Role     string   `json:"role"`
}

// ServerInfo is returned by the version endpoint.
type ServerInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name" validate:"required,notBlank,max=80"`
}

// Product is a catalogue entry. Prices are whole Chilean pesos.
type Product struct {
	ID       string    `json:"id"`
	SKU      string    `json:"sku"`
	Name     string    `json:"name"`
	Price    int64     `json:"price"`
	Stock    int       `json:"stock"`
	Image    string    `json:"image,omitempty"`
	Category *Category `json:"category,omitempty"`
}

// CategoryName returns the category name or "".
func (p Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

// ProductInput is the body of a product creation.
type ProductInput struct {
	ID         string `json:"id,omitempty" mapstructure:"id" validate:"omitempty,max=20"`
	SKU        string `json:"sku" mapstructure:"sku" validate:"required,notBlank,max=40"`
	Name       string `json:"name" mapstructure:"name" validate:"required,notBlank,max=120"`
	Price      int64  `json:"price" mapstructure:"price" validate:"gte=0"`
	Stock      int    `json:"stock" mapstructure:"stock" validate:"gte=0"`
	CategoryID int    `json:"category_id" mapstructure:"category_id" validate:"required,gt=0"`
}

// ProductPatch is a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	SKU        *string `json:"sku,omitempty" mapstructure:"sku" validate:"omitempty,notBlank,max=40"`
	Name       *string `json:"name,omitempty" mapstructure:"name" validate:"omitempty,notBlank,max=120"`
	Price      *int64  `json:"price,omitempty" mapstructure:"price" validate:"omitempty,gte=0"`
	Stock      *int    `json:"stock,omitempty" mapstructure:"stock" validate:"omitempty,gte=0"`
	CategoryID *int    `json:"category_id,omitempty" mapstructure:"category_id" validate:"omitempty,gt=0"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.SKU == nil && p.Name == nil && p.Price == nil && p.Stock == nil && p.CategoryID == nil
}

type Customer struct {
	FullName string               `json:"full_name" validate:"required,notBlank,max=120"`
	Email    types.NullableString `json:"email" validate:"omitempty,email"`
	Phone    string               `json:"phone" validate:"required,notBlank,max=30"`
}

type Delivery struct {
	Mode    string               `json:"mode" validate:"required,oneof=retiro envio"`
	Address types.NullableString `json:"address" validate:"required_if=Mode envio,max=200"`
	Notes   string               `json:"notes"`
}

type OrderItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// OrderCreate is the checkout payload.
type OrderCreate struct {
	Customer      Customer         `json:"customer"`
	Delivery      Delivery         `json:"delivery"`
	PaymentMethod string           `json:"payment_method" validate:"required,paymentMethod"`
	Items         []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// OrderItem is a sold line. Product and SKU are snapshots taken at the time of sale.
type OrderItem struct {
	Product   string `json:"product"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	LineTotal int64  `json:"line_total"`
}

type Order struct {
	ID            int                  `json:"id"`
	Code          string               `json:"code"`
	CreatedAt     types.Timestamp      `json:"created_at"`
	Status        string               `json:"status"`
	FullName      string               `json:"full_name"`
	Phone         string               `json:"phone"`
	DeliveryMode  string               `json:"delivery_mode"`
	Address       types.NullableString `json:"address"`
	PaymentMethod string               `json:"payment_method"`
	Total         int64                `json:"total"`
	Items         []OrderItem          `json:"items"`
}
