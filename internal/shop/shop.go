// Package shop is the typed client for the shop backend resources. Every call goes through
// the authenticated request pipeline.
package shop

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/plantitas/plantitas/internal/client/pipeline"
	"github.com/plantitas/plantitas/internal/common/apperrors"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/tidwall/sjson"
)

var (
	ErrShop             = apperrors.New("shop api error")
	ErrInvalidInput     = ErrShop.New("invalid input").SetStatusCode(http.StatusBadRequest)
	ErrProductHasSales  = ErrShop.New("product has sales and cannot be deleted").SetStatusCode(http.StatusConflict)
	ErrNotAnImage       = ErrShop.New("file is not a supported image").SetStatusCode(http.StatusBadRequest)
	ErrUnexpectedResult = ErrShop.New("unexpected response from server")
)

// Client calls the shop API.
type Client struct {
	p *pipeline.Pipeline
}

func New(p *pipeline.Pipeline) *Client {
	return &Client{p: p}
}

// Pipeline returns the underlying request pipeline.
func (c *Client) Pipeline() *pipeline.Pipeline {
	return c.p
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req := pipeline.NewRequest(http.MethodGet, path)
	req.Query = query
	return c.send(ctx, req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := pipeline.NewJSONRequest(method, path, body)
	if err != nil {
		return ErrInvalidInput.Err(err)
	}
	return c.send(ctx, req, out)
}

func (c *Client) send(ctx context.Context, req *pipeline.Request, out any) error {
	rsp, err := c.p.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := rsp.Decode(out); err != nil {
		return ErrUnexpectedResult.MsgErr(fmt.Sprintf("%s %s: %v", req.Method, req.Path, err), err)
	}
	return nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*shopapi.Me, error) {
	var me shopapi.Me
	if err := c.get(ctx, shopapi.PathMe, nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ServerInfo returns the backend name and versions.
func (c *Client) ServerInfo(ctx context.Context) (*shopapi.ServerInfo, error) {
	var info shopapi.ServerInfo
	if err := c.get(ctx, shopapi.PathVersion, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Categories

func categoryPath(id int) string {
	return shopapi.PathCategories + strconv.Itoa(id) + "/"
}

func (c *Client) ListCategories(ctx context.Context) ([]shopapi.Category, error) {
	var out []shopapi.Category
	if err := c.get(ctx, shopapi.PathCategories, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*shopapi.Category, error) {
	in := shopapi.Category{Name: name}
	if err := shopapi.Validate(in); err != nil {
		return nil, ErrInvalidInput.MsgErr(err.Error(), err)
	}
	var out shopapi.Category
	if err := c.sendJSON(ctx, http.MethodPost, shopapi.PathCategories, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RenameCategory(ctx context.Context, id int, name string) (*shopapi.Category, error) {
	in := shopapi.Category{ID: id, Name: name}
	if err := shopapi.Validate(in); err != nil {
		return nil, ErrInvalidInput.MsgErr(err.Error(), err)
	}
	var out shopapi.Category
	if err := c.sendJSON(ctx, http.MethodPatch, categoryPath(id), map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int) error {
	return c.send(ctx, pipeline.NewRequest(http.MethodDelete, categoryPath(id)), nil)
}

// Products

func productPath(id string) string {
	return shopapi.PathProducts + url.PathEscape(id) + "/"
}

// ListProducts returns the catalogue ordered by name. A non-empty search matches name or SKU.
func (c *Client) ListProducts(ctx context.Context, search string) ([]shopapi.Product, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}
	var out []shopapi.Product
	if err := c.get(ctx, shopapi.PathProducts, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*shopapi.Product, error) {
	var out shopapi.Product
	if err := c.get(ctx, productPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct creates a product. The backend only accepts form bodies on this endpoint, so
// the product is always sent as multipart, with img attached when given.
func (c *Client) CreateProduct(ctx context.Context, in shopapi.ProductInput, img *Image) (*shopapi.Product, error) {
	if err := shopapi.Validate(in); err != nil {
		return nil, ErrInvalidInput.MsgErr(err.Error(), err)
	}
	form := &pipeline.Multipart{}
	if in.ID != "" {
		form.AddField("id", in.ID)
	}
	form.AddField("sku", in.SKU)
	form.AddField("name", in.Name)
	form.AddField("price", strconv.FormatInt(in.Price, 10))
	form.AddField("stock", strconv.Itoa(in.Stock))
	form.AddField("category_id", strconv.Itoa(in.CategoryID))
	if img != nil {
		form.Files = append(form.Files, img.part())
	}

	var out shopapi.Product
	if err := c.send(ctx, pipeline.NewMultipartRequest(http.MethodPost, shopapi.PathProducts, form), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct applies patch to a product. With an image the update is sent as multipart,
// otherwise as a JSON body holding only the changed fields.
func (c *Client) UpdateProduct(ctx context.Context, id string, patch shopapi.ProductPatch, img *Image) (*shopapi.Product, error) {
	if err := shopapi.Validate(patch); err != nil {
		return nil, ErrInvalidInput.MsgErr(err.Error(), err)
	}
	if patch.Empty() && img == nil {
		return nil, ErrInvalidInput.Msg("nothing to update")
	}

	var req *pipeline.Request
	if img != nil {
		form := &pipeline.Multipart{}
		for _, f := range patchFields(patch) {
			form.AddField(f.Name, f.Value)
		}
		form.Files = append(form.Files, img.part())
		req = pipeline.NewMultipartRequest(http.MethodPatch, productPath(id), form)
	} else {
		body, err := patchBody(patch)
		if err != nil {
			return nil, ErrInvalidInput.Err(err)
		}
		req = pipeline.NewRequest(http.MethodPatch, productPath(id))
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}

	var out shopapi.Product
	if err := c.send(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdjustStock adds delta to the product stock. The result never drops below zero.
func (c *Client) AdjustStock(ctx context.Context, id string, delta int) (*shopapi.Product, error) {
	p, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	stock := max(0, p.Stock+delta)
	return c.UpdateProduct(ctx, id, shopapi.ProductPatch{Stock: &stock}, nil)
}

// DeleteProduct removes a product. Products referenced by orders are kept and
// ErrProductHasSales is returned.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	err := c.send(ctx, pipeline.NewRequest(http.MethodDelete, productPath(id)), nil)
	if pipeline.StatusCode(err) == http.StatusConflict {
		he, _ := pipeline.AsHTTPError(err)
		return ErrProductHasSales.MsgErr(he.Message, he)
	}
	return err
}

func patchFields(p shopapi.ProductPatch) []pipeline.Field {
	var out []pipeline.Field
	if p.SKU != nil {
		out = append(out, pipeline.Field{Name: "sku", Value: *p.SKU})
	}
	if p.Name != nil {
		out = append(out, pipeline.Field{Name: "name", Value: *p.Name})
	}
	if p.Price != nil {
		out = append(out, pipeline.Field{Name: "price", Value: strconv.FormatInt(*p.Price, 10)})
	}
	if p.Stock != nil {
		out = append(out, pipeline.Field{Name: "stock", Value: strconv.Itoa(*p.Stock)})
	}
	if p.CategoryID != nil {
		out = append(out, pipeline.Field{Name: "category_id", Value: strconv.Itoa(*p.CategoryID)})
	}
	return out
}

func patchBody(p shopapi.ProductPatch) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			body, err = sjson.SetBytes(body, path, v)
		}
	}
	if p.SKU != nil {
		set("sku", *p.SKU)
	}
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.Price != nil {
		set("price", *p.Price)
	}
	if p.Stock != nil {
		set("stock", *p.Stock)
	}
	if p.CategoryID != nil {
		set("category_id", *p.CategoryID)
	}
	return body, err
}

// Orders

// CreateOrder posts a checkout payload. Stock is decremented by the backend.
func (c *Client) CreateOrder(ctx context.Context, in shopapi.OrderCreate) (*shopapi.Order, error) {
	if err := shopapi.Validate(in); err != nil {
		return nil, ErrInvalidInput.MsgErr(err.Error(), err)
	}
	var out shopapi.Order
	if err := c.sendJSON(ctx, http.MethodPost, shopapi.PathOrders, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns all orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]shopapi.Order, error) {
	var out []shopapi.Order
	if err := c.get(ctx, shopapi.PathOrderList, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int) (*shopapi.Order, error) {
	var out shopapi.Order
	if err := c.get(ctx, shopapi.PathOrders+strconv.Itoa(id)+"/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
