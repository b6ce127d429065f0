// Package apis implements the shop resource endpoints of the reference backend: categories,
// products and orders. Routes expect an authenticated user in the request context.
package apis

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/plantitas/plantitas/internal/devserver/auth"
	"github.com/plantitas/plantitas/internal/devserver/store"
	"github.com/plantitas/plantitas/pkg/shopapi"
)

// API serves the shop resources.
type API struct {
	Store       *store.Store
	Media       *Media
	MaxBodySize int64
}

// Router mounts the resource routes on r. Reads need an authenticated user; writes need the
// groups of the original permission table.
func (a *API) Router(r chi.Router) {
	canStock := auth.RequireGroups(shopapi.RoleAdmin, shopapi.RoleBodeguero)
	canSell := auth.RequireGroups(shopapi.RoleAdmin, shopapi.RoleVendedor)

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", httpx.WrapHttpRsp(a.listCategories))
		r.With(canStock).Post("/", httpx.WrapHttpRsp(a.createCategory))
		r.Get("/{id}/", httpx.WrapHttpRsp(a.getCategory))
		r.With(canStock).Patch("/{id}/", httpx.WrapHttpRsp(a.renameCategory))
		r.With(canStock).Put("/{id}/", httpx.WrapHttpRsp(a.renameCategory))
		r.With(canStock).Delete("/{id}/", httpx.WrapHttpRsp(a.deleteCategory))
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", httpx.WrapHttpRsp(a.listProducts))
		r.With(canStock).Post("/", httpx.WrapHttpRsp(a.createProduct))
		r.Get("/{id}/", httpx.WrapHttpRsp(a.getProduct))
		r.With(canStock).Patch("/{id}/", httpx.WrapHttpRsp(a.updateProduct))
		r.With(canStock).Delete("/{id}/", httpx.WrapHttpRsp(a.deleteProduct))
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(canSell)
		r.Post("/", httpx.WrapHttpRsp(a.createOrder))
		r.Get("/list/", httpx.WrapHttpRsp(a.listOrders))
		r.Get("/{id}/", httpx.WrapHttpRsp(a.getOrder))
	})
}

// absoluteURL turns a media path into an absolute URL on the requesting host.
func absoluteURL(r *http.Request, p string) string {
	if p == "" || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + p
}
