package apis

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/plantitas/plantitas/pkg/shopapi"
)

func categoryID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, httpx.ErrNotFound()
	}
	return id, nil
}

func (a *API) listCategories(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{StatusCode: http.StatusOK, Response: a.Store.ListCategories()}, nil
}

func (a *API) getCategory(r *http.Request) (*httpx.Response, error) {
	id, err := categoryID(r)
	if err != nil {
		return nil, err
	}
	c, err := a.Store.GetCategory(id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: c}, nil
}

func (a *API) createCategory(r *http.Request) (*httpx.Response, error) {
	var in shopapi.Category
	if err := httpx.GetRequestData(r, &in); err != nil {
		return nil, err
	}
	if err := shopapi.Validate(in); err != nil {
		return nil, err
	}
	c, err := a.Store.CreateCategory(in.Name)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   shopapi.PathCategories + strconv.Itoa(c.ID) + "/",
		Response:   c,
	}, nil
}

func (a *API) renameCategory(r *http.Request) (*httpx.Response, error) {
	id, err := categoryID(r)
	if err != nil {
		return nil, err
	}
	var in shopapi.Category
	if err := httpx.GetRequestData(r, &in); err != nil {
		return nil, err
	}
	if err := shopapi.Validate(in); err != nil {
		return nil, err
	}
	c, err := a.Store.RenameCategory(id, in.Name)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: c}, nil
}

func (a *API) deleteCategory(r *http.Request) (*httpx.Response, error) {
	id, err := categoryID(r)
	if err != nil {
		return nil, err
	}
	if err := a.Store.DeleteCategory(id); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}
