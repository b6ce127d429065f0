package apis

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
)

func (a *API) createOrder(r *http.Request) (*httpx.Response, error) {
	var in shopapi.OrderCreate
	if err := httpx.GetRequestData(r, &in); err != nil {
		return nil, err
	}
	if err := shopapi.Validate(in); err != nil {
		return nil, err
	}
	o, err := a.Store.CreateOrder(in)
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("code", o.Code).Int64("total", o.Total).Msg("order created")
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   shopapi.PathOrders + strconv.Itoa(o.ID) + "/",
		Response:   o,
	}, nil
}

func (a *API) listOrders(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{StatusCode: http.StatusOK, Response: a.Store.ListOrders()}, nil
}

func (a *API) getOrder(r *http.Request) (*httpx.Response, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return nil, httpx.ErrNotFound()
	}
	o, err := a.Store.GetOrder(id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: o}, nil
}
