package apis

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadSize bounds multipart product bodies.
const DefaultMaxUploadSize = 8 << 20

func (a *API) withImageURL(r *http.Request, p shopapi.Product) shopapi.Product {
	p.Image = absoluteURL(r, p.Image)
	return p
}

func (a *API) listProducts(r *http.Request) (*httpx.Response, error) {
	products := a.Store.ListProducts(r.URL.Query().Get("search"))
	for i := range products {
		products[i] = a.withImageURL(r, products[i])
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: products}, nil
}

func (a *API) getProduct(r *http.Request) (*httpx.Response, error) {
	p, err := a.Store.GetProduct(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: a.withImageURL(r, p)}, nil
}

func (a *API) createProduct(r *http.Request) (*httpx.Response, error) {
	var in shopapi.ProductInput
	image, err := a.decodeProduct(r, &in)
	if err != nil {
		return nil, err
	}
	if err := shopapi.Validate(in); err != nil {
		return nil, err
	}
	p, err := a.Store.CreateProduct(in, image)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   shopapi.PathProducts + p.ID + "/",
		Response:   a.withImageURL(r, p),
	}, nil
}

func (a *API) updateProduct(r *http.Request) (*httpx.Response, error) {
	var patch shopapi.ProductPatch
	image, err := a.decodeProduct(r, &patch)
	if err != nil {
		return nil, err
	}
	if err := shopapi.Validate(patch); err != nil {
		return nil, err
	}
	p, err := a.Store.UpdateProduct(chi.URLParam(r, "id"), patch, image)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: a.withImageURL(r, p)}, nil
}

func (a *API) deleteProduct(r *http.Request) (*httpx.Response, error) {
	if err := a.Store.DeleteProduct(chi.URLParam(r, "id")); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

// decodeProduct fills dst from a JSON or multipart body. For multipart bodies the form values
// are decoded with weak typing, and an "image" file is saved to the media store; its path is
// returned.
func (a *API) decodeProduct(r *http.Request, dst any) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return "", httpx.GetRequestData(r, dst)
	}

	limit := a.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", httpx.ErrRequestTooLarge(limit)
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("unable to parse multipart form")
		return "", httpx.ErrUnableToParseReqData()
	}

	values := make(map[string]any, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			values[k] = strings.TrimSpace(v[0])
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return "", err
	}
	if err := dec.Decode(values); err != nil {
		return "", httpx.ErrInvalidRequest(err.Error())
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return "", nil
	}
	f, err := files[0].Open()
	if err != nil {
		return "", httpx.ErrUnableToParseReqData()
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", httpx.ErrUnableToParseReqData()
	}
	return a.Media.Save(data)
}
