package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/plantitas/plantitas/internal/common/logtrace"
	"github.com/rs/zerolog/log"
)

// SendJsonRsp writes msg as JSON with the given status code. Pre-encoded JSON may be passed
// as a string or []byte. On 201 the first location, if any, is set as the Location header.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any, location ...string) {
	var msgJson []byte
	switch v := msg.(type) {
	case string:
		if json.Valid([]byte(v)) {
			msgJson = []byte(v)
		}
	case []byte:
		if json.Valid(v) {
			msgJson = v
		}
	default:
		var err error
		msgJson, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("unable to marshal json")
			ErrApplicationError("Id: " + logtrace.RequestIDFromContext(ctx)).Send(w)
			return
		}
	}
	if msgJson == nil {
		ErrApplicationError("invalid response body").Send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if statusCode == http.StatusCreated && len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	w.Write(msgJson)
}
