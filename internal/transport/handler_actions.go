package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pitabwire/outlookbridge/internal/bridge"
	"github.com/pitabwire/outlookbridge/internal/observability"
	"github.com/pitabwire/outlookbridge/internal/openapi"
	"github.com/pitabwire/outlookbridge/model"
)

// Dispatcher is the part of *bridge.Dispatcher the transport uses.
type Dispatcher interface {
	Handles(action string) bool
	Dispatch(ctx context.Context, action string, flat []string) (*bridge.Pending, bool)
}

const defaultMaxBodyBytes = 10 << 20

// handleInvoke runs one action and writes its reply. Failures of the call
// itself are data in a 200 reply; only transport problems map to HTTP errors.
func handleInvoke(d Dispatcher, index *openapi.Index, maxBody int64) http.HandlerFunc {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")
		if !d.Handles(action) {
			WriteError(w, model.NewUnknownActionError(action))
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			WriteError(w, model.NewBadRequestError("request body could not be read"))
			return
		}
		flat, err := decodeArguments(index, action, raw)
		if err != nil {
			WriteError(w, model.NewBadRequestError(err.Error()))
			return
		}

		pending, ok := d.Dispatch(r.Context(), action, flat)
		if !ok {
			WriteError(w, model.NewUnknownActionError(action))
			return
		}

		result, err := pending.Wait(r.Context())
		if err != nil {
			observability.LoggerFrom(r.Context(), zap.NewNop()).Warn("no reply before deadline",
				zap.String("action", action),
				zap.Error(err),
			)
			if errors.Is(err, context.DeadlineExceeded) {
				WriteError(w, model.NewBackendTimeoutError())
			}
			return
		}
		WriteJSON(w, http.StatusOK, NewReply(result))
	}
}

// decodeArguments parses the body as a JSON array of strings, checking it
// against the published request schema when an index is available.
func decodeArguments(index *openapi.Index, action string, raw []byte) ([]string, error) {
	if index != nil {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("request body is not valid JSON")
		}
		if err := index.ValidateRequest(action, generic); err != nil {
			return nil, fmt.Errorf("request body must be a JSON array of strings")
		}
	}

	var flat []string
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&flat); err != nil {
		return nil, fmt.Errorf("request body must be a JSON array of strings")
	}
	if flat == nil {
		return nil, fmt.Errorf("request body must be a JSON array of strings")
	}
	return flat, nil
}

func handleListActions(actions []string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, actions)
	}
}

func handleOpenAPI(index *openapi.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if index == nil {
			WriteError(w, model.NewInternalError())
			return
		}
		data, err := index.Document().MarshalJSON()
		if err != nil {
			WriteError(w, model.NewInternalError())
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
