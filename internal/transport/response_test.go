package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/outlookbridge/model"
)

func TestWriteJSON_SetsHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, []string{"getEvents", "send"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `["getEvents","send"]`, w.Body.String())
}

func TestWriteJSON_NilBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"unknown action", model.NewUnknownActionError("launchRocket"), http.StatusNotFound, model.ErrUnknownAction},
		{"bad body", model.NewBadRequestError("body must be a JSON array of strings"), http.StatusBadRequest, model.ErrBadRequest},
		{"breaker open", model.NewBackendUnavailableError(), http.StatusBadGateway, model.ErrBackendUnavailable},
		{"wrapped timeout", fmt.Errorf("waiting for reply: %w", model.NewBackendTimeoutError()), http.StatusGatewayTimeout, model.ErrBackendTimeout},
		{"internal", model.NewInternalError(), http.StatusInternalServerError, model.ErrInternalError},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, model.ErrInternalError},
		{"call failure code", model.NewMalformedRequestError("x"), http.StatusInternalServerError, model.ErrMalformedRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			assert.Equal(t, tc.wantCode, w.Code)
			var resp struct {
				Error model.ErrorEnvelope `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantErr, resp.Error.Code)
		})
	}
}
