package email

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.delay = func() time.Duration { return 0 }
	return h
}

func TestHandleSend(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"to":"demo@example.com","subject":"Order Confirmation: 1","body":"hi","order_id":"1"}`, http.StatusOK},
		{"malformed", `{`, http.StatusBadRequest},
		{"bad address", `{"to":"demo","subject":"s"}`, http.StatusBadRequest},
		{"missing subject", `{"to":"demo@example.com"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body))

			newTestHandler().HandleSend(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}

			var resp sendResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "sent", resp.Status)
			assert.NotEmpty(t, resp.ID)
		})
	}
}
