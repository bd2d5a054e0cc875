package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/logging"
)

func TestErrorString(t *testing.T) {
	err := Wrap(stderrors.New("disk full"), "append record").
		WithOperation("Append").
		WithComponent("store")

	assert.Equal(t, "append record: operation=Append, component=store: disk full", err.Error())
	assert.NotEmpty(t, err.StackTrace())
}

func TestWrapKeepsExistingError(t *testing.T) {
	orig := New("first")
	wrapped := Wrapf(orig, "second %d", 2)

	assert.Same(t, orig, wrapped)
	assert.Equal(t, "second 2", wrapped.Message)
	assert.Nil(t, Wrap(nil, "x"))
}

func TestIsAndAsFollowTheChain(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("job", "abc"))

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrBadRequest))

	var e *Error
	require.True(t, As(err, &e))
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Equal(t, ErrNotFound, Unwrap(e))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "not found", err: NotFound("job", "1"), want: http.StatusNotFound},
		{name: "bad request", err: BadRequest("start is empty"), want: http.StatusBadRequest},
		{name: "wrapped sentinel", err: fmt.Errorf("x: %w", ErrConflict), want: http.StatusConflict},
		{name: "explicit status", err: New("busy").WithStatus(http.StatusServiceUnavailable), want: http.StatusServiceUnavailable},
		{name: "plain", err: stderrors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.DebugLevel, &buf)

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("objective exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/minimize", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "Recovered from panic")
	assert.Contains(t, buf.String(), "objective exploded")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSON(rec, NotFound("job", "42"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"job \"42\": not found"}`, rec.Body.String())
}
