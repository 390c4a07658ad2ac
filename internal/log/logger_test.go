package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentLedger, Output: &buf})

	l.Info("balance computed", FieldClassID, "kelas-1a")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, "class_id=kelas-1a")
	assert.NotContains(t, out, "hidden")
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithOperation(OpCreate).
		WithError(errors.New("boom")).
		WithError(nil).
		WithTransaction("c1", "t1", "gabungan", "dues", "INCOME", "Rp50.000")

	assert.Equal(t, "boom", f[FieldError])
	assert.Equal(t, "gabungan", f[FieldFund])
	assert.Len(t, f.ToSlice(), len(f)*2)
}

func TestMiddlewareCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Output: &buf})

	var seen *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			seen.Info("inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, ComponentHTTP, seen.Component())
	assert.Contains(t, buf.String(), "request_id=req-42")
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}
