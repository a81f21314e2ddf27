package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminKeyAuth(t *testing.T) {
	hash, err := HashAdminKey("open-sesame")
	require.NoError(t, err)

	auth := NewAdminKeyAuth("", []string{"", hash})
	assert.True(t, auth.Enabled())
	assert.True(t, auth.IsValid("open-sesame"))
	assert.True(t, auth.IsValid("open-sesame"), "cached verification")
	assert.False(t, auth.IsValid("open-sesame!"))
	assert.False(t, auth.IsValid(""))

	assert.False(t, NewAdminKeyAuth("", nil).IsValid("open-sesame"))
}

func TestAdminKeyAuth_Middleware(t *testing.T) {
	hash, err := HashAdminKey("k")
	require.NoError(t, err)
	auth := NewAdminKeyAuth("X-Staff-Key", []string{hash})

	var denied int
	h := auth.Middleware(func(w http.ResponseWriter, _ *http.Request, status int) {
		denied = status
		w.WriteHeader(status)
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-Staff-Key", "nope", http.StatusForbidden},
		{"header", "X-Staff-Key", "k", http.StatusNoContent},
		{"bearer", "Authorization", "Bearer k", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denied = 0
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusNoContent {
				assert.Equal(t, tt.want, denied)
			}
		})
	}
}

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(50 * time.Millisecond)

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)

	c.AddCheck("postgres", func(context.Context) error { return nil })
	c.AddOptionalCheck("redis", func(context.Context) error { return errors.New("refused") })
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status = c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: slow", status.Message)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.True(t, status.Checks["redis"].Optional)
	assert.False(t, status.Checks["redis"].Healthy)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
