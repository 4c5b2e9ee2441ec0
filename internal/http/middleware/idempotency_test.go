package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func idemEngine(opts IdempotencyOptions, lookup IdempotencyLookup) (*gin.Engine, **gin.Context) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var captured *gin.Context
	r.POST("/x", IdempotencyValidator(opts, lookup), func(c *gin.Context) {
		captured = c.Copy()
		c.Status(http.StatusOK)
	})
	return r, &captured
}

func TestIdempotencyValidator_StashesKey(t *testing.T) {
	r, captured := idemEngine(IdempotencyOptions{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "order-2043:purchase")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	key, found := GetIdempotencyKey(*captured)
	if !found || key != "order-2043:purchase" {
		t.Fatalf("stashed key = %q found=%v", key, found)
	}
	if IsReplay(*captured) {
		t.Fatal("fresh key marked as replay")
	}
}

func TestIdempotencyValidator_AbsentKeyIsNoOp(t *testing.T) {
	r, captured := idemEngine(IdempotencyOptions{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; absent key must pass through", w.Code)
	}
	if _, found := GetIdempotencyKey(*captured); found {
		t.Fatal("key reported present on keyless request")
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	r, _ := idemEngine(IdempotencyOptions{MaxLen: 20}, nil)

	for _, key := range []string{
		strings.Repeat("a", 21), // too long
		"has spaces",
		"emoji-⚡",
		"semi;colon",
	} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d; want 400", key, w.Code)
		}
		if !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("key %q: body = %s", key, w.Body.String())
		}
	}
}

func TestIdempotencyValidator_MarksReplayAndRateBypass(t *testing.T) {
	lookup := func(_ context.Context, key string) (bool, error) {
		return key == "seen-before", nil
	}
	r, captured := idemEngine(IdempotencyOptions{}, lookup)

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "seen-before")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; replays still reach the handler", w.Code)
	}
	if !IsReplay(*captured) {
		t.Fatal("replay not marked")
	}
	if !IsRateBypass(*captured) {
		t.Fatal("replay must bypass rate limiting")
	}
}
