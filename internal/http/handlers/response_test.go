package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/glowcart/commerce-backend/internal/http/middleware"
)

func TestFail_EnvelopeAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, "request already processed")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != ErrCodeIdempotencyConflict {
		t.Fatalf("code = %q", resp.Code)
	}
	if resp.Message != "request already processed" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.RequestID == "" {
		t.Fatal("request_id missing from envelope")
	}
	if resp.RequestID != w.Header().Get("X-Request-ID") {
		t.Fatal("envelope request_id differs from header")
	}
}

func TestFail_AbortsChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	reached := false
	r.GET("/x", func(c *gin.Context) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nope")
	}, func(c *gin.Context) {
		reached = true
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if reached {
		t.Fatal("handler after fail() still ran")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestOk_WritesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"id": "abc"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "abc" {
		t.Fatalf("body = %v", body)
	}
}
