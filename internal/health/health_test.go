package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	New().Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := decodeResult(t, rec); body.Status != "ok" {
		t.Errorf("body status = %q, want ok", body.Status)
	}
}

func TestReadyzAllPass(t *testing.T) {
	t.Parallel()

	h := New(
		Checker{Name: "cache", Check: func(context.Context) error { return nil }},
		Checker{Name: "catalog", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	body := decodeResult(t, rec)
	if body.Checks["cache"] != "ok" || body.Checks["catalog"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyzFailingChecker(t *testing.T) {
	t.Parallel()

	h := New(
		Checker{Name: "catalog", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "cache", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	body := decodeResult(t, rec)
	if body.Status != "fail" {
		t.Errorf("body status = %q, want fail", body.Status)
	}
	if body.Checks["catalog"] != "fail: connection refused" {
		t.Errorf("catalog check = %q", body.Checks["catalog"])
	}
	if body.Checks["cache"] != "ok" {
		t.Errorf("cache check = %q", body.Checks["cache"])
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	New().Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no checkers", rec.Code)
	}
}

func TestReadyzRespectsCancellation(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDirWritable(t *testing.T) {
	t.Parallel()

	t.Run("writable", func(t *testing.T) {
		t.Parallel()
		c := DirWritable("cache", t.TempDir())
		if err := c.Check(context.Background()); err != nil {
			t.Fatalf("Check: %v", err)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		t.Parallel()
		c := DirWritable("cache", filepath.Join(t.TempDir(), "does-not-exist"))
		if err := c.Check(context.Background()); err == nil {
			t.Fatal("Check passed for a missing directory")
		}
	})
}
