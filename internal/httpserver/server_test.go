package httpserver

import (
	"net/http"
	"testing"
	"time"
)

func TestNewAppliesWriteTimeout(t *testing.T) {
	srv := New(8081, http.NotFoundHandler(), time.Minute)
	if srv.Addr() != ":8081" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
	if srv.inner.WriteTimeout != time.Minute {
		t.Fatalf("expected 1m write timeout got %v", srv.inner.WriteTimeout)
	}

	srv = New(8081, http.NotFoundHandler(), 0)
	if srv.inner.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("expected default write timeout got %v", srv.inner.WriteTimeout)
	}
}
