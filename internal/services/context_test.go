package services_test

import (
	"context"
	"testing"

	"fragmenter/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithItemName(ctx, "tower.ifc")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if name, ok := services.ItemNameFromContext(ctx); !ok || name != "tower.ifc" {
		t.Fatalf("unexpected item name: %v %v", name, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankItemNamePreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemName(ctx, "")
	if _, ok := services.ItemNameFromContext(ctx); ok {
		t.Fatal("expected no item name value")
	}
}
