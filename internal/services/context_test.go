package services_test

import (
	"context"
	"testing"

	"quizline/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemIndex(ctx, 3)
	ctx = services.WithTopic(ctx, "Rivers")
	ctx = services.WithStage(ctx, "queue-approval")
	ctx = services.WithRequestID(ctx, "req-123")

	if index, ok := services.ItemIndexFromContext(ctx); !ok || index != 3 {
		t.Fatalf("unexpected item index: %v %v", index, ok)
	}
	if topic, ok := services.TopicFromContext(ctx); !ok || topic != "Rivers" {
		t.Fatalf("unexpected topic: %v %v", topic, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "queue-approval" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithTopic(ctx, "")
	ctx = services.WithItemIndex(ctx, -1)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.TopicFromContext(ctx); ok {
		t.Fatal("expected no topic value")
	}
	if _, ok := services.ItemIndexFromContext(ctx); ok {
		t.Fatal("expected no item index")
	}
}
