package otel_test

import (
	"context"
	"testing"

	toolotel "github.com/petal-labs/toolrun/otel"
)

func TestSetupTracingRequiresEndpoint(t *testing.T) {
	if _, err := toolotel.SetupTracing(context.Background(), toolotel.TracingConfig{}); err == nil {
		t.Error("empty endpoint should be rejected")
	}
}

func TestSetupTracingShutdown(t *testing.T) {
	shutdown, err := toolotel.SetupTracing(context.Background(), toolotel.TracingConfig{
		Endpoint: "localhost:4318",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}

	// No spans were exported; shutdown should flush nothing and return.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error = %v", err)
	}
}
