package tracing

import (
	"context"
	"strings"
	"testing"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	provider, err := NewTracerProvider(context.Background(), TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got: %v", err)
	}
	if provider.Enabled() {
		t.Fatal("expected provider to report disabled")
	}

	_, span := provider.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsSampled() {
		t.Fatal("disabled provider must not sample")
	}
	span.End()

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestTracerConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      TracerConfig
		expectedErr string
	}{
		{
			name:        "missing service name",
			config:      TracerConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: 1},
			expectedErr: "service name is required",
		},
		{
			name:        "missing endpoint",
			config:      TracerConfig{Enabled: true, ServiceName: "docctl", SampleRate: 1},
			expectedErr: "OTLP endpoint is required",
		},
		{
			name:        "negative sample rate",
			config:      TracerConfig{Enabled: true, ServiceName: "docctl", Endpoint: "localhost:4317", SampleRate: -0.1},
			expectedErr: "sample rate must be between 0 and 1",
		},
		{
			name:        "sample rate above one",
			config:      TracerConfig{Enabled: true, ServiceName: "docctl", Endpoint: "localhost:4317", SampleRate: 1.5},
			expectedErr: "sample rate must be between 0 and 1",
		},
		{
			name:   "disabled ignores fields",
			config: TracerConfig{SampleRate: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectedErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.expectedErr) {
				t.Fatalf("error = %v, want %q", err, tt.expectedErr)
			}
			if _, err := NewTracerProvider(context.Background(), tt.config); err == nil {
				t.Fatal("NewTracerProvider accepted an invalid config")
			}
		})
	}
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily so no collector is needed.
	provider, err := NewTracerProvider(context.Background(), TracerConfig{
		ServiceName: "docctl",
		Endpoint:    "localhost:4317",
		SampleRate:  1,
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("NewTracerProvider() error = %v", err)
	}
	if !provider.Enabled() {
		t.Fatal("expected provider to report enabled")
	}
	_ = provider.Shutdown(context.Background())
}
