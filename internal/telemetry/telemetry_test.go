package telemetry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/szibis/logrelay/internal/logging"
)

var testService = Service{
	Name:      "logrelay-test",
	Version:   "1.0.0",
	Queue:     "relay",
	Store:     "wal",
	Watermark: "atomic",
	StartSeq:  math.MaxUint64,
}

func TestInit_Disabled(t *testing.T) {
	tel, err := Init(context.Background(), Config{}, testService)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel != nil {
		t.Error("expected nil telemetry when endpoint is empty")
	}
}

func TestInit_Protocols(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		protocol string
	}{
		{"default grpc", "localhost:4317", ""},
		{"http", "localhost:4318", "http"},
		// Unknown protocols fall through to gRPC.
		{"unknown", "localhost:4317", "invalid-protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Endpoint:     tt.endpoint,
				Protocol:     tt.protocol,
				Insecure:     true,
				Compression:  "gzip",
				Headers:      map[string]string{"x-tenant": "a"},
				RetryEnabled: tt.protocol != "http",
			}
			// No collector is listening; setup must still succeed.
			tel, err := Init(context.Background(), cfg, testService)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tel == nil {
				t.Fatal("expected non-nil telemetry")
			}
			defer tel.Shutdown(context.Background())

			if !tel.Enabled() {
				t.Error("expected telemetry to be enabled")
			}
			if tel.Logger() == nil {
				t.Error("expected logger to be non-nil")
			}
		})
	}
}

func TestInit_InstanceID(t *testing.T) {
	cfg := Config{Endpoint: "localhost:4317", Insecure: true}

	tel, err := Init(context.Background(), cfg, testService)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tel.Shutdown(context.Background())
	if len(tel.InstanceID()) != 36 {
		t.Errorf("generated instance id = %q, want a UUID", tel.InstanceID())
	}

	svc := testService
	svc.InstanceID = "relay-0"
	tel2, err := Init(context.Background(), cfg, svc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tel2.Shutdown(context.Background())
	if tel2.InstanceID() != "relay-0" {
		t.Errorf("InstanceID() = %q, want relay-0", tel2.InstanceID())
	}
}

func TestTelemetry_Nil(t *testing.T) {
	var tel *Telemetry
	if tel.Enabled() {
		t.Error("nil telemetry should not be enabled")
	}
	if tel.Logger() != nil {
		t.Error("nil telemetry logger should be nil")
	}
	if tel.InstanceID() != "" {
		t.Error("nil telemetry should have no instance id")
	}
	if tel.ShutdownTimeout() != 5*time.Second {
		t.Errorf("nil telemetry shutdown timeout = %v, want 5s", tel.ShutdownTimeout())
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("nil telemetry shutdown should not error: %v", err)
	}
	if hook := tel.NewLogHook(); hook != nil {
		t.Error("nil telemetry should return nil hook")
	}
}

func TestNewLogHook_Emits(t *testing.T) {
	cfg := Config{
		Endpoint: "localhost:4317",
		Insecure: true,
	}
	tel, err := Init(context.Background(), cfg, testService)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tel.Shutdown(context.Background())

	hook := tel.NewLogHook()
	if hook == nil {
		t.Fatal("expected non-nil hook")
	}

	// Records are batched; the exporter fails to send without a collector.
	hook(logging.LevelInfo, "delivered", map[string]interface{}{
		"queue": "relay",
		"seq":   uint64(42),
	})
	hook(logging.LevelWarn, "catch-up failed", map[string]interface{}{
		"error": errors.New("boom"),
		"after": 250 * time.Millisecond,
	})
	hook(logging.LevelDebug, "debug message", nil)
}

func TestToOTELSeverity(t *testing.T) {
	tests := []struct {
		level    logging.Level
		expected string
	}{
		{logging.LevelDebug, "DEBUG"},
		{logging.LevelInfo, "INFO"},
		{logging.LevelWarn, "WARN"},
		{logging.LevelError, "ERROR"},
		{logging.LevelFatal, "FATAL"},
		{logging.Level("TRACE"), "INFO"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			sev := toOTELSeverity(tt.level)
			if sev.String() != tt.expected {
				t.Errorf("toOTELSeverity(%s) = %s, want %s", tt.level, sev.String(), tt.expected)
			}
		})
	}
}

func TestToOTELValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		kind  otellog.Kind
		str   string
	}{
		{"string", "hello", otellog.KindString, "hello"},
		{"int", 42, otellog.KindInt64, ""},
		{"int64", int64(100), otellog.KindInt64, ""},
		{"uint64", uint64(7), otellog.KindInt64, ""},
		{"uint64 overflow", uint64(math.MaxUint64), otellog.KindString, "18446744073709551615"},
		{"float64", 3.14, otellog.KindFloat64, ""},
		{"bool", true, otellog.KindBool, ""},
		{"duration", 1500 * time.Millisecond, otellog.KindString, "1.5s"},
		{"error", errors.New("disk full"), otellog.KindString, "disk full"},
		{"nil", nil, otellog.KindString, "<nil>"},
		{"struct", struct{ A int }{1}, otellog.KindString, "{1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := toOTELValue(tt.input)
			if v.Kind() != tt.kind {
				t.Fatalf("kind = %v, want %v", v.Kind(), tt.kind)
			}
			if tt.str != "" && v.AsString() != tt.str {
				t.Errorf("value = %q, want %q", v.AsString(), tt.str)
			}
		})
	}
}

func TestToOTELAttributes_Sorted(t *testing.T) {
	kvs := toOTELAttributes(map[string]interface{}{"queue": "q", "error": "e", "seq": 1})
	want := []string{"error", "queue", "seq"}
	if len(kvs) != len(want) {
		t.Fatalf("got %d attributes, want %d", len(kvs), len(want))
	}
	for i, k := range want {
		if kvs[i].Key != k {
			t.Errorf("attribute %d = %q, want %q", i, kvs[i].Key, k)
		}
	}
}

func TestService_Attributes(t *testing.T) {
	svc := testService
	svc.InstanceID = "relay-0"
	got := map[string]string{}
	for _, kv := range svc.attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}

	want := map[string]string{
		string(semconv.ServiceNameKey):       "logrelay-test",
		string(semconv.ServiceVersionKey):    "1.0.0",
		string(semconv.ServiceInstanceIDKey): "relay-0",
		string(AttrQueue):                    "relay",
		string(AttrStore):                    "wal",
		string(AttrWatermark):                "atomic",
		string(AttrStartSeq):                 "18446744073709551615",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	// Optional pipeline fields are left out when unknown.
	bare := Service{Name: "logrelay", InstanceID: "x"}
	for _, kv := range bare.attributes() {
		if kv.Key == AttrStore || kv.Key == AttrWatermark || kv.Key == AttrQueue {
			t.Errorf("unexpected attribute %s on a bare service", kv.Key)
		}
	}
}

// collectGauge returns the single data point of the named gauge in the relay
// scope, and whether it was found.
func collectGauge(t *testing.T, reader *metric.ManualReader, name string) (int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != Scope {
			continue
		}
		if v, ok := sm.Scope.Attributes.Value(AttrQueue); !ok || v.AsString() != "relay" {
			t.Errorf("scope queue attribute = %v, want relay", v.Emit())
		}
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			g, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				t.Fatalf("%s data is %T, want an int64 gauge", name, m.Data)
			}
			if len(g.DataPoints) != 1 {
				return 0, false
			}
			return g.DataPoints[0].Value, true
		}
	}
	return 0, false
}

func TestObserveQueue(t *testing.T) {
	reader := metric.NewManualReader()
	tel := newTelemetry(testService, 0, nil, metric.NewMeterProvider(metric.WithReader(reader)))
	defer tel.Shutdown(context.Background())

	state := QueueState{QueuedSize: 12, Length: 3, Faulted: true, DeliveredSeq: 40, StoreLastSeq: 55}
	unregister, err := tel.ObserveQueue(func() QueueState { return state })
	if err != nil {
		t.Fatalf("ObserveQueue() error = %v", err)
	}

	for name, want := range map[string]int64{
		"logrelay.queue.queued_size":   12,
		"logrelay.queue.length":        3,
		"logrelay.queue.faulted":       1,
		"logrelay.queue.reading":       0,
		"logrelay.relay.delivered_seq": 40,
		"logrelay.relay.lag":           15,
	} {
		got, ok := collectGauge(t, reader, name)
		if !ok || got != want {
			t.Errorf("%s = %d (found %t), want %d", name, got, ok, want)
		}
	}

	// Each collection reads fresh state.
	state.Faulted = false
	state.DeliveredSeq = 55
	if got, _ := collectGauge(t, reader, "logrelay.relay.lag"); got != 0 {
		t.Errorf("lag after catching up = %d, want 0", got)
	}
	if got, _ := collectGauge(t, reader, "logrelay.queue.faulted"); got != 0 {
		t.Errorf("faulted after catching up = %d, want 0", got)
	}

	if err := unregister(); err != nil {
		t.Fatalf("unregister error = %v", err)
	}
	if _, ok := collectGauge(t, reader, "logrelay.queue.length"); ok {
		t.Error("gauges still observed after unregister")
	}
}

func TestObserveQueue_Disabled(t *testing.T) {
	var tel *Telemetry
	unregister, err := tel.ObserveQueue(func() QueueState {
		t.Error("state read on disabled telemetry")
		return QueueState{}
	})
	if err != nil {
		t.Fatalf("ObserveQueue() error = %v", err)
	}
	if err := unregister(); err != nil {
		t.Errorf("unregister error = %v", err)
	}
}

func TestQueueState_Lag(t *testing.T) {
	tests := []struct {
		delivered, last, want uint64
	}{
		{0, 0, 0},
		{10, 25, 15},
		// A truncated or reopened store can report less than was delivered.
		{30, 20, 0},
	}
	for _, tt := range tests {
		s := QueueState{DeliveredSeq: tt.delivered, StoreLastSeq: tt.last}
		if got := s.Lag(); got != tt.want {
			t.Errorf("Lag(delivered=%d, last=%d) = %d, want %d", tt.delivered, tt.last, got, tt.want)
		}
	}
	if clampInt64(math.MaxUint64) != math.MaxInt64 {
		t.Error("clampInt64 must saturate")
	}
}

func TestShutdown_ReverseOrderOnce(t *testing.T) {
	var order []string
	tel := &Telemetry{shutdownFuncs: []func(context.Context) error{
		func(context.Context) error { order = append(order, "logs"); return nil },
		func(context.Context) error { order = append(order, "metrics"); return errors.New("flush failed") },
	}}
	if err := tel.Shutdown(context.Background()); err == nil {
		t.Error("expected the metrics flush error")
	}
	if len(order) != 2 || order[0] != "metrics" || order[1] != "logs" {
		t.Errorf("shutdown order = %v, want [metrics logs]", order)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if len(order) != 2 {
		t.Errorf("second Shutdown() ran providers again: %v", order)
	}
}
