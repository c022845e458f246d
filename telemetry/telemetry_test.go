package telemetry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"livescribe/log"
	"livescribe/recognizer"
	"livescribe/session"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := make(map[string]map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data %T", m.Name, m.Data)
			}
			points := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				var key string
				for _, kv := range dp.Attributes.ToSlice() {
					key = string(kv.Key) + "=" + kv.Value.Emit()
				}
				points[key] = dp.Value
			}
			out[m.Name] = points
		}
	}
	return out
}

func TestRecorderCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec, err := NewRecorder(provider.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	updates := []session.Update{
		{Kind: session.UpdateStart, Locale: "hi-IN"},
		{Kind: session.UpdateReady, Locale: "hi-IN"},
		{Kind: session.UpdatePartial, Text: "नम"},
		{Kind: session.UpdatePartial, Text: "नमस्ते"},
		{Kind: session.UpdateFinal, Text: "नमस्ते"},
		{Kind: session.UpdateStart, Locale: "en-US"},
		{Kind: session.UpdateError, Code: recognizer.CodeNoMatch},
	}
	for _, u := range updates {
		rec.Observe(u)
	}

	got := collect(t, reader)
	want := map[string]map[string]int64{
		"livescribe.sessions.started": {"locale=hi-IN": 1, "locale=en-US": 1},
		"livescribe.results":          {"kind=partial": 2, "kind=final": 1},
		"livescribe.errors":           {"code=7": 1},
	}
	for name, points := range want {
		for key, value := range points {
			if got[name][key] != value {
				t.Errorf("%s{%s} = %d, want %d", name, key, got[name][key], value)
			}
		}
	}
}

func TestServerExposesCounters(t *testing.T) {
	log.InitWriter(io.Discard)
	srv, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	rec, err := NewRecorder(nil)
	if err != nil {
		t.Fatal(err)
	}
	rec.Observe(session.Update{Kind: session.UpdateStart, Locale: "ja-JP"})

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	text := string(body)
	if !strings.Contains(text, "livescribe_sessions_started") || !strings.Contains(text, `locale="ja-JP"`) {
		t.Errorf("metrics output missing counter:\n%s", text)
	}
}

func TestStartBadBind(t *testing.T) {
	log.InitWriter(io.Discard)
	if _, err := Start("256.0.0.1:bad"); err == nil {
		t.Fatal("expected listen error")
	}
}
