package core_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"assetcore/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("")
	svc := newTestService(t, core.WithMetrics(rec))
	ctx := context.Background()

	if _, err := svc.CreateAsset(ctx, owner, core.CreateAssetInput{ID: "a1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateAsset(ctx, owner, core.CreateAssetInput{ID: "a1"}); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	stats := rec.Snapshot()["create_asset"]
	if stats.Success != 1 {
		t.Fatalf("success count = %+v", stats)
	}
	if stats.Error != 1 {
		t.Fatalf("error count = %+v", stats)
	}
	if stats.TotalMS < stats.MaxMS {
		t.Fatalf("total %v below max %v", stats.TotalMS, stats.MaxMS)
	}
	if !strings.HasPrefix(rec.Name(), "workflow_service_metrics_") {
		t.Fatalf("generated name = %s", rec.Name())
	}
}

func TestJSONTracerEmitsSpans(t *testing.T) {
	buf := &bytes.Buffer{}
	tracer := core.NewJSONTracer(buf)
	svc := newTestService(t, core.WithTracer(tracer))
	ctx := context.Background()

	if _, err := svc.CreateAsset(ctx, owner, core.CreateAssetInput{ID: "a1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ApproveAsset(ctx, outsider, "a1"); err == nil {
		t.Fatal("expected denial")
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "create_asset" || entries[0].Status != "success" {
		t.Fatalf("first span = %+v", entries[0])
	}
	if entries[1].Operation != "approve_asset" || entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("second span = %+v", entries[1])
	}
	if !strings.Contains(buf.String(), "create_asset") {
		t.Fatal("spans not written to sink")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := newTestService(t, core.WithMetrics(rec))
	ctx := context.Background()

	if _, err := svc.CreateAsset(ctx, owner, core.CreateAssetInput{ID: "a1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ApproveAsset(ctx, inspector, "a1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.ApproveAsset(ctx, inspector, "a1"); err == nil {
		t.Fatal("expected duplicate approval failure")
	}

	counters, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(counters) == 0 {
		t.Fatal("no metric families registered")
	}

	success := promtestutil.ToFloat64(mustCounter(t, rec, "approve_asset", "success"))
	if success != 1 {
		t.Fatalf("approve success = %v", success)
	}
	failure := promtestutil.ToFloat64(mustCounter(t, rec, "approve_asset", "error"))
	if failure != 1 {
		t.Fatalf("approve error = %v", failure)
	}
}

func mustCounter(t *testing.T, rec *core.PrometheusMetricsRecorder, operation, status string) prometheus.Counter {
	t.Helper()
	counter, err := rec.ResultCounter(operation, status)
	if err != nil {
		t.Fatalf("result counter: %v", err)
	}
	return counter
}

func TestPrometheusRecorderDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := core.NewPrometheusMetricsRecorder(registry); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := core.NewPrometheusMetricsRecorder(registry); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
