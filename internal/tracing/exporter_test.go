package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewFileExporter_CreatesParentDirectories(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "nested", "dir", "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	_, err = os.Stat(tracePath)
	require.NoError(t, err, "trace file should be created with parent dirs")

	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestFileExporter_AppendsAndSkipsForeignLines(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	require.NoError(t, os.WriteFile(tracePath, []byte(`{"existing": "data"}`+"\n"), 0644))

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	start := time.Now()
	stub := tracetest.SpanStub{
		Name:      "notification.post",
		SpanKind:  trace.SpanKindProducer,
		StartTime: start,
		EndTime:   start.Add(1500 * time.Microsecond),
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{2},
		}),
		Parent: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{3},
		}),
		Attributes: []attribute.KeyValue{
			attribute.String("notification.name", "Notif"),
			attribute.Int("notification.matched", 2),
		},
		Status: sdktrace.Status{Code: codes.Error, Description: "boom"},
		Events: []sdktrace.Event{{Name: "queued", Time: start}},
	}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records, err := ReadRecords(tracePath)
	require.NoError(t, err)
	require.Len(t, records, 1, "pre-existing line is not a span record")

	rec := records[0]
	require.Equal(t, trace.TraceID{1}.String(), rec.TraceID)
	require.Equal(t, trace.SpanID{2}.String(), rec.SpanID)
	require.Equal(t, trace.SpanID{3}.String(), rec.ParentSpanID)
	require.Equal(t, "notification.post", rec.Name)
	require.Equal(t, "producer", rec.Kind)
	require.Equal(t, "ERROR", rec.Status)
	require.Equal(t, "boom", rec.StatusMsg)
	require.InDelta(t, 1.5, rec.DurationMs, 0.001)
	require.Equal(t, "Notif", rec.Attributes["notification.name"])
	// JSON numbers decode as float64
	require.Equal(t, float64(2), rec.Attributes["notification.matched"])
	require.Len(t, rec.Events, 1)
	require.Equal(t, "queued", rec.Events[0].Name)
}

func TestFileExporter_EmptyBatch(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)
	defer func() { _ = exporter.Shutdown(context.Background()) }()

	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
}

func TestFileExporter_ExportAfterShutdown(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()), "second shutdown is a no-op")

	stub := tracetest.SpanStub{Name: "late"}
	require.Error(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
}

func TestReadRecords_MissingFile(t *testing.T) {
	_, err := ReadRecords(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}
