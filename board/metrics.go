package board

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	intentMetricsMessage = "board.intent.metrics"
	intentSpanPrefix     = "board."
	tracerName           = "github.com/kavia-common/collaborative-task-board-139157-139166/board"
)

// intentMetrics records one user intent as a span plus a single log entry.
type intentMetrics struct {
	logger *log.Logger
	span   trace.Span
	intent string
	start  time.Time

	boardID         string
	taskID          string
	gatewayDuration time.Duration
	rolledBack      bool
	errorStage      string
}

func newIntentMetrics(ctx context.Context, tracer trace.Tracer, logger *log.Logger, intent string) (context.Context, *intentMetrics) {
	ctx, span := tracer.Start(ctx, intentSpanPrefix+intent, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &intentMetrics{
		logger: logger,
		span:   span,
		intent: intent,
		start:  time.Now(),
	}
}

func (m *intentMetrics) SetBoard(id string) { m.boardID = id }

func (m *intentMetrics) SetTask(id string) { m.taskID = id }

func (m *intentMetrics) ObserveGateway(d time.Duration) {
	if d <= 0 {
		return
	}
	m.gatewayDuration += d
}

func (m *intentMetrics) SetRolledBack(v bool) { m.rolledBack = v }

func (m *intentMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// End closes the span and writes the metrics entry.
func (m *intentMetrics) End(err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("board.intent", m.intent),
		attribute.Float64("board.intent.total_ms", total),
		attribute.Bool("board.intent.rolled_back", m.rolledBack),
	}
	fields := log.Fields{
		"intent":      m.intent,
		"total_ms":    total,
		"rolled_back": m.rolledBack,
	}
	if m.boardID != "" {
		attrs = append(attrs, attribute.String("board.id", m.boardID))
		fields["board"] = m.boardID
	}
	if m.taskID != "" {
		attrs = append(attrs, attribute.String("board.task.id", m.taskID))
		fields["task"] = m.taskID
	}
	if m.gatewayDuration > 0 {
		ms := durationToMillis(m.gatewayDuration)
		attrs = append(attrs, attribute.Float64("board.intent.gateway_ms", ms))
		fields["gateway_ms"] = ms
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("board.intent.error_stage", m.errorStage))
		fields["error_stage"] = m.errorStage
	}

	level := log.InfoLevel
	if err != nil {
		level = log.WarnLevel
		attrs = append(attrs, attribute.String("error.message", err.Error()))
		fields["error"] = err.Error()
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent(intentMetricsMessage, trace.WithAttributes(attrs...))
	m.span.End()

	if m.logger != nil {
		m.logger.WithFields(fields).Log(level, intentMetricsMessage)
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
