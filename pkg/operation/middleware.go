package operation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/go-training/hatena-mcp/pkg/operation"

/*
AddRequestAttributes sets attributes on the current trace span, and if no active span,
logs the attributes via slog for observability fallback. Also logs trace/span id for correlation.
*/
func AddRequestAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		logAttrs := make([]slog.Attr, 0, len(attrs)+3)
		for _, attr := range attrs {
			logAttrs = append(logAttrs, slog.Any(string(attr.Key), attr.Value.AsInterface()))
		}
		logAttrs = append(logAttrs, slog.Bool("observability.fallback", true))
		sc := span.SpanContext()
		if sc.HasTraceID() {
			logAttrs = append(logAttrs, slog.String("trace_id", sc.TraceID().String()))
		}
		if sc.HasSpanID() {
			logAttrs = append(logAttrs, slog.String("span_id", sc.SpanID().String()))
		}
		slog.LogAttrs(ctx, slog.LevelInfo, "mcp tool call", logAttrs...)
		return
	}
	span.SetAttributes(attrs...)
}

// ToolHandlerMiddleware wraps each tool call in a span and records the tool
// name, argument names, status and duration. Argument values are not
// recorded since they may carry user content.
func ToolHandlerMiddleware() server.ToolHandlerMiddleware {
	tracer := otel.Tracer(tracerName)
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ctx, span := tracer.Start(ctx, "mcp.tool/"+req.Params.Name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			start := time.Now()
			res, err := next(ctx, req)
			durationMs := float64(time.Since(start).Microseconds()) / 1000.0

			status := "ok"
			errMsg := toolError(res, err)
			if errMsg != "" {
				status = "error"
				span.SetStatus(codes.Error, errMsg)
			}

			attrs := []attribute.KeyValue{
				attribute.String("mcp.tool", req.Params.Name),
				attribute.StringSlice("mcp.args", argumentNames(req)),
				attribute.String("mcp.status", status),
				attribute.Float64("mcp.duration_ms", durationMs),
			}
			if errMsg != "" {
				attrs = append(attrs, attribute.String("mcp.error", errMsg))
			}
			AddRequestAttributes(ctx, attrs...)

			return res, err
		}
	}
}

func toolError(res *mcp.CallToolResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case res == nil || !res.IsError:
		return ""
	case len(res.Content) == 0:
		return "unknown error with no content"
	}
	if txt, ok := res.Content[0].(mcp.TextContent); ok {
		return txt.Text
	}
	return fmt.Sprintf("unknown error with content type %T", res.Content[0])
}

func argumentNames(req mcp.CallToolRequest) []string {
	args := req.GetArguments()
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
