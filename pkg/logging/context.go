package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	SearchIDKey    = "search_id"
	StreamNameKey  = "stream_name"
	ServiceNameKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithSearchID(ctx context.Context, searchID string) context.Context {
	return context.WithValue(ctx, SearchIDKey, searchID)
}

func WithStreamName(ctx context.Context, streamName string) context.Context {
	return context.WithValue(ctx, StreamNameKey, streamName)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetSearchID(ctx context.Context) string {
	if searchID, ok := ctx.Value(SearchIDKey).(string); ok {
		return searchID
	}
	return ""
}

func GetStreamName(ctx context.Context) string {
	if streamName, ok := ctx.Value(StreamNameKey).(string); ok {
		return streamName
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if searchID := GetSearchID(ctx); searchID != "" {
		fields = append(fields, "search_id", searchID)
	}

	if streamName := GetStreamName(ctx); streamName != "" {
		fields = append(fields, "stream_name", streamName)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
