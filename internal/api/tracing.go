package api

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (s *Server) withTracing(next http.Handler) http.Handler {
	if s.tracer == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeLabel(r.URL.Path)
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
		)
		if jobID := jobIDFromPath(r.URL.Path); jobID != "" {
			span.SetAttributes(attribute.String("job.id", jobID))
		}
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jobIDFromPath pulls the id segment out of the status and download
// routes so poll and download spans can be correlated by job.
func jobIDFromPath(path string) string {
	for _, prefix := range []string{"/api/status/", "/api/download/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok && !strings.Contains(rest, "/") {
			return rest
		}
	}
	return ""
}
