package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey struct{}

type accessKey struct{}

// accessRecord collects what inner handlers learn about a request for the
// access line written once they return.
type accessRecord struct {
	identity string
}

const (
	requestIDField = "requestID"
	identityField  = "identity"
)

// Init sets up the formatter and level for all log statements. Unknown
// levels fall back to info.
func Init(level string) {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	logrus.SetFormatter(formatter)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

func Default() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}

// ContextWithLogger returns ctx unchanged if it already carries a logger,
// otherwise a child context with a logger bound to a fresh request ID.
func ContextWithLogger(ctx context.Context) (context.Context, *logrus.Entry) {
	if ctx == nil {
		ctx = context.Background()
	}
	if entry := fromContext(ctx); entry != nil {
		return ctx, entry
	}
	entry := logrus.WithField(requestIDField, uuid.NewString())
	return context.WithValue(ctx, contextKey{}, entry), entry
}

// WithIdentity attaches the authenticated user to the request logger and to
// the access line of the enclosing Middleware.
func WithIdentity(ctx context.Context, identity string) context.Context {
	ctx, entry := ContextWithLogger(ctx)
	if rec, ok := ctx.Value(accessKey{}).(*accessRecord); ok {
		rec.identity = identity
	}
	return context.WithValue(ctx, contextKey{}, entry.WithField(identityField, identity))
}

func FromContext(ctx context.Context) *logrus.Entry {
	if entry := fromContext(ctx); entry != nil {
		return entry
	}
	return Default()
}

func RequestID(ctx context.Context) string {
	entry := fromContext(ctx)
	if entry == nil {
		return ""
	}
	id, _ := entry.Data[requestIDField].(string)
	return id
}

func fromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	entry, _ := ctx.Value(contextKey{}).(*logrus.Entry)
	return entry
}

// Middleware binds a request logger, echoes the request ID and writes one
// access log line per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, entry := ContextWithLogger(r.Context())
		w.Header().Set("X-Request-ID", RequestID(ctx))
		rec := &accessRecord{}
		ctx = context.WithValue(ctx, accessKey{}, rec)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   status,
			"duration": time.Since(start).String(),
		}
		if rec.identity != "" {
			fields[identityField] = rec.identity
		}
		entry.WithFields(fields).Info("request")
	})
}
