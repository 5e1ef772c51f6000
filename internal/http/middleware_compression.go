package httpx

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// compressibleTypes lists the media types worth running through gzip. Binary
// formats ship pre-compressed and pass through untouched.
var compressibleTypes = map[string]bool{
	"text/html":                true,
	"text/css":                 true,
	"text/plain":               true,
	"text/xml":                 true,
	"text/javascript":          true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"application/json":         true,
	"application/xml":          true,
	"application/rss+xml":      true,
	"application/atom+xml":     true,
	"image/svg+xml":            true,
}

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	// Level is the gzip level, 1 (fastest) through 9 (best). Values outside
	// that range fall back to gzip.DefaultCompression.
	Level int
	// MinSize is the body size in bytes below which responses are sent
	// uncompressed. Zero compresses everything.
	MinSize int
	Logger  *slog.Logger
}

// Compression returns a middleware that gzip-compresses response bodies for
// clients that accept it. HEAD requests, bodyless status codes, responses
// with a pre-set Content-Encoding, and non-compressible content types pass
// through untouched.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	writers := &sync.Pool{
		New: func() any {
			w, err := gzip.NewWriterLevel(io.Discard, level)
			if err != nil {
				return gzip.NewWriter(io.Discard)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			// Caches must key on the encoding whether or not we compress.
			w.Header().Add("Vary", "Accept-Encoding")

			cw := &compressionWriter{
				ResponseWriter: w,
				writers:        writers,
				minSize:        cfg.MinSize,
				logger:         cfg.Logger,
				ctx:            r.Context(),
			}
			next.ServeHTTP(cw, r)
			cw.finish()
		})
	}
}

// compressionWriter defers the compress-or-not decision until the response
// shape is known: status and content type at header time, body size once
// MinSize bytes have been seen.
type compressionWriter struct {
	http.ResponseWriter
	writers *sync.Pool
	minSize int
	logger  *slog.Logger
	ctx     context.Context

	status      int
	headerSent  bool
	passthrough bool
	gz          *gzip.Writer
	buf         []byte
}

// WriteHeader records the status and rules compression out where the status,
// an existing Content-Encoding, or the content type demand it. While the
// decision is still open the header is held back, so a below-threshold body
// can go out uncompressed.
func (w *compressionWriter) WriteHeader(status int) {
	if w.status != 0 || w.headerSent {
		return
	}
	w.status = status

	if !compressibleStatus(status) || w.Header().Get("Content-Encoding") != "" {
		w.sendPlain()
		return
	}
	if ct := w.Header().Get("Content-Type"); ct != "" && !compressibleContentType(ct) {
		w.sendPlain()
	}
}

func (w *compressionWriter) Write(b []byte) (int, error) {
	if w.gz != nil {
		return w.gz.Write(b)
	}
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}

	if w.status == 0 {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
		if w.passthrough {
			return w.ResponseWriter.Write(b)
		}
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) >= w.minSize {
		return len(b), w.startGzip()
	}
	return len(b), nil
}

// finish flushes whatever the decision ended up being. Bodies that stayed
// below the threshold go out uncompressed.
func (w *compressionWriter) finish() {
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.logger.ErrorContext(w.ctx, "closing gzip writer failed", "error", err)
		}
		gz := w.gz
		w.gz = nil
		gz.Reset(io.Discard)
		w.writers.Put(gz)
		return
	}
	if w.passthrough || (w.status == 0 && len(w.buf) == 0) {
		return
	}
	w.sendPlain()
}

// startGzip commits to compression: headers go out, buffered body is fed
// through a pooled writer.
func (w *compressionWriter) startGzip() error {
	// Sniff before the body is gzipped, or net/http would label the
	// compressed bytes instead.
	if w.Header().Get("Content-Type") == "" && len(w.buf) > 0 {
		w.Header().Set("Content-Type", http.DetectContentType(w.buf))
	}
	w.Header().Set("Content-Encoding", "gzip")
	// Any declared length refers to the uncompressed body.
	w.Header().Del("Content-Length")
	if !w.headerSent {
		w.headerSent = true
		w.ResponseWriter.WriteHeader(w.status)
	}

	gz := w.writers.Get().(*gzip.Writer)
	gz.Reset(w.ResponseWriter)
	w.gz = gz

	if len(w.buf) > 0 {
		_, err := gz.Write(w.buf)
		w.buf = nil
		return err
	}
	return nil
}

// sendPlain abandons compression and forwards the status and any buffered
// body as-is.
func (w *compressionWriter) sendPlain() {
	w.passthrough = true
	if !w.headerSent {
		w.headerSent = true
		if w.status == 0 {
			w.status = http.StatusOK
		}
		w.ResponseWriter.WriteHeader(w.status)
	}
	if len(w.buf) > 0 {
		// A failed write here means the client went away.
		_, _ = w.ResponseWriter.Write(w.buf)
		w.buf = nil
	}
}

// Flush implements http.Flusher. Streaming defeats the size threshold, so an
// undecided response is flushed uncompressed.
func (w *compressionWriter) Flush() {
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			w.logger.ErrorContext(w.ctx, "flushing gzip writer failed", "error", err)
		}
	} else if !w.passthrough {
		w.sendPlain()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket support.
func (w *compressionWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker not supported")
}

// Push implements http.Pusher for HTTP/2 server push support.
func (w *compressionWriter) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := w.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return errors.New("http.Pusher not supported")
}

func compressibleStatus(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

func compressibleContentType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return compressibleTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip. Only an
// explicit zero q-value opts out; other q-values express preference, not
// refusal.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		encoding, params, hasParams := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(encoding), "gzip") {
			continue
		}
		if !hasParams {
			return true
		}
		for _, param := range strings.Split(params, ";") {
			key, value, _ := strings.Cut(strings.TrimSpace(param), "=")
			if strings.EqualFold(strings.TrimSpace(key), "q") {
				return !refusedQValue(strings.TrimSpace(value))
			}
		}
		return true
	}
	return false
}

func refusedQValue(q string) bool {
	f, err := strconv.ParseFloat(q, 64)
	if err != nil {
		return false
	}
	return f == 0
}
