package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveCompressed(t *testing.T, cfg CompressionConfig, handler http.Handler, req *http.Request) *http.Response {
	t.Helper()

	rec := httptest.NewRecorder()
	Compression(cfg)(handler).ServeHTTP(rec, req)
	return rec.Result()
}

func gunzipBody(t *testing.T, r io.Reader) string {
	t.Helper()

	gr, err := gzip.NewReader(r)
	require.NoError(t, err)
	defer gr.Close()

	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	return string(body)
}

func htmlHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func TestCompression_RoundTrip(t *testing.T) {
	body := strings.Repeat("popup market on the pier! ", 1000)

	tests := []struct {
		name           string
		acceptEncoding string
		level          int
		wantGzip       bool
	}{
		{name: "client accepts gzip", acceptEncoding: "gzip, deflate", level: 6, wantGzip: true},
		{name: "client does not accept gzip", acceptEncoding: "deflate", level: 6, wantGzip: false},
		{name: "no accept-encoding header", acceptEncoding: "", level: 6, wantGzip: false},
		{name: "fastest level", acceptEncoding: "gzip", level: 1, wantGzip: true},
		{name: "best level", acceptEncoding: "gzip", level: 9, wantGzip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			resp := serveCompressed(t, CompressionConfig{Level: tt.level}, htmlHandler(body), req)
			defer resp.Body.Close()

			if tt.wantGzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
				assert.Empty(t, resp.Header.Get("Content-Length"))
				assert.Equal(t, "Accept-Encoding", resp.Header.Get("Vary"))
				assert.Equal(t, body, gunzipBody(t, resp.Body))
				return
			}

			assert.NotEqual(t, "gzip", resp.Header.Get("Content-Encoding"))
			plain, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, body, string(plain))
		})
	}
}

func TestCompression_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		withBody bool
		wantGzip bool
	}{
		{name: "200 ok", status: http.StatusOK, withBody: true, wantGzip: true},
		{name: "404 not found", status: http.StatusNotFound, withBody: true, wantGzip: true},
		{name: "500 internal error", status: http.StatusInternalServerError, withBody: true, wantGzip: true},
		{name: "204 no content", status: http.StatusNoContent, wantGzip: false},
		{name: "304 not modified", status: http.StatusNotModified, wantGzip: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.withBody {
					w.Header().Set("Content-Type", "text/html")
				}
				w.WriteHeader(tt.status)
				if tt.withBody {
					_, _ = w.Write([]byte("popup closed for the season"))
				}
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")

			resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.wantGzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
			} else {
				assert.NotEqual(t, "gzip", resp.Header.Get("Content-Encoding"))
			}
		})
	}
}

func TestCompression_ContentTypes(t *testing.T) {
	tests := []struct {
		contentType string
		wantGzip    bool
	}{
		{contentType: "text/html", wantGzip: true},
		{contentType: "text/html; charset=utf-8", wantGzip: true},
		{contentType: "application/json", wantGzip: true},
		{contentType: "image/svg+xml", wantGzip: true},
		{contentType: "image/png", wantGzip: false},
		{contentType: "application/zip", wantGzip: false},
		{contentType: "video/mp4", wantGzip: false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("payload"))
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")

			resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
			defer resp.Body.Close()

			if tt.wantGzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
			} else {
				assert.NotEqual(t, "gzip", resp.Header.Get("Content-Encoding"))
			}
		})
	}
}

func TestCompression_MinSize(t *testing.T) {
	t.Run("small body stays uncompressed and intact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6, MinSize: 1024}, htmlHandler("tiny"), req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Content-Encoding"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "tiny", string(body))
	})

	t.Run("chunked writes crossing the threshold compress", func(t *testing.T) {
		chunk := strings.Repeat("x", 400)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			for range 3 {
				_, _ = w.Write([]byte(chunk))
			}
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6, MinSize: 1024}, handler, req)
		defer resp.Body.Close()

		assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
		assert.Equal(t, strings.Repeat(chunk, 3), gunzipBody(t, resp.Body))
	})
}

func TestCompression_SniffsUnsetContentType(t *testing.T) {
	t.Run("sniffed html compresses", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<!DOCTYPE html><html><body>popups</body></html>"))
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
		defer resp.Body.Close()

		assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	})

	t.Run("sniffed png passes through", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\npretend image data"))
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
		defer resp.Body.Close()

		assert.Empty(t, resp.Header.Get("Content-Encoding"))
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})
}

func TestCompression_SkipsHeadRequests(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp := serveCompressed(t, CompressionConfig{Level: 6}, htmlHandler(""), req)
	defer resp.Body.Close()

	assert.NotEqual(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestCompression_QValues(t *testing.T) {
	tests := []struct {
		acceptEncoding string
		wantGzip       bool
	}{
		{acceptEncoding: "gzip;q=1", wantGzip: true},
		{acceptEncoding: "gzip;q=0.5", wantGzip: true},
		{acceptEncoding: "gzip;q=0", wantGzip: false},
		{acceptEncoding: "gzip; q=0.000", wantGzip: false},
		{acceptEncoding: "deflate, gzip", wantGzip: true},
		{acceptEncoding: "deflate;q=0.5, gzip;q=0", wantGzip: false},
		{acceptEncoding: "deflate", wantGzip: false},
	}

	for _, tt := range tests {
		t.Run(tt.acceptEncoding, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)

			resp := serveCompressed(t, CompressionConfig{Level: 6}, htmlHandler("hello popups"), req)
			defer resp.Body.Close()

			if tt.wantGzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
			} else {
				assert.NotEqual(t, "gzip", resp.Header.Get("Content-Encoding"))
			}
		})
	}
}

func TestCompression_RespectsExistingEncoding(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("already compressed"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp := serveCompressed(t, CompressionConfig{Level: 6}, handler, req)
	defer resp.Body.Close()

	assert.Equal(t, "br", resp.Header.Get("Content-Encoding"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "already compressed", string(body))
}

func TestCompression_FlushSendsUndecidedBodyPlain(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("first chunk "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("second chunk"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp := serveCompressed(t, CompressionConfig{Level: 6, MinSize: 1 << 20}, handler, req)
	defer resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "first chunk second chunk", string(body))
}
