package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
)

const (
	requestBodyLogKey  = "http.request.body.summary"
	responseBodyLogKey = "http.response.body.summary"
	maxLoggedBody      = 2048
)

// secretKeys are JSON keys whose values never reach the log.
var secretKeys = []string{"token", "password", "secret"}

func registerLogging(e *echo.Echo) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			user := "anonymous"
			if claims, ok := CurrentUser(c); ok {
				user = claims.Email
			}

			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("user", user),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
				slog.Group("request",
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Any("body", c.Get(requestBodyLogKey)),
				),
				slog.Group("response",
					slog.Int("status", v.Status),
					slog.Any("body", c.Get(responseBodyLogKey)),
				),
			}
			level := slog.LevelInfo
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logging.FromContext(c.Request().Context()).LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: skipBodyDump,
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			if summary := sanitizeBody(reqBody, c.Request().Header.Get(echo.HeaderContentType)); summary != nil {
				c.Set(requestBodyLogKey, summary)
			}
			if summary := sanitizeBody(resBody, c.Response().Header().Get(echo.HeaderContentType)); summary != nil {
				c.Set(responseBodyLogKey, summary)
			}
		},
	}))
}

// skipBodyDump leaves document transfers out of the body dump; they can be
// far larger than anything worth buffering for a log line.
func skipBodyDump(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/download") ||
		(strings.HasSuffix(path, "/upload") && c.Request().Method == http.MethodPost) ||
		strings.HasPrefix(path, "/swagger")
}

func sanitizeBody(body []byte, contentType string) interface{} {
	if len(body) == 0 {
		return nil
	}
	lowered := strings.ToLower(strings.TrimSpace(contentType))

	if strings.HasPrefix(lowered, "application/json") || json.Valid(body) {
		var data interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			return limitJSONSize(sanitizeJSON(data, ""))
		}
	}
	if containsBinaryBytes(body) {
		return "binary"
	}
	return clampString(string(body))
}

func limitJSONSize(value interface{}) interface{} {
	buf, err := json.Marshal(value)
	if err != nil || len(buf) <= maxLoggedBody {
		return value
	}
	return map[string]interface{}{
		"_truncated": true,
		"_preview":   previewJSON(value, 0),
	}
}

func sanitizeJSON(value interface{}, keyHint string) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			lowerKey := strings.ToLower(key)
			if isSecretKey(lowerKey) {
				result[key] = "redacted"
				continue
			}
			result[key] = sanitizeJSON(val, lowerKey)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = sanitizeJSON(item, keyHint)
		}
		return result
	case string:
		if containsBinaryBytes([]byte(v)) {
			return "binary"
		}
		return clampString(v)
	default:
		return v
	}
}

func isSecretKey(key string) bool {
	for _, secret := range secretKeys {
		if strings.Contains(key, secret) {
			return true
		}
	}
	return false
}

// previewJSON keeps the first keys of maps and the first items of lists,
// three levels deep.
func previewJSON(value interface{}, depth int) interface{} {
	const (
		maxDepth   = 3
		maxEntries = 6
		maxSamples = 3
		maxString  = 256
	)
	if depth >= maxDepth {
		return "...(omitted)..."
	}

	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		result := make(map[string]interface{}, maxEntries+1)
		for i, key := range keys {
			if i == maxEntries {
				result["_omitted_fields"] = len(keys) - i
				break
			}
			result[key] = previewJSON(v[key], depth+1)
		}
		return result
	case []interface{}:
		n := min(len(v), maxSamples)
		sample := make([]interface{}, 0, n)
		for _, item := range v[:n] {
			sample = append(sample, previewJSON(item, depth+1))
		}
		return map[string]interface{}{"_total_items": len(v), "_sample": sample}
	case string:
		if len(v) <= maxString {
			return v
		}
		return truncateUTF8(v, maxString) + "...(truncated)"
	default:
		return v
	}
}

func containsBinaryBytes(data []byte) bool {
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return true
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
		data = data[size:]
	}
	return false
}

func clampString(value string) string {
	if len(value) <= maxLoggedBody {
		return value
	}
	return truncateUTF8(value, maxLoggedBody) + "...(truncated)"
}

func truncateUTF8(value string, n int) string {
	out := value[:n]
	for !utf8.ValidString(out) && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}
