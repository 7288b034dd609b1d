package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/metrics"
)

// maxLoggedArgument bounds string arguments in MCP request logs.
const maxLoggedArgument = 200

var sensitiveArgumentKeywords = []string{"password", "secret", "token", "key", "credential", "dsn"}

// MCPRequestLogger returns middleware that logs MCP JSON-RPC tool calls and
// counts them per tool. Request bodies are restored for the wrapped handler.
// Pass nil logger to disable logging; tool calls are still counted.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				if logger != nil {
					logger.Error("Failed to read MCP request body", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var call rpcCall
			_ = json.Unmarshal(bodyBytes, &call)
			tool := call.Params.Name

			if logger != nil && call.Method != "" {
				logger.Debug("MCP request",
					zap.String("method", call.Method),
					zap.String("tool", tool),
					zap.Any("arguments", sanitizeArguments(call.Params.Arguments)),
				)
			}

			recorder := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			if call.Method != "tools/call" {
				return
			}

			var reply rpcReply
			if err := json.Unmarshal(recorder.body.Bytes(), &reply); err != nil {
				if logger != nil {
					logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				}
				return
			}

			outcome := "success"
			switch {
			case reply.Error != nil:
				outcome = "error"
			case reply.Result.IsError:
				outcome = "tool_error"
			}
			metrics.MCPToolCallsTotal.WithLabelValues(tool, outcome).Inc()

			if logger == nil {
				return
			}
			if reply.Error != nil {
				logger.Debug("MCP response error",
					zap.String("tool", tool),
					zap.Int("error_code", reply.Error.Code),
					zap.String("error_message", reply.Error.Message),
					zap.Duration("duration", duration),
				)
				return
			}
			logger.Debug("MCP response",
				zap.String("tool", tool),
				zap.String("outcome", outcome),
				zap.Duration("duration", duration),
			)
		})
	}
}

type rpcCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcReply struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mcpResponseRecorder tees the response body so the reply can be inspected.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// sanitizeArguments redacts secret-looking keys, masks literals in SQL
// arguments and truncates long strings.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	result := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveArgument(k) {
			result[k] = logging.RedactedText
			continue
		}
		str, ok := v.(string)
		if !ok {
			result[k] = v
			continue
		}
		if strings.EqualFold(k, "sql") {
			str = logging.MaskLiterals(str)
		}
		result[k] = logging.TruncateString(str, maxLoggedArgument)
	}
	return result
}

func isSensitiveArgument(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range sensitiveArgumentKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
