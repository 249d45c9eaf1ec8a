package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/GroundedQA/internal/handlers"
	"github.com/akolanti/GroundedQA/internal/metrics"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var GetHandler = Wrap(handlers.GetHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var ChatStreamHandler = Wrap(handlers.ChatStreamHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)

var PostIngestHandler = Wrap(handlers.PostIngestHandler)
var IngestTextHandler = Wrap(handlers.IngestTextHandler)
var DocumentsHandler = Wrap(handlers.DocumentsHandler)
var ClearIndexHandler = Wrap(handlers.ClearIndexHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if !handleBadRequest(re) {
			metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc()
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

// WrapHandler runs a plain http.Handler, such as the MCP endpoint, through the
// same chain.
func WrapHandler(next http.Handler) http.HandlerFunc {
	return Wrap(next.ServeHTTP)
}

// processRequest runs trace, auth and rate limiting in order and stops at the
// first failure. The caller writes the failure.
func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)

	for _, step := range []func(requestResponseStruct) requestResponseStruct{injectTrace, authenticate, rateLimiter} {
		re = step(re)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	return re
}
