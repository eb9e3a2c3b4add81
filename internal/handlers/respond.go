package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
)

const (
	CodeRateLimited = "RATE_LIMITED"
	CodeBadRequest  = "BAD_REQUEST"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
)

type errorResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Code    string             `json:"code"`
	Details []usage.FieldIssue `json:"details,omitempty"`
	MaxGPUs *int               `json:"max_gpus,omitempty"`
}

// readJSON decodes the body keeping numbers as json.Number so integral
// fields can be told apart from fractional ones.
func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(ctx.PostBody()))
	dec.UseNumber()
	return dec.Decode(dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		status = xhttp.StatusInternalServerError
		b = []byte(`{"status":"error","message":"internal error","code":"INTERNAL_ERROR"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, code, msg string) {
	writeJSON(ctx, status, errorResponse{Status: "error", Message: msg, Code: code})
}

// writeUsageError renders an error of the ingestion taxonomy. Unknown errors
// become a generic 500 and are logged with the request id.
func writeUsageError(ctx *xhttp.RequestCtx, err error) {
	resp := errorResponse{Status: "error", Code: string(usage.CodeOf(err)), Message: err.Error()}
	status := xhttp.StatusInternalServerError

	var verr *usage.ValidationError
	var terr *usage.TierLimitError
	switch {
	case errors.Is(err, usage.ErrUnauthenticated):
		status = xhttp.StatusUnauthorized
	case errors.As(err, &verr):
		status = xhttp.StatusBadRequest
		resp.Message = "invalid gpu_data"
		resp.Details = verr.Issues
	case errors.As(err, &terr):
		status = xhttp.StatusForbidden
		limit := terr.Limit
		resp.MaxGPUs = &limit
	case errors.Is(err, usage.ErrPersistence):
		status = xhttp.StatusServiceUnavailable
		resp.Message = "usage could not be recorded, retry later"
		logger.Error("usage persistence failure", "request_id", xhttp.RequestID(ctx), "error", err)
	default:
		resp.Message = "internal error"
		logger.Error("unhandled request error", "request_id", xhttp.RequestID(ctx), "path", string(ctx.Path()), "error", err)
	}
	writeJSON(ctx, status, resp)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) (int, bool) {
	v := query(ctx, key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
