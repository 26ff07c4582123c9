package httputil

import (
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	msg := strconv.Itoa(e.Code) + " " + e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, details error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Code:    statusCode,
		Message: message,
	}

	if details != nil {
		resp.Details = details.Error()
	}

	sonic.ConfigFastest.NewEncoder(w).Encode(resp)
}

func WriteJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		sonic.ConfigDefault.NewEncoder(w).Encode(body)
	}
}

// ReadErrorResponse decodes a body written by WriteErrorResponse. Bodies in any other shape
// still yield a response carrying the status code and the raw text.
func ReadErrorResponse(resp *http.Response) *ErrorResponse {
	result := &ErrorResponse{Code: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		result.Message = http.StatusText(resp.StatusCode)
		return result
	}
	if err = sonic.Unmarshal(raw, result); err != nil || result.Message == "" {
		result.Code = resp.StatusCode
		result.Message = http.StatusText(resp.StatusCode)
		result.Details = string(raw)
	}
	result.Code = resp.StatusCode
	return result
}
