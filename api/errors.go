package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sealed-ballot/service"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var statusByCode = map[string]int{
	"InvalidInput":       http.StatusBadRequest,
	"Unauthorized":       http.StatusForbidden,
	"NotApprovedVoter":   http.StatusForbidden,
	"NotFound":           http.StatusNotFound,
	"NoCommitment":       http.StatusNotFound,
	"ElectionNotFound":   http.StatusNotFound,
	"DuplicateRequest":   http.StatusConflict,
	"AlreadyApproved":    http.StatusConflict,
	"AlreadyCommitted":   http.StatusConflict,
	"AlreadyRevealed":    http.StatusConflict,
	"WrongPhase":         http.StatusConflict,
	"CommitmentMismatch": http.StatusUnprocessableEntity,
	"UnknownCandidate":   http.StatusUnprocessableEntity,
	"QueueFull":          http.StatusServiceUnavailable,
	"Closed":             http.StatusServiceUnavailable,
}

func statusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err with its named code. Internal errors are not echoed.
func (s *Server) respondError(c *gin.Context, err error) {
	code := service.ErrorCode(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"event", "http_internal_error",
			"module", module,
			"layer", "transport",
			"path", c.FullPath(),
			"error", err.Error(),
		)
		message = "internal error"
	}
	c.JSON(status, errorResponse{Code: code, Error: message})
}
