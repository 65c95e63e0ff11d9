/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError represents a standardized error response.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// FieldError is one violated validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the 400 body for rejected submissions. Accepted is only set
// for batches, where valid elements are processed even when others fail.
type ValidationErrors struct {
	Errors   []FieldError `json:"errors"`
	Accepted *int         `json:"accepted,omitempty"`
}

// Accepted is the acknowledgement body for submissions handed to the pipeline.
type Accepted struct {
	Status string   `json:"status"`
	ID     string   `json:"id,omitempty"`
	IDs    []string `json:"ids,omitempty"`
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for client errors like malformed JSON or invalid parameters.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error: message,
		Code:  "BAD_REQUEST",
	})
}

// RespondValidationErrors sends a 400 response listing every violated field rule.
func RespondValidationErrors(c *gin.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, ValidationErrors{Errors: errs})
}

// RespondPartialBatch sends a 400 response for a batch where some elements were
// invalid; accepted reports how many valid elements entered the pipeline.
func RespondPartialBatch(c *gin.Context, errs []FieldError, accepted int) {
	c.JSON(http.StatusBadRequest, ValidationErrors{Errors: errs, Accepted: &accepted})
}

// RespondTooManyRequests sends a 429 response with the limiter's message.
func RespondTooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "Rate limit exceeded, please try again later"
	}
	c.JSON(http.StatusTooManyRequests, APIError{
		Error: message,
		Code:  "RATE_LIMITED",
	})
}

// RespondAccepted acknowledges a submission that has been handed to the delivery pipeline.
func RespondAccepted(c *gin.Context, ids ...string) {
	body := Accepted{Status: "processing"}
	if len(ids) == 1 {
		body.ID = ids[0]
	} else {
		body.IDs = ids
	}
	c.JSON(http.StatusOK, body)
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, message string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(message, "error", err)
	}
	c.JSON(http.StatusInternalServerError, APIError{
		Error: message,
		Code:  "INTERNAL_ERROR",
	})
}

// RespondServiceUnavailable sends a 503 Service Unavailable response.
// Use this when a required backend service is not available.
func RespondServiceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, APIError{
		Error: fmt.Sprintf("%s is not available", service),
		Code:  "SERVICE_UNAVAILABLE",
	})
}
