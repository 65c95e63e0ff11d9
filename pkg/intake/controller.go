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

package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/apiresponses"
	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/dispatch"
	"github.com/telekom/form-relay/pkg/metrics"
	"github.com/telekom/form-relay/pkg/ratelimit"
	"github.com/telekom/form-relay/pkg/system"
	"github.com/telekom/form-relay/pkg/validation"
)

const (
	MsgInvalidJSON    = "Invalid JSON body"
	MsgEmptyBatch     = "Batch must contain at least one submission"
	MsgEnqueueFailed  = "Failed to enqueue email task."
	MsgDeliveryFailed = "Failed to send email."
)

// Deliverer accepts validated submissions. *dispatch.Dispatcher implements it.
type Deliverer interface {
	Deliver(ctx context.Context, sub validation.Submission) (string, error)
	DeliverNow(ctx context.Context, sub validation.Submission) (string, error)
}

type Controller struct {
	validator *validation.Validator
	deliverer Deliverer
	limiter   *ratelimit.Limiter
	ackMode   string
	log       *zap.SugaredLogger
}

func NewController(v *validation.Validator, d Deliverer, limiter *ratelimit.Limiter, ackMode string, log *zap.SugaredLogger) *Controller {
	if ackMode == "" {
		ackMode = config.AckImmediate
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		validator: v,
		deliverer: d,
		limiter:   limiter,
		ackMode:   ackMode,
		log:       log,
	}
}

func (ic *Controller) BasePath() string {
	return "/"
}

func (ic *Controller) Handlers() []gin.HandlerFunc {
	if ic.limiter == nil {
		return nil
	}
	return []gin.HandlerFunc{ic.limiter.Middleware()}
}

func (ic *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("", ic.handleSubmit)
	return nil
}

func (ic *Controller) handleSubmit(c *gin.Context) {
	log := system.GetReqLogger(c, ic.log)

	raw, err := c.GetRawData()
	if err != nil {
		ic.reject(c, "invalid_json", MsgInvalidJSON)
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		ic.reject(c, "invalid_json", MsgInvalidJSON)
		return
	}

	switch raw[0] {
	case '{':
		ic.handleSingle(c, log, raw)
	case '[':
		ic.handleBatch(c, log, raw)
	default:
		ic.reject(c, "invalid_json", MsgInvalidJSON)
	}
}

func (ic *Controller) handleSingle(c *gin.Context, log *zap.SugaredLogger, raw []byte) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		ic.reject(c, "invalid_json", MsgInvalidJSON)
		return
	}

	sub, ferrs := ic.validator.ValidateObject(obj)
	if len(ferrs) > 0 {
		metrics.SubmissionsRejected.WithLabelValues("validation").Inc()
		apiresponses.RespondValidationErrors(c, toResponseErrors(ferrs))
		return
	}

	id, err := ic.accept(c.Request.Context(), sub)
	if err != nil {
		ic.respondAcceptFailure(c, log, err)
		return
	}
	metrics.SubmissionsAccepted.WithLabelValues("single").Inc()
	log.Infow("Submission accepted", "jobID", id, "ackMode", ic.ackMode)
	apiresponses.RespondAccepted(c, id)
}

func (ic *Controller) handleBatch(c *gin.Context, log *zap.SugaredLogger, raw []byte) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		ic.reject(c, "invalid_json", MsgInvalidJSON)
		return
	}
	if len(items) == 0 {
		ic.reject(c, "empty_batch", MsgEmptyBatch)
		return
	}

	valid, ferrs := ic.validator.ValidateBatch(items)
	ids := make([]string, 0, len(valid))
	for _, item := range valid {
		id, err := ic.accept(c.Request.Context(), item.Submission)
		if err != nil {
			log.Errorw("Batch element could not be accepted", "index", item.Index, "accepted", len(ids), "error", err)
			ic.respondAcceptFailure(c, log, err)
			return
		}
		metrics.SubmissionsAccepted.WithLabelValues("batch").Inc()
		ids = append(ids, id)
	}

	if len(ferrs) > 0 {
		metrics.SubmissionsRejected.WithLabelValues("validation").Inc()
		log.Infow("Batch partially accepted", "accepted", len(ids), "invalid", len(items)-len(ids))
		apiresponses.RespondPartialBatch(c, toResponseErrors(ferrs), len(ids))
		return
	}
	log.Infow("Batch accepted", "accepted", len(ids), "ackMode", ic.ackMode)
	apiresponses.RespondAccepted(c, ids...)
}

func (ic *Controller) accept(ctx context.Context, sub validation.Submission) (string, error) {
	if ic.ackMode == config.AckFirstAttempt {
		return ic.deliverer.DeliverNow(ctx, sub)
	}
	return ic.deliverer.Deliver(ctx, sub)
}

func (ic *Controller) respondAcceptFailure(c *gin.Context, log *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, dispatch.ErrStopped):
		apiresponses.RespondServiceUnavailable(c, "delivery pipeline")
	case ic.ackMode == config.AckFirstAttempt:
		apiresponses.RespondInternalError(c, MsgDeliveryFailed, err, log)
	default:
		apiresponses.RespondInternalError(c, MsgEnqueueFailed, err, log)
	}
}

func (ic *Controller) reject(c *gin.Context, reason, message string) {
	metrics.SubmissionsRejected.WithLabelValues(reason).Inc()
	apiresponses.RespondBadRequest(c, message)
}

func toResponseErrors(in []validation.FieldError) []apiresponses.FieldError {
	out := make([]apiresponses.FieldError, len(in))
	for i, fe := range in {
		out[i] = apiresponses.FieldError{Field: fe.Field, Message: fe.Message}
	}
	return out
}
