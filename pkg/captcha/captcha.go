// Package captcha verifies reCAPTCHA tokens on behalf of browser clients.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/system"
)

// ErrNotConfigured is returned when no secret key is set.
var ErrNotConfigured = errors.New("captcha secret key is not configured")

// Result is the subset of the siteverify response the service uses.
type Result struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
}

type Verifier struct {
	http      *resty.Client
	verifyURL string
	secretKey string
}

func NewVerifier(cfg config.Captcha) *Verifier {
	return &Verifier{
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		verifyURL: cfg.VerifyURL,
		secretKey: cfg.SecretKey,
	}
}

// Verify asks the verification endpoint whether token is valid.
func (v *Verifier) Verify(ctx context.Context, token string) (Result, error) {
	if v.secretKey == "" {
		return Result{}, ErrNotConfigured
	}
	var res Result
	resp, err := v.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":   v.secretKey,
			"response": token,
		}).
		SetResult(&res).
		Post(v.verifyURL)
	if err != nil {
		return Result{}, fmt.Errorf("calling captcha verification: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("captcha verification returned status %d", resp.StatusCode())
	}
	return res, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// Controller serves POST /verify.
type Controller struct {
	verifier *Verifier
	log      *zap.SugaredLogger
}

func NewController(v *Verifier, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{verifier: v, log: log}
}

func (cc *Controller) BasePath() string {
	return "verify"
}

func (cc *Controller) Handlers() []gin.HandlerFunc {
	return nil
}

func (cc *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("", cc.handleVerify)
	return nil
}

// handleVerify never fails the HTTP request: any upstream problem is reported
// as {"success": false}.
func (cc *Controller) handleVerify(c *gin.Context) {
	log := system.GetReqLogger(c, cc.log)

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugw("Invalid captcha verification body", "error", err)
		c.JSON(http.StatusOK, verifyResponse{Success: false})
		return
	}

	res, err := cc.verifier.Verify(c.Request.Context(), req.Token)
	if err != nil {
		log.Errorw("Error verifying reCAPTCHA", "error", err)
		c.JSON(http.StatusOK, verifyResponse{Success: false})
		return
	}
	if !res.Success {
		c.JSON(http.StatusOK, verifyResponse{Success: false, Errors: res.ErrorCodes})
		return
	}
	c.JSON(http.StatusOK, verifyResponse{Success: true})
}
