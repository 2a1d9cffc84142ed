package handler

import (
	"net/http"

	"github.com/qtu11/SipMart-sub003/internal/adapter/http/dto"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"
	"github.com/qtu11/SipMart-sub003/pkg/response"

	"github.com/gin-gonic/gin"
)

// CallbackHandler receives the signed payment-gateway redirect/IPN callback.
type CallbackHandler struct {
	walletSvc ports.WalletService
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(walletSvc ports.WalletService) *CallbackHandler {
	return &CallbackHandler{walletSvc: walletSvc}
}

// HandleCallback handles GET and POST /api/v1/payments/callback. The browser
// redirect arrives as query parameters, the server-to-server notification as
// a form body; both carry the same signed parameter set.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			response.Error(c, apperror.Validation("malformed callback body"))
			return
		}
	}

	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	result, err := h.walletSvc.HandleGatewayCallback(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CallbackResponse{
		ExternalCode: result.Transaction.ExternalCode,
		Status:       string(result.Transaction.Status),
		Message:      result.Message,
	})
}
