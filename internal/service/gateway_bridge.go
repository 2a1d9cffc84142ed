package service

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/qtu11/SipMart-sub003/config"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"
)

// Gateway wire parameter names. secureHash/secureHashType are appended after
// signing and are never themselves part of the signed string.
const (
	paramVersion      = "version"
	paramCommand      = "command"
	paramTerminal     = "terminalCode"
	paramTxnRef       = "txnRef"
	paramAmount       = "amount"
	paramOrderInfo    = "orderInfo"
	paramCurrency     = "currency"
	paramIPAddr       = "ipAddr"
	paramCreateDate   = "createDate"
	paramReturnURL    = "returnUrl"
	paramResponseCode = "responseCode"

	ParamSecureHash     = "secureHash"
	ParamSecureHashType = "secureHashType"

	gatewayDateLayout = "20060102150405"

	// ResponseCodeSuccess is the only result code that may credit the ledger.
	ResponseCodeSuccess = "00"
)

// gatewayResultMessages maps the processor's result codes to the fixed
// human-readable taxonomy. Every code except "00" is "not successful" for
// ledger purposes.
var gatewayResultMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Money deducted, transaction suspected of fraud",
	"09": "Card not registered for online banking",
	"10": "Authentication failed more than 3 times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Cancelled by user",
	"51": "Insufficient funds in account",
	"65": "Daily transaction limit exceeded",
	"75": "Issuing bank under maintenance",
	"79": "Wrong payment password entered too many times",
	"99": "Unspecified bank error",
}

// GatewayResultMessage returns the taxonomy entry for a result code.
func GatewayResultMessage(code string) string {
	if msg, ok := gatewayResultMessages[code]; ok {
		return msg
	}
	return "Unknown gateway result code " + code
}

// HMACGatewayBridge implements ports.GatewayBridge using the processor's
// sorted-query HMAC-SHA512 scheme.
type HMACGatewayBridge struct {
	cfg config.GatewayConfig
}

// NewGatewayBridge creates a bridge bound to the configured terminal and secret.
func NewGatewayBridge(cfg config.GatewayConfig) *HMACGatewayBridge {
	return &HMACGatewayBridge{cfg: cfg}
}

// BuildPayURL constructs the signed redirect URL for a funding request.
// Amounts go over the wire in integer minor units (amount x 100).
func (b *HMACGatewayBridge) BuildPayURL(req ports.PayURLRequest) (string, error) {
	if req.Amount <= 0 {
		return "", apperror.ErrInvalidAmount()
	}
	params := map[string]string{
		paramVersion:    "2.1.0",
		paramCommand:    "pay",
		paramTerminal:   b.cfg.TerminalCode,
		paramTxnRef:     req.ExternalCode,
		paramAmount:     strconv.FormatInt(req.Amount*100, 10),
		paramOrderInfo:  req.OrderInfo,
		paramCurrency:   "VND",
		paramIPAddr:     req.ClientIP,
		paramCreateDate: req.CreatedAt.Format(gatewayDateLayout),
		paramReturnURL:  b.cfg.ReturnURL,
	}

	query := canonicalQuery(params)
	mac := signHex(b.cfg.HashSecret, query)

	return fmt.Sprintf("%s?%s&%s=%s", b.cfg.PayURL, query, ParamSecureHash, mac), nil
}

// VerifyCallback checks the signature of an inbound callback parameter set.
// The hash fields are removed, the remaining parameters are canonicalized
// exactly as on the outbound path, and the MAC is compared byte for byte.
// Any mismatch is terminal for the callback; there is no partial trust.
func (b *HMACGatewayBridge) VerifyCallback(params map[string]string) error {
	received, ok := params[ParamSecureHash]
	if !ok || received == "" {
		return apperror.ErrInvalidSignature()
	}

	signed := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		signed[k] = v
	}

	expected := signHex(b.cfg.HashSecret, canonicalQuery(signed))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(received))) {
		return apperror.ErrInvalidSignature()
	}
	return nil
}

// canonicalQuery builds the signing string: keys sorted ascending by byte
// value, each key and value URL-encoded, joined as k=v pairs with '&'.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[k]))
	}
	return sb.String()
}

// signHex computes the lowercase hex HMAC-SHA512 of payload.
func signHex(secret, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
