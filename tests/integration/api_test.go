package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/qtu11/SipMart-sub003/config"
	httpHandler "github.com/qtu11/SipMart-sub003/internal/adapter/http/handler"
	redisStorage "github.com/qtu11/SipMart-sub003/internal/adapter/storage/redis"
	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/internal/core/settlement"
	"github.com/qtu11/SipMart-sub003/internal/service"
	"github.com/qtu11/SipMart-sub003/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHashSecret = "integration-hash-secret"
	testTerminal   = "SMTTEST"
	testDeviceKey  = "station-psk"
)

// testApp runs the full HTTP stack on in-memory repos and miniredis. The
// handlers, middleware, services, gateway bridge and Redis stores are all
// real; only PostgreSQL is replaced.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis

	users     *inMemoryUserRepo
	assets    *inMemoryAssetRepo
	checkouts *inMemoryCheckoutRepo
	ledger    *inMemoryLedgerRepo
	rewards   *inMemoryRewardRepo
	payments  *inMemoryPaymentRepo

	tokenSvc ports.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	callbackGuard := redisStorage.NewCallbackGuard(rdb)
	counterStore := redisStorage.NewCounterStore(rdb)

	users := newInMemoryUserRepo()
	assets := newInMemoryAssetRepo()
	checkouts := newInMemoryCheckoutRepo()
	ledger := newInMemoryLedgerRepo()
	rewards := newInMemoryRewardRepo()
	payments := newInMemoryPaymentRepo()
	incidents := newInMemoryIncidentRepo()
	transactor := newInMemoryTransactor()

	log := logger.New("debug", false)
	tokenSvc := service.NewJWTTokenService("integration-jwt-secret-32bytes!!", 24*time.Hour, "sipmart-test")
	deviceVerifier := service.NewDeviceKeyVerifier()
	keyHash, err := deviceVerifier.Hash(testDeviceKey)
	require.NoError(t, err)

	bridge := service.NewGatewayBridge(config.GatewayConfig{
		PayURL:       "https://gateway.test/pay",
		ReturnURL:    "https://app.test/api/v1/payments/callback",
		TerminalCode: testTerminal,
		HashSecret:   testHashSecret,
		Timeout:      5 * time.Second,
	})

	tariff := settlement.Tariff{
		CupDeposit:       30000,
		PenaltyPerHour:   2000,
		BasePoints:       10,
		EarlyBonusPoints: 5,
		EarlyWindow:      6 * time.Hour,
		BikeFarePerHour:  15000,
		PointsPerKmX10:   10,
		CO2GramsPerKm:    150,
	}

	lendingSvc := service.NewLendingService(
		users, assets, checkouts, ledger, rewards, transactor,
		service.NewStationLocationVerifier(log),
		service.NewHTTPDeviceSignaler(config.DevicesConfig{}, nil, log),
		service.NewLogNotifier(log),
		tariff, 48*time.Hour, log,
	)
	walletSvc := service.NewWalletService(
		users, payments, ledger, transactor, bridge, callbackGuard, counterStore,
		service.NewLogNotifier(log),
		config.WithdrawalConfig{MinAmount: 50000, MaxAmount: 5000000, DailyCount: 3, ReviewThreshold: 2000000},
		log,
	)
	reportingSvc := service.NewReportingService(users, ledger, rewards, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LendingSvc:     lendingSvc,
		WalletSvc:      walletSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		AssetRepo:      assets,
		CheckoutRepo:   checkouts,
		IncidentRepo:   incidents,
		DeviceVerifier: deviceVerifier,
		DeviceKeyHash:  keyHash,
		HealthCheckers: nil,
		Logger:         log,
	})

	return &testApp{
		server:    httptest.NewServer(router),
		redis:     mr,
		users:     users,
		assets:    assets,
		checkouts: checkouts,
		ledger:    ledger,
		rewards:   rewards,
		payments:  payments,
		tokenSvc:  tokenSvc,
	}
}

func (a *testApp) close() {
	a.server.Close()
}

func (a *testApp) seedUser(t *testing.T, balance int64, staff bool) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	err := a.users.Create(context.Background(), &domain.User{
		ID:               id,
		FullName:         "Integration Tester",
		Balance:          balance,
		IdentityVerified: true,
		Staff:            staff,
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	token, _, err := a.tokenSvc.Generate(id, staff)
	require.NoError(t, err)
	return id, token
}

func (a *testApp) seedAsset(t *testing.T, kind domain.AssetKind, label string) *domain.Asset {
	t.Helper()
	home := uuid.New()
	asset := &domain.Asset{
		ID:             uuid.New(),
		Label:          label,
		Kind:           kind,
		Status:         domain.AssetStatusAvailable,
		HomeLocationID: &home,
	}
	require.NoError(t, a.assets.Create(context.Background(), asset))
	return asset
}

func (a *testApp) doJSON(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	var envelope map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", raw)
	}
	return resp, envelope
}

// signCallbackQuery builds a signed callback query string the way the
// gateway does: sorted keys, URL-encoded, HMAC-SHA512 in lowercase hex.
func signCallbackQuery(params map[string]string) string {
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
	payload := sb.String()

	mac := hmac.New(sha512.New, []byte(testHashSecret))
	mac.Write([]byte(payload))
	return payload + "&secureHash=" + hex.EncodeToString(mac.Sum(nil))
}

func TestCupLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.seedUser(t, 50000, false)
	asset := app.seedAsset(t, domain.AssetKindCup, "CUP-1001")
	branch := uuid.NewString()

	// Checkout
	resp, body := app.doJSON(t, http.MethodPost, "/api/v1/checkouts", token, map[string]any{
		"asset_label": "CUP-1001",
		"branch_id":   branch,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	data := body["data"].(map[string]any)
	checkoutID := data["checkout_id"].(string)
	assert.Equal(t, float64(30000), data["charge"])
	assert.Equal(t, float64(20000), data["new_balance"])

	stored, err := app.assets.GetByID(context.Background(), asset.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusInUse, stored.Status)

	// Balance endpoint agrees with the ledger
	resp, body = app.doJSON(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(20000), body["data"].(map[string]any)["balance"])

	// Return clean
	resp, body = app.doJSON(t, http.MethodPost, "/api/v1/checkouts/"+checkoutID+"/return", token, map[string]any{
		"branch_id": branch,
		"condition": "clean",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	data = body["data"].(map[string]any)
	assert.Equal(t, float64(30000), data["refund"])
	assert.Equal(t, float64(50000), data["new_balance"])
	assert.Equal(t, float64(15), data["points"]) // base plus early bonus

	// Ledger sum equals balance projection
	sum, err := app.ledger.SumByUser(context.Background(), userID)
	require.NoError(t, err)
	user, err := app.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, user.Balance, sum)

	// Rewards endpoint
	resp, body = app.doJSON(t, http.MethodGet, "/api/v1/wallet/rewards", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(15), body["data"].(map[string]any)["points"])

	// Second return of the same checkout conflicts
	resp, body = app.doJSON(t, http.MethodPost, "/api/v1/checkouts/"+checkoutID+"/return", token, map[string]any{
		"branch_id": branch,
		"condition": "clean",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "%v", body)
}

func TestCheckoutRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, _ := app.doJSON(t, http.MethodPost, "/api/v1/checkouts", "", map[string]any{
		"asset_label": "CUP-1001",
		"branch_id":   uuid.NewString(),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTopupCallbackFlow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.seedUser(t, 0, false)

	// Request topup
	resp, body := app.doJSON(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]any{"amount": 150000})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	data := body["data"].(map[string]any)
	externalCode := data["external_code"].(string)
	assert.Contains(t, data["pay_url"].(string), "secureHash=")

	// Gateway callback: success
	query := signCallbackQuery(map[string]string{
		"txnRef":       externalCode,
		"responseCode": "00",
		"amount":       strconv.FormatInt(150000*100, 10),
		"terminalCode": testTerminal,
	})
	resp, body = app.doJSON(t, http.MethodGet, "/api/v1/payments/callback?"+query, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	assert.Equal(t, "completed", body["data"].(map[string]any)["status"])

	user, err := app.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), user.Balance)

	// Replayed callback must not credit twice
	resp, body = app.doJSON(t, http.MethodGet, "/api/v1/payments/callback?"+query, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "%v", body)

	user, err = app.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), user.Balance)
}

func TestTopupCallbackRejectsBadSignature(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, token := app.seedUser(t, 0, false)
	resp, body := app.doJSON(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]any{"amount": 100000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	externalCode := body["data"].(map[string]any)["external_code"].(string)

	// Signed for a different amount, then tampered on the wire
	query := signCallbackQuery(map[string]string{
		"txnRef":       externalCode,
		"responseCode": "00",
		"amount":       strconv.FormatInt(100000*100, 10),
		"terminalCode": testTerminal,
	})
	tampered := strings.Replace(query, "amount=10000000", "amount=99900000", 1)

	resp, _ = app.doJSON(t, http.MethodGet, "/api/v1/payments/callback?"+tampered, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWithdrawalReviewOverHTTP(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.seedUser(t, 3000000, false)
	_, staffToken := app.seedUser(t, 0, true)

	// Above the review threshold: held for review
	resp, body := app.doJSON(t, http.MethodPost, "/api/v1/wallet/withdrawals", token, map[string]any{
		"amount":       2500000,
		"bank_code":    "970422",
		"bank_account": "0011223344",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "needs_review", data["status"])
	txID := data["id"].(string)

	// Hold debits up front
	user, err := app.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), user.Balance)

	// Rider cannot review
	resp, _ = app.doJSON(t, http.MethodPost, "/api/v1/wallet/withdrawals/"+txID+"/review", token, map[string]any{"approve": false})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Staff rejects: hold reversed
	resp, body = app.doJSON(t, http.MethodPost, "/api/v1/wallet/withdrawals/"+txID+"/review", staffToken, map[string]any{"approve": false})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	assert.Equal(t, "rejected", body["data"].(map[string]any)["status"])

	user, err = app.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000000), user.Balance)

	sum, err := app.ledger.SumByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, user.Balance, sum)
}

func TestDeviceWebhook(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	app.seedAsset(t, domain.AssetKindBike, "BIKE-2001")

	payload := `{"device_label":"BIKE-2001","type":"tamper","payload":"{}"}`

	// Missing key
	resp, err := http.Post(app.server.URL+"/api/v1/devices/events", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct pre-shared key
	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/devices/events", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Key", testDeviceKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "healthy")
}

func TestBikeRentalOverHTTP(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.seedUser(t, 100000, false)
	app.seedAsset(t, domain.AssetKindBike, "BIKE-3001")
	branch := uuid.NewString()

	resp, body := app.doJSON(t, http.MethodPost, "/api/v1/checkouts", token, map[string]any{
		"asset_label":   "BIKE-3001",
		"branch_id":     branch,
		"planned_hours": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(30000), data["charge"]) // 2h x 15000
	checkoutID := data["checkout_id"].(string)

	// A second bike is refused while one rental is ongoing
	app.seedAsset(t, domain.AssetKindBike, "BIKE-3002")
	resp, body = app.doJSON(t, http.MethodPost, "/api/v1/checkouts", token, map[string]any{
		"asset_label":   "BIKE-3002",
		"branch_id":     branch,
		"planned_hours": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "%v", body)

	// Return with distance
	resp, body = app.doJSON(t, http.MethodPost, "/api/v1/checkouts/"+checkoutID+"/return", token, map[string]any{
		"branch_id":   branch,
		"condition":   "clean",
		"distance_km": 12.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	data = body["data"].(map[string]any)
	assert.Equal(t, float64(12), data["points"])
	assert.Equal(t, float64(1875), data["co2_grams"])

	sum, err := app.ledger.SumByUser(context.Background(), userID)
	require.NoError(t, err)
	user, err := app.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, user.Balance, sum)

	// History shows the completed rental
	resp, body = app.doJSON(t, http.MethodGet, "/api/v1/checkouts", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "completed", items[0].(map[string]any)["status"])
}
