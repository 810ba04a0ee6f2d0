package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestOkWritesSuccessEnvelope(t *testing.T) {
	c, w := newTestContext()
	ok(c, gin.H{"foo": "bar"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if !env.Success || env.Error != "" {
		t.Errorf("expected a success envelope with no error, got %+v", env)
	}
}

func TestCreatedWritesStatus201(t *testing.T) {
	c, w := newTestContext()
	created(c, gin.H{"id": "1"})
	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}
}

func TestFailMapsSentinelKindToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{sentinel.Validation("bad input"), http.StatusBadRequest},
		{sentinel.NotFound("missing"), http.StatusNotFound},
		{sentinel.Duplicate("dup"), http.StatusConflict},
		{sentinel.Upstream("upstream broke", nil), http.StatusBadGateway},
		{sentinel.RateLimited("slow down"), http.StatusTooManyRequests},
		{sentinel.Persistence("db broke", nil), http.StatusInternalServerError},
		{sentinel.Plausibility("implausible"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		c, w := newTestContext()
		fail(c, tc.err)
		if w.Code != tc.want {
			t.Errorf("fail(%v) status = %d, want %d", tc.err, w.Code, tc.want)
		}
		var env envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
		if env.Success {
			t.Errorf("expected a failure envelope for %v", tc.err)
		}
	}
}

func TestFailDefaultsUnwrappedErrorTo500(t *testing.T) {
	c, w := newTestContext()
	fail(c, errPlain("boom"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected an unrecognized error to map to 500, got %d", w.Code)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func TestFailWithStatusUsesGivenCode(t *testing.T) {
	c, w := newTestContext()
	failWithStatus(c, http.StatusTeapot, "short and stout")
	if w.Code != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, w.Code)
	}
}

func TestRequireFieldsReportsMissing(t *testing.T) {
	body := map[string]interface{}{"symbol": "ETH/USDT", "wallet_id": "", "trading_mode": nil}
	missing := requireFields(body, "symbol", "wallet_id", "trading_mode", "quantity")
	want := []string{"wallet_id", "trading_mode", "quantity"}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("missing[%d] = %q, want %q", i, missing[i], want[i])
		}
	}
}

func TestTradingModeParamPrefersCamelCaseThenSnakeCase(t *testing.T) {
	c, _ := newTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/?tradingMode=mainnet&trading_mode=testnet", nil)
	if got := tradingModeParam(c); got != sentinel.ModeMainnet {
		t.Errorf("expected tradingMode query param to win, got %q", got)
	}

	c2, _ := newTestContext()
	c2.Request = httptest.NewRequest(http.MethodGet, "/?trading_mode=testnet", nil)
	if got := tradingModeParam(c2); got != sentinel.ModeTestnet {
		t.Errorf("expected trading_mode fallback to be used, got %q", got)
	}
}
