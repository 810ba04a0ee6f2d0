// Package binanceclient is a thin REST client over the Binance spot API,
// adapted from the teacher's internal/binance/client.go: same signed-request
// idiom, extended with the account/order read endpoints the gateway needs
// and a context on every call.
package binanceclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one Binance REST base URL (mainnet or testnet) using one
// set of API credentials. The Supervisor holds one Client per trading mode,
// built from credentials fetched through internal/vaultcreds.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, secretKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Kline is one OHLCV candlestick.
type Kline struct {
	OpenTime                 int64   `json:"openTime"`
	Open                     float64 `json:"open,string"`
	High                     float64 `json:"high,string"`
	Low                      float64 `json:"low,string"`
	Close                    float64 `json:"close,string"`
	Volume                   float64 `json:"volume,string"`
	CloseTime                int64   `json:"closeTime"`
	QuoteAssetVolume         float64 `json:"quoteAssetVolume,string"`
	NumberOfTrades           int     `json:"numberOfTrades"`
	TakerBuyBaseAssetVolume  float64 `json:"takerBuyBaseAssetVolume,string"`
	TakerBuyQuoteAssetVolume float64 `json:"takerBuyQuoteAssetVolume,string"`
}

// Ticker24hr is the 24hr rolling-window ticker.
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	WeightedAvgPrice   float64 `json:"weightedAvgPrice,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	Count              int64   `json:"count"`
}

// PriceTicker is the minimal symbol/price pair from /ticker/price.
type PriceTicker struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,string"`
}

// SymbolInfo is one entry of ExchangeInfo.Symbols.
type SymbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

// ExchangeInfo is the exchangeInfo response, trimmed to the fields the
// engine reads.
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// Order is one entry of GetOrder / GetAllOrders.
type Order struct {
	Symbol        string  `json:"symbol"`
	OrderID       int64   `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	Price         float64 `json:"price,string"`
	OrigQty       float64 `json:"origQty,string"`
	ExecutedQty   float64 `json:"executedQty,string"`
	Status        string  `json:"status"`
	Type          string  `json:"type"`
	Side          string  `json:"side"`
	Time          int64   `json:"time"`
	UpdateTime    int64   `json:"updateTime"`
}

// Balance is one asset line of GetAccount.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free,string"`
	Locked float64 `json:"locked,string"`
}

// Account is the trimmed /account response.
type Account struct {
	MakerCommission int64     `json:"makerCommission"`
	TakerCommission int64     `json:"takerCommission"`
	CanTrade        bool      `json:"canTrade"`
	Balances        []Balance `json:"balances"`
}

// apiError is the shape Binance returns on a negative-code failure.
type apiError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// GetKlines fetches candlestick data for one symbol/interval.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var rawKlines [][]interface{}
	if err := c.getJSON(ctx, "/api/v3/klines", params, &rawKlines); err != nil {
		return nil, err
	}

	klines := make([]Kline, len(rawKlines))
	for i, raw := range rawKlines {
		klines[i] = Kline{
			OpenTime:                 int64(raw[0].(float64)),
			Open:                     parseFloat(raw[1]),
			High:                     parseFloat(raw[2]),
			Low:                      parseFloat(raw[3]),
			Close:                    parseFloat(raw[4]),
			Volume:                   parseFloat(raw[5]),
			CloseTime:                int64(raw[6].(float64)),
			QuoteAssetVolume:         parseFloat(raw[7]),
			NumberOfTrades:           int(raw[8].(float64)),
			TakerBuyBaseAssetVolume:  parseFloat(raw[9]),
			TakerBuyQuoteAssetVolume: parseFloat(raw[10]),
		}
	}
	return klines, nil
}

// Get24hrTicker fetches the 24hr ticker for one symbol.
func (c *Client) Get24hrTicker(ctx context.Context, symbol string) (*Ticker24hr, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var ticker Ticker24hr
	if err := c.getJSON(ctx, "/api/v3/ticker/24hr", params, &ticker); err != nil {
		return nil, err
	}
	return &ticker, nil
}

// GetCurrentPrice fetches the latest trade price for one symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (*PriceTicker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var priceResp PriceTicker
	if err := c.getJSON(ctx, "/api/v3/ticker/price", params, &priceResp); err != nil {
		return nil, err
	}
	return &priceResp, nil
}

// GetExchangeInfo fetches the full exchange symbol table.
func (c *Client) GetExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	var info ExchangeInfo
	if err := c.getJSON(ctx, "/api/v3/exchangeInfo", url.Values{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetAccount fetches account balances (signed).
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	params := url.Values{}
	var account Account
	if err := c.getSignedJSON(ctx, "/api/v3/account", params, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetOrder fetches one order by orderId (signed).
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	var order Order
	if err := c.getSignedJSON(ctx, "/api/v3/order", params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetAllOrders fetches the order history for a symbol (signed).
func (c *Client) GetAllOrders(ctx context.Context, symbol string, limit int) ([]Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var orders []Order
	if err := c.getSignedJSON(ctx, "/api/v3/allOrders", params, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PlaceOrder submits a new order (signed). params carries the caller's
// order fields (symbol, side, type, quantity, price, timeInForce, ...)
// verbatim; the client only adds the timestamp/signature.
func (c *Client) PlaceOrder(ctx context.Context, params url.Values) (*Order, error) {
	var order Order
	if err := c.postSignedJSON(ctx, "/api/v3/order", params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) getSignedJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params))

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req, out)
}

func (c *Client) postSignedJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params))

	endpoint := fmt.Sprintf("%s%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return fmt.Errorf("binance error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return fmt.Errorf("binance http %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing upstream response: %w", err)
	}
	return nil
}

// sign produces the HMAC-SHA256 query signature Binance requires on
// authenticated endpoints.
func (c *Client) sign(params url.Values) string {
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
