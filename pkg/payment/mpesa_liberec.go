package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// LiberecMpesaProvider implements M-Pesa STK push and B2C via TheLiberec Card API.
type LiberecMpesaProvider struct {
	BaseURL     string
	Email       string
	Password    string
	WebhookBase string
	// CallbackSecret signs the order id into every callback URL.
	CallbackSecret string
	client         *http.Client
}

func NewLiberecMpesaProvider(baseURL, email, password, webhookBase, callbackSecret string) *LiberecMpesaProvider {
	if baseURL == "" {
		baseURL = "https://card-api.theliberec.com"
	}
	return &LiberecMpesaProvider{
		BaseURL:        baseURL,
		Email:          email,
		Password:       password,
		WebhookBase:    webhookBase,
		CallbackSecret: callbackSecret,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

// AmountStep is one shilling: the API only takes whole units.
func (p *LiberecMpesaProvider) AmountStep() int64 { return 100 }

type liberecLoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type liberecLoginResp struct {
	Token string `json:"token"`
}

// getToken logs in and returns a fresh token (per transaction as recommended).
func (p *LiberecMpesaProvider) getToken(ctx context.Context) (string, error) {
	body, _ := json.Marshal(liberecLoginReq{Email: p.Email, Password: p.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/merchants/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: %d", resp.StatusCode)
	}
	var out liberecLoginResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

type mpesaSTKReq struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Description       string `json:"description"`
	CustomerPhone     string `json:"customer_phone"`
	CustomerFirstName string `json:"customer_first_name"`
	CustomerLastName  string `json:"customer_last_name"`
	CustomerEmail     string `json:"customer_email"`
	CallbackURL       string `json:"callback_url"`
	OrderID           string `json:"order_id"`
}

type mpesaSTKResp struct {
	UUID                string `json:"uuid"`
	OrderID             string `json:"order_id"`
	MerchantOrderID     string `json:"merchant_order_id"`
	CheckoutRequestID   string `json:"checkout_request_id"`
	Status              string `json:"status"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
}

// wholeUnits converts minor units to the whole-shilling string the API
// expects. Amounts that would need rounding are refused.
func wholeUnits(cents int64) (string, error) {
	if cents <= 0 || cents%100 != 0 {
		return "", fmt.Errorf("%w: %d cents is not whole shillings", ErrAmountNotPayable, cents)
	}
	return strconv.FormatInt(cents/100, 10), nil
}

// callback builds the URL the API calls back, carrying a token for orderID.
func (p *LiberecMpesaProvider) callback(path, orderID string) string {
	if p.WebhookBase == "" {
		return ""
	}
	base := p.WebhookBase
	if base[0] != 'h' {
		base = "https://" + base
	}
	return base + path + "?token=" + CallbackToken(p.CallbackSecret, orderID)
}

func (p *LiberecMpesaProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if req.OrderID == "" {
		return nil, fmt.Errorf("mpesa stk: order id required")
	}
	amount, err := wholeUnits(req.AmountCents)
	if err != nil {
		return nil, err
	}
	token, err := p.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("mpesa login: %w", err)
	}
	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = p.callback("/api/v1/webhooks/mpesa", req.OrderID)
	}
	payload := mpesaSTKReq{
		Amount:            amount,
		Currency:          "KES",
		Description:       req.Description,
		CustomerPhone:     req.CustomerPhone,
		CustomerFirstName: req.CustomerFirstName,
		CustomerLastName:  req.CustomerLastName,
		CustomerEmail:     req.CustomerEmail,
		CallbackURL:       callbackURL,
		OrderID:           req.OrderID,
	}
	if req.Currency != "" {
		payload.Currency = req.Currency
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/transactions/mpesa", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+token)
	slog.InfoContext(ctx, "mpesa stk push", "component", "mpesa", "order_id", req.OrderID)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		slog.WarnContext(ctx, "mpesa stk rejected", "component", "mpesa", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("mpesa stk: %d", resp.StatusCode)
	}
	var out mpesaSTKResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return &PaymentResponse{
		Reference:         req.OrderID,
		Status:            StatusPending,
		ExpiresAt:         time.Now().Add(10 * time.Minute),
		CheckoutRequestID: out.CheckoutRequestID,
	}, nil
}

// VerifyPayment is not offered by the API; settlement arrives only by callback.
func (p *LiberecMpesaProvider) VerifyPayment(ctx context.Context, reference string) (bool, error) {
	return false, nil
}
