package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// B2CRequest is the request for M-Pesa B2C (Business to Customer) payouts.
type B2CRequest struct {
	Amount      string // whole KES
	PhoneNumber string // e.g. 254112299271
	Description string
	Remarks     string
	OrderID     string
	CallbackURL string
}

// B2CResponse is the response from the B2C API.
type B2CResponse struct {
	UUID                     string `json:"uuid"`
	OrderID                  string `json:"order_id"`
	OriginatorConversationID string `json:"originator_conversation_id"`
	ConversationID           string `json:"conversation_id"`
	PhoneNumber              string `json:"phone_number"`
	Status                   string `json:"status"`
	ResponseCode             string `json:"response_code"`
	ResponseDescription      string `json:"response_description"`
}

// InitiateB2C calls the M-Pesa B2C API to send money to a phone number.
func (p *LiberecMpesaProvider) InitiateB2C(ctx context.Context, req B2CRequest) (*B2CResponse, error) {
	token, err := p.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("b2c login: %w", err)
	}
	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = p.callback("/api/v1/webhooks/payout", req.OrderID)
	}
	body := map[string]string{
		"amount":       req.Amount,
		"phone_number": req.PhoneNumber,
		"description":  req.Description,
		"remarks":      req.Remarks,
		"order_id":     req.OrderID,
		"callback_url": callbackURL,
	}
	if body["description"] == "" {
		body["description"] = "Tutor earnings payout"
	}
	if body["remarks"] == "" {
		body["remarks"] = "Payout"
	}
	bodyBytes, _ := json.Marshal(body)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/transactions/mpesa/b2c", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+token)
	slog.InfoContext(ctx, "mpesa b2c submit", "component", "mpesa", "order_id", req.OrderID, "amount", req.Amount)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("b2c api: %d %s", resp.StatusCode, string(respBody))
	}
	var out B2CResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPayout sends a payout to an M-Pesa number.
func (p *LiberecMpesaProvider) SubmitPayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	amount, err := wholeUnits(req.AmountCents)
	if err != nil {
		return nil, err
	}
	out, err := p.InitiateB2C(ctx, B2CRequest{
		Amount:      amount,
		PhoneNumber: req.Destination,
		Description: req.Description,
		OrderID:     req.OrderID,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}
	ref := out.ConversationID
	if ref == "" {
		ref = out.UUID
	}
	return &PayoutResponse{ProviderRef: ref, Status: out.Status}, nil
}
