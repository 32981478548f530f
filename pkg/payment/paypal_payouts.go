package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// PayPalPayouts submits payouts through the PayPal Payouts API. The oauth2
// client fetches and refreshes the bearer token.
type PayPalPayouts struct {
	baseURL string
	client  *http.Client
}

func NewPayPalPayouts(ctx context.Context, baseURL, clientID, clientSecret string) *PayPalPayouts {
	baseURL = strings.TrimRight(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
	}
	return &PayPalPayouts{baseURL: baseURL, client: cc.Client(ctx)}
}

type paypalAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type paypalItem struct {
	RecipientType string       `json:"recipient_type"`
	Amount        paypalAmount `json:"amount"`
	Receiver      string       `json:"receiver"`
	Note          string       `json:"note,omitempty"`
	SenderItemID  string       `json:"sender_item_id"`
}

type paypalBatch struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header"`
	Items []paypalItem `json:"items"`
}

type paypalBatchResp struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

func (p *PayPalPayouts) SubmitPayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	var batch paypalBatch
	batch.SenderBatchHeader.SenderBatchID = req.OrderID
	batch.SenderBatchHeader.EmailSubject = "You have a payout"
	batch.Items = []paypalItem{{
		RecipientType: "EMAIL",
		Amount:        paypalAmount{Value: fmt.Sprintf("%d.%02d", req.AmountCents/100, req.AmountCents%100), Currency: req.Currency},
		Receiver:      req.Destination,
		Note:          req.Description,
		SenderItemID:  req.OrderID,
	}}
	body, _ := json.Marshal(batch)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payments/payouts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paypal payouts: %d %s", resp.StatusCode, string(respBody))
	}
	var out paypalBatchResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return &PayoutResponse{ProviderRef: out.BatchHeader.PayoutBatchID, Status: out.BatchHeader.BatchStatus}, nil
}
