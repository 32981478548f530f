package payment

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransProvider captures card and bank payments through Midtrans Snap.
type MidtransProvider struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
}

func NewMidtransProvider(serverKey string, production bool) *MidtransProvider {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	p := &MidtransProvider{serverKey: serverKey}
	p.snap.New(serverKey, env)
	p.core.New(serverKey, env)
	return p
}

func (p *MidtransProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if req.OrderID == "" {
		return nil, fmt.Errorf("midtrans: order id required")
	}
	sreq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.AmountCents / 100,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerFirstName,
			LName: req.CustomerLastName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.OrderID,
			Price: req.AmountCents / 100,
			Qty:   1,
			Name:  req.Description,
		}},
	}
	resp, merr := p.snap.CreateTransaction(sreq)
	if merr != nil {
		return nil, fmt.Errorf("midtrans snap: %s", merr.Error())
	}
	return &PaymentResponse{
		Reference:   req.OrderID,
		Status:      StatusPending,
		CheckoutURL: resp.RedirectURL,
	}, nil
}

// VerifyPayment asks Midtrans for the order's current status.
func (p *MidtransProvider) VerifyPayment(ctx context.Context, reference string) (bool, error) {
	st, merr := p.core.CheckTransaction(reference)
	if merr != nil {
		return false, fmt.Errorf("midtrans status: %s", merr.Error())
	}
	return MidtransSettled(st.TransactionStatus, st.FraudStatus), nil
}

// MidtransSettled maps a notification's transaction and fraud status to a final capture.
func MidtransSettled(transactionStatus, fraudStatus string) bool {
	switch transactionStatus {
	case "settlement":
		return true
	case "capture":
		return fraudStatus == "" || fraudStatus == "accept"
	}
	return false
}

// MidtransFailed reports terminal failure statuses.
func MidtransFailed(transactionStatus string) bool {
	switch transactionStatus {
	case "deny", "cancel", "expire", "failure":
		return true
	}
	return false
}

// MidtransSignature is SHA512(order_id + status_code + gross_amount + server key), hex encoded.
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}
