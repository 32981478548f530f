package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrAmountNotPayable is returned for amounts a gateway cannot move exactly.
var ErrAmountNotPayable = errors.New("amount not payable through gateway")

// Stepped is implemented by gateways that only move whole multiples of a
// minor-unit step, such as M-Pesa which settles in whole shillings.
type Stepped interface {
	AmountStep() int64
}

// CheckAmount rejects amounts gw would have to round.
func CheckAmount(gw any, cents int64) error {
	if cents <= 0 {
		return fmt.Errorf("%w: %d", ErrAmountNotPayable, cents)
	}
	if s, ok := gw.(Stepped); ok && s.AmountStep() > 1 && cents%s.AmountStep() != 0 {
		return fmt.Errorf("%w: %d is not a multiple of %d", ErrAmountNotPayable, cents, s.AmountStep())
	}
	return nil
}

// CallbackToken signs orderID for the callback URL handed to a gateway. The
// gateway echoes it back, so a callback carrying it came from a URL only the
// engine could have built.
func CallbackToken(secret, orderID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackToken checks token against orderID. An empty secret never verifies.
func VerifyCallbackToken(secret, orderID, token string) bool {
	if secret == "" || orderID == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(CallbackToken(secret, orderID)))
}
