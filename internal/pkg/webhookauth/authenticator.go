// Package webhookauth verifies gateway webhook payloads before they are parsed.
package webhookauth

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"sales-offers-billing/internal/pkg/apperror"
)

type Authenticator struct {
	secret    []byte
	serverKey string
}

type Option func(*Authenticator)

// WithMidtransServerKey enables verification of Midtrans notifications, which carry
// their signature in the body instead of a header.
func WithMidtransServerKey(key string) Option {
	return func(a *Authenticator) {
		a.serverKey = key
	}
}

func NewAuthenticator(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{secret: []byte(secret)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate checks an HMAC-SHA512 hex signature over the raw body.
func (a *Authenticator) Authenticate(body []byte, signature string) error {
	if len(a.secret) == 0 || len(body) == 0 {
		return apperror.ErrSignatureInvalid
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return apperror.ErrSignatureInvalid
	}
	provided, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return apperror.ErrSignatureInvalid
	}

	mac := hmac.New(sha512.New, a.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return apperror.ErrSignatureInvalid
	}
	return nil
}

// Sign returns the hex signature a gateway would send for body.
func (a *Authenticator) Sign(body []byte) string {
	mac := hmac.New(sha512.New, a.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// AuthenticateNotification checks a Midtrans signature_key, the hex SHA512 of
// order_id + status_code + gross_amount + server key.
func (a *Authenticator) AuthenticateNotification(orderID, statusCode, grossAmount, signatureKey string) error {
	if a.serverKey == "" || orderID == "" {
		return apperror.ErrSignatureInvalid
	}
	provided, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signatureKey)))
	if err != nil || len(provided) == 0 {
		return apperror.ErrSignatureInvalid
	}
	expected := sha512.Sum512([]byte(orderID + statusCode + grossAmount + a.serverKey))
	if subtle.ConstantTimeCompare(expected[:], provided) != 1 {
		return apperror.ErrSignatureInvalid
	}
	return nil
}

// SignNotification returns the signature_key Midtrans would send.
func (a *Authenticator) SignNotification(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + a.serverKey))
	return hex.EncodeToString(sum[:])
}
