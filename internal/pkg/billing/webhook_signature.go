package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the request header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds how far a signed timestamp may drift from now.
const DefaultTolerance = 300 * time.Second

var (
	ErrNotConfigured    = errors.New("webhook secret is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// VerifyStripeWebhookSignature checks header against payload using the
// "t=<unix>,v1=<hex>" scheme. An empty secret fails closed with
// ErrNotConfigured before the header is looked at.
func VerifyStripeWebhookSignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrNotConfigured
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	// compare whole seconds; subtracting far-off timestamps as time.Duration overflows
	tol := int64(tolerance / time.Second)
	if nowTS := now.Unix(); ts < nowTS-tol || ts > nowTS+tol {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := computeSignature(payload, ts, secret)
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}

	var (
		ts    int64
		hasTS bool
		sigs  [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts, hasTS = n, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if !hasTS {
		return 0, nil, fmt.Errorf("%w: no timestamp", ErrInvalidSignature)
	}
	if len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: no v1 signature", ErrInvalidSignature)
	}
	return ts, sigs, nil
}

func computeSignature(payload []byte, ts int64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// ComputeSignature returns the hex v1 signature for payload signed at ts.
func ComputeSignature(payload []byte, ts time.Time, secret string) string {
	return hex.EncodeToString(computeSignature(payload, ts.Unix(), secret))
}

// SignedHeader builds a complete Stripe-Signature header value.
func SignedHeader(payload []byte, ts time.Time, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), ComputeSignature(payload, ts, secret))
}
