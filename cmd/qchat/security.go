package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// verifySignature reads and authenticates a webhook delivery. The
// signature header carries "sha256=<hex>" over the raw body; when a
// timestamp header is present it must be within maxSkewSec of now to
// blunt replayed deliveries. The body is restored for downstream reads.
func verifySignature(r *http.Request, secretKey, signatureHeaderName string, maxSkewSec int) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if secretKey == "" {
		if os.Getenv("QCHAT_ENV") == "production" {
			return nil, fmt.Errorf("webhook secret is required in production mode")
		}
		return body, nil
	}

	signatureHeader := r.Header.Get(signatureHeaderName)
	if signatureHeader == "" {
		return nil, fmt.Errorf("missing signature header: %s", signatureHeaderName)
	}

	parts := strings.SplitN(signatureHeader, "=", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "sha256" {
		return nil, fmt.Errorf("invalid signature format in header %s", signatureHeaderName)
	}
	expectedSignatureHex := parts[1]

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(body)
	computedSignatureHex := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computedSignatureHex), []byte(expectedSignatureHex)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	if timestamp := r.Header.Get("X-Webhook-Timestamp"); timestamp != "" && maxSkewSec > 0 {
		sentAt, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid X-Webhook-Timestamp header")
		}
		skew := time.Since(time.Unix(sentAt, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > time.Duration(maxSkewSec)*time.Second {
			return nil, fmt.Errorf("webhook timestamp outside allowed skew")
		}
	}

	return body, nil
}
