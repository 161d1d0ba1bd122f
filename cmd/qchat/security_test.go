package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "0123456789abcdef0123456789abcdef"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureValid(t *testing.T) {
	body := []byte(`{"event":"message"}`)
	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signBody(testWebhookSecret, body))

	got, err := verifySignature(req, testWebhookSecret, "X-Webhook-Signature", 300)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// The body must still be readable downstream.
	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, rest)
}

func TestVerifySignatureMismatch(t *testing.T) {
	body := []byte(`{"event":"message"}`)
	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signBody("wrong-secret", body))

	_, err := verifySignature(req, testWebhookSecret, "X-Webhook-Signature", 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader([]byte(`{}`)))

	_, err := verifySignature(req, testWebhookSecret, "X-Webhook-Signature", 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing signature header")
}

func TestVerifySignatureInvalidFormat(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Webhook-Signature", "md5=deadbeef")

	_, err := verifySignature(req, testWebhookSecret, "X-Webhook-Signature", 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature format")
}

func TestVerifySignatureNoSecretDevelopment(t *testing.T) {
	t.Setenv("QCHAT_ENV", "")

	body := []byte(`{"event":"message"}`)
	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))

	got, err := verifySignature(req, "", "X-Webhook-Signature", 300)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestVerifySignatureNoSecretProduction(t *testing.T) {
	t.Setenv("QCHAT_ENV", "production")

	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader([]byte(`{}`)))

	_, err := verifySignature(req, "", "X-Webhook-Signature", 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required in production")
}

func TestVerifySignatureTimestampSkew(t *testing.T) {
	body := []byte(`{"event":"message"}`)

	fresh := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))
	fresh.Header.Set("X-Webhook-Signature", signBody(testWebhookSecret, body))
	fresh.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	_, err := verifySignature(fresh, testWebhookSecret, "X-Webhook-Signature", 300)
	require.NoError(t, err)

	stale := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))
	stale.Header.Set("X-Webhook-Signature", signBody(testWebhookSecret, body))
	stale.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10))
	_, err = verifySignature(stale, testWebhookSecret, "X-Webhook-Signature", 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside allowed skew")

	garbled := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))
	garbled.Header.Set("X-Webhook-Signature", signBody(testWebhookSecret, body))
	garbled.Header.Set("X-Webhook-Timestamp", "not-a-number")
	_, err = verifySignature(garbled, testWebhookSecret, "X-Webhook-Signature", 300)
	require.Error(t, err)
}

func TestVerifySignatureSkewDisabled(t *testing.T) {
	body := []byte(`{"event":"message"}`)
	req := httptest.NewRequest("POST", "/webhook/acme", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signBody(testWebhookSecret, body))
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", time.Now().Add(-24*time.Hour).Unix()))

	_, err := verifySignature(req, testWebhookSecret, "X-Webhook-Signature", 0)
	require.NoError(t, err)
}
