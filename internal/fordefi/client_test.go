package fordefi

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(genKeyPEM(t, false))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestClientCreateTransaction(t *testing.T) {
	t.Parallel()
	signer := testSigner(t)
	fixed := time.Unix(1700000000, 0)
	body := []byte(`{"vault_id":"vault-1"}`)

	var seen struct {
		auth, ts, sig, ctype string
		body                 []byte
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != TransactionsPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		seen.auth = r.Header.Get("Authorization")
		seen.ts = r.Header.Get("x-timestamp")
		seen.sig = r.Header.Get("x-signature")
		seen.ctype = r.Header.Get("Content-Type")
		seen.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tx-42","state":"waiting_for_signature"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", signer, zerolog.Nop(),
		WithClock(func() time.Time { return fixed }))

	tx, err := c.CreateTransaction(t.Context(), &TransferRequest{Path: TransactionsPath, Body: body})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID != "tx-42" || tx.State != "waiting_for_signature" {
		t.Fatalf("unexpected response: %+v", tx)
	}

	if seen.auth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", seen.auth)
	}
	if seen.ts != "1700000000" {
		t.Fatalf("x-timestamp = %q", seen.ts)
	}
	if seen.ctype != "application/json" {
		t.Fatalf("Content-Type = %q", seen.ctype)
	}
	// The transmitted body is byte-identical to the signed body.
	if !bytes.Equal(seen.body, body) {
		t.Fatalf("body = %s, want %s", seen.body, body)
	}
	sig, err := base64.StdEncoding.DecodeString(seen.sig)
	if err != nil {
		t.Fatalf("x-signature is not base64: %v", err)
	}
	digest := sha256.Sum256(SigningPayload(TransactionsPath, fixed.Unix(), body))
	if !ecdsa.VerifyASN1(signer.Public(), digest[:], sig) {
		t.Fatal("x-signature does not verify against the canonical payload")
	}
}

func TestClientAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"Invalid vault"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", testSigner(t), zerolog.Nop())
	_, err := c.CreateTransaction(t.Context(), &TransferRequest{Path: TransactionsPath, Body: []byte(`{}`)})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 422 || apiErr.Detail != "Invalid vault" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientAPIErrorRawBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", testSigner(t), zerolog.Nop())
	_, err := c.CreateTransaction(t.Context(), &TransferRequest{Path: TransactionsPath, Body: []byte(`{}`)})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Detail != "upstream unavailable" {
		t.Fatalf("detail = %q", apiErr.Detail)
	}
}

func TestClientAcceptsUnparseable2xx(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", testSigner(t), zerolog.Nop())
	tx, err := c.CreateTransaction(t.Context(), &TransferRequest{Path: TransactionsPath, Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("2xx with odd body must not error: %v", err)
	}
	if tx.ID != "" {
		t.Fatalf("tx id = %q, want empty", tx.ID)
	}
}

func TestClientNetworkFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "tok", testSigner(t), zerolog.Nop())
	_, err := c.CreateTransaction(t.Context(), &TransferRequest{Path: TransactionsPath, Body: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure classified as APIError: %v", err)
	}
}
