package fordefi

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strconv"
)

// Signer produces the request signature the Fordefi API verifies against the
// registered API Signer key.
//
// The canonical signing payload is the UTF-8 concatenation
// "<path>|<unix-seconds>|<body>"; the body bytes must be the exact bytes
// later transmitted, so callers sign the serialized TransferRequest.Body and
// never a re-marshaled copy.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner parses an ECDSA private key from PEM ("EC PRIVATE KEY" or
// PKCS#8 "PRIVATE KEY" blocks).
func NewSigner(pemText string) (*Signer, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in signer key")
	}

	var (
		key *ecdsa.PrivateKey
		err error
	)
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var any any
		any, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			key, ok = any.(*ecdsa.PrivateKey)
			if !ok {
				err = fmt.Errorf("PKCS#8 key is not an ECDSA key")
			}
		}
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Sign returns the ASN.1 DER-encoded ECDSA signature over SHA-256 of the
// canonical payload. The nil rand source selects deterministic signing
// (FIPS 186-5), so a given (path, timestamp, body) always signs to the
// same bytes.
func (s *Signer) Sign(path string, timestamp int64, body []byte) ([]byte, error) {
	digest := sha256.Sum256(SigningPayload(path, timestamp, body))
	sig, err := s.key.Sign(nil, digest[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("sign transaction payload: %w", err)
	}
	return sig, nil
}

// Public exposes the verification key (used by tests).
func (s *Signer) Public() *ecdsa.PublicKey { return &s.key.PublicKey }

// SigningPayload builds the canonical byte sequence that gets hashed and
// signed. Exposed so tests can assert byte-exactness.
func SigningPayload(path string, timestamp int64, body []byte) []byte {
	ts := strconv.FormatInt(timestamp, 10)
	payload := make([]byte, 0, len(path)+1+len(ts)+1+len(body))
	payload = append(payload, path...)
	payload = append(payload, '|')
	payload = append(payload, ts...)
	payload = append(payload, '|')
	payload = append(payload, body...)
	return payload
}
