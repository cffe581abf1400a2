package nowpayments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// IPNVerifier authenticates provider callbacks. The provider signs the JSON
// payload re-serialized with sorted keys using HMAC-SHA512 over the account's
// IPN secret and sends the hex digest in the x-nowpayments-sig header.
type IPNVerifier struct {
	Secret string
}

func (v IPNVerifier) Verify(payload []byte, signature string) (bool, error) {
	if strings.TrimSpace(v.Secret) == "" {
		return false, fmt.Errorf("ipn secret is not configured")
	}
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false, nil
	}
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha512.New, []byte(v.Secret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// canonicalJSON re-encodes the payload as a compact JSON object with sorted
// keys. Numbers keep their original representation so the digest matches the
// one the provider computed.
func canonicalJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
