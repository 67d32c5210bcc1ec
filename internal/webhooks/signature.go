package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

const (
	SignatureHeader = "X-Gateway-Signature"
	signaturePrefix = "sha256="
)

// Sign returns the hex HMAC-SHA256 of payload, prefixed with "sha256=".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the payload. The "sha256=" prefix
// is optional.
func VerifySignature(payload []byte, header, secret string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature missing")
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "gateway signature malformed")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature mismatch")
	}
	return nil
}
