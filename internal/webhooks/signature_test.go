package webhooks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

func TestSignRoundTrip(t *testing.T) {
	payload := []byte(`{"hash":"abc"}`)
	sig := Sign(payload, "secret")
	require.True(t, strings.HasPrefix(sig, "sha256="))

	require.NoError(t, VerifySignature(payload, sig, "secret"))
	require.NoError(t, VerifySignature(payload, strings.TrimPrefix(sig, "sha256="), "secret"))
}

func TestVerifySignatureFailures(t *testing.T) {
	payload := []byte(`{"hash":"abc"}`)

	err := VerifySignature(payload, Sign(payload, "secret"), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	err = VerifySignature(payload, "sha256=zz", "secret")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	err = VerifySignature([]byte(`{"hash":"abd"}`), Sign(payload, "secret"), "secret")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
