package lineitems

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// OptionsSignature fingerprints a line item's options. Map keys are
// marshalled in sorted order, so equal option sets share a signature
// regardless of insertion order.
func OptionsSignature(options map[string]any) (string, error) {
	if options == nil {
		options = map[string]any{}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode line item options: %w", err)
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}
