// ABOUTME: Lowercase hex encoding for SRP values on the wire
// ABOUTME: Hex implements TextMarshaler so JSON bodies carry hex strings instead of base64

package srp

import (
	"encoding/hex"
	"fmt"
)

// Hex is a byte string that marshals as lowercase hex.
type Hex []byte

// MarshalText implements encoding.TextMarshaler.
func (h Hex) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(out, h)
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hex) UnmarshalText(text []byte) error {
	decoded := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(decoded, text); err != nil {
		return fmt.Errorf("invalid hex value: %w", err)
	}
	*h = decoded
	return nil
}

// String returns the hex form.
func (h Hex) String() string {
	return hex.EncodeToString(h)
}
