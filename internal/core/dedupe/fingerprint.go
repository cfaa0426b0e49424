package dedupe

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/agenthands/intake/internal/core/model"
)

// Fingerprint hashes the ordered field tuple. Values are NUL-terminated so
// shifting characters between adjacent fields changes the digest; absent
// fields hash as "".
func Fingerprint(fields model.ExtractedFields) model.Fingerprint {
	h := sha256.New()
	for _, v := range fields.Tuple() {
		_, _ = h.Write([]byte(v))
		_, _ = h.Write([]byte{0})
	}
	return model.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
