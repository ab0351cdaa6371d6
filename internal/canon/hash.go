package canon

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash domains. The version suffix leaves room for changing what goes
// into a hash without silently colliding with older values.
const (
	DomainSchedule = "flint/schedule/v1"
	DomainSnapshot = "flint/snapshot/v1"
)

// Hash returns hex(SHA256(domain || 0x00 || canonical(v))).
func Hash(domain string, v any) (string, error) {
	data, err := MarshalValue(v)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, data), nil
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
