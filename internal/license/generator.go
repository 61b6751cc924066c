package license

import (
	"crypto/rand"
	"fmt"
	"strings"

	"kdsops/pkg/contracts/domain"
)

// keyAlphabet omits 0/O/1/I so codes survive being read over the phone.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const keyGroups = 4
const keyGroupLen = 4

// keyPrefix maps a key kind to its human-readable code prefix.
func keyPrefix(kind domain.KeyKind) string {
	switch kind {
	case domain.KeyMaster:
		return "KDSM"
	case domain.KeyBranch:
		return "KDSB"
	default:
		return "KDS"
	}
}

// GenerateKey mints a new opaque code of the given kind, e.g.
// KDS-7XKP-Q2MN-8RWT-ZC4H. Codes carry no embedded meaning beyond the
// prefix; linkage to a tenant lives in the ledger row, never in the code.
func GenerateKey(kind domain.KeyKind) (string, error) {
	raw := make([]byte, keyGroups*keyGroupLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("license: generate key: %w", err)
	}

	var b strings.Builder
	b.WriteString(keyPrefix(kind))
	for i, c := range raw {
		if i%keyGroupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[int(c)%len(keyAlphabet)])
	}
	return b.String(), nil
}
