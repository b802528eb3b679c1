package security

import (
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// CodeHash computes the order-sensitive rolling hash used for bot payload
// drift detection (hash*31 + char, truncated to int32). It is a cheap
// drift signal, not collision-resistant; tamper-proof verification would
// need a cryptographic digest.
func CodeHash(code string) string {
	var hash int32
	for _, r := range code {
		hash = hash<<5 - hash + int32(r)
	}
	return strconv.FormatInt(int64(hash), 10)
}

// HashRecoveryCode stores recovery codes bcrypt-hashed; the clear value
// is shown to the user exactly once at issuance.
func HashRecoveryCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckRecoveryCode compares a presented code against its stored hash.
func CheckRecoveryCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
