package service

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrExhaustedAttempts = errors.New("code space exhausted")
)

// Redemption failure reasons carried by CredentialInvalidError.
const (
	ReasonNotFound    = "not-found"
	ReasonAlreadyUsed = "already-used"
	ReasonExpired     = "expired"
)

// CredentialInvalidError reports why a redemption was refused. Handlers
// map the reason to a status code; everything else treats any reason as
// "this credential no longer works".
type CredentialInvalidError struct {
	Namespace string
	Reason    string
}

func (e *CredentialInvalidError) Error() string {
	return "credential " + e.Reason + " in " + e.Namespace
}

// IsCredentialInvalid unwraps err into a CredentialInvalidError if it is one.
func IsCredentialInvalid(err error) (*CredentialInvalidError, bool) {
	var ce *CredentialInvalidError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
