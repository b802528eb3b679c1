package service

import (
	"context"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
)

// CredentialStore holds redeemable credentials, partitioned by namespace.
// Implementations must make Redeem atomic: under concurrent redemption of
// the same token exactly one caller wins and every other caller sees
// already-used.
//
// The store does not auto-expire entries. Expiry is enforced logically at
// redeem time and physically by the maintenance sweeper, so an expired
// credential stays observable until the next sweep.
type CredentialStore interface {
	// Put writes or overwrites a credential.
	Put(ctx context.Context, namespace string, cred *domain.Credential) error
	// Get reads a credential without changing its state. Missing tokens
	// yield CredentialInvalidError{Reason: not-found}.
	Get(ctx context.Context, namespace, token string) (*domain.Credential, error)
	// Redeem flips Used from false to true exactly once and returns the
	// stored credential. Failures are CredentialInvalidError with reason
	// not-found, already-used or expired.
	Redeem(ctx context.Context, namespace, token string, now time.Time) (*domain.Credential, error)
	// Reserve writes the credential only if the token is free, reporting
	// whether the reservation was won.
	Reserve(ctx context.Context, namespace string, cred *domain.Credential) (bool, error)
	// Scan visits every credential in the namespace.
	Scan(ctx context.Context, namespace string, fn func(cred *domain.Credential) error) error
	// Delete removes tokens and reports how many existed.
	Delete(ctx context.Context, namespace string, tokens ...string) (int64, error)
	Ping(ctx context.Context) error
}
