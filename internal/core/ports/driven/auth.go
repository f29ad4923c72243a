package driven

import "github.com/custodia-labs/verag/internal/core/domain"

// TokenVerifier validates bearer tokens issued by the surrounding platform.
type TokenVerifier interface {
	// Verify returns the caller for a valid token, domain.ErrTokenInvalid otherwise
	Verify(token string) (*domain.Caller, error)
}
