package idp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier verifies bearer credentials as OIDC ID tokens
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
}

// OIDCConfig configures the OIDC verifier
type OIDCConfig struct {
	IssuerURL string
	ClientID  string

	// VerifyTimeout bounds each verification round-trip (key fetches
	// included). A timeout surfaces as ProviderError.
	VerifyTimeout time.Duration
}

// NewOIDCVerifier discovers the issuer and builds an ID token verifier
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		timeout:  timeout,
	}, nil
}

// Verify validates a raw ID token and maps it to a VerifiedSubject
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*VerifiedSubject, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, NewTokenError(TokenInvalid, fmt.Errorf("failed to parse claims: %w", err))
	}

	subject := &VerifiedSubject{
		ExternalID: idToken.Subject,
		Claims:     claims,
	}
	if email, ok := claims["email"].(string); ok {
		subject.Email = email
	}

	if subject.ExternalID == "" {
		return nil, NewTokenError(TokenInvalid, fmt.Errorf("missing subject in token"))
	}

	return subject, nil
}

// classifyVerifyError maps go-oidc failures onto the token error taxonomy.
// Expiry is its own outcome; transport problems are provider errors; every
// other verification failure means the token never was valid.
func classifyVerifyError(err error) *TokenError {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return NewTokenError(TokenExpired, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTokenError(ProviderError, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewTokenError(ProviderError, err)
	}

	return NewTokenError(TokenInvalid, err)
}
