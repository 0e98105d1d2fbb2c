package authapi

import (
	"context"
	"errors"

	"github.com/coreos/go-oidc/v3/oidc"
)

const googleIssuer = "https://accounts.google.com"

// ErrGoogleToken is returned for any Google ID token that does not verify.
var ErrGoogleToken = errors.New("google id token invalid")

// GoogleIdentity is the verified fact set extracted from a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleVerifier validates Google ID tokens presented by mobile clients.
// Implementations return identity facts only; user creation, linking, and
// session issuance stay with the handler.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (GoogleIdentity, error)
}

type oidcGoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier builds a GoogleVerifier backed by Google's OIDC
// discovery document. clientID is the audience the tokens must carry.
func NewGoogleVerifier(ctx context.Context, clientID string) (GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, err
	}

	return &oidcGoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *oidcGoogleVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (GoogleIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return GoogleIdentity{}, ErrGoogleToken
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return GoogleIdentity{}, ErrGoogleToken
	}
	if claims.Subject == "" || claims.Email == "" {
		return GoogleIdentity{}, ErrGoogleToken
	}

	return GoogleIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
