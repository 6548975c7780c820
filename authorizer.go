package auth

// Authorizer turns bearer tokens into an AuthContext
type Authorizer struct {
	codec    *TokenCodec
	audience string
	logger   Logger
}

// NewAuthorizer creates an authorizer accepting tokens for DefaultAudience
func NewAuthorizer(codec *TokenCodec) *Authorizer {
	return &Authorizer{
		codec:    codec,
		audience: DefaultAudience,
		logger:   defLogger{},
	}
}

// WithAudience overrides the required aud claim
func (a *Authorizer) WithAudience(audience string) *Authorizer {
	if audience != "" {
		a.audience = audience
	}
	return a
}

// WithLogger overrides the logger
func (a *Authorizer) WithLogger(logger Logger) *Authorizer {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Check verifies token and maps its claims. Every failure is an
// authentication error; signature mismatches are expected client noise
// while anything else is logged as an error.
func (a *Authorizer) Check(token string) (*AuthContext, error) {
	claims, err := a.codec.Verify(token, VerifyOptions{Audience: a.audience})
	if err != nil {
		if IsSignatureInvalid(err) {
			a.logger.Debug("rejected access token with invalid signature")
			return nil, err
		}

		a.logger.Error("access token verification failed: %v", err)
		authErr := newError(ErrInvalidAccessToken, map[string]any{"reason": TextCode(err)})
		authErr.Source = err
		return nil, authErr
	}

	if claims.Subject == "" {
		authErr := newError(ErrInvalidAccessToken, map[string]any{"reason": "missing subject"})
		return nil, authErr
	}

	return claims.AuthContext(), nil
}
