package authsvc

import (
	"context"
	"errors"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/svc/authsvc/authclient"
)

// LocalClient implements AuthClient against an in-process AuthService.
// Used when the social API and the auth service run in the same binary.
type LocalClient struct {
	authSvc *AuthService
}

var _ authclient.AuthClient = (*LocalClient)(nil)

// NewLocalClient creates a LocalClient wrapping the given AuthService.
func NewLocalClient(authSvc *AuthService) *LocalClient {
	return &LocalClient{authSvc: authSvc}
}

// Validate implements AuthClient.Validate by verifying the token directly.
// An invalid token is reported as not-ok, not as an error.
func (c *LocalClient) Validate(ctx context.Context, token string) (string, bool, error) {
	authToken, err := c.authSvc.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAuthToken) {
			return "", false, nil
		}

		return "", false, err
	}

	return authToken.UserID, true, nil
}
