package controllers

import (
	"net/http"

	"github.com/angelmondragon/paygate-backend/api/responses"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/security"
)

// TokensController mints the session-bound anti-forgery token a browser caller
// must present on intake requests.
type TokensController struct {
	antiforgery *security.Antiforgery
	logger      *logger.Logger
}

func NewTokensController(antiforgery *security.Antiforgery, logg *logger.Logger) (*TokensController, error) {
	if antiforgery == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tokens controller requires an anti-forgery minter")
	}
	return &TokensController{antiforgery: antiforgery, logger: logg}, nil
}

// AntiforgeryToken handles GET /v1/antiforgery-token. The token is bound to
// the session in the X-Session-Id header; a token minted for one session is
// useless to another.
func (c *TokensController) AntiforgeryToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := r.Header.Get(security.HeaderSessionID)
	if sessionID == "" {
		responses.WriteError(ctx, c.logger, w, pkgerrors.New(pkgerrors.CodeValidation, "session id header is required"))
		return
	}

	token, err := c.antiforgery.Mint(sessionID)
	if err != nil {
		responses.WriteError(ctx, c.logger, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting anti-forgery token"))
		return
	}

	responses.WriteJSON(w, http.StatusOK, map[string]string{"antiforgery_token": token})
}
