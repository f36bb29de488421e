package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/angelmondragon/paygate-backend/api/responses"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/security"
)

// Authenticate admits a request through one of two security contexts: a
// session-bound anti-forgery token for browser-facing callers, or a
// cryptographic request signature for server-to-server callers. A signature
// is a replacement credential, never a bypass; unauthenticated requests are
// rejected before any payment logic runs.
func Authenticate(antiforgery *security.Antiforgery, verifier *security.SignedRequestVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if keyID := r.Header.Get(security.HeaderKeyID); keyID != "" {
				if verifier == nil || !verifier.Enabled() {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "signed requests are not enabled"))
					return
				}
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				err = verifier.Verify(
					keyID,
					r.Header.Get(security.HeaderSignatureTimestamp),
					r.Header.Get(security.HeaderSignature),
					r.Method,
					r.URL.Path,
					body,
				)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "request signature rejected"))
					return
				}

				callerID := "key:" + keyID
				ctx = WithCaller(ctx, callerID, AuthModeSigned)
				if logg != nil {
					ctx = logg.WithCallerID(ctx, callerID)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sessionID := r.Header.Get(security.HeaderSessionID)
			token := r.Header.Get(security.HeaderAntiforgeryToken)
			if sessionID == "" || token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session and anti-forgery token are required"))
				return
			}
			if err := antiforgery.Verify(token, sessionID); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "anti-forgery token rejected"))
				return
			}

			callerID := "session:" + sessionID
			ctx = WithCaller(ctx, callerID, AuthModeSession)
			if logg != nil {
				ctx = logg.WithCallerID(ctx, callerID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
