package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/session"
)

const (
	SessionCookieName = "sessionid"

	contextPrincipalKey = "principal"
	contextSessionKey   = "session"
	bearerPrefix        = "Bearer "
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
// The standard `jti` claim carries the server side session id.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

func NewClaims(conf *core.Config, p account.Principal, sess session.Session) *Claims {
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID.String(),
			Issuer:    conf.AppName,
			Subject:   strconv.FormatInt(p.ID(), 10),
			ExpiresAt: sess.ExpiresAt.Unix(),
			IssuedAt:  sess.CreatedAt.Unix(),
		},
		Username: p.Account.Username,
		IsAdmin:  p.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(secretKey string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)

	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// authenticator opens sessions and resolves the acting principal of each authenticated request.
type authenticator struct {
	conf     *core.Config
	sessions session.Store
	accSvc   *account.Service
}

func newAuthenticator(conf *core.Config, sessions session.Store, accSvc *account.Service) *authenticator {
	return &authenticator{conf: conf, sessions: sessions, accSvc: accSvc}
}

// login opens a new session for p, sets the session cookie and returns the signed token.
func (a *authenticator) login(ctx echo.Context, p account.Principal) (string, error) {
	sess := session.New(p.ID(), a.conf.Server.SessionTTL)
	if err := a.sessions.Save(ctx.Request().Context(), sess); err != nil {
		return "", errors.Wrap(err, "saving session")
	}
	token, err := GenerateToken(a.conf.SecretKey, NewClaims(a.conf, p, sess))
	if err != nil {
		return "", err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   !a.conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (a *authenticator) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = a.sessions.Delete(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return nil
}

func (a *authenticator) parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return []byte(a.conf.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func (a *authenticator) resolve(ctx context.Context, claims *Claims) (session.Session, account.Principal, error) {
	sid, err := uuid.Parse(claims.Id)
	if err != nil {
		return session.Session{}, account.Principal{}, errInvalidToken
	}
	sess, err := a.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return session.Session{}, account.Principal{}, errInvalidToken
		}
		return session.Session{}, account.Principal{}, errors.Wrap(err, "getting session")
	}

	p, err := a.accSvc.GetPrincipal(ctx, sess.AccountID)
	if err != nil {
		if core.IsNotFound(err) {
			return session.Session{}, account.Principal{}, errUnauthorized
		}
		return session.Session{}, account.Principal{}, errors.Wrap(err, "getting principal")
	}
	if !p.Account.IsActive {
		return session.Session{}, account.Principal{}, errAccountDeactivated
	}
	return sess, p, nil
}

// middleware accepts the token from the Authorization header or the session cookie.
// The principal is resolved once and kept on the echo.Context for the handlers.
func (a *authenticator) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		raw := tokenFromRequest(ctx)
		if raw == "" {
			return errMissingToken
		}
		claims, err := a.parseToken(raw)
		if err != nil {
			return err
		}
		sess, p, err := a.resolve(ctx.Request().Context(), claims)
		if err != nil {
			return err
		}
		ctx.Set(contextSessionKey, sess)
		ctx.Set(contextPrincipalKey, p)
		return next(ctx)
	}
}

func tokenFromRequest(ctx echo.Context) string {
	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	if cookie, err := ctx.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func getContextPrincipal(ctx echo.Context) (account.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(account.Principal); ok {
		return p, nil
	}
	return account.Principal{}, errUnauthorized
}

func getContextSession(ctx echo.Context) (session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		return sess, nil
	}
	return session.Session{}, errUnauthorized
}
