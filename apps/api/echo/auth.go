package echoapi

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/user"
)

const (
	contextTokenKey    = "identityToken"
	contextIdentityKey = "identity"
)

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	ClassID      string `json:"class_id,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher    bool   `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

func GetIdentityClaims(conf *core.Config, idt user.Identity, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   idt.ID,
			Audience:  conf.AppName,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         idt.Name,
		Email:        idt.Email,
		Role:         idt.Role,
		ClassID:      idt.ClassID,
		IsStudent:    idt.IsStudent(),
		IsTeacher:    idt.IsTeacher(),
		IsAdmin:      idt.IsAdmin(),
	}
	return claims
}

// identity rebuilds the principal carried by the claims. The role comes
// from the token as-is; unknown roles fail every role check downstream
// instead of defaulting.
func (c Claims) identity() *user.Identity {
	return &user.Identity{
		ID:      c.Subject,
		Name:    c.Name,
		Email:   c.Email,
		Role:    c.Role,
		ClassID: c.ClassID,
	}
}

func authenticate(ctx context.Context, email, pwd string, deps *ServerDeps) (*Claims, error) {
	idt, err := deps.UserSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding identity by email")
	}
	if err = idt.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !idt.IsActive {
		return nil, errAccountDeactivated
	}
	idt, err = deps.UserSvc.SetLastLogin(ctx, idt)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetIdentityClaims(deps.Conf, idt), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(conf.SecretKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

// maybeGetClaims parses the bearer token on routes where auth is
// optional. An absent or invalid token returns nil, never an error.
func maybeGetClaims(ctx echo.Context, conf *core.Config) *Claims {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil
	}

	token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), new(Claims), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return conf.SecretKey, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextIdentity(ctx echo.Context, deps *ServerDeps, clms ...Claims) (user.Identity, error) {
	if idt, ok := ctx.Get(contextIdentityKey).(user.Identity); ok {
		return idt, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.Identity{}, errors.Wrap(err, "getting context claims")
		}
	}

	idt, err := deps.UserSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "finding identity by ID")
	}
	ctx.Set(contextIdentityKey, idt)
	return idt, nil
}

func refreshToken(ctx echo.Context, deps *ServerDeps) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	idt, err := getContextIdentity(ctx, deps, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context identity")
	}

	// check if identity is still active
	if !idt.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(deps.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetIdentityClaims(deps.Conf, idt, claims.OrigIssuedAt)
	token, err := GenerateToken(deps.Conf, newClaims)
	return token, errors.Wrap(err, "generating token")
}
