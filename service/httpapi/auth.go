package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	RoleAdmin        = "admin"
	CodeUnauthorized = activitystore.ResultCode("unauthorized")
	CodeForbidden    = activitystore.ResultCode("forbidden")
	bearerPrefix     = "Bearer "
	contextKeyClaims = "adminClaims"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errAdminOff     = errors.New("admin access is not configured")
)

// Claims are the JWT claims the admin guard understands.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SignAdminToken issues an HS256 token with the admin role, e.g. for operators and tests.
func SignAdminToken(secret string, claims Claims) (string, error) {
	if claims.Role == "" {
		claims.Role = RoleAdmin
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// requireAdmin rejects requests without a valid HS256 token (401) or without the admin role (403).
func (r *router) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := r.parseToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, activitystore.Failure[struct{}](CodeUnauthorized, err.Error()))
			return
		}

		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, activitystore.Failure[struct{}](CodeForbidden, "admin role required"))
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

func (r *router) parseToken(header string) (*Claims, error) {
	if len(r.jwtSecret) == 0 {
		return nil, errAdminOff
	}

	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, errMissingToken
	}

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(strings.TrimSpace(header[len(bearerPrefix):]), claims,
		func(*jwt.Token) (any, error) {
			return r.jwtSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
