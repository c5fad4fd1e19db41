package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// AuthConfig describes how candidate tokens are verified.
type AuthConfig struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
}

type candidateClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func abortUnauthorized(c *gin.Context, msg string) {
	err := utils.E(utils.CodeUnauthorized, "JWTAuth", msg, nil)
	_ = c.Error(err)
	c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{Code: utils.CodeUnauthorized, Message: msg})
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter that browsers use for WebSocket upgrades.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}

// JWTAuth verifies an HS256 token and stores its subject as "user_id".
func JWTAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			err := utils.E(utils.CodeInternal, "JWTAuth", "jwt secret is not configured", nil)
			_ = c.Error(err)
			c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{Code: utils.CodeInternal, Message: utils.UserMessage(err)})
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims := &candidateClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || tok == nil || !tok.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			abortUnauthorized(c, "invalid token issuer")
			return
		}
		if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
			abortUnauthorized(c, "invalid token audience")
			return
		}

		if claims.Subject == "" {
			abortUnauthorized(c, "missing subject")
			return
		}
		if claims.Role == "anon" {
			abortUnauthorized(c, "anonymous tokens cannot open interviews")
			return
		}

		c.Set("user_id", claims.Subject)
		c.Next()
	}
}
