package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrInvalidToken   = errors.New("invalid token")
)

const tokenTTL = 24 * time.Hour

// Auth issues and checks viewer tokens. With an empty secret every request
// is allowed.
type Auth struct {
	secret       []byte
	passwordHash []byte
}

// NewAuth creates an Auth. passwordHash is a bcrypt hash; empty disables
// login.
func NewAuth(secret, passwordHash string) *Auth {
	return &Auth{secret: []byte(secret), passwordHash: []byte(passwordHash)}
}

// Enabled reports whether tokens are required.
func (a *Auth) Enabled() bool { return len(a.secret) > 0 }

// Login checks password against the configured hash and returns a signed
// token.
func (a *Auth) Login(password string) (string, error) {
	if !a.Enabled() || len(a.passwordHash) == 0 {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return a.Issue("admin")
}

// Issue signs a token for role.
func (a *Auth) Issue(role string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate parses a token and returns its claims.
func (a *Auth) Validate(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Require rejects requests without a valid token. The token is read from
// the Authorization header or, for browser sockets, the token query
// parameter.
func (a *Auth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		tok := c.Query("token")
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tok = h[len("Bearer "):]
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := a.Validate(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("role", claims["role"])
		c.Next()
	}
}
