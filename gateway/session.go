package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/rosterd/console/identity"
)

// SessionAuth mints and verifies the console's own session tokens. Bearer
// credentials from the remote provider never pass through here; those are
// introspected remotely.
type SessionAuth struct {
	Key    []byte
	Config identity.Config
}

// SessionClaims is the console session claim set.
type SessionClaims struct {
	Email    string   `json:"email"`
	RemoteID string   `json:"remote_id"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.StandardClaims
}

// Init installs the signing key from config.
func (s *SessionAuth) Init() error {
	if s.Config.JWTKey == "" {
		return errors.New("empty session signing key")
	}
	s.Key = []byte(s.Config.JWTKey)
	return nil
}

// GenerateSession issues a signed session token for an introspected caller.
func (s *SessionAuth) GenerateSession(email, remoteID string, scopes []string) (string, error) {
	if s.Key == nil {
		return "", errors.New("session auth not initialized")
	}
	now := time.Now()
	claims := SessionClaims{
		Email:    email,
		RemoteID: remoteID,
		Scopes:   scopes,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(3 * time.Hour).Unix(),
			Issuer:    "rosterd-console",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Key)
}

// VerifySession validates a session token and returns its claims.
func (s *SessionAuth) VerifySession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.Key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("token is invalid")
}
