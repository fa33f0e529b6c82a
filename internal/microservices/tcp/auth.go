package tcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TCPAuthService issues and checks the session tokens handed out in LOGIN_RES,
// so an operator can reconnect without resending its password digest.
type TCPAuthService struct {
	jwtSecret string
	expiry    time.Duration
	now       func() time.Time
}

func NewTCPAuthService(jwtSecret string, expiry time.Duration) *TCPAuthService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TCPAuthService{jwtSecret: jwtSecret, expiry: expiry, now: time.Now}
}

func (a *TCPAuthService) IssueToken(loginID string) (string, error) {
	if loginID == "" {
		return "", errors.New("login id is required")
	}
	now := a.now()
	claims := jwt.MapClaims{
		"login_id": loginID,
		"role":     RoleOperator.String(),
		"iat":      now.Unix(),
		"exp":      now.Add(a.expiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the login id carried by a token from IssueToken.
func (a *TCPAuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(a.jwtSecret), nil
	}, jwt.WithTimeFunc(a.now))

	if err != nil || !token.Valid {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	loginID, ok := claims["login_id"].(string)
	if !ok || loginID == "" {
		return "", errors.New("login_id claim is not a string")
	}

	if role, _ := claims["role"].(string); role != RoleOperator.String() {
		return "", errors.New("token was not issued to an operator")
	}

	return loginID, nil
}
