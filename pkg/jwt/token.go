package jwtPkg

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"Unwarp/pkg/log"
)

const (
	SessionTokenSecret = "SESSION_TOKEN_SECRET"
	SessionIDClaim     = "session_id"
	SessionLocalsKey   = "session_id"
)

func Sign(Data map[string]interface{}, ExpiredAt time.Duration) (string, int64, error) {
	expiredAt := time.Now().Add(ExpiredAt).Unix()

	JWTSecretKey := os.Getenv(SessionTokenSecret)
	if JWTSecretKey == "" {
		return "", 0, fmt.Errorf("%s not set", SessionTokenSecret)
	}

	claims := jwt.MapClaims{}
	claims["exp"] = expiredAt
	claims["iat"] = time.Now().Unix()

	for i, v := range Data {
		claims[i] = v
	}

	log.Debug(log.Fields{"claims": claims}, "Creating token with claims")

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(JWTSecretKey))
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

// SignSession issues a token that authorises its bearer for one editing
// session only.
func SignSession(sessionID string, ttl time.Duration) (string, int64, error) {
	return Sign(map[string]interface{}{SessionIDClaim: sessionID}, ttl)
}

// TokenFromRequest takes the bearer token from the Authorization header,
// falling back to the token query parameter that browsers must use for
// websocket upgrades.
func TokenFromRequest(c *fiber.Ctx) (string, error) {
	header := c.Get("Authorization")
	if header == "" {
		if q := strings.TrimSpace(c.Query("token")); q != "" {
			return q, nil
		}
		return "", errors.New("empty Authorization header")
	}

	parts := strings.Split(header, "Bearer ")
	if len(parts) != 2 {
		return "", errors.New("invalid Authorization format")
	}

	accessToken := strings.TrimSpace(parts[1])
	if accessToken == "" {
		return "", errors.New("empty token")
	}
	return accessToken, nil
}

func VerifyToken(accessToken string, secretEnvKey string) (*jwt.Token, error) {
	JWTSecretKey := os.Getenv(secretEnvKey)
	if JWTSecretKey == "" {
		log.Error(log.Fields{"func": "VerifyToken", "env": secretEnvKey}, "JWT secret environment variable not set")
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Error(log.Fields{"func": "VerifyToken", "method": token.Header["alg"]}, "Unexpected signing method")
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecretKey), nil
	})

	if err != nil {
		log.Warn(log.Fields{"func": "VerifyToken", "error": err.Error()}, "Failed to parse JWT token")
		return nil, err
	}

	log.Debug(log.Fields{"func": "VerifyToken"}, "Token successfully verified")
	return token, nil
}

// SessionIDFromToken verifies raw and returns the session it was issued for.
func SessionIDFromToken(raw string) (string, error) {
	token, err := VerifyToken(raw, SessionTokenSecret)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sessionID, ok := claims[SessionIDClaim].(string)
	if !ok || sessionID == "" {
		return "", errors.New("token is not bound to a session")
	}
	return sessionID, nil
}

func GetSessionID(c *fiber.Ctx) (string, error) {
	sessionID, ok := c.Locals(SessionLocalsKey).(string)
	if !ok || sessionID == "" {
		return "", fiber.ErrUnauthorized
	}
	return sessionID, nil
}
