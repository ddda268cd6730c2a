package remotesim

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "kasir-remote"

var ErrInvalidToken = errors.New("invalid or expired token")

// DeviceClaims identifies the terminal a token was issued to.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for deviceID valid for ttl.
func IssueToken(secret, deviceID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret []byte, raw string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &DeviceClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*DeviceClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return fail(c, fiber.StatusUnauthorized, "missing authorization token")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return fail(c, fiber.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
	}

	claims, err := parseToken(s.secret, parts[1])
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, err.Error())
	}
	c.Locals("device_id", claims.DeviceID)
	return c.Next()
}
