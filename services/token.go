package services

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const TokenIssuer = "devboard"

var (
	JWTSecretKey               string
	JWTExpirationTime          int64 // seconds
	RefreshTokenExpirationTime int64 // seconds
)

// InitJWT loads the signing secret and expiration windows from the
// environment. Fatal if the secret is missing outside of tests.
func InitJWT() {
	if os.Getenv("GO_ENV") == "test" {
		if os.Getenv("JWT_SECRET_KEY") == "" {
			os.Setenv("JWT_SECRET_KEY", "test_secret_key")
		}
		if os.Getenv("JWT_EXPIRATION_TIME") == "" {
			os.Setenv("JWT_EXPIRATION_TIME", "3600")
		}
		if os.Getenv("REFRESH_TOKEN_EXPIRATION_TIME") == "" {
			os.Setenv("REFRESH_TOKEN_EXPIRATION_TIME", "604800")
		}
	}

	JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if JWTSecretKey == "" {
		log.Fatal("JWT Secret Key not set")
	}

	var err error
	JWTExpirationTime, err = strconv.ParseInt(os.Getenv("JWT_EXPIRATION_TIME"), 10, 64)
	if err != nil {
		log.Fatal("Error parsing JWT expiration time")
	}

	RefreshTokenExpirationTime, err = strconv.ParseInt(os.Getenv("REFRESH_TOKEN_EXPIRATION_TIME"), 10, 64)
	if err != nil {
		log.Fatal("Error parsing refresh token expiration time")
	}
}

// GenerateToken issues a signed access token for the user.
func GenerateToken(userID string) (string, error) {
	return generateToken(userID, "access", time.Duration(JWTExpirationTime)*time.Second)
}

// GenerateRefreshToken issues a signed refresh token for the user.
func GenerateRefreshToken(userID string) (string, error) {
	return generateToken(userID, "refresh", time.Duration(RefreshTokenExpirationTime)*time.Second)
}

// GenerateTokenPair issues a fresh access/refresh pair. Each call embeds a
// unique jti so the pair is globally unique even for the same user and
// second of issuance.
func GenerateTokenPair(userID string) (model.TokenPair, error) {
	access, err := GenerateToken(userID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := GenerateRefreshToken(userID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func generateToken(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"type":    tokenType,
		"iss":     TokenIssuer,
		"jti":     newJTI(),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func newJTI() string {
	return uuid.New().String()
}

// ValidateToken parses and verifies a token, checking the expected type
// ("access" or "refresh") and returning the embedded user id.
func ValidateToken(tokenString, expectedType string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	if tokenType, _ := claims["type"].(string); tokenType != expectedType {
		return "", fmt.Errorf("invalid token type")
	}

	if iss, _ := claims["iss"].(string); iss != TokenIssuer {
		return "", fmt.Errorf("invalid token issuer")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("missing user id in token")
	}

	return userID, nil
}
