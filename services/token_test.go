package services

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")
	InitJWT()
	os.Exit(m.Run())
}

func TestGenerateTokenPair(t *testing.T) {
	pair, err := GenerateTokenPair("user-1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token in pair")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens are identical")
	}

	// A second pair for the same user in the same second must still
	// differ, the jti claim guarantees it.
	second, err := GenerateTokenPair("user-1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if second.AccessToken == pair.AccessToken {
		t.Error("two pairs for the same user share an access token")
	}
	if second.RefreshToken == pair.RefreshToken {
		t.Error("two pairs for the same user share a refresh token")
	}
}

func TestValidateToken(t *testing.T) {
	pair, err := GenerateTokenPair("user-1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	tests := []struct {
		name         string
		token        string
		expectedType string
		wantUserID   string
		wantErr      bool
	}{
		{"valid access token", pair.AccessToken, "access", "user-1", false},
		{"valid refresh token", pair.RefreshToken, "refresh", "user-1", false},
		{"access token as refresh", pair.AccessToken, "refresh", "", true},
		{"refresh token as access", pair.RefreshToken, "access", "", true},
		{"garbage token", "not.a.token", "access", "", true},
		{"empty token", "", "access", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := ValidateToken(tt.token, tt.expectedType)
			if tt.wantErr {
				if err == nil {
					t.Error("expected validation to fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateToken failed: %v", err)
			}
			if userID != tt.wantUserID {
				t.Errorf("user id = %q, want %q", userID, tt.wantUserID)
			}
		})
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	original := JWTSecretKey
	JWTSecretKey = "some_other_secret"
	defer func() { JWTSecretKey = original }()

	if _, err := ValidateToken(token, "access"); err == nil {
		t.Error("token signed with a different secret was accepted")
	}
}
