package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Roles carried in app_metadata. Anything other than admin is treated
// as a regular user.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Claims are the verified contents of a Supabase access token. Role is
// lifted out of app_metadata during verification so call sites never
// traverse the nested object themselves.
type Claims struct {
	Sub         string      `json:"sub"`
	Email       string      `json:"email"`
	Aud         string      `json:"aud"`
	Exp         int64       `json:"exp"`
	Iat         int64       `json:"iat"`
	AppMetadata appMetadata `json:"app_metadata"`

	Role string `json:"-"`
}

type appMetadata struct {
	Role string `json:"role"`
}

// Verifier validates HS256 tokens issued by the Supabase identity
// provider. It only verifies; tokens are never issued here.
type Verifier struct {
	secret   []byte
	audience string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), audience: "authenticated"}
}

// Verify checks the token's signature, expiry, and audience and returns
// the claims. Failures are terminal for the request; nothing is retried.
func (v *Verifier) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid token format")
	}

	signingInput := parts[0] + "." + parts[1]
	expectedSig := v.hmacSign([]byte(signingInput))
	actualSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding")
	}
	if subtle.ConstantTimeCompare(expectedSig, actualSig) != 1 {
		return nil, fmt.Errorf("invalid signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid payload encoding")
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("invalid claims: %w", err)
	}

	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}
	if claims.Aud != v.audience {
		return nil, fmt.Errorf("invalid audience")
	}

	claims.Role = claims.AppMetadata.Role
	return &claims, nil
}

func (v *Verifier) hmacSign(data []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(data)
	return mac.Sum(nil)
}
