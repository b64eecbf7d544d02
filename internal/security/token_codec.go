package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sandeepkv93/session-guard/internal/observability"
)

const (
	ClaimCreated   = "created"
	ClaimType      = "type"
	ClaimSessionID = "session_id"

	TokenTypeBootstrap = "bootstrap"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

// TokenCodec signs and verifies session tokens. Decoding never fails: any token
// that does not verify decodes to an empty claim map.
type TokenCodec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	now       func() time.Time
}

// NewTokenCodec builds a codec for alg. HMAC algorithms use signingKey as the shared
// secret; RSA and ECDSA algorithms take PEM keys, and verifyKey may be left empty to
// derive it from the private key.
func NewTokenCodec(alg, signingKey, verifyKey string) (*TokenCodec, error) {
	alg = strings.ToUpper(strings.TrimSpace(alg))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil || alg == "NONE" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	c := &TokenCodec{method: method, now: time.Now}
	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		if strings.TrimSpace(signingKey) == "" {
			return nil, errors.New("hmac signing requires a non-empty key")
		}
		c.signKey = []byte(signingKey)
		c.verifyKey = []byte(signingKey)
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(signingKey))
		if err != nil {
			return nil, fmt.Errorf("parse rsa private key: %w", err)
		}
		c.signKey = priv
		c.verifyKey = &priv.PublicKey
		if strings.TrimSpace(verifyKey) != "" {
			pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(verifyKey))
			if err != nil {
				return nil, fmt.Errorf("parse rsa public key: %w", err)
			}
			c.verifyKey = pub
		}
	case *jwt.SigningMethodECDSA:
		priv, err := jwt.ParseECPrivateKeyFromPEM([]byte(signingKey))
		if err != nil {
			return nil, fmt.Errorf("parse ecdsa private key: %w", err)
		}
		c.signKey = priv
		c.verifyKey = &priv.PublicKey
		if strings.TrimSpace(verifyKey) != "" {
			pub, err := jwt.ParseECPublicKeyFromPEM([]byte(verifyKey))
			if err != nil {
				return nil, fmt.Errorf("parse ecdsa public key: %w", err)
			}
			c.verifyKey = pub
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	return c, nil
}

func (c *TokenCodec) Algorithm() string { return c.method.Alg() }

// Encode signs claims after stamping the reserved created claim with the current
// unix time. The caller's map is not modified.
func (c *TokenCodec) Encode(claims map[string]any) (string, error) {
	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	mc[ClaimCreated] = c.now().Unix()
	signed, err := jwt.NewWithClaims(c.method, mc).SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode returns the verified claims, created included, or an empty map. Integral
// numbers come back as int64.
func (c *TokenCodec) Decode(token string) map[string]any {
	token = strings.TrimSpace(token)
	if token == "" {
		observability.RecordTokenDecode("empty")
		return map[string]any{}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithJSONNumber(),
	)
	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.verifyKey, nil
	})
	if err != nil || !tok.Valid {
		observability.RecordTokenDecode("invalid")
		return map[string]any{}
	}
	observability.RecordTokenDecode("valid")
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = restoreNumbers(v)
	}
	return out
}

// restoreNumbers turns the json.Number values left by the parser back into int64,
// or float64 when the number is not integral.
func restoreNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = restoreNumbers(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = restoreNumbers(item)
		}
		return out
	default:
		return v
	}
}

// Claims decodes token and strips the reserved created claim, giving back the map
// that was passed to Encode.
func (c *TokenCodec) Claims(token string) map[string]any {
	claims := c.Decode(token)
	delete(claims, ClaimCreated)
	return claims
}

// IssueSessionToken references a persisted session. The id is carried as a decimal
// string so packed 64-bit ids survive JSON number handling intact.
func (c *TokenCodec) IssueSessionToken(sessionID int64) (string, error) {
	return c.Encode(map[string]any{ClaimSessionID: strconv.FormatInt(sessionID, 10)})
}

// IssueBootstrapToken carries identity for the pre-persistence admin setup flow.
func (c *TokenCodec) IssueBootstrapToken(username, email, accessToken string) (string, error) {
	return c.Encode(map[string]any{
		ClaimType:      TokenTypeBootstrap,
		"username":     username,
		"email":        email,
		"access_token": accessToken,
	})
}

// SessionIDFromClaims extracts the persisted session id, accepting decimal strings
// and integral JSON numbers.
func SessionIDFromClaims(claims map[string]any) (int64, bool) {
	raw, ok := claims[ClaimSessionID]
	if !ok {
		return 0, false
	}
	var (
		id  int64
		err error
	)
	switch v := raw.(type) {
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case json.Number:
		id, err = v.Int64()
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		return 0, false
	}
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func IsBootstrapClaims(claims map[string]any) bool {
	t, _ := claims[ClaimType].(string)
	return t == TokenTypeBootstrap
}
