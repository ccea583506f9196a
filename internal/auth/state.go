package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/storefront/internal/model"
)

const (
	stateIssuer     = "storefront"
	defaultStateTTL = 10 * time.Minute
)

// stateClaims はstate Cookieに格納するJWTのクレーム。
type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateCodec はOAuth stateのnonceをHS256署名付きトークンとして発行・検証する。
// ブラウザのCookieに保存し、コールバック時のqueryのstateと照合する。
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateCodec はStateCodecを生成する。ttlが0以下の場合は10分。
func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はstateトークンの有効期間を返す。
func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

// Issue は新しいnonceを生成し、nonceと署名済みトークンを返す。
func (c *StateCodec) Issue() (nonce string, token string, err error) {
	nonce, err = generateToken(16)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	now := c.now()
	claims := stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state token: %w", err)
	}
	return nonce, token, nil
}

// Verify はCookieのトークンとqueryのstateを照合する。
// 署名不正・期限切れ・不一致はすべてmodel.ErrInvalidStateを返す。
func (c *StateCodec) Verify(token, state string) error {
	if token == "" || state == "" {
		return fmt.Errorf("%w: missing state", model.ErrInvalidState)
	}

	var claims stateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidState, err)
	}

	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(state)) != 1 {
		return fmt.Errorf("%w: %w", model.ErrInvalidState, errStateMismatch)
	}
	return nil
}

var errStateMismatch = errors.New("state does not match")

// generateToken は暗号的に安全なランダム値をhex文字列で返す。
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
