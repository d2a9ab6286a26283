// Package token 签发带签名的会话令牌。
// 令牌将对局ID与开局者绑定，只有持有者才能继续操作该对局。
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTTL = 24 * time.Hour

var (
	// ErrMalformed 表示令牌无法解码。
	ErrMalformed = errors.New("token: malformed")
	// ErrBadSignature 表示令牌不是由当前密钥签发的。
	ErrBadSignature = errors.New("token: bad signature")
	// ErrExpired 表示令牌已超过有效期。
	ErrExpired = errors.New("token: expired")
	// ErrWrongGame 表示令牌有效，但属于另一局。
	ErrWrongGame = errors.New("token: issued for another game")
)

// Claims 是会话令牌中被签名的内容。
// 对局ID放在 subject 中，随机数作为 token id。
type Claims struct {
	Player string `json:"player"`
	jwt.RegisteredClaims
}

// Payload 是校验通过的令牌提供给调用方的信息。
type Payload struct {
	GameID int64
	Player string
	Nonce  string
}

// Signer 使用同一个密钥签发和校验令牌。
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner 使用 secret 作为 HS256 密钥。
// secret 为空时生成随机的32字节密钥，重启后旧令牌全部失效。
func NewSigner(secret string) (*Signer, error) {
	s := &Signer{key: []byte(secret), ttl: DefaultTTL, now: time.Now}
	if secret != "" {
		return s, nil
	}
	s.key = make([]byte, 32)
	if _, err := rand.Read(s.key); err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}
	return s, nil
}

// Issue 为 gameID 签发令牌。
func (s *Signer) Issue(gameID int64, player string) (string, error) {
	nonce, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("token nonce: %w", err)
	}
	now := s.now()
	claims := Claims{
		Player: player,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(gameID, 10),
			ID:        nonce.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验签名，并确认令牌属于 gameID。
func (s *Signer) Verify(tok string, gameID int64) (Payload, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Payload{}, ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return Payload{}, ErrExpired
	default:
		return Payload{}, ErrBadSignature
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	p := Payload{GameID: id, Player: claims.Player, Nonce: claims.ID}
	if id != gameID {
		return p, ErrWrongGame
	}
	return p, nil
}
