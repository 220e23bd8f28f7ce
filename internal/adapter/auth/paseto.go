package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
)

const payloadClaim = "payload"

type PasetoToken struct {
	parser   *paseto.Parser
	key      *paseto.V4SymmetricKey
	duration time.Duration
}

func New(conf *config.Token) (port.TokenService, error) {
	var key paseto.V4SymmetricKey
	if conf.SymmetricKeyHex == "" {
		key = paseto.NewV4SymmetricKey()
	} else {
		var err error
		key, err = paseto.V4SymmetricKeyFromHex(conf.SymmetricKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid token key: %w", err)
		}
	}

	parser := paseto.NewParser()

	s := PasetoToken{
		parser:   &parser,
		key:      &key,
		duration: conf.Duration,
	}

	return &s, nil
}

func (p *PasetoToken) CreateToken(user *domain.User) (string, error) {
	token := paseto.NewToken()
	now := time.Now()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(p.duration))
	token.SetSubject(user.Username)

	payload := port.TokenPayload{Username: user.Username, Role: user.Role}
	err := token.Set(payloadClaim, payload)
	if err != nil {
		return "", domain.ErrTokenCreation
	}

	return token.V4Encrypt(*p.key, nil), nil
}

func (p *PasetoToken) VerifyToken(token string) (*port.TokenPayload, error) {
	parsedToken, err := p.parser.ParseV4Local(*p.key, token, nil)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	payload := port.TokenPayload{}
	err = parsedToken.Get(payloadClaim, &payload)
	if err != nil || payload.Username == "" {
		return nil, domain.ErrInvalidToken
	}
	return &payload, nil
}
