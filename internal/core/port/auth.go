package port

import "github.com/bookstore/orderservice/internal/core/domain"

type TokenPayload struct {
	Username string
	Role     domain.Role
}

func (p *TokenPayload) User() *domain.User {
	return &domain.User{Username: p.Username, Role: p.Role}
}

//go:generate mockgen -source=auth.go -destination=mock/auth.go -package=mock
type TokenService interface {
	CreateToken(user *domain.User) (string, error)
	VerifyToken(token string) (*TokenPayload, error)
}
