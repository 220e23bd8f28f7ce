package http

import (
	"strings"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/gin-gonic/gin"
)

const authHeaderKey = "Authorization"
const authType = "Bearer"
const userPayloadKey = "user_payload"

func readToken(ctx *gin.Context) (string, error) {
	header := ctx.Request.Header.Get(authHeaderKey)
	if len(header) == 0 {
		return "", domain.ErrEmptyAuthorizationHeader
	}

	words := strings.Fields(header)
	if len(words) != 2 {
		return "", domain.ErrInvalidAuthorizationHeader
	}
	if words[0] != authType {
		return "", domain.ErrInvalidAuthorizationType
	}
	return words[1], nil
}

func (h *Handler) authCheck(tokenService port.TokenService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := readToken(ctx)
		if err != nil {
			h.handleAbort(ctx, err)
			return
		}
		payload, err := tokenService.VerifyToken(token)
		if err != nil {
			h.handleAbort(ctx, domain.ErrInvalidToken)
			return
		}

		ctx.Set(userPayloadKey, payload)

		ctx.Next()
	}
}

// optionalAuth lets requests without an Authorization header through as guests,
// but still rejects a header that is present and invalid.
func (h *Handler) optionalAuth(tokenService port.TokenService) gin.HandlerFunc {
	check := h.authCheck(tokenService)
	return func(ctx *gin.Context) {
		if ctx.Request.Header.Get(authHeaderKey) == "" {
			ctx.Next()
			return
		}
		check(ctx)
	}
}

func (h *Handler) adminOnly() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !getUser(ctx).IsAdmin() {
			h.handleAbort(ctx, domain.ErrForbidden)
			return
		}
		ctx.Next()
	}
}

// getUser returns nil for guest requests.
func getUser(ctx *gin.Context) *domain.User {
	payload, ok := ctx.Get(userPayloadKey)
	if !ok {
		return nil
	}
	return payload.(*port.TokenPayload).User()
}
