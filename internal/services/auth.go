package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// JWTClaims is what the upstream identity service signs. Only Subject is
// required; Name seeds the display name of a fresh profile.
type JWTClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID      uuid.UUID
	DisplayName string
}

// AuthService verifies bearer tokens. Issuing them is someone else's job.
type AuthService interface {
	Verify(tokenString string) (*Identity, error)
	VerifyToken(tokenString string) (uuid.UUID, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, *Identity, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
	}
}

func (as *authService) Verify(tokenString string) (*Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, apperrors.ErrUnauthorized
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w: %w", apperrors.ErrUnauthorized, err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return nil, fmt.Errorf("invalid or expired token: %w", apperrors.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("invalid user id in token: %w", apperrors.ErrUnauthorized)
	}
	return &Identity{UserID: userID, DisplayName: strings.TrimSpace(claims.Name)}, nil
}

func (as *authService) VerifyToken(tokenString string) (uuid.UUID, error) {
	id, err := as.Verify(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return id.UserID, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, *Identity, error) {
	id, err := as.Verify(tokenString)
	if err != nil {
		return ctx, nil, err
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: id.UserID}), id, nil
}
