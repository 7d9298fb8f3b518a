package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/util"
)

var (
	ErrInvalidGoogleToken = errors.New("invalid google token")
	ErrNotAdmin           = errors.New("account is not allowed to manage catalog backups")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type tokenValidator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// AuthService signs in catalog administrators with a Google id token.
type AuthService struct {
	jwt      *util.JWTManager
	aud      string
	admins   map[string]struct{}
	validate tokenValidator
}

func NewAuthService(jwt *util.JWTManager, googleAud string, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &AuthService{jwt: jwt, aud: googleAud, admins: admins, validate: idtoken.Validate}
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idTok string) (string, time.Time, error) {
	pl, err := s.validate(ctx, idTok, s.aud)
	if err != nil {
		return "", time.Time{}, ErrInvalidGoogleToken
	}
	email, _ := pl.Claims["email"].(string)
	name, _ := pl.Claims["name"].(string)
	verified, _ := pl.Claims["email_verified"].(bool)
	email = strings.ToLower(email)
	if email == "" || !verified {
		return "", time.Time{}, ErrInvalidGoogleToken
	}
	if !s.IsAdmin(email) {
		return "", time.Time{}, ErrNotAdmin
	}
	return s.jwt.Generate(email, name, true)
}

// Authenticate parses a session token and rechecks the allowlist, so removing
// an address revokes its sessions.
func (s *AuthService) Authenticate(token string) (*util.Claims, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.Admin || !s.IsAdmin(claims.Email) {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

func (s *AuthService) IsAdmin(email string) bool {
	_, ok := s.admins[strings.ToLower(email)]
	return ok
}
