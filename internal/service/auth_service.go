package service

import (
	"context"
	"errors"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/config"
	"settlepos/internal/dto"
	"settlepos/internal/model"
	"settlepos/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Token types carried in the "typ" claim. Only access tokens open the API.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

const bcryptCost = 12

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	Me(ctx context.Context, id uuid.UUID) (*dto.StaffResponse, error)
	CreateStaff(ctx context.Context, username, name, password, role string, email *string) (*dto.StaffResponse, error)
}

type authService struct {
	repo repository.StaffRepository
	cfg  *config.Config
	now  func() time.Time
}

func NewAuthService(repo repository.StaffRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg, now: time.Now}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	staff, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, apierror.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apierror.ErrInvalidCredentials
	}
	return s.issue(staff)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apierror.ErrTokenInvalid.With("refresh token invalid or expired")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != TokenRefresh {
		return nil, apierror.ErrTokenInvalid.With("not a refresh token")
	}
	idStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(idStr)
	if err != nil {
		return nil, apierror.ErrTokenInvalid.With("malformed user_id")
	}

	staff, err := s.repo.FindByID(ctx, uid)
	if err != nil {
		return nil, apierror.ErrUserNotFound.Wrap(err)
	}
	if !staff.Active {
		return nil, apierror.ErrUserInactive
	}
	return s.issue(staff)
}

func (s *authService) Me(ctx context.Context, id uuid.UUID) (*dto.StaffResponse, error) {
	staff, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.ErrUserNotFound
	}
	if err != nil {
		return nil, apierror.ErrDatabase.Wrap(err)
	}
	resp := toStaffResponse(staff)
	return &resp, nil
}

func (s *authService) CreateStaff(ctx context.Context, username, name, password, role string, email *string) (*dto.StaffResponse, error) {
	if _, ok := roleGrants[role]; !ok {
		return nil, apierror.ErrInvalidRequest.With("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apierror.ErrInternal.Wrap(err)
	}
	staff := &model.Staff{
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, apierror.ErrDatabase.Wrap(err)
	}
	resp := toStaffResponse(staff)
	return &resp, nil
}

func (s *authService) issue(staff *model.Staff) (*dto.LoginResponse, error) {
	access, err := s.generateToken(staff, TokenAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, apierror.ErrInternal.Wrap(err)
	}
	refresh, err := s.generateToken(staff, TokenRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, apierror.ErrInternal.Wrap(err)
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         toStaffResponse(staff),
	}, nil
}

func (s *authService) generateToken(staff *model.Staff, typ string, duration time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":     staff.ID.String(),
		"username":    staff.Username,
		"role":        staff.Role,
		"permissions": staff.Permissions,
		"typ":         typ,
		"exp":         now.Add(duration).Unix(),
		"iat":         now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func toStaffResponse(s *model.Staff) dto.StaffResponse {
	perms := s.Permissions
	if perms == nil {
		perms = []string{}
	}
	return dto.StaffResponse{
		ID:          s.ID.String(),
		Username:    s.Username,
		Name:        s.Name,
		Email:       s.Email,
		Role:        s.Role,
		Permissions: perms,
		Active:      s.Active,
	}
}
