package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/auth"
	"stayprivate/internal/config"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
)

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	// Logout 吊销令牌，直到它原本的过期时间。
	Logout(ctx context.Context, claims *auth.Claims) error
	Me(ctx context.Context, selfID string) (*models.User, error)
}

// RegisterInput 是注册请求。
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginInput 是登录请求。
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult 是注册和登录成功后的结果。
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// authService 是 AuthService 的实现。
type authService struct {
	users     storage.UserRepository
	cfg       config.AuthConfig
	blacklist auth.TokenBlacklist
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService 创建一个新的 AuthService 实例。blacklist 为 nil 时登出只清除 cookie。
func NewAuthService(users storage.UserRepository, cfg config.AuthConfig, blacklist auth.TokenBlacklist, log *zap.Logger) AuthService {
	return &authService{
		users:     users,
		cfg:       cfg,
		blacklist: blacklist,
		log:       log.Named("auth"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register 处理用户注册逻辑。
func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateInput(input); err != nil {
		return nil, err
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, apperr.ReasonInternal, "密码哈希失败")
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		IsActive:     true,
		Friends:      []string{},
		BlockedUsers: []string{},
	}
	user.Touch(s.now())

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Wrap(err, apperr.KindConflict, apperr.ReasonEmailTaken, "该邮箱已被注册")
		}
		return nil, apperr.Unavailable(err, "创建用户失败")
	}
	s.log.Info("user registered", zap.String("userId", user.ID))

	return s.issue(user)
}

// Login 处理用户登录逻辑。
func (s *authService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindUnauthenticated, apperr.ReasonInvalidCredentials, "邮箱或密码错误")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.New(apperr.KindUnauthenticated, apperr.ReasonInvalidCredentials, "邮箱或密码错误")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.KindForbidden, apperr.ReasonAccountDisabled, "账号已被停用")
	}

	s.log.Info("user logged in", zap.String("userId", user.ID))
	return s.issue(user)
}

func (s *authService) issue(user *models.User) (*AuthResult, error) {
	token, claims, err := auth.GenerateToken(user.ID, user.Email, string(user.Role), s.cfg)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, apperr.ReasonInternal, "生成令牌失败")
	}
	user.PasswordHash = ""
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperr.New(apperr.KindUnauthenticated, apperr.ReasonUnauthenticated, "未登录")
	}
	if s.blacklist == nil || claims.ID == "" {
		return nil
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.blacklist.Add(ctx, claims.ID, expiresAt); err != nil {
		return apperr.Unavailable(err, "吊销令牌失败")
	}
	s.log.Info("user logged out", zap.String("userId", claims.UserID))
	return nil
}

func (s *authService) Me(ctx context.Context, selfID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindUnauthenticated, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	user.PasswordHash = ""
	return user, nil
}
