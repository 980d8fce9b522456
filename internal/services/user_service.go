package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/config"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
)

// UserService 定义了用户资料和用户搜索相关服务的接口。
type UserService interface {
	GetProfile(ctx context.Context, selfID string) (*models.User, error)
	UpdateProfile(ctx context.Context, selfID string, input ProfileInput) (*models.User, error)
	GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error)
	// Search 按名字或邮箱做不区分大小写的子串匹配，排除自己和自己拉黑的用户。
	Search(ctx context.Context, selfID, query string) ([]models.Contact, error)
}

// ProfileInput 是资料更新请求。nil 字段保持不变。
type ProfileInput struct {
	Name        *string `json:"name"`
	AvatarURL   *string `json:"avatarUrl"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
	Gender      *string `json:"gender"`
	DateOfBirth *string `json:"dateOfBirth"` // YYYY-MM-DD
}

// profileFields 是 ProfileInput 解引用后的校验视图，空字符串表示未设置或清空。
type profileFields struct {
	Name        string `validate:"omitempty,min=2,max=100"`
	AvatarURL   string `validate:"omitempty,url"`
	Bio         string `validate:"max=500"`
	Location    string `validate:"max=100"`
	Phone       string `validate:"max=40"`
	Website     string `validate:"omitempty,url"`
	Gender      string `validate:"omitempty,oneof=male female other prefer-not-to-say"`
	DateOfBirth string `validate:"omitempty,datetime=2006-01-02"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// userService 是 UserService 的实现。
type userService struct {
	users  storage.UserRepository
	search config.SearchConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(users storage.UserRepository, search config.SearchConfig, log *zap.Logger) UserService {
	return &userService{
		users:  users,
		search: search,
		log:    log.Named("users"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetProfile 获取自己的完整资料（不含密码哈希）。
func (s *userService) GetProfile(ctx context.Context, selfID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile 更新自己的资料。
func (s *userService) UpdateProfile(ctx context.Context, selfID string, input ProfileInput) (*models.User, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonValidationFailed, "名字不能为空")
		}
		input.Name = &trimmed
	}
	if err := validateInput(profileFields{
		Name:        deref(input.Name),
		AvatarURL:   deref(input.AvatarURL),
		Bio:         deref(input.Bio),
		Location:    deref(input.Location),
		Phone:       deref(input.Phone),
		Website:     deref(input.Website),
		Gender:      deref(input.Gender),
		DateOfBirth: deref(input.DateOfBirth),
	}); err != nil {
		return nil, err
	}

	update := &models.ProfileUpdate{
		Name:      input.Name,
		AvatarURL: input.AvatarURL,
		Bio:       input.Bio,
		Location:  input.Location,
		Phone:     input.Phone,
		Website:   input.Website,
		Gender:    input.Gender,
	}
	if input.DateOfBirth != nil && *input.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", *input.DateOfBirth)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindInvalidInput, apperr.ReasonValidationFailed, "出生日期格式应为 YYYY-MM-DD")
		}
		update.DateOfBirth = &dob
	}

	user, err := s.users.UpdateProfile(ctx, selfID, update, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "更新资料失败")
	}
	s.log.Info("profile updated", zap.String("userId", selfID))
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonValidationFailed, "缺少用户 ID")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	profile := user.PublicProfile()
	return &profile, nil
}

func (s *userService) Search(ctx context.Context, selfID, query string) ([]models.Contact, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < s.search.MinQueryLength {
		return []models.Contact{}, nil
	}

	self, err := s.users.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}

	exclude := append([]string{selfID}, self.BlockedUsers...)
	users, err := s.users.Search(ctx, query, exclude, s.search.Limit)
	if err != nil {
		return nil, apperr.Unavailable(err, "搜索用户失败")
	}
	contacts := make([]models.Contact, 0, len(users))
	for i := range users {
		contacts = append(contacts, users[i].Contact())
	}
	return contacts, nil
}
