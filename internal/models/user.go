package models

import "time"

// Role 是用户角色。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// 允许的性别取值。
const (
	GenderMale           = "male"
	GenderFemale         = "female"
	GenderOther          = "other"
	GenderPreferNotToSay = "prefer-not-to-say"
)

// User 代表系统中的用户。
// Friends 和 BlockedUsers 在文档库中内嵌存储，在关系库中由 user_links 表加载。
type User struct {
	BaseModel    `bson:",inline"`
	Name         string     `bson:"name" gorm:"type:varchar(100);not null" json:"name"`
	Email        string     `bson:"email" gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `bson:"password" gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	Role         Role       `bson:"role" gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	IsActive     bool       `bson:"isActive" gorm:"not null;default:true" json:"isActive"`
	AvatarURL    string     `bson:"avatarUrl,omitempty" gorm:"type:varchar(255)" json:"avatarUrl,omitempty"`
	Bio          string     `bson:"bio,omitempty" gorm:"type:varchar(500)" json:"bio,omitempty"`
	BioUpdatedAt *time.Time `bson:"bioUpdatedAt,omitempty" json:"bioUpdatedAt,omitempty"`
	Location     string     `bson:"location,omitempty" gorm:"type:varchar(100)" json:"location,omitempty"`
	Phone        string     `bson:"phone,omitempty" gorm:"type:varchar(40)" json:"phone,omitempty"`
	Website      string     `bson:"website,omitempty" gorm:"type:varchar(255)" json:"website,omitempty"`
	Gender       string     `bson:"gender,omitempty" gorm:"type:varchar(20)" json:"gender,omitempty"`
	DateOfBirth  *time.Time `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`

	Friends      []string `bson:"friends" gorm:"-" json:"friends"`
	BlockedUsers []string `bson:"blockedUsers" gorm:"-" json:"blockedUsers"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// IsFriendOf reports whether id is in the user's friends set.
func (u *User) IsFriendOf(id string) bool {
	return containsID(u.Friends, id)
}

// HasBlocked reports whether id is in the user's blockedUsers set.
func (u *User) HasBlocked(id string) bool {
	return containsID(u.BlockedUsers, id)
}

// PublicProfile 是任何登录用户都可以看到的资料。
type PublicProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Location  string    `json:"location,omitempty"`
	Website   string    `json:"website,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact 是好友列表、好友请求和搜索结果中使用的投影。
type Contact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Location  string `json:"location,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Website   string `json:"website,omitempty"`
}

func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Location:  u.Location,
		Website:   u.Website,
		Gender:    u.Gender,
		CreatedAt: u.CreatedAt,
	}
}

func (u *User) Contact() Contact {
	return Contact{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Location:  u.Location,
		Bio:       u.Bio,
		Website:   u.Website,
	}
}

// ProfileUpdate carries the owner-editable profile fields. Nil pointers are left unchanged.
type ProfileUpdate struct {
	Name        *string
	AvatarURL   *string
	Bio         *string
	Location    *string
	Phone       *string
	Website     *string
	Gender      *string
	DateOfBirth *time.Time
}
