package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stayprivate/internal/models"
)

// UserRepository defines the interface for user data operations.
// Friends and blocked users are sets: AddToSet and Pull are idempotent.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByIDs returns the users that exist among ids, in no particular order. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, update *models.ProfileUpdate, now time.Time) (*models.User, error)
	AddToSet(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error
	Pull(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error
	// Search matches query as a case-insensitive substring of name or email.
	Search(ctx context.Context, query string, excludeIDs []string, limit int) ([]models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateGormError(err, "create user")
	}
	user.Friends = []string{}
	user.BlockedUsers = []string{}
	return nil
}

// GetByID retrieves a user by their ID, with both id sets loaded.
func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateGormError(err, "get user by id")
	}
	if err := r.loadLinks(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email. Emails are stored lowercased.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, translateGormError(err, "get user by email")
	}
	if err := r.loadLinks(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translateGormError(err, "get users by ids")
	}
	return users, nil
}

func (r *gormUserRepository) UpdateProfile(ctx context.Context, id string, update *models.ProfileUpdate, now time.Time) (*models.User, error) {
	changes := map[string]interface{}{"updated_at": now}
	if update.Name != nil {
		changes["name"] = *update.Name
	}
	if update.AvatarURL != nil {
		changes["avatar_url"] = *update.AvatarURL
	}
	if update.Bio != nil {
		changes["bio"] = *update.Bio
		changes["bio_updated_at"] = now
	}
	if update.Location != nil {
		changes["location"] = *update.Location
	}
	if update.Phone != nil {
		changes["phone"] = *update.Phone
	}
	if update.Website != nil {
		changes["website"] = *update.Website
	}
	if update.Gender != nil {
		changes["gender"] = *update.Gender
	}
	if update.DateOfBirth != nil {
		changes["date_of_birth"] = *update.DateOfBirth
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, translateGormError(res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// AddToSet inserts targetID into the owner's set. Re-adding an existing member is a no-op.
func (r *gormUserRepository) AddToSet(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error {
	if err := r.ensureExists(ctx, ownerID); err != nil {
		return err
	}
	link := models.UserLink{OwnerID: ownerID, Kind: kind, TargetID: targetID, CreatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	return translateGormError(err, "add to "+string(kind))
}

// Pull removes targetID from the owner's set. Removing a non-member is a no-op.
func (r *gormUserRepository) Pull(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error {
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND kind = ? AND target_id = ?", ownerID, kind, targetID).
		Delete(&models.UserLink{}).Error
	return translateGormError(err, "pull from "+string(kind))
}

func (r *gormUserRepository) Search(ctx context.Context, query string, excludeIDs []string, limit int) ([]models.User, error) {
	users := []models.User{}
	searchTerm := "%" + escapeLike(strings.ToLower(query)) + "%"

	q := r.db.WithContext(ctx).
		Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\')", searchTerm, searchTerm)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("name ASC").Find(&users).Error; err != nil {
		return nil, translateGormError(err, "search users")
	}
	return users, nil
}

func (r *gormUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return translateGormError(res.Error, "set active")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUserRepository) ensureExists(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translateGormError(err, "check user")
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUserRepository) loadLinks(ctx context.Context, user *models.User) error {
	var links []models.UserLink
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", user.ID).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return errors.Wrap(err, "load user links")
	}
	user.Friends = []string{}
	user.BlockedUsers = []string{}
	for _, l := range links {
		switch l.Kind {
		case models.LinkFriends:
			user.Friends = append(user.Friends, l.TargetID)
		case models.LinkBlocked:
			user.BlockedUsers = append(user.BlockedUsers, l.TargetID)
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
