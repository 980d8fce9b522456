package storage

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayprivate/internal/models"
)

const usersCollection = "users"

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a UserRepository backed by the users collection.
// Friends and blocked users live as arrays on the user document.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Friends == nil {
		user.Friends = []string{}
	}
	if user.BlockedUsers == nil {
		user.BlockedUsers = []string{}
	}
	user.Email = strings.ToLower(user.Email)
	_, err := r.coll.InsertOne(ctx, user)
	return translateMongoError(err, "insert user")
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find user by id")
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)}, "find user by email")
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M, op string) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateMongoError(err, op)
	}
	normalizeSets(&user)
	return &user, nil
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	opts := options.Find().SetProjection(bson.M{"password": 0})
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, translateMongoError(err, "find users by ids")
	}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, translateMongoError(err, "decode users")
	}
	return users, nil
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, id string, update *models.ProfileUpdate, now time.Time) (*models.User, error) {
	set := bson.M{"updatedAt": now}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.AvatarURL != nil {
		set["avatarUrl"] = *update.AvatarURL
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
		set["bioUpdatedAt"] = now
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Website != nil {
		set["website"] = *update.Website
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.DateOfBirth != nil {
		set["dateOfBirth"] = *update.DateOfBirth
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		return nil, translateMongoError(err, "update profile")
	}
	normalizeSets(&user)
	return &user, nil
}

func (r *mongoUserRepository) AddToSet(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error {
	return r.updateSet(ctx, ownerID, "$addToSet", kind, targetID)
}

func (r *mongoUserRepository) Pull(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error {
	return r.updateSet(ctx, ownerID, "$pull", kind, targetID)
}

func (r *mongoUserRepository) updateSet(ctx context.Context, ownerID, operator string, kind models.LinkKind, targetID string) error {
	update := bson.M{
		operator: bson.M{string(kind): targetID},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.coll.UpdateByID(ctx, ownerID, update)
	if err != nil {
		return translateMongoError(err, operator+" "+string(kind))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) Search(ctx context.Context, query string, excludeIDs []string, limit int) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
		},
	}
	if len(excludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludeIDs}
	}

	opts := options.Find().
		SetProjection(bson.M{"password": 0}).
		SetSort(bson.D{{Key: "name", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, translateMongoError(err, "search users")
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, translateMongoError(err, "decode users")
	}
	return users, nil
}

func (r *mongoUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"isActive": active, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return translateMongoError(err, "set active")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeSets(user *models.User) {
	if user.Friends == nil {
		user.Friends = []string{}
	}
	if user.BlockedUsers == nil {
		user.BlockedUsers = []string{}
	}
}
