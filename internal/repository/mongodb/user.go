package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sakif/gatehouse/internal/apperror"
	"github.com/sakif/gatehouse/internal/model"
	"github.com/sakif/gatehouse/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

// userDocument is the stored form of model.User. It differs only in the
// _id type, so model.User stays free of driver types.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	FirstName    string        `bson:"first_name"`
	LastName     string        `bson:"last_name"`
	Email        string        `bson:"email"`
	Username     string        `bson:"username"`
	PasswordHash string        `bson:"password_hash"`
	CreatedAt    time.Time     `bson:"created_at"`
}

func (d *userDocument) toModel() *model.User {
	return &model.User{
		ID:           d.ID.Hex(),
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

// Create inserts user and writes the generated ObjectID back as user.ID.
func (s *Store) Create(ctx context.Context, user *model.User) error {
	// Mongo stores milliseconds; truncate so the caller's copy matches a re-read.
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := userDocument{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    now,
	}

	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), emailIndex) {
				return apperror.Conflict("email", user.Email)
			}
			return apperror.Conflict("username", user.Username)
		}
		return fmt.Errorf("mongodb: inserting user %q: %w", user.Username, err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return fmt.Errorf("mongodb: unexpected inserted id type %T", res.InsertedID)
	}

	user.ID = oid.Hex()
	user.CreatedAt = now
	return nil
}

// GetUserByID looks up by _id. A string that isn't a valid ObjectID can't
// name any document, so it is reported as not found rather than as an error.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("user", id)
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}}, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOne(ctx, bson.D{{Key: "username", Value: username}}, username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}}, email)
}

func (s *Store) findOne(ctx context.Context, filter bson.D, key string) (*model.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongodb: finding user %q: %w", key, err)
	}
	return doc.toModel(), nil
}
