package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keyxmakerx/secrets/internal/apperror"
)

// usersCollection is the MongoDB collection holding user documents.
const usersCollection = "users"

// MongoUserRepository implements UserRepository on a MongoDB collection.
// Uniqueness comes from partial unique indexes created by EnsureIndexes.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a user repository backed by the "users"
// collection of db. Call EnsureIndexes once at startup.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique indexes on email and google_id. The
// indexes are partial so documents without the field (federated users have
// no email, local users have no google_id) do not collide with each other.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("uq_users_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().
				SetName("uq_users_google_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"google_id": bson.M{"$type": "string"}}),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	return nil
}

// Create inserts a new user document.
func (r *MongoUserRepository) Create(ctx context.Context, user *User) error {
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.NewConflict(errDuplicateIdentity)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by ID.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "id")
}

// FindByEmail retrieves a user by (already normalized) email.
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email")
}

// FindByGoogleID retrieves a federated user by Google subject.
func (r *MongoUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return r.findOne(ctx, bson.M{"google_id": googleID}, "google id")
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, by string) (*User, error) {
	var user User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by %s: %w", by, err)
	}
	return &user, nil
}

// EmailExists returns true if a user with the given email already exists.
func (r *MongoUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return n > 0, nil
}

// UpdateLastLogin stamps last_login_at with the current time.
func (r *MongoUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{"last_login_at": time.Now().UTC()}, "last login")
}

// UpdateSecret replaces the user's secret. A single-document $set is atomic.
func (r *MongoUserRepository) UpdateSecret(ctx context.Context, id, secret string) error {
	return r.updateOne(ctx, id, bson.M{"secret": secret}, "secret")
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id string, set bson.M, what string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}

// ListWithSecrets returns every user whose secret is set, oldest first.
// Credentials are projected out; the board never needs them.
func (r *MongoUserRepository) ListWithSecrets(ctx context.Context) ([]User, error) {
	filter := bson.M{"secret": bson.M{"$exists": true, "$nin": bson.A{nil, ""}}}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "secret": 1, "created_at": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}

	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decoding secrets: %w", err)
	}
	return users, nil
}
