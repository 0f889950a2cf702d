package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/resellium/console/internal/core/domain"
)

const profileCollection = "profiles"

// ProfileRepository reads and writes application user records. Role
// classification stays a free-text field here; normalization belongs to
// the resolver.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profileCollection)}
}

type mongoProfile struct {
	ID               string `bson:"_id"`
	AuthUserID       string `bson:"auth_user_id,omitempty"`
	Email            string `bson:"email"`
	Name             string `bson:"name,omitempty"`
	Classification   string `bson:"classification"`
	TwoFactorEnabled bool   `bson:"two_factor_enabled"`
	Credits          int64  `bson:"credits"`
	ExpiryTime       int64  `bson:"expiry_time,omitempty"`
	DistributorID    string `bson:"distributor_id,omitempty"`
	CreatedAt        int64  `bson:"created_at"`
	UpdatedAt        int64  `bson:"updated_at"`
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ProfileRepository) FindByAuthUserID(ctx context.Context, authUserID string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"auth_user_id": authUserID})
}

func (r *ProfileRepository) findOne(ctx context.Context, filter bson.M) (*domain.Profile, error) {
	var mp mongoProfile
	if err := r.coll.FindOne(ctx, filter).Decode(&mp); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return fromMongoProfile(&mp), nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	return r.list(ctx, bson.M{})
}

func (r *ProfileRepository) ListByDistributor(ctx context.Context, distributorID string) ([]domain.Profile, error) {
	return r.list(ctx, bson.M{"distributor_id": distributorID})
}

func (r *ProfileRepository) list(ctx context.Context, filter bson.M) ([]domain.Profile, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Profile
	for cur.Next(ctx) {
		var mp mongoProfile
		if err := cur.Decode(&mp); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		out = append(out, *fromMongoProfile(&mp))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	doc := mongoProfile{
		ID:               p.ID,
		AuthUserID:       p.AuthUserID,
		Email:            p.Email,
		Name:             p.Name,
		Classification:   p.Classification,
		TwoFactorEnabled: p.TwoFactorEnabled,
		Credits:          p.Credits,
		DistributorID:    p.DistributorID,
		CreatedAt:        p.CreatedAt.Unix(),
		UpdatedAt:        p.UpdatedAt.Unix(),
	}
	if !p.ExpiryTime.IsZero() {
		doc.ExpiryTime = p.ExpiryTime.Unix()
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return r.FindByID(ctx, p.ID)
}

// AdjustCredits atomically applies a delta to the credit balance and
// returns the updated profile.
func (r *ProfileRepository) AdjustCredits(ctx context.Context, id string, delta int64) (*domain.Profile, error) {
	var mp mongoProfile
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"credits": delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mp)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("adjust credits: %w", err)
	}
	return fromMongoProfile(&mp), nil
}

func fromMongoProfile(mp *mongoProfile) *domain.Profile {
	return &domain.Profile{
		ID:               mp.ID,
		AuthUserID:       mp.AuthUserID,
		Email:            mp.Email,
		Name:             mp.Name,
		Classification:   mp.Classification,
		Role:             domain.RoleFromString(mp.Classification),
		TwoFactorEnabled: mp.TwoFactorEnabled,
		Credits:          mp.Credits,
		ExpiryTime:       unixToTime(mp.ExpiryTime),
		DistributorID:    mp.DistributorID,
		CreatedAt:        unixToTime(mp.CreatedAt),
		UpdatedAt:        unixToTime(mp.UpdatedAt),
	}
}
