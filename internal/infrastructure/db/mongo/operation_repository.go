package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/resellium/console/internal/core/domain"
)

const operationCollection = "operations"

// OperationRepository persists the audit trail of auth-relevant events.
type OperationRepository struct {
	coll *mongo.Collection
}

func NewOperationRepository(db *mongo.Database) *OperationRepository {
	return &OperationRepository{coll: db.Collection(operationCollection)}
}

type mongoOperation struct {
	ID         string `bson:"_id"`
	IdentityID string `bson:"identity_id"`
	Kind       string `bson:"kind"`
	Amount     int64  `bson:"amount,omitempty"`
	Actor      string `bson:"actor,omitempty"`
	Note       string `bson:"note,omitempty"`
	At         int64  `bson:"at"`
}

func (r *OperationRepository) Insert(ctx context.Context, op *domain.Operation) error {
	doc := mongoOperation{
		ID:         op.ID,
		IdentityID: op.IdentityID,
		Kind:       string(op.Kind),
		Amount:     op.Amount,
		Actor:      op.Actor,
		Note:       op.Note,
		At:         op.At.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

func (r *OperationRepository) ListByIdentity(ctx context.Context, identityID string, limit int64) ([]domain.Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.coll.Find(
		ctx,
		bson.M{"identity_id": identityID},
		options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Operation
	for cur.Next(ctx) {
		var mo mongoOperation
		if err := cur.Decode(&mo); err != nil {
			return nil, fmt.Errorf("decode operation: %w", err)
		}
		out = append(out, domain.Operation{
			ID:         mo.ID,
			IdentityID: mo.IdentityID,
			Kind:       domain.OperationKind(mo.Kind),
			Amount:     mo.Amount,
			Actor:      mo.Actor,
			Note:       mo.Note,
			At:         unixToTime(mo.At),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return out, nil
}
