package mgo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"AProject/tools/errs"
)

// Config represents the MongoDB configuration.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize int
}

// User 持久库里的用户记录。is_online / last_seen 由状态同步任务
// 单向镜像（快存 -> 这里），正常运行期间以快存为准。
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	HashedPassword string             `bson:"hashed_password"`
	Provider       string             `bson:"provider,omitempty"`
	IsOnline       bool               `bson:"is_online"`
	LastSeen       time.Time          `bson:"last_seen,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
}

// IdentityRef 同步任务遍历用的最小引用
type IdentityRef struct {
	ID    string
	Email string
}

// UserStore 持久用户库（system of record）。
type UserStore struct {
	cli  *mongo.Client
	coll *mongo.Collection
}

func NewUserStore(ctx context.Context, cfg Config) (*UserStore, error) {
	if cfg.URI == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	}
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return &UserStore{
		cli:  cli,
		coll: cli.Database(cfg.Database).Collection("users"),
	}, nil
}

func (s *UserStore) Close(ctx context.Context) error {
	return s.cli.Disconnect(ctx)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create 新建用户，email 唯一。
func (s *UserStore) Create(ctx context.Context, u *User) error {
	existing, err := s.GetByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.ErrUserExists.WrapMsg("email", "value", u.Email)
	}
	u.CreatedAt = time.Now().UTC()
	res, err := s.coll.InsertOne(ctx, u)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

// ListIdentities 枚举所有用户的 id/email，给状态同步任务用。
func (s *UserStore) ListIdentities(ctx context.Context) ([]IdentityRef, error) {
	cur, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1, "email": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []IdentityRef
	for cur.Next(ctx) {
		var doc struct {
			ID    primitive.ObjectID `bson:"_id"`
			Email string             `bson:"email"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, IdentityRef{ID: doc.ID.Hex(), Email: doc.Email})
	}
	return out, cur.Err()
}

// SetPresence 写回 is_online / last_seen。lastSeen 为零值时只写标记。
func (s *UserStore) SetPresence(ctx context.Context, identityID string, online bool, lastSeen time.Time) error {
	oid, err := primitive.ObjectIDFromHex(identityID)
	if err != nil {
		return errs.ErrArgs.WrapMsg("bad identity id", "value", identityID)
	}
	set := bson.M{"is_online": online}
	if !lastSeen.IsZero() {
		set["last_seen"] = lastSeen.UTC()
	}
	_, err = s.coll.UpdateByID(ctx, oid, bson.M{"$set": set})
	return err
}
