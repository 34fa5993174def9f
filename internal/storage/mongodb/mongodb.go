package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/storage"
)

type Storage struct {
	client     *mongo.Client
	database   *mongo.Database
	users      *mongo.Collection
	counters   *mongo.Collection
	tokens     *mongo.Collection
	activities *mongo.Collection
	profiles   *mongo.Collection
	challenges *mongo.Collection
}

type userDoc struct {
	ID           int64     `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name,omitempty"`
	PassHash     []byte    `bson:"pass_hash"`
	ProfileReady bool      `bson:"profile_ready"`
	CreatedAt    time.Time `bson:"created_at"`
}

type counterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

type refreshTokenDoc struct {
	ID             int64      `bson:"_id"`
	UserID         int64      `bson:"user_id"`
	TokenHash      string     `bson:"token_hash"`
	CreatedAt      time.Time  `bson:"created_at"`
	ExpiresAt      time.Time  `bson:"expires_at"`
	RevokedAt      *time.Time `bson:"revoked_at,omitempty"`
	ReplacedByHash *string    `bson:"replaced_by_hash,omitempty"`
}

type activityDoc struct {
	ID          int64     `bson:"_id"`
	UserID      int64     `bson:"user_id"`
	Type        string    `bson:"type"`
	Date        time.Time `bson:"date"`
	DurationMin int       `bson:"duration_min"`
	DistanceKm  *float64  `bson:"distance_km,omitempty"`
	Intensity   string    `bson:"intensity"`
	Mood        int       `bson:"mood"`
	Environment string    `bson:"environment"`
	Notes       string    `bson:"notes,omitempty"`
	Calories    int       `bson:"calories"`
}

type profileDoc struct {
	UserID              int64        `bson:"_id"`
	OnboardingCompleted bool         `bson:"onboarding_completed"`
	Mascot              string       `bson:"mascot,omitempty"`
	Quiz                *models.Quiz `bson:"quiz,omitempty"`
}

type challengeDoc struct {
	ID                int64      `bson:"_id"`
	UserID            int64      `bson:"user_id"`
	Title             string     `bson:"title"`
	Description       string     `bson:"description,omitempty"`
	RewardXP          int        `bson:"reward_xp"`
	Status            string     `bson:"status"`
	StartedAt         time.Time  `bson:"started_at"`
	CompletedAt       *time.Time `bson:"completed_at,omitempty"`
	MetricType        string     `bson:"metric_type,omitempty"`
	MetricDurationMin int        `bson:"metric_duration_min,omitempty"`
	MetricDistanceKm  *float64   `bson:"metric_distance_km,omitempty"`
	MetricIntensity   string     `bson:"metric_intensity,omitempty"`
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:     client,
		database:   db,
		users:      db.Collection("users"),
		counters:   db.Collection("counters"),
		tokens:     db.Collection("refresh_tokens"),
		activities: db.Collection("activities"),
		profiles:   db.Collection("profiles"),
		challenges: db.Collection("challenges"),
	}

	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}

	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token_hash", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("refresh_tokens.token_hash index: %w", err)
	}

	_, err = s.activities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("activities.user_id index: %w", err)
	}

	_, err = s.challenges.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("challenges.user_id index: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// nextID atomically increments and returns the next ID for a given collection.
func (s *Storage) nextID(ctx context.Context, collectionName string) (int64, error) {
	filter := bson.D{{Key: "_id", Value: collectionName}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter counterDoc
	err := s.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (s *Storage) SaveUser(ctx context.Context, email string, passHash []byte) (int64, error) {
	const op = "storage.mongodb.SaveUser"

	id, err := s.nextID(ctx, "users")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := userDoc{
		ID:        id,
		Email:     email,
		PassHash:  passHash,
		CreatedAt: time.Now(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if isDuplicateKeyError(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// SeedUser inserts a user if the email is not taken yet (for dev/test).
func (s *Storage) SeedUser(ctx context.Context, email, name string, passHash []byte, profileReady bool) error {
	const op = "storage.mongodb.SeedUser"

	id, err := s.nextID(ctx, "users")
	if err != nil {
		return fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := userDoc{
		ID:           id,
		Email:        email,
		Name:         name,
		PassHash:     passHash,
		ProfileReady: profileReady,
		CreatedAt:    time.Now(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongodb.User"

	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return userFromDoc(doc), nil
}

func (s *Storage) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.mongodb.UserByID"

	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return userFromDoc(doc), nil
}

func userFromDoc(doc userDoc) *models.User {
	return &models.User{
		ID:           doc.ID,
		Email:        doc.Email,
		Name:         doc.Name,
		PassHash:     doc.PassHash,
		ProfileReady: doc.ProfileReady,
		CreatedAt:    doc.CreatedAt,
	}
}

func (s *Storage) SaveRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	const op = "storage.mongodb.SaveRefreshToken"

	id, err := s.nextID(ctx, "refresh_tokens")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := refreshTokenDoc{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	if _, err := s.tokens.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const op = "storage.mongodb.RefreshTokenByHash"

	filter := bson.D{
		{Key: "token_hash", Value: tokenHash},
		{Key: "revoked_at", Value: nil},
	}

	var doc refreshTokenDoc
	err := s.tokens.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.RefreshToken{
		ID:             doc.ID,
		UserID:         doc.UserID,
		TokenHash:      doc.TokenHash,
		CreatedAt:      doc.CreatedAt,
		ExpiresAt:      doc.ExpiresAt,
		RevokedAt:      doc.RevokedAt,
		ReplacedByHash: doc.ReplacedByHash,
	}, nil
}

// RevokeRefreshToken marks a token revoked. The filter requires the token to
// still be active, so concurrent rotations of the same token admit exactly
// one winner; losers see ErrTokenRevoked.
func (s *Storage) RevokeRefreshToken(ctx context.Context, tokenID int64, replacedByHash *string) error {
	const op = "storage.mongodb.RevokeRefreshToken"

	set := bson.D{{Key: "revoked_at", Value: time.Now()}}
	if replacedByHash != nil {
		set = append(set, bson.E{Key: "replaced_by_hash", Value: *replacedByHash})
	}

	result, err := s.tokens.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: tokenID},
			{Key: "revoked_at", Value: nil},
		},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.ModifiedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenRevoked)
	}
	return nil
}

func (s *Storage) RevokeAllRefreshTokens(ctx context.Context, userID int64) error {
	const op = "storage.mongodb.RevokeAllRefreshTokens"

	_, err := s.tokens.UpdateMany(ctx,
		bson.D{
			{Key: "user_id", Value: userID},
			{Key: "revoked_at", Value: nil},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "revoked_at", Value: time.Now()}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) SaveActivity(ctx context.Context, a *models.Activity) (int64, error) {
	const op = "storage.mongodb.SaveActivity"

	id, err := s.nextID(ctx, "activities")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := activityDoc{
		ID:          id,
		UserID:      a.UserID,
		Type:        a.Type,
		Date:        a.Date,
		DurationMin: a.DurationMin,
		DistanceKm:  a.DistanceKm,
		Intensity:   a.Intensity,
		Mood:        a.Mood,
		Environment: a.Environment,
		Notes:       a.Notes,
		Calories:    a.Calories,
	}

	if _, err := s.activities.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) Activities(ctx context.Context, userID int64) ([]models.Activity, error) {
	const op = "storage.mongodb.Activities"

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.activities.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var list []models.Activity
	for cursor.Next(ctx) {
		var doc activityDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, models.Activity{
			ID:          doc.ID,
			UserID:      doc.UserID,
			Type:        doc.Type,
			Date:        doc.Date,
			DurationMin: doc.DurationMin,
			DistanceKm:  doc.DistanceKm,
			Intensity:   doc.Intensity,
			Mood:        doc.Mood,
			Environment: doc.Environment,
			Notes:       doc.Notes,
			Calories:    doc.Calories,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *Storage) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	const op = "storage.mongodb.Profile"

	var doc profileDoc
	err := s.profiles.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Profile{
		UserID:              doc.UserID,
		OnboardingCompleted: doc.OnboardingCompleted,
		Mascot:              doc.Mascot,
		Quiz:                doc.Quiz,
	}, nil
}

func (s *Storage) SaveProfile(ctx context.Context, p *models.Profile) error {
	const op = "storage.mongodb.SaveProfile"

	doc := profileDoc{
		UserID:              p.UserID,
		OnboardingCompleted: p.OnboardingCompleted,
		Mascot:              p.Mascot,
		Quiz:                p.Quiz,
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.profiles.ReplaceOne(ctx, bson.D{{Key: "_id", Value: p.UserID}}, doc, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) SaveChallenge(ctx context.Context, c *models.Challenge) (int64, error) {
	const op = "storage.mongodb.SaveChallenge"

	id, err := s.nextID(ctx, "challenges")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := challengeDoc{
		ID:                id,
		UserID:            c.UserID,
		Title:             c.Title,
		Description:       c.Description,
		RewardXP:          c.RewardXP,
		Status:            c.Status,
		StartedAt:         c.StartedAt,
		MetricType:        c.MetricType,
		MetricDurationMin: c.MetricDurationMin,
		MetricDistanceKm:  c.MetricDistanceKm,
		MetricIntensity:   c.MetricIntensity,
	}

	if _, err := s.challenges.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) Challenges(ctx context.Context, userID int64, status string) ([]models.Challenge, error) {
	const op = "storage.mongodb.Challenges"

	filter := bson.D{{Key: "user_id", Value: userID}}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.challenges.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var list []models.Challenge
	for cursor.Next(ctx) {
		var doc challengeDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, *challengeFromDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *Storage) ChallengeByID(ctx context.Context, userID, challengeID int64) (*models.Challenge, error) {
	const op = "storage.mongodb.ChallengeByID"

	var doc challengeDoc
	err := s.challenges.FindOne(ctx, bson.D{
		{Key: "_id", Value: challengeID},
		{Key: "user_id", Value: userID},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrChallengeNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return challengeFromDoc(doc), nil
}

func (s *Storage) CompleteChallenge(ctx context.Context, userID, challengeID int64, completedAt time.Time) error {
	const op = "storage.mongodb.CompleteChallenge"

	result, err := s.challenges.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: challengeID},
			{Key: "user_id", Value: userID},
			{Key: "status", Value: models.ChallengeActive},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: models.ChallengeCompleted},
			{Key: "completed_at", Value: completedAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.ModifiedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrChallengeCompleted)
	}
	return nil
}

func challengeFromDoc(doc challengeDoc) *models.Challenge {
	return &models.Challenge{
		ID:                doc.ID,
		UserID:            doc.UserID,
		Title:             doc.Title,
		Description:       doc.Description,
		RewardXP:          doc.RewardXP,
		Status:            doc.Status,
		StartedAt:         doc.StartedAt,
		CompletedAt:       doc.CompletedAt,
		MetricType:        doc.MetricType,
		MetricDurationMin: doc.MetricDurationMin,
		MetricDistanceKm:  doc.MetricDistanceKm,
		MetricIntensity:   doc.MetricIntensity,
	}
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
