// Package bunstore implements the user store on a SQL database through Bun.
// It is the backend of choice for self-hosted deployments and for tests,
// where it runs against in-memory SQLite.
package bunstore

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/prunklabs/go-emailauth"
)

// Store persists users in a relational table with the email auth state held
// in a JSON column. It satisfies emailauth.UserStore and
// emailauth.LastLoginTracker.
type Store struct {
	repository.Repository[*emailauth.User]
	db *bun.DB
}

var (
	_ emailauth.UserStore        = (*Store)(nil)
	_ emailauth.LastLoginTracker = (*Store)(nil)
)

func New(db *bun.DB) *Store {
	repo := repository.NewRepository[*emailauth.User](db, repository.ModelHandlers[*emailauth.User]{
		NewRecord: func() *emailauth.User { return &emailauth.User{} },
		GetID: func(u *emailauth.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			if id, err := uuid.Parse(u.UserID); err == nil {
				return id
			}
			return uuid.Nil
		},
		SetID: func(u *emailauth.User, id uuid.UUID) {
			if u != nil {
				u.UserID = id.String()
			}
		},
	})

	return &Store{
		Repository: repo,
		db:         db,
	}
}

// CreateSchema creates the users table. Intended for tests and bootstrap
// scripts; production deployments run migrations instead.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*emailauth.User)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Register creates a user with a deterministic ID derived from the email, so
// repeated registrations of the same address collide on the primary key
// instead of minting duplicates.
func (s *Store) Register(ctx context.Context, email string) (*emailauth.User, error) {
	now := time.Now().UnixMilli()

	user := &emailauth.User{
		Email:     email,
		Status:    emailauth.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if id, err := hashid.NewUUID(email); err == nil {
		user.UserID = id.String()
	} else {
		user.UserID = uuid.NewString()
	}

	created, err := s.Repository.Create(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	return created, nil
}

func (s *Store) GetByID(ctx context.Context, userID string) (*emailauth.User, error) {
	record := &emailauth.User{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound("user_id", userID)
		}
		return nil, err
	}

	record.EnsureStatus()
	return record, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*emailauth.User, error) {
	record := &emailauth.User{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound("email", email)
		}
		return nil, err
	}

	record.EnsureStatus()
	return record, nil
}

func (s *Store) GetStatus(ctx context.Context, userID string) (emailauth.UserStatus, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

// UpdateEmailAuth replaces the email auth state only while the persisted
// state still equals prior. The guard compares the serialized JSON value,
// which is deterministic for a struct written by this package. A zero-row
// update means either the user vanished or another writer got there first.
func (s *Store) UpdateEmailAuth(ctx context.Context, userID string, prior, next *emailauth.EmailAuth) error {
	q := s.db.NewUpdate().
		Model((*emailauth.User)(nil)).
		Set("email_auth = ?", mustJSON(next)).
		Set("updated_at = ?", time.Now().UnixMilli()).
		Where("?TableAlias.user_id = ?", userID)

	if prior == nil {
		q = q.Where("?TableAlias.email_auth IS NULL")
	} else {
		q = q.Where("?TableAlias.email_auth = ?", mustJSON(prior))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update email auth state")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read update result")
	}

	if rows == 0 {
		if _, err := s.GetByID(ctx, userID); err != nil {
			return err
		}
		return emailauth.ErrEmailAuthConflict
	}

	return nil
}

// TrackLastLogin stamps the most recent successful verification.
func (s *Store) TrackLastLogin(ctx context.Context, userID string, at int64) error {
	_, err := s.db.NewUpdate().
		Model((*emailauth.User)(nil)).
		Set("last_login_at = ?", at).
		Set("updated_at = ?", time.Now().UnixMilli()).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	return err
}

func notFound(key, value string) error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithTextCode(emailauth.TextCodeUserNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			key: value,
		})
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// EmailAuth holds only scalar fields, marshal cannot fail
		panic(err)
	}
	return string(raw)
}
