package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	BedStore
	IdentityStore
	SubscriptionStore
}

// BedStore persists the bed collection.
type BedStore interface {
	// ListBeds returns every bed, most recently edited first.
	ListBeds(ctx context.Context) ([]bed.Record, error)
	GetBed(ctx context.Context, id string) (bed.Record, error)
	CreateBed(ctx context.Context, p bed.Payload) (bed.Record, error)
	// UpdateBed replaces the record. expectedVersion > 0 rejects the write
	// with ErrStaleWrite when the stored version differs.
	UpdateBed(ctx context.Context, id string, p bed.Payload, expectedVersion int) (bed.Record, error)
}

// IdentityStore persists credentials and role records.
type IdentityStore interface {
	FindIdentityByEmail(ctx context.Context, email string) (model.Identity, error)
	GetIdentity(ctx context.Context, uid string) (model.Identity, error)
	// CreateIdentity stores the credential with its role claim and mirrors
	// the role record in one transaction.
	CreateIdentity(ctx context.Context, email, passwordHash string, role bed.Role) (model.Identity, error)
	// SetRole re-stamps the role claim and the role record.
	SetRole(ctx context.Context, uid string, role bed.Role) error
	UpdatePassword(ctx context.Context, uid, passwordHash string) error
	GetUser(ctx context.Context, uid string) (model.AppUser, error)
	ListUsers(ctx context.Context) ([]model.AppUser, error)
}

// SubscriptionStore persists web push registrations.
type SubscriptionStore interface {
	PutPushSubscription(ctx context.Context, sub model.PushSubscription) error
	GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ListBeds(ctx context.Context) ([]bed.Record, error) {
	var rows []model.Bed
	if err := s.db.WithContext(ctx).Order("last_edited_date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list beds: %w", err)
	}
	out := make([]bed.Record, len(rows))
	for i, r := range rows {
		out[i] = ToRecord(r)
	}
	return out, nil
}

func (s *gormStore) GetBed(ctx context.Context, id string) (bed.Record, error) {
	var row model.Bed
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bed.Record{}, ErrNotFound
		}
		return bed.Record{}, fmt.Errorf("failed to get bed %s: %w", id, err)
	}
	return ToRecord(row), nil
}

func (s *gormStore) CreateBed(ctx context.Context, p bed.Payload) (bed.Record, error) {
	row := fromPayload("", p, 1)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return bed.Record{}, fmt.Errorf("failed to create bed: %w", err)
	}
	return ToRecord(row), nil
}

func (s *gormStore) UpdateBed(ctx context.Context, id string, p bed.Payload, expectedVersion int) (bed.Record, error) {
	var saved model.Bed
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Bed
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if expectedVersion > 0 && current.Version != expectedVersion {
			return ErrStaleWrite
		}

		saved = fromPayload(id, p, current.Version+1)
		return tx.Save(&saved).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleWrite) {
			return bed.Record{}, err
		}
		return bed.Record{}, fmt.Errorf("failed to update bed %s: %w", id, err)
	}
	return ToRecord(saved), nil
}

func (s *gormStore) FindIdentityByEmail(ctx context.Context, email string) (model.Identity, error) {
	var ident model.Identity
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&ident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Identity{}, ErrNotFound
	}
	return ident, err
}

func (s *gormStore) GetIdentity(ctx context.Context, uid string) (model.Identity, error) {
	var ident model.Identity
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&ident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Identity{}, ErrNotFound
	}
	return ident, err
}

func (s *gormStore) CreateIdentity(ctx context.Context, email, passwordHash string, role bed.Role) (model.Identity, error) {
	email = NormalizeEmail(email)
	now := time.Now().UTC()
	ident := model.Identity{
		Email:        email,
		PasswordHash: passwordHash,
		RoleClaim:    string(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Identity{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailExists
		}
		// A concurrent insert of the same email can still win the race.
		if err := tx.Create(&ident).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrEmailExists
			}
			return err
		}
		user := model.AppUser{UID: ident.UID, Email: email, Role: string(role), CreatedAt: now}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "role"}),
		}).Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return model.Identity{}, err
		}
		return model.Identity{}, fmt.Errorf("failed to create identity: %w", err)
	}
	return ident, nil
}

// isDuplicateKey recognises unique-constraint violations. Postgres errors are
// translated by gorm when TranslateError is set; sqlite errors are matched
// on their extended code.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *gormStore) SetRole(ctx context.Context, uid string, role bed.Role) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ident model.Identity
		if err := tx.Where("uid = ?", uid).First(&ident).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&ident).Updates(map[string]any{
			"role_claim": string(role),
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to set role claim: %w", err)
		}
		user := model.AppUser{UID: uid, Email: ident.Email, Role: string(role), CreatedAt: time.Now().UTC()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).Create(&user).Error
	})
}

func (s *gormStore) UpdatePassword(ctx context.Context, uid, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&model.Identity{}).Where("uid = ?", uid).Updates(map[string]any{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) GetUser(ctx context.Context, uid string) (model.AppUser, error) {
	var user model.AppUser
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AppUser{}, ErrNotFound
	}
	return user, err
}

func (s *gormStore) ListUsers(ctx context.Context) ([]model.AppUser, error) {
	var users []model.AppUser
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *gormStore) PutPushSubscription(ctx context.Context, sub model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "owner"}),
	}).Create(&sub).Error
}

func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrNotFound
	}
	return sub, err
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
}

func (s *gormStore) ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
