package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vahub-messaging/internal/domain/presence"
	vahub_errors "vahub-messaging/pkg/errors"
)

type PostgresPresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &PostgresPresenceRepository{db: db}
}

func (r *PostgresPresenceRepository) Get(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	var rec presence.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return presence.Record{}, vahub_errors.ErrNotFound
		}
		return presence.Record{}, err
	}
	return rec, nil
}

func (r *PostgresPresenceRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	rec := presence.Record{
		UserID:   userID,
		Status:   presence.StatusOffline,
		LastSeen: time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&rec).Error
	if err != nil {
		return presence.Record{}, err
	}
	return r.Get(ctx, userID)
}

func (r *PostgresPresenceRepository) Update(ctx context.Context, rec presence.Record) error {
	res := r.db.WithContext(ctx).Save(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresPresenceRepository) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]presence.Record, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var records []presence.Record
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SweepStale recovers from sockets that vanished without a clean
// disconnect: anything still online/away past the threshold goes
// offline in one statement.
func (r *PostgresPresenceRepository) SweepStale(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&presence.Record{}).
		Where("status IN ? AND last_seen < ?", []presence.Status{presence.StatusOnline, presence.StatusAway}, olderThan).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Model(&presence.Record{}).
		Where("user_id IN ?", userIDs).
		Updates(map[string]interface{}{
			"status":           presence.StatusOffline,
			"is_typing":        false,
			"typing_in":        nil,
			"active_socket_id": nil,
			"disconnected_at":  time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

// MarkAway transitions idle online users to away. Busy is a manual
// state and is left alone.
func (r *PostgresPresenceRepository) MarkAway(ctx context.Context, idleSince time.Time) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&presence.Record{}).
		Where("status = ? AND last_seen < ?", presence.StatusOnline, idleSince).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Model(&presence.Record{}).
		Where("user_id IN ?", userIDs).
		Update("status", presence.StatusAway).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
