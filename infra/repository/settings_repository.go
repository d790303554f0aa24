package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/admin"
	settingsrepo "github.com/amirasaad/storefront/pkg/repository/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const worldInfoID = 1

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a settings, audit log and world info
// repository bound to db.
func NewSettingsRepository(db *gorm.DB) settingsrepo.Repository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var m BotSetting
	err := run(func() error {
		return r.db.WithContext(ctx).Where("key = ?", key).First(&m).Error
	})
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Value, true, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	m := BotSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return run(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).
			Create(&m).Error
	})
}

func (r *settingsRepository) AppendLog(ctx context.Context, l *admin.Log) error {
	m := AdminLog{AdminID: l.AdminID, Action: l.Action, Target: l.Target, Details: l.Details}
	err := run(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return err
	}
	l.ID, l.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r *settingsRepository) ListLogs(ctx context.Context, limit int) ([]admin.Log, error) {
	var models []AdminLog
	err := run(func() error {
		return r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]admin.Log, 0, len(models))
	for _, m := range models {
		out = append(out, admin.Log{
			ID:        m.ID,
			AdminID:   m.AdminID,
			Action:    m.Action,
			Target:    m.Target,
			Details:   m.Details,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func (r *settingsRepository) GetWorldInfo(ctx context.Context) (*admin.WorldInfo, error) {
	var m WorldInfo
	err := run(func() error {
		return r.db.WithContext(ctx).Where("id = ?", worldInfoID).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &admin.WorldInfo{World: m.World, Owner: m.Owner, BotName: m.BotName, UpdatedAt: m.UpdatedAt}, nil
}

func (r *settingsRepository) SetWorldInfo(ctx context.Context, w admin.WorldInfo) error {
	m := WorldInfo{ID: worldInfoID, World: w.World, Owner: w.Owner, BotName: w.BotName}
	return run(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"world", "owner", "bot_name", "updated_at"}),
			}).
			Create(&m).Error
	})
}

var _ settingsrepo.Repository = (*settingsRepository)(nil)
