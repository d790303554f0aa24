package repository

import (
	"context"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/user"
	userrepo "github.com/amirasaad/storefront/pkg/repository/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository bound to db.
func NewUserRepository(db *gorm.DB) userrepo.Repository {
	return &userRepository{db: db}
}

func (r *userRepository) Get(ctx context.Context, handle string) (*user.User, error) {
	var m User
	err := run(func() error {
		return r.db.WithContext(ctx).Where("growid = ?", handle).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return mapUserModel(&m), nil
}

func (r *userRepository) GetLink(ctx context.Context, platformUserID string) (*user.HandleLink, error) {
	var m HandleLink
	err := run(func() error {
		return r.db.WithContext(ctx).Where("user_id = ?", platformUserID).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &user.HandleLink{PlatformUserID: m.PlatformUserID, Handle: m.Handle, CreatedAt: m.CreatedAt}, nil
}

func (r *userRepository) GetLinkByHandle(ctx context.Context, handle string) (*user.HandleLink, error) {
	var m HandleLink
	err := run(func() error {
		return r.db.WithContext(ctx).Where("growid = ?", handle).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &user.HandleLink{PlatformUserID: m.PlatformUserID, Handle: m.Handle, CreatedAt: m.CreatedAt}, nil
}

func (r *userRepository) EnsureUser(ctx context.Context, handle string) error {
	return run(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&User{Handle: handle}).Error
	})
}

func (r *userRepository) UpsertUser(ctx context.Context, handle string, b balance.Balance) error {
	m := User{Handle: handle, BalanceWL: b.WL, BalanceDL: b.DL, BalanceBGL: b.BGL}
	return run(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "growid"}},
				DoUpdates: clause.AssignmentColumns([]string{"balance_wl", "balance_dl", "balance_bgl", "updated_at"}),
			}).
			Create(&m).Error
	})
}

func (r *userRepository) UpsertLink(ctx context.Context, platformUserID, handle string) error {
	m := HandleLink{PlatformUserID: platformUserID, Handle: handle}
	return run(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"growid"}),
			}).
			Create(&m).Error
	})
}

func (r *userRepository) UpdateBalance(ctx context.Context, handle string, b balance.Balance) error {
	return run(func() error {
		res := r.db.WithContext(ctx).Model(&User{}).
			Where("growid = ?", handle).
			Updates(map[string]any{
				"balance_wl":  b.WL,
				"balance_dl":  b.DL,
				"balance_bgl": b.BGL,
				"updated_at":  time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *userRepository) Delete(ctx context.Context, handle string) error {
	return run(func() error {
		return r.db.WithContext(ctx).Where("growid = ?", handle).Delete(&User{}).Error
	})
}

func mapUserModel(m *User) *user.User {
	return &user.User{
		Handle:    m.Handle,
		Balance:   balance.New(m.BalanceWL, m.BalanceDL, m.BalanceBGL),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

var _ userrepo.Repository = (*userRepository)(nil)
