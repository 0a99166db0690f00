package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/linkgate/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrSlugExists signals that the slug is already held by another link.
	ErrSlugExists = errors.New("slug already exists")
	// ErrClickExists signals a click id that was already recorded.
	ErrClickExists = errors.New("click already recorded")
)

// LinkUpdate lists the link fields an admin patch may change. Nil fields are
// left untouched; ClearExpiresAt removes the expiry.
type LinkUpdate struct {
	Slug           *string
	IsActive       *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// Empty reports whether the update changes nothing.
func (u LinkUpdate) Empty() bool {
	return u.Slug == nil && u.IsActive == nil && u.ExpiresAt == nil && !u.ClearExpiresAt
}

// LinkStore defines the data access contract for links and their clicks.
type LinkStore interface {
	FindLinkBySlug(ctx context.Context, slug string) (*model.Link, error)
	InsertLink(ctx context.Context, link *model.Link) error
	UpdateLink(ctx context.Context, id string, update LinkUpdate) (*model.Link, error)
	// InsertClickAndIncrement stores the click and bumps the owning link's
	// counter as one unit.
	InsertClickAndIncrement(ctx context.Context, linkID string, click *model.Click) error
	ListRecentClicks(ctx context.Context, linkID string, limit int) ([]model.Click, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkStore.
func NewLinkRepository(db *gorm.DB) LinkStore {
	return &linkRepository{db: db}
}

func (r *linkRepository) FindLinkBySlug(ctx context.Context, slug string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) InsertLink(ctx context.Context, link *model.Link) error {
	// Select all columns so an explicit IsActive=false is not replaced by the
	// column default.
	if err := r.db.WithContext(ctx).Select("*").Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return err
	}
	return nil
}

func (r *linkRepository) UpdateLink(ctx context.Context, id string, update LinkUpdate) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !update.Empty() {
			result := tx.Model(&model.Link{}).Where("id = ?", id).Updates(updateColumns(update))
			if result.Error != nil {
				if isUniqueViolation(result.Error) {
					return ErrSlugExists
				}
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrLinkNotFound
			}
		}

		if err := tx.Where("id = ?", id).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLinkNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func updateColumns(update LinkUpdate) map[string]interface{} {
	columns := make(map[string]interface{}, 3)
	if update.Slug != nil {
		columns["slug"] = *update.Slug
	}
	if update.IsActive != nil {
		columns["is_active"] = *update.IsActive
	}
	if update.ClearExpiresAt {
		columns["expires_at"] = nil
	} else if update.ExpiresAt != nil {
		columns["expires_at"] = *update.ExpiresAt
	}
	return columns
}

// isUniqueViolation matches both GORM's translated error and the raw
// Postgres 23505 code.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
