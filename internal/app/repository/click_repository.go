package repository

import (
	"context"

	"github.com/sifan077/linkgate/internal/app/model"
	"gorm.io/gorm"
)

func (r *linkRepository) InsertClickAndIncrement(ctx context.Context, linkID string, click *model.Click) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		click.LinkID = linkID
		if err := tx.Create(click).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrClickExists
			}
			return err
		}

		result := tx.Model(&model.Link{}).
			Where("id = ?", linkID).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return nil
	})
}

func (r *linkRepository) ListRecentClicks(ctx context.Context, linkID string, limit int) ([]model.Click, error) {
	if limit <= 0 {
		limit = 50
	}

	var result []model.Click
	if err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("at DESC").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}
