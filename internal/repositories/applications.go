package repositories

import (
	"context"
	"errors"

	"github.com/applyflow/applyflow/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Applications struct {
	db *gorm.DB
}

func NewApplicationsRepository(db *gorm.DB) *Applications {
	return &Applications{db: db}
}

// Create inserts with insert-or-ignore semantics on posting_id: at most one
// application row per posting, re-runs are a no-op.
func (repo *Applications) Create(ctx context.Context, application *entities.Application) (bool, error) {
	res := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "posting_id"}},
			DoNothing: true,
		}).
		Create(application)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (repo *Applications) GetByPosting(ctx context.Context, postingID int) (*entities.Application, error) {
	var application entities.Application
	err := repo.db.WithContext(ctx).First(&application, "posting_id = ?", postingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &application, nil
}
