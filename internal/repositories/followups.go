package repositories

import (
	"context"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FollowUps struct {
	db *gorm.DB
}

func NewFollowUpsRepository(db *gorm.DB) *FollowUps {
	return &FollowUps{db: db}
}

// Schedule inserts one follow-up with insert-or-ignore semantics on
// (posting_id, number), so re-running a passing compliance check never
// duplicates reminders.
func (repo *FollowUps) Schedule(ctx context.Context, postingID int, number int, at time.Time) error {
	return repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "posting_id"}, {Name: "number"}},
			DoNothing: true,
		}).
		Create(&entities.FollowUp{
			PostingID:   postingID,
			Number:      number,
			ScheduledAt: at,
			Status:      entities.FollowUpPending,
		}).Error
}

func (repo *FollowUps) GetByPosting(ctx context.Context, postingID int) ([]entities.FollowUp, error) {
	var followUps []entities.FollowUp
	if err := repo.db.WithContext(ctx).Order("number").
		Find(&followUps, "posting_id = ?", postingID).Error; err != nil {
		return nil, err
	}
	return followUps, nil
}
