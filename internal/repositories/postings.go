package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Postings struct {
	db *gorm.DB
}

func NewPostingsRepository(db *gorm.DB) *Postings {
	return &Postings{db: db}
}

// Create inserts the posting with insert-or-ignore semantics on
// (source, source_id). It reports whether a new row was produced;
// false means the posting was already discovered before.
func (repo *Postings) Create(ctx context.Context, posting *entities.Posting) (bool, error) {
	res := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(posting)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (repo *Postings) GetByID(ctx context.Context, id int) (*entities.Posting, error) {
	var posting entities.Posting
	if err := repo.db.WithContext(ctx).First(&posting, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &posting, nil
}

// UpdateFields applies a partial update. Callers pass only the columns they
// actually want changed, which is what keeps coalesce semantics honest.
func (repo *Postings) UpdateFields(ctx context.Context, id int, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return repo.db.WithContext(ctx).Model(&entities.Posting{}).Where("id = ?", id).
		Updates(fields).Error
}

func (repo *Postings) SetStatus(ctx context.Context, id int, status entities.PostingStatus) error {
	return repo.db.WithContext(ctx).Model(&entities.Posting{}).Where("id = ?", id).
		Update("status", status).Error
}

// UpdateEvaluation persists score, reasoning, risks and the new status as a
// single statement.
func (repo *Postings) UpdateEvaluation(ctx context.Context, id int, score int,
	reasons []string, risks []string, status entities.PostingStatus) error {

	return repo.db.WithContext(ctx).Model(&entities.Posting{}).Where("id = ?", id).
		Updates(map[string]any{
			"fit_score":   score,
			"fit_reasons": asJSON(reasons),
			"risk_flags":  asJSON(risks),
			"status":      status,
		}).Error
}

// asJSON matches the json serializer representation used on reads, so map
// updates and struct reads agree on the column format.
func asJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

func (repo *Postings) ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).Model(&entities.Posting{}).
		Where("status = ? AND created_at < ?", entities.StatusDiscovered, cutoff).
		Update("status", entities.StatusArchived)
	return res.RowsAffected, res.Error
}
