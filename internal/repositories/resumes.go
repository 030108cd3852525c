package repositories

import (
	"context"

	"github.com/applyflow/applyflow/internal/entities"
	"gorm.io/gorm"
)

type Resumes struct {
	db *gorm.DB
}

func NewResumesRepository(db *gorm.DB) *Resumes {
	return &Resumes{db: db}
}

// Add stores an immutable resume snapshot and fills in its generated ID.
func (repo *Resumes) Add(ctx context.Context, version *entities.ResumeVersion) error {
	return repo.db.WithContext(ctx).Create(version).Error
}

func (repo *Resumes) GetByID(ctx context.Context, id int) (*entities.ResumeVersion, error) {
	var version entities.ResumeVersion
	if err := repo.db.WithContext(ctx).First(&version, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &version, nil
}
