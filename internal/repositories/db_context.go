package repositories

import (
	"fmt"

	"github.com/applyflow/applyflow/internal/entities"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(entities.Posting{})
	if err != nil {
		return fmt.Errorf("failed to migrate Posting entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.FollowUp{})
	if err != nil {
		return fmt.Errorf("failed to migrate FollowUp entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.ResumeVersion{})
	if err != nil {
		return fmt.Errorf("failed to migrate ResumeVersion entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.Application{})
	if err != nil {
		return fmt.Errorf("failed to migrate Application entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.Task{})
	if err != nil {
		return fmt.Errorf("failed to migrate Task entity: %w", err)
	}

	// The unique indexes double as the concurrency-safety boundary: every
	// writer relies on insert-or-ignore against them instead of check-then-insert.
	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_posting_source_id ON postings (source, source_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_followup_posting_number ON follow_ups (posting_id, number)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_application_posting ON applications (posting_id)",
		"CREATE INDEX IF NOT EXISTS idx_task_queue_status ON tasks (queue, status, next_run_at)",
	}
	for _, index := range indexes {
		if err = c.DB.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
