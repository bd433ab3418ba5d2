package model

import (
	"fmt"
	"strings"

	"turion-be/internal/entity"

	"gorm.io/gorm"
)

// All lists every persisted model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&CreditBalance{},
		&CreditTransaction{},
		&Conversation{},
		&Message{},
		&Memory{},
		&Project{},
		&BuildStep{},
	}
}

// heldPortIndex makes a port unique among projects that hold one, so two
// instances allocating concurrently cannot both commit the same port.
func heldPortIndex() string {
	quoted := entity.PortHoldingStatusNames()
	for i, s := range quoted {
		quoted[i] = "'" + s + "'"
	}
	return fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_held_port ON projects (port) WHERE port IS NOT NULL AND status IN (%s)",
		strings.Join(quoted, ", "),
	)
}

// Migrate creates or updates every table plus the partial indexes gorm tags
// cannot express. Both Postgres and SQLite accept the statements.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return err
	}
	if err := db.Exec(heldPortIndex()).Error; err != nil {
		return fmt.Errorf("create held port index: %w", err)
	}
	return nil
}
