package scope

import "gorm.io/gorm"

// OrderByCreatedDesc breaks timestamp ties on id, which is time-ordered for
// rows that need a stable sequence.
func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}
