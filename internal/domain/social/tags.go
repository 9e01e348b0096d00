package social

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Tags is a postgres text[] that degrades to a plain text column elsewhere.
type Tags pq.StringArray

func (t Tags) Value() (driver.Value, error) {
	return pq.StringArray(t).Value()
}

func (t *Tags) Scan(src any) error {
	return (*pq.StringArray)(t).Scan(src)
}

func (Tags) GormDataType() string { return "text[]" }

func (Tags) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
