package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ModelDescriptor is the catalog entry for one priced classifier. Rows are
// reference data seeded by migration; the serving path only reads them.
type ModelDescriptor struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string          `gorm:"column:name;not null;uniqueIndex"`
	Cost               decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null"`
	ArtifactPath       string          `gorm:"column:artifact_path;not null"`
	NumericColumns     pq.StringArray  `gorm:"column:numeric_columns;type:text[];not null;default:ARRAY[]::text[]"`
	CategoricalColumns pq.StringArray  `gorm:"column:categorical_columns;type:text[];not null;default:ARRAY[]::text[]"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
