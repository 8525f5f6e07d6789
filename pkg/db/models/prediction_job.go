package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/enums"
)

// PredictionJob is the lifecycle record of one priced prediction request.
// Input holds the submitted rows exactly as admitted; Result stays null until
// a worker drives the job to a terminal status.
type PredictionJob struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	ModelID   uuid.UUID       `gorm:"column:model_id;type:uuid;not null"`
	Input     json.RawMessage `gorm:"column:input;type:jsonb;not null"`
	Result    json.RawMessage `gorm:"column:result;type:jsonb"`
	Status    enums.JobStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
