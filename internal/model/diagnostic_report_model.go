package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DiagnosticReport struct {
	Id            uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StudentId     string                      `gorm:"type:varchar(255);not null;index"`
	Category      string                      `gorm:"type:varchar(32);not null"`
	Diagnosis     string                      `gorm:"type:text"`
	Evidence      datatypes.JSON              `gorm:"type:jsonb"`
	Intervention  string                      `gorm:"type:text"`
	Confidence    float64                     `gorm:"default:0"`
	Tags          datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	LowConfidence bool                        `gorm:"default:false"`
	Ungrounded    bool                        `gorm:"default:false"`
	RuleCategory  string                      `gorm:"type:varchar(32)"`
	ParseTier     int                         `gorm:"default:0"`
	RiskScore     float64                     `gorm:"default:0"`
	RiskLevel     string                      `gorm:"type:varchar(32)"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime"`
}

func (DiagnosticReport) TableName() string {
	return "diagnostic_reports"
}
