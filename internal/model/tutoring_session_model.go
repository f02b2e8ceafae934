package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TutoringSession struct {
	Id                uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StudentId         string         `gorm:"type:varchar(255);not null;index"`
	ActivityId        string         `gorm:"type:varchar(255);not null;index"`
	Phase             string         `gorm:"type:varchar(32);not null"`
	HintLevel         int            `gorm:"default:0"`
	Frustration       float64        `gorm:"default:0"`
	Understanding     float64        `gorm:"default:0"`
	TurnsInPhase      int            `gorm:"default:0"`
	ConsecutiveErrors int            `gorm:"default:0"`
	Exercise          datatypes.JSON `gorm:"type:jsonb"`
	Turns             datatypes.JSON `gorm:"type:jsonb"`
	Ended             bool           `gorm:"default:false"`
	EndedAt           *time.Time
	LastActivityAt    time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (TutoringSession) TableName() string {
	return "tutoring_sessions"
}
