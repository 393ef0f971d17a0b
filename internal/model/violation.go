package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationRecord is a persisted integrity violation row.
type ViolationRecord struct {
	ID         uuid.UUID  `json:"id"`
	AttemptID  uuid.UUID  `json:"attempt_id"`
	StudentID  int        `json:"student_id"`
	Kind       string     `json:"kind"`
	Detail     string     `json:"detail,omitempty"`
	Device     DeviceInfo `json:"device"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// DeviceInfo is the client environment snapshot captured with each
// violation report.
type DeviceInfo struct {
	UserAgent        string `json:"user_agent"`
	Platform         string `json:"platform"`
	Language         string `json:"language"`
	ScreenResolution string `json:"screen_resolution"`
	ColorDepth       int    `json:"color_depth"`
	Timezone         string `json:"timezone"`
}
