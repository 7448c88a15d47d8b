package model

import "time"

// 参与者 RSVP 状态。
const (
	AttendeeInvited  = "invited"
	AttendeeAccepted = "accepted"
	AttendeeDeclined = "declined"
)

// Event 表示日历事件。
//
// StartAt / EndAt 保存客户端传来的 ISO 8601 字符串，按字典序即可做区间过滤。
type Event struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CalendarID     string    `gorm:"type:varchar(64);index" json:"calendarId"`
	OrganizerEmail string    `gorm:"type:varchar(191)" json:"organizerEmail"`
	Title          string    `gorm:"type:varchar(255);not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	StartAt        string    `gorm:"type:varchar(40);not null;index" json:"startAt"`
	EndAt          string    `gorm:"type:varchar(40);not null" json:"endAt"`
	Timezone       string    `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	Location       string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	Recurrence     string    `gorm:"type:varchar(255)" json:"recurrence,omitempty"`
	CreatedAt      time.Time `json:"-"`
}

// Attendee 是事件参与者，按 (event_id, email) 或 (event_id, phone) 去重，
// 重复邀请走 upsert（覆盖状态与权限）。
type Attendee struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	EventID   uint      `gorm:"not null;uniqueIndex:idx_event_contact" json:"eventId"`
	Email     *string   `gorm:"type:varchar(191);uniqueIndex:idx_event_contact" json:"email"`
	Phone     *string   `gorm:"type:varchar(32);uniqueIndex:idx_event_contact" json:"phone"`
	Status    string    `gorm:"type:varchar(16);default:invited" json:"status"`
	CanEdit   bool      `gorm:"default:false" json:"canEdit"`
	InvitedBy string    `gorm:"type:varchar(191)" json:"invitedBy,omitempty"`
	CreatedAt time.Time `json:"-"`
}
