package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bynour1/projet-planni/internal/model"
)

// ErrAttendeeNotFound 事件名下没有该参与者。
var ErrAttendeeNotFound = errors.New("participant introuvable")

// EventStore 日历事件与参与者存储。
type EventStore struct {
	db *gorm.DB
}

// NewEventStore 创建事件存储。
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// Create 插入事件并返回 ID。
func (s *EventStore) Create(ctx context.Context, event *model.Event) (uint, error) {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return 0, err
	}
	return event.ID, nil
}

// ListForCalendar 列出日历下的事件，可按 start_at 区间过滤。
func (s *EventStore) ListForCalendar(ctx context.Context, calendarID, rangeStart, rangeEnd string) ([]model.Event, error) {
	q := s.db.WithContext(ctx).Model(&model.Event{})
	if calendarID != "" {
		q = q.Where("calendar_id = ?", calendarID)
	}
	if rangeStart != "" {
		q = q.Where("start_at >= ?", rangeStart)
	}
	if rangeEnd != "" {
		q = q.Where("start_at <= ?", rangeEnd)
	}
	events := []model.Event{}
	if err := q.Order("start_at").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// AddAttendee 按 (event_id, 联系方式) upsert 参与者，重复邀请覆盖状态与权限。
func (s *EventStore) AddAttendee(ctx context.Context, attendee *model.Attendee) error {
	if attendee.Status == "" {
		attendee.Status = model.AttendeeInvited
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			DoUpdates: clause.AssignmentColumns([]string{"status", "can_edit", "invited_by"}),
		}).
		Create(attendee).Error
}

// SetRSVP 更新参与者的 RSVP 状态，找不到返回 ErrAttendeeNotFound。
func (s *EventStore) SetRSVP(ctx context.Context, eventID uint, contact model.Contact, status string) error {
	return s.updateAttendee(ctx, eventID, contact, map[string]interface{}{"status": status})
}

// SetPermission 授予或收回参与者的编辑权限。
func (s *EventStore) SetPermission(ctx context.Context, eventID uint, contact model.Contact, canEdit bool) error {
	return s.updateAttendee(ctx, eventID, contact, map[string]interface{}{"can_edit": canEdit})
}

func (s *EventStore) updateAttendee(ctx context.Context, eventID uint, contact model.Contact, values map[string]interface{}) error {
	column := "phone"
	if contact.IsEmail() {
		column = "email"
	}
	res := s.db.WithContext(ctx).
		Model(&model.Attendee{}).
		Where("event_id = ? AND "+column+" = ?", eventID, contact.Value).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}
