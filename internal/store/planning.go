package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/bynour1/projet-planni/internal/model"
)

// PlanningStore 排班表存储：一行一天，events 列存 JSON。
type PlanningStore struct {
	db *gorm.DB
}

// NewPlanningStore 创建排班表存储。
func NewPlanningStore(db *gorm.DB) *PlanningStore {
	return &PlanningStore{db: db}
}

// Get 读取完整排班表。
func (s *PlanningStore) Get(ctx context.Context) (model.Planning, error) {
	var rows []model.PlanningDay
	if err := s.db.WithContext(ctx).Order("date").Find(&rows).Error; err != nil {
		return nil, err
	}
	planning := model.Planning{}
	for _, row := range rows {
		var events []model.PlanningEvent
		if err := json.Unmarshal([]byte(row.Events), &events); err != nil {
			return nil, fmt.Errorf("decode planning %q: %w", row.Date, err)
		}
		planning[row.Date] = events
	}
	return planning, nil
}

// Replace 整体替换排班表（单个事务内先清空再写入）。
func (s *PlanningStore) Replace(ctx context.Context, planning model.Planning) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.PlanningDay{}).Error; err != nil {
			return err
		}
		for date, events := range planning {
			raw, err := json.Marshal(events)
			if err != nil {
				return fmt.Errorf("encode planning %q: %w", date, err)
			}
			if err := tx.Create(&model.PlanningDay{Date: date, Events: string(raw)}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
