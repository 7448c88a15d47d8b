package model

import "time"

// PlanningEvent 表示排班表里某一天的一条安排。
type PlanningEvent struct {
	Medecin    string `json:"medecin"`
	Technicien string `json:"technicien"`
	Adresse    string `json:"adresse"`
	HeureDebut string `json:"heureDebut,omitempty"`
	HeureFin   string `json:"heureFin,omitempty"`
}

// Planning 是日期标签到当天安排列表的映射，客户端收到广播后整体替换本地状态。
type Planning map[string][]PlanningEvent

// PlanningDay 是排班表的持久化形态：一行一天，events 存 JSON。
type PlanningDay struct {
	Date      string    `gorm:"primaryKey;type:varchar(32)"`
	Events    string    `gorm:"type:text"` // []PlanningEvent 的 JSON
	UpdatedAt time.Time
}

// TableName 保持与既有库表一致。
func (PlanningDay) TableName() string { return "planning" }
