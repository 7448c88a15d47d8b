package model

import "time"

// 角色枚举。
const (
	RoleAdmin      = "admin"
	RoleMedecin    = "medecin"
	RoleTechnicien = "technicien"
)

// ValidRole 判断角色是否在枚举范围内。
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMedecin, RoleTechnicien:
		return true
	}
	return false
}

// User 表示系统用户。
//
// email 和 phone 至少填一个，各自全局唯一（MySQL 唯一索引允许多个 NULL）。
// 未确认（IsConfirmed=false）的账号没有可用密码；确认后的账号必须持有
// bcrypt 哈希。管理员下发临时密码时 MustChangePassword 置位，
// 用户首次登录后必须改密。
type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Email              *string   `gorm:"type:varchar(191);uniqueIndex" json:"email"`
	Phone              *string   `gorm:"type:varchar(32);uniqueIndex" json:"phone"`
	Password           string    `gorm:"type:varchar(100)" json:"-"` // bcrypt 哈希
	Nom                string    `gorm:"type:varchar(100)" json:"nom"`
	Prenom             string    `gorm:"type:varchar(100)" json:"prenom"`
	Role               string    `gorm:"type:varchar(16);default:medecin" json:"role"` // admin / medecin / technicien
	IsConfirmed        bool      `gorm:"default:false" json:"isConfirmed"`
	MustChangePassword bool      `gorm:"default:false" json:"mustChangePassword"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`
}

// PrimaryContact 返回首选联系方式（优先邮箱）。
func (u *User) PrimaryContact() string {
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	if u.Phone != nil {
		return *u.Phone
	}
	return ""
}
