package store

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bynour1/projet-planni/internal/model"
)

var (
	// ErrDuplicateContact 邮箱或手机号已被占用（MySQL 1062）。
	ErrDuplicateContact = errors.New("contact déjà utilisé")
	// ErrUserNotFound 用户不存在。
	ErrUserNotFound = errors.New("utilisateur introuvable")
)

// UserStore 基于 gorm 的用户存储。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建用户存储。
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByContact 按邮箱或手机号精确匹配查找用户。
func (s *UserStore) FindByContact(ctx context.Context, contact string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR phone = ?", contact, contact).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AddUser 以未确认状态插入新用户，密码为空。
//
// 邮箱或手机号与现有记录冲突时返回 ErrDuplicateContact，
// 唯一索引是并发重复邀请的唯一防线（见 planning 表之外无事务包裹）。
func (s *UserStore) AddUser(ctx context.Context, user *model.User) (uint, error) {
	user.IsConfirmed = false
	user.Password = ""
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicateContact
		}
		return 0, err
	}
	return user.ID, nil
}

// CreateOrUpdate 按邮箱/手机号 upsert，总是置 isConfirmed=1。
//
// 对应原库表的 INSERT ... ON DUPLICATE KEY UPDATE 语义。
func (s *UserStore) CreateOrUpdate(ctx context.Context, user *model.User) error {
	user.IsConfirmed = true
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			DoUpdates: clause.AssignmentColumns([]string{
				"phone", "password", "nom", "prenom", "role", "is_confirmed",
			}),
		}).
		Create(user).Error
}

// SetProvisionalPassword 写入临时密码并置 mustChangePassword，不碰 isConfirmed。
func (s *UserStore) SetProvisionalPassword(ctx context.Context, contact string, hashed string) error {
	return s.updateByContact(ctx, contact, map[string]interface{}{
		"password":             hashed,
		"must_change_password": true,
	})
}

// UpdatePassword 写入新密码并清除 mustChangePassword。
func (s *UserStore) UpdatePassword(ctx context.Context, contact string, hashed string) error {
	return s.updateByContact(ctx, contact, map[string]interface{}{
		"password":             hashed,
		"must_change_password": false,
	})
}

// ConfirmUser 仅置 isConfirmed=1（管理员激活的旧通道）。
func (s *UserStore) ConfirmUser(ctx context.Context, contact string) error {
	return s.updateByContact(ctx, contact, map[string]interface{}{
		"is_confirmed": true,
	})
}

// List 返回全部用户（密码由 JSON 序列化剥离）。
func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) updateByContact(ctx context.Context, contact string, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ? OR phone = ?", contact, contact).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
