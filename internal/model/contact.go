package model

import (
	"errors"
	"regexp"
	"strings"
)

// ContactKind 联系方式类型。
type ContactKind int

const (
	ContactEmail ContactKind = iota + 1
	ContactPhone
)

var (
	ErrEmptyContact   = errors.New("contact vide")
	ErrInvalidEmail   = errors.New("email invalide")
	ErrInvalidPhone   = errors.New("numéro de téléphone invalide")
	ErrInvalidContact = errors.New("contact invalide")
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// Contact 是在边界处解析一次的联系方式变体（邮箱或手机号），
// 取代到处用 strings.Contains(v, "@") 嗅探的写法。
type Contact struct {
	Kind  ContactKind
	Value string
}

// ParseContact 解析并校验联系方式。
//
// 含 "@" 的字符串按邮箱处理（标准正则）；其余按手机号处理，
// 去掉空白后要求匹配 ^\+?[0-9]{8,15}$（近似 E.164）。
func ParseContact(raw string) (Contact, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Contact{}, ErrEmptyContact
	}
	if strings.Contains(raw, "@") {
		if !emailRe.MatchString(raw) {
			return Contact{}, ErrInvalidEmail
		}
		return Contact{Kind: ContactEmail, Value: raw}, nil
	}
	compact := strings.Join(strings.Fields(raw), "")
	if !phoneRe.MatchString(compact) {
		return Contact{}, ErrInvalidPhone
	}
	return Contact{Kind: ContactPhone, Value: compact}, nil
}

// IsEmail 是否为邮箱。
func (c Contact) IsEmail() bool { return c.Kind == ContactEmail }

// Domain 返回邮箱的域名部分（非邮箱返回空串）。
func (c Contact) Domain() string {
	if !c.IsEmail() {
		return ""
	}
	at := strings.LastIndex(c.Value, "@")
	return c.Value[at+1:]
}
