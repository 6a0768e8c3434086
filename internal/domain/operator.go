package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "管理员"
	RolePlanner  Role = "调度员"
	RoleObserver Role = "观察员"
)

// Operator 是登录系统的工厂管理人员，不参与排班
type Operator struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
