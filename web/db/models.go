package db

import (
	"time"

	"gorm.io/gorm"
)

type MembershipStatus string

const (
	MembershipPending             MembershipStatus = "pending"
	MembershipPendingPayment      MembershipStatus = "pending_payment"
	MembershipPendingVerification MembershipStatus = "pending_verification"
	MembershipActive              MembershipStatus = "active"
	MembershipExpired             MembershipStatus = "expired"
	MembershipCancelled           MembershipStatus = "cancelled"
)

type Plan string

const (
	PlanRegular Plan = "regular"
	PlanStudent Plan = "student"
	PlanSenior  Plan = "senior"
)

func ValidPlan(p Plan) bool {
	switch p {
	case PlanRegular, PlanStudent, PlanSenior:
		return true
	}
	return false
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	gorm.Model
	Email    string `gorm:"unique"`
	Password string
	Name     string
	Phone    string
	Woreda   string
	Region   string
	Role     string `gorm:"size:16;default:member"`

	IsVerified  bool
	VerifyToken string
	TokenExpiry time.Time

	// membership sub-record. MembershipID is assigned once on first
	// activation and never reassigned.
	MembershipID     string           `gorm:"size:40"`
	Plan             Plan             `gorm:"size:32"`
	MembershipStatus MembershipStatus `gorm:"size:32;default:pending"`
	MembershipStart  *time.Time
	MembershipEnd    *time.Time
}
