package membership

import (
	"errors"
	"time"

	"membership-portal/web/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// Activate marks the user's membership active as of asOf for the given number
// of months. It runs inside the caller's transaction so the membership update
// commits together with the payment status flip that triggered it.
//
// Verifying a payment also satisfies identity verification, so the account's
// email is marked verified here. A re-verification never shortens an active
// membership: if the existing end date is later than the one computed, the
// dates are left alone.
func Activate(tx *gorm.DB, userID uint, asOf time.Time, months int) (db.User, error) {
	var user db.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.User{}, ErrUserNotFound
		}
		return db.User{}, err
	}

	end := asOf.AddDate(0, months, 0)

	if user.MembershipStatus == db.MembershipActive &&
		user.MembershipEnd != nil && user.MembershipEnd.After(end) {
		// already active with a later end date, keep it
		if !user.IsVerified {
			user.IsVerified = true
			if err := tx.Save(&user).Error; err != nil {
				return db.User{}, err
			}
		}
		return user, nil
	}

	if user.MembershipID == "" {
		user.MembershipID = "MEM-" + uuid.New().String()
	}
	user.MembershipStatus = db.MembershipActive
	user.MembershipStart = &asOf
	user.MembershipEnd = &end
	user.IsVerified = true

	if err := tx.Save(&user).Error; err != nil {
		return db.User{}, err
	}
	return user, nil
}

// OverrideInput carries the fields an admin may set directly. Zero values
// leave the corresponding field untouched.
type OverrideInput struct {
	Plan   db.Plan
	Status db.MembershipStatus
	Months int
}

// Override applies an admin's direct change to a member's plan, status or
// membership window, outside the payment workflow. It runs inside the
// caller's transaction and re-reads the row under a FOR UPDATE lock, so a
// verification that activated the membership in the meantime is not
// clobbered by a stale copy.
func Override(tx *gorm.DB, userID uint, in OverrideInput, asOf time.Time) (db.User, error) {
	var user db.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.User{}, ErrUserNotFound
		}
		return db.User{}, err
	}

	if in.Plan != "" {
		user.Plan = in.Plan
	}
	if in.Status != "" {
		user.MembershipStatus = in.Status
	}
	if in.Months > 0 {
		end := asOf.AddDate(0, in.Months, 0)
		user.MembershipStart = &asOf
		user.MembershipEnd = &end
	}

	if err := tx.Save(&user).Error; err != nil {
		return db.User{}, err
	}
	return user, nil
}
