// append-only audit log of state-changing actions. Entries are written inside
// the transaction of the action they record; there is no update or delete
// path.

package audit

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type Action string

const (
	ActionPaymentSubmitted   Action = "payment_submitted"
	ActionEvidenceAttached   Action = "evidence_attached"
	ActionPaymentVerified    Action = "payment_verified"
	ActionPaymentRejected    Action = "payment_rejected"
	ActionMembershipOverride Action = "membership_override"
)

type Entry struct {
	ID          uint   `gorm:"primarykey"`
	Actor       string `gorm:"size:128;index"`
	Action      Action `gorm:"size:48;index"`
	Description string
	Metadata    string `gorm:"type:text"` // JSON, references identifiers only
	CreatedAt   time.Time
}

type Log struct {
	DB *gorm.DB
}

func NewLog(db *gorm.DB) *Log {
	return &Log{DB: db}
}

// Record appends one entry using tx, so the entry commits or rolls back with
// the action that triggered it. Callers must not swallow the error: audit
// writes are a required effect, unlike notifications.
func (l *Log) Record(tx *gorm.DB, actor string, action Action, description string, metadata map[string]string) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	entry := Entry{
		Actor:       actor,
		Action:      action,
		Description: description,
		Metadata:    string(meta),
	}
	return tx.Create(&entry).Error
}

type Filter struct {
	Actor  string
	Action Action
}

// List returns entries newest-first, with the total count for pagination.
// Page numbering starts at 1.
func (l *Log) List(f Filter, page, perPage int) ([]Entry, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	q := l.DB.Model(&Entry{})
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []Entry
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&entries).Error
	return entries, total, err
}
