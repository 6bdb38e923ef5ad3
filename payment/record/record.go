package record

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Kind separates standalone donations from account-linked membership
// payments. Both share the same record shape and the same state machine.
type Kind string

const (
	KindDonation   Kind = "donation"
	KindMembership Kind = "membership"
)

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
	MethodCard         Method = "card"
	MethodOther        Method = "other"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
)

// transitions is the complete table of legal status changes. verified and
// rejected are terminal: they appear as targets only.
var transitions = map[Status][]Status{
	StatusPending:   {StatusSubmitted},
	StatusSubmitted: {StatusVerified, StatusRejected},
}

func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	return s == StatusVerified || s == StatusRejected
}

// Payment is the durable record of one payment attempt. Payer contact fields
// are snapshotted onto the record so a guest donation outlives the
// interaction that created it; UserID is zero for guests.
type Payment struct {
	gorm.Model
	TransactionID string `gorm:"uniqueIndex;size:32"`
	Kind          Kind   `gorm:"size:16;index"`
	UserID        uint   `gorm:"index"`

	PayerName  string
	PayerEmail string
	PayerPhone string
	Woreda     string
	Region     string

	Amount   int    // in cents
	Currency string `gorm:"size:8"`
	Method   Method `gorm:"size:16"`
	Plan     string `gorm:"size:32"` // membership payments only

	Status Status `gorm:"size:16;index"`

	// receipt evidence metadata, set on attach
	FileName     string
	OriginalName string
	StoragePath  string
	MimeType     string `gorm:"size:64"`
	SizeBytes    int64
	UploadedAt   *time.Time

	Reviewer    string
	ReviewedAt  *time.Time
	ReviewNotes string
}

// ValidationError reports the submission fields that failed, keyed by field
// name. No state is written when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msg := "invalid submission:"
	for _, k := range keys {
		msg += fmt.Sprintf(" %s: %s;", k, e.Fields[k])
	}
	return msg
}

func validMethod(m Method) bool {
	switch m {
	case MethodBankTransfer, MethodMobileMoney, MethodCard, MethodOther:
		return true
	}
	return false
}
