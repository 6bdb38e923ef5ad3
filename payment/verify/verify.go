// admin verification of submitted payments: the status flip, membership
// activation and audit entry commit as one transaction; the payer
// notification is sent after commit and never fails the decision.

package verify

import (
	"fmt"
	"log"
	"time"

	"membership-portal/payment/audit"
	"membership-portal/payment/membership"
	"membership-portal/payment/record"

	"gorm.io/gorm"
)

// Notifier delivers the verification outcome to the payer. Implementations
// must tolerate being called from a goroutine; errors are logged by the
// service, never surfaced to the admin.
type Notifier interface {
	Notify(recipient, kind string, payload map[string]string) error
}

const (
	NotifyPaymentVerified = "payment_verified"
	NotifyPaymentRejected = "payment_rejected"
)

type Service struct {
	DB               *gorm.DB
	Records          *record.Store
	Audit            *audit.Log
	Notifier         Notifier
	MembershipMonths int
}

func NewService(db *gorm.DB, records *record.Store, auditLog *audit.Log, notifier Notifier, months int) *Service {
	return &Service{
		DB:               db,
		Records:          records,
		Audit:            auditLog,
		Notifier:         notifier,
		MembershipMonths: months,
	}
}

// Decide applies the reviewer's outcome to a submitted payment. outcome must
// be verified or rejected. A decision on a pending record (no evidence yet)
// or an already-decided record fails with ErrInvalidStateTransition; when two
// reviewers race, the conditional update in the record store picks exactly
// one winner.
func (s *Service) Decide(paymentID uint, outcome record.Status, reviewer, notes string) (record.Payment, error) {
	if outcome != record.StatusVerified && outcome != record.StatusRejected {
		return record.Payment{}, fmt.Errorf("%w: outcome %q", record.ErrInvalidStateTransition, outcome)
	}

	now := time.Now()
	var decided record.Payment

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.Records.DecideTx(tx, paymentID, outcome, reviewer, notes, now)
		if err != nil {
			return err
		}

		if outcome == record.StatusVerified && p.Kind == record.KindMembership {
			if _, err := membership.Activate(tx, p.UserID, now, s.MembershipMonths); err != nil {
				return fmt.Errorf("activate membership: %w", err)
			}
		}

		action := audit.ActionPaymentVerified
		desc := fmt.Sprintf("payment %s verified", p.TransactionID)
		if outcome == record.StatusRejected {
			action = audit.ActionPaymentRejected
			desc = fmt.Sprintf("payment %s rejected", p.TransactionID)
		}
		err = s.Audit.Record(tx, reviewer, action, desc, map[string]string{
			"transaction_id": p.TransactionID,
			"kind":           string(p.Kind),
			"outcome":        string(outcome),
		})
		if err != nil {
			return fmt.Errorf("write audit entry: %w", err)
		}

		decided = p
		return nil
	})
	if err != nil {
		return record.Payment{}, err
	}

	s.notify(decided, outcome)

	return decided, nil
}

func (s *Service) notify(p record.Payment, outcome record.Status) {
	if s.Notifier == nil || p.PayerEmail == "" {
		return
	}

	kind := NotifyPaymentVerified
	if outcome == record.StatusRejected {
		kind = NotifyPaymentRejected
	}
	payload := map[string]string{
		"transaction_id": p.TransactionID,
		"amount":         fmt.Sprintf("%d", p.Amount),
		"currency":       p.Currency,
		"notes":          p.ReviewNotes,
	}

	go func() {
		if err := s.Notifier.Notify(p.PayerEmail, kind, payload); err != nil {
			log.Println("failed to notify payer:", p.TransactionID, err)
		}
	}()
}
