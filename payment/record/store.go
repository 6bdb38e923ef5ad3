package record

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"membership-portal/payment/audit"
	"membership-portal/payment/txid"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound               = errors.New("payment not found")
	ErrInvalidStateTransition = errors.New("invalid payment state transition")
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
)

// TxidGenerator produces candidate transaction identifiers. *txid.Generator
// is the production implementation.
type TxidGenerator interface {
	Generate() string
}

type Store struct {
	DB    *gorm.DB
	Gen   TxidGenerator
	Audit *audit.Log
}

func NewStore(db *gorm.DB, gen TxidGenerator, auditLog *audit.Log) *Store {
	return &Store{DB: db, Gen: gen, Audit: auditLog}
}

// auditActor names the acting party for the trail. Guests have no account, so
// the payer's email stands in when present.
func auditActor(p Payment) string {
	if p.PayerEmail != "" {
		return p.PayerEmail
	}
	return "guest"
}

type CreateInput struct {
	Kind       Kind
	UserID     uint
	PayerName  string
	PayerEmail string
	PayerPhone string
	Woreda     string
	Region     string
	Amount     int
	Currency   string
	Method     Method
	Plan       string
}

func (in CreateInput) validate() error {
	fields := map[string]string{}
	if in.Amount <= 0 {
		fields["amount"] = "must be positive"
	}
	if !validMethod(in.Method) {
		fields["method"] = "unsupported payment method"
	}
	if in.Kind != KindDonation && in.Kind != KindMembership {
		fields["kind"] = "unknown record kind"
	}
	if in.PayerName == "" {
		fields["name"] = "required"
	}
	if in.PayerEmail == "" && in.PayerPhone == "" {
		fields["contact"] = "email or phone required"
	}
	if in.Kind == KindMembership {
		if in.UserID == 0 {
			fields["user"] = "membership payments require an account"
		}
		if in.Plan == "" {
			fields["plan"] = "required"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create validates the submission and inserts a pending record with a fresh
// transaction id. The id carries a random suffix so collisions are nearly
// impossible, but the unique index is the authority: on a duplicate-key
// insert we regenerate and retry a bounded number of times. The insert and
// its audit entry commit as one transaction; a failed audit write fails the
// submission.
func (s *Store) Create(in CreateInput) (Payment, error) {
	if err := in.validate(); err != nil {
		return Payment{}, err
	}
	if in.Currency == "" {
		in.Currency = "ETB"
	}

	var created Payment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for attempt := 0; attempt < txid.MaxAttempts; attempt++ {
			p := Payment{
				TransactionID: s.Gen.Generate(),
				Kind:          in.Kind,
				UserID:        in.UserID,
				PayerName:     in.PayerName,
				PayerEmail:    in.PayerEmail,
				PayerPhone:    in.PayerPhone,
				Woreda:        in.Woreda,
				Region:        in.Region,
				Amount:        in.Amount,
				Currency:      in.Currency,
				Method:        in.Method,
				Plan:          in.Plan,
				Status:        StatusPending,
			}

			err := tx.Create(&p).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			if err != nil {
				return fmt.Errorf("create payment: %w", err)
			}

			created = p
			return s.Audit.Record(tx, auditActor(p), audit.ActionPaymentSubmitted,
				fmt.Sprintf("%s %s submitted", p.Kind, p.TransactionID), map[string]string{
					"transaction_id": p.TransactionID,
					"kind":           string(p.Kind),
				})
		}
		return fmt.Errorf("%w: %w", ErrDuplicateTransactionID, txid.ErrGenerationExhausted)
	})
	if err != nil {
		return Payment{}, err
	}
	return created, nil
}

// Get looks a record up by numeric id or by transaction id.
func (s *Store) Get(idOrTxid string) (Payment, error) {
	var p Payment
	q := s.DB.Where("transaction_id = ?", idOrTxid)
	if n, perr := strconv.ParseUint(idOrTxid, 10, 64); perr == nil {
		q = s.DB.Where("transaction_id = ? OR id = ?", idOrTxid, n)
	}
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (s *Store) GetByID(id uint) (Payment, error) {
	var p Payment
	err := s.DB.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (s *Store) ListByUser(userID uint) ([]Payment, error) {
	var payments []Payment
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (s *Store) ListByStatus(status Status) ([]Payment, error) {
	var payments []Payment
	err := s.DB.Where("status = ?", status).
		Order("created_at ASC").Find(&payments).Error
	return payments, err
}

// Evidence is the receipt metadata persisted on attach.
type Evidence struct {
	FileName     string
	OriginalName string
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	UploadedAt   time.Time
}

// SetEvidence writes the receipt metadata and moves the record to submitted.
// Re-attaching to an already-submitted record overwrites the prior evidence;
// the superseded storage path is returned so the caller can delete the old
// file. The row is read under a FOR UPDATE lock so two concurrent re-attaches
// serialize and the loser still learns the winner's path. Terminal records
// reject the attach. The audit entry commits with the transition.
func (s *Store) SetEvidence(id uint, ev Evidence) (Payment, string, error) {
	var oldPath string
	var p Payment

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if IsTerminal(p.Status) {
			return ErrInvalidStateTransition
		}
		oldPath = p.StoragePath

		res := tx.Model(&Payment{}).
			Where("id = ? AND status IN ?", id, []Status{StatusPending, StatusSubmitted}).
			Updates(map[string]interface{}{
				"status":        StatusSubmitted,
				"file_name":     ev.FileName,
				"original_name": ev.OriginalName,
				"storage_path":  ev.StoragePath,
				"mime_type":     ev.MimeType,
				"size_bytes":    ev.SizeBytes,
				"uploaded_at":   ev.UploadedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// a decision landed between the read and the update
			return ErrInvalidStateTransition
		}
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}

		return s.Audit.Record(tx, auditActor(p), audit.ActionEvidenceAttached,
			"receipt attached to "+p.TransactionID, map[string]string{
				"transaction_id": p.TransactionID,
				"mime_type":      ev.MimeType,
			})
	})
	if err != nil {
		return Payment{}, "", err
	}
	return p, oldPath, nil
}

// DecideTx flips a submitted record to its terminal status as a single
// conditional update. Two concurrent decisions can both read the record as
// submitted, but only one update matches the WHERE clause; the loser sees
// zero rows affected and fails. Runs inside the caller's transaction so the
// flip commits together with activation and the audit entry.
func (s *Store) DecideTx(tx *gorm.DB, id uint, outcome Status, reviewer, notes string, at time.Time) (Payment, error) {
	if !CanTransition(StatusSubmitted, outcome) {
		return Payment{}, fmt.Errorf("%w: outcome %q", ErrInvalidStateTransition, outcome)
	}

	res := tx.Model(&Payment{}).
		Where("id = ? AND status = ?", id, StatusSubmitted).
		Updates(map[string]interface{}{
			"status":       outcome,
			"reviewer":     reviewer,
			"reviewed_at":  at,
			"review_notes": notes,
		})
	if res.Error != nil {
		return Payment{}, res.Error
	}

	if res.RowsAffected == 0 {
		var p Payment
		err := tx.First(&p, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, ErrNotFound
		}
		if err != nil {
			return Payment{}, err
		}
		return Payment{}, fmt.Errorf("%w: payment %s is %s", ErrInvalidStateTransition, p.TransactionID, p.Status)
	}

	var p Payment
	if err := tx.First(&p, id).Error; err != nil {
		return Payment{}, err
	}
	return p, nil
}
