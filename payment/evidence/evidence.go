package evidence

import (
	"errors"
	"fmt"
	"log"
	"time"

	"membership-portal/payment/record"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported receipt media type")
	ErrPayloadTooLarge      = errors.New("receipt file too large")
)

// allow-lists are keyed by record kind: donations accept the general receipt
// formats, membership receipts are restricted to the formats the review team
// can archive.
var allowedMimes = map[record.Kind][]string{
	record.KindDonation:   {"image/jpeg", "image/png", "image/webp", "application/pdf"},
	record.KindMembership: {"image/jpeg", "image/png", "application/pdf"},
}

// FileStore is the physical storage for receipt files. Save returns the
// storage path used for later retrieval and deletion.
type FileStore interface {
	Save(name string, data []byte) (string, error)
	Delete(path string) error
}

type Upload struct {
	OriginalName string
	Data         []byte
}

// Records is the slice of the payment record store the manager needs.
type Records interface {
	GetByID(id uint) (record.Payment, error)
	SetEvidence(id uint, ev record.Evidence) (record.Payment, string, error)
}

type Manager struct {
	Records Records
	Files   FileStore
	MaxSize int64
}

func NewManager(records Records, files FileStore, maxSize int64) *Manager {
	return &Manager{Records: records, Files: files, MaxSize: maxSize}
}

// Attach validates the upload, stores the file and persists the receipt
// metadata on the payment record, moving it to submitted. The file write and
// the metadata write are not atomic with each other: if the metadata write
// fails after the file landed, the orphaned file is deleted before the error
// is returned. Re-attaching overwrites the prior evidence and removes the
// superseded file.
func (m *Manager) Attach(paymentID uint, up Upload) (record.Payment, error) {
	p, err := m.Records.GetByID(paymentID)
	if err != nil {
		return record.Payment{}, err
	}
	if record.IsTerminal(p.Status) {
		return record.Payment{}, record.ErrInvalidStateTransition
	}

	if int64(len(up.Data)) > m.MaxSize {
		return record.Payment{}, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(up.Data), m.MaxSize)
	}

	// sniff the real content type, the client-declared one is not trusted
	mime := mimetype.Detect(up.Data)
	if !mimeAllowed(p.Kind, mime.String()) {
		return record.Payment{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mime.String())
	}

	name := uuid.New().String() + mime.Extension()
	path, err := m.Files.Save(name, up.Data)
	if err != nil {
		return record.Payment{}, fmt.Errorf("store receipt: %w", err)
	}

	updated, oldPath, err := m.Records.SetEvidence(paymentID, record.Evidence{
		FileName:     name,
		OriginalName: up.OriginalName,
		StoragePath:  path,
		MimeType:     mime.String(),
		SizeBytes:    int64(len(up.Data)),
		UploadedAt:   time.Now(),
	})
	if err != nil {
		// compensating delete, the file must not outlive the failed attach
		if derr := m.Files.Delete(path); derr != nil {
			log.Println("failed to delete orphaned receipt:", path, derr)
		}
		return record.Payment{}, err
	}

	if oldPath != "" && oldPath != path {
		if derr := m.Files.Delete(oldPath); derr != nil {
			log.Println("failed to delete superseded receipt:", oldPath, derr)
		}
	}

	return updated, nil
}

func mimeAllowed(kind record.Kind, mime string) bool {
	for _, allowed := range allowedMimes[kind] {
		if mime == allowed {
			return true
		}
	}
	return false
}
