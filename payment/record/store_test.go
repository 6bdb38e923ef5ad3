package record

import (
	"errors"
	"testing"
	"time"

	"membership-portal/payment/audit"
	"membership-portal/payment/txid"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatal("failed to open test db:", err)
	}
	if err := gdb.AutoMigrate(&Payment{}, &audit.Entry{}); err != nil {
		t.Fatal("failed to migrate:", err)
	}
	return gdb
}

func testStore(t *testing.T) *Store {
	gdb := testDB(t)
	return NewStore(gdb, txid.New("DON"), audit.NewLog(gdb))
}

func countAuditEntries(t *testing.T, gdb *gorm.DB, action audit.Action) int64 {
	t.Helper()
	var count int64
	gdb.Model(&audit.Entry{}).Where("action = ?", action).Count(&count)
	return count
}

func donationInput() CreateInput {
	return CreateInput{
		Kind:       KindDonation,
		PayerName:  "Abebe Bekele",
		PayerEmail: "abebe@example.com",
		Amount:     50000,
		Currency:   "ETB",
		Method:     MethodMobileMoney,
	}
}

// fixed-sequence generator to force txid collisions
type seqGen struct {
	ids []string
	i   int
}

func (g *seqGen) Generate() string {
	id := g.ids[g.i%len(g.ids)]
	g.i++
	return id
}

func TestCreatePending(t *testing.T) {
	s := testStore(t)

	p, err := s.Create(donationInput())
	if err != nil {
		t.Fatal("Create failed:", err)
	}
	if p.Status != StatusPending {
		t.Error("Expected pending, got", p.Status)
	}
	if p.TransactionID == "" {
		t.Error("Expected a transaction id")
	}
	if p.ID == 0 {
		t.Error("Expected a persisted record")
	}
	if got := countAuditEntries(t, s.DB, audit.ActionPaymentSubmitted); got != 1 {
		t.Error("Expected one submission audit entry, got", got)
	}
}

// a failed audit write must roll the submission back, not just log
func TestCreateAuditFailureRollsBack(t *testing.T) {
	s := testStore(t)
	if err := s.DB.Migrator().DropTable(&audit.Entry{}); err != nil {
		t.Fatal(err)
	}

	_, err := s.Create(donationInput())
	if err == nil {
		t.Fatal("Expected create to fail when the audit write fails")
	}

	var count int64
	s.DB.Model(&Payment{}).Count(&count)
	if count != 0 {
		t.Error("Submission must not commit without its audit entry, found", count)
	}
}

func TestCreateValidation(t *testing.T) {
	s := testStore(t)

	cases := []struct {
		name  string
		mut   func(*CreateInput)
		field string
	}{
		{"zero amount", func(in *CreateInput) { in.Amount = 0 }, "amount"},
		{"negative amount", func(in *CreateInput) { in.Amount = -100 }, "amount"},
		{"bad method", func(in *CreateInput) { in.Method = "paypal" }, "method"},
		{"no name", func(in *CreateInput) { in.PayerName = "" }, "name"},
		{"no contact", func(in *CreateInput) { in.PayerEmail = ""; in.PayerPhone = "" }, "contact"},
		{"membership without account", func(in *CreateInput) { in.Kind = KindMembership; in.Plan = "regular" }, "user"},
		{"membership without plan", func(in *CreateInput) { in.Kind = KindMembership; in.UserID = 1 }, "plan"},
	}

	for _, tc := range cases {
		in := donationInput()
		tc.mut(&in)
		_, err := s.Create(in)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
			continue
		}
		if _, ok := verr.Fields[tc.field]; !ok {
			t.Errorf("%s: expected field %q in error, got %v", tc.name, tc.field, verr.Fields)
		}
	}

	var count int64
	s.DB.Model(&Payment{}).Count(&count)
	if count != 0 {
		t.Error("Validation failures must not persist records, found", count)
	}
}

func TestCreateDuplicateRetry(t *testing.T) {
	db := testDB(t)
	s := NewStore(db, &seqGen{ids: []string{"DON-00000001-AAAAAA"}}, audit.NewLog(db))

	if _, err := s.Create(donationInput()); err != nil {
		t.Fatal("first create failed:", err)
	}

	// second create collides once, then the generator hands out a fresh id
	s.Gen = &seqGen{ids: []string{"DON-00000001-AAAAAA", "DON-00000002-BBBBBB"}}
	p, err := s.Create(donationInput())
	if err != nil {
		t.Fatal("expected retry to succeed, got", err)
	}
	if p.TransactionID != "DON-00000002-BBBBBB" {
		t.Error("Expected the regenerated id, got", p.TransactionID)
	}
}

func TestCreateGenerationExhausted(t *testing.T) {
	db := testDB(t)
	s := NewStore(db, &seqGen{ids: []string{"DON-00000001-AAAAAA"}}, audit.NewLog(db))

	if _, err := s.Create(donationInput()); err != nil {
		t.Fatal("first create failed:", err)
	}

	_, err := s.Create(donationInput())
	if !errors.Is(err, ErrDuplicateTransactionID) {
		t.Error("Expected ErrDuplicateTransactionID, got", err)
	}
	if !errors.Is(err, txid.ErrGenerationExhausted) {
		t.Error("Expected ErrGenerationExhausted, got", err)
	}

	var count int64
	s.DB.Model(&Payment{}).Count(&count)
	if count != 1 {
		t.Error("Expected only the first record, found", count)
	}
}

func TestGet(t *testing.T) {
	s := testStore(t)
	p, err := s.Create(donationInput())
	if err != nil {
		t.Fatal(err)
	}

	byTxid, err := s.Get(p.TransactionID)
	if err != nil || byTxid.ID != p.ID {
		t.Error("Expected lookup by transaction id, got", byTxid.ID, err)
	}

	if _, err := s.Get("DON-99999999-ZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected ErrNotFound, got", err)
	}
}

func sampleEvidence() Evidence {
	return Evidence{
		FileName:     "r1.jpg",
		OriginalName: "receipt.jpg",
		StoragePath:  "/uploads/r1.jpg",
		MimeType:     "image/jpeg",
		SizeBytes:    1024,
		UploadedAt:   time.Now(),
	}
}

func TestSetEvidence(t *testing.T) {
	s := testStore(t)
	p, _ := s.Create(donationInput())

	updated, oldPath, err := s.SetEvidence(p.ID, sampleEvidence())
	if err != nil {
		t.Fatal("SetEvidence failed:", err)
	}
	if updated.Status != StatusSubmitted {
		t.Error("Expected submitted, got", updated.Status)
	}
	if oldPath != "" {
		t.Error("Expected no superseded path on first attach, got", oldPath)
	}
	if updated.StoragePath != "/uploads/r1.jpg" {
		t.Error("Evidence metadata not persisted:", updated.StoragePath)
	}
	if got := countAuditEntries(t, s.DB, audit.ActionEvidenceAttached); got != 1 {
		t.Error("Expected one attach audit entry, got", got)
	}
}

func TestSetEvidenceAuditFailureRollsBack(t *testing.T) {
	s := testStore(t)
	p, err := s.Create(donationInput())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DB.Migrator().DropTable(&audit.Entry{}); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.SetEvidence(p.ID, sampleEvidence()); err == nil {
		t.Fatal("Expected attach to fail when the audit write fails")
	}

	got, _ := s.GetByID(p.ID)
	if got.Status != StatusPending {
		t.Error("Transition must not commit without its audit entry, got", got.Status)
	}
	if got.StoragePath != "" {
		t.Error("Evidence metadata leaked from rolled-back attach:", got.StoragePath)
	}
}

func TestSetEvidenceOverwrite(t *testing.T) {
	s := testStore(t)
	p, _ := s.Create(donationInput())
	s.SetEvidence(p.ID, sampleEvidence())

	ev2 := sampleEvidence()
	ev2.FileName = "r2.jpg"
	ev2.StoragePath = "/uploads/r2.jpg"

	updated, oldPath, err := s.SetEvidence(p.ID, ev2)
	if err != nil {
		t.Fatal("re-attach failed:", err)
	}
	if oldPath != "/uploads/r1.jpg" {
		t.Error("Expected superseded path of first attach, got", oldPath)
	}
	if updated.StoragePath != "/uploads/r2.jpg" {
		t.Error("Expected overwritten evidence, got", updated.StoragePath)
	}
	if updated.Status != StatusSubmitted {
		t.Error("Expected submitted, got", updated.Status)
	}
}

func TestSetEvidenceTerminal(t *testing.T) {
	s := testStore(t)
	p, _ := s.Create(donationInput())
	s.SetEvidence(p.ID, sampleEvidence())
	if _, err := s.DecideTx(s.DB, p.ID, StatusVerified, "admin@example.com", "", time.Now()); err != nil {
		t.Fatal(err)
	}

	_, _, err := s.SetEvidence(p.ID, sampleEvidence())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Error("Expected ErrInvalidStateTransition on terminal record, got", err)
	}

	if _, _, err := s.SetEvidence(99999, sampleEvidence()); !errors.Is(err, ErrNotFound) {
		t.Error("Expected ErrNotFound, got", err)
	}
}

func TestDecideTx(t *testing.T) {
	s := testStore(t)
	p, _ := s.Create(donationInput())

	// no evidence yet, decision must fail and leave the record untouched
	_, err := s.DecideTx(s.DB, p.ID, StatusVerified, "admin@example.com", "", time.Now())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatal("Expected ErrInvalidStateTransition on pending record, got", err)
	}
	got, _ := s.GetByID(p.ID)
	if got.Status != StatusPending || got.Reviewer != "" {
		t.Error("Failed decision must not mutate the record:", got.Status, got.Reviewer)
	}

	s.SetEvidence(p.ID, sampleEvidence())

	decided, err := s.DecideTx(s.DB, p.ID, StatusVerified, "admin@example.com", "confirmed via statement", time.Now())
	if err != nil {
		t.Fatal("decide failed:", err)
	}
	if decided.Status != StatusVerified {
		t.Error("Expected verified, got", decided.Status)
	}
	if decided.Reviewer != "admin@example.com" || decided.ReviewedAt == nil {
		t.Error("Reviewer fields not set")
	}
	if decided.ReviewNotes != "confirmed via statement" {
		t.Error("Notes not set:", decided.ReviewNotes)
	}
}

func TestDecideTxDoubleDecision(t *testing.T) {
	s := testStore(t)
	p, _ := s.Create(donationInput())
	s.SetEvidence(p.ID, sampleEvidence())

	if _, err := s.DecideTx(s.DB, p.ID, StatusVerified, "admin1@example.com", "", time.Now()); err != nil {
		t.Fatal(err)
	}

	// the second reviewer must lose, whatever their outcome
	_, err := s.DecideTx(s.DB, p.ID, StatusRejected, "admin2@example.com", "fake receipt", time.Now())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatal("Expected ErrInvalidStateTransition, got", err)
	}

	got, _ := s.GetByID(p.ID)
	if got.Status != StatusVerified || got.Reviewer != "admin1@example.com" {
		t.Error("First decision must stand:", got.Status, got.Reviewer)
	}
}

func TestDecideTxBadOutcome(t *testing.T) {
	s := testStore(t)
	p, _ := s.Create(donationInput())
	s.SetEvidence(p.ID, sampleEvidence())

	_, err := s.DecideTx(s.DB, p.ID, StatusPending, "admin@example.com", "", time.Now())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Error("Expected ErrInvalidStateTransition for bad outcome, got", err)
	}

	_, err = s.DecideTx(s.DB, 99999, StatusVerified, "admin@example.com", "", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Error("Expected ErrNotFound, got", err)
	}
}

func TestCanTransition(t *testing.T) {
	legal := [][2]Status{
		{StatusPending, StatusSubmitted},
		{StatusSubmitted, StatusVerified},
		{StatusSubmitted, StatusRejected},
	}
	all := []Status{StatusPending, StatusSubmitted, StatusVerified, StatusRejected}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal {
				if l[0] == from && l[1] == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}
