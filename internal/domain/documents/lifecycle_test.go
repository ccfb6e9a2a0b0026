package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Manelgon/doctoria/internal/platform/blobstore"
	"github.com/Manelgon/doctoria/internal/platform/notification"
	"github.com/Manelgon/doctoria/internal/platform/render"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type lifecycleFixture struct {
	ctl    *Controller
	repo   *mockRepo
	blobs  *blobstore.MemoryStore
	sender *notification.MockEmailSender
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	repo := newMockRepo()
	repo.now = func() time.Time { return testNow }
	blobs := blobstore.NewMemoryStore()
	sender := &notification.MockEmailSender{}
	notifier := notification.NewManager(sender, notification.NewTemplateEngine())
	ctl := NewController(NewCatalog(), render.NewRenderer(), blobs, NewService(repo), notifier, zerolog.Nop())
	ctl.now = func() time.Time { return testNow }
	return &lifecycleFixture{ctl: ctl, repo: repo, blobs: blobs, sender: sender}
}

func doctorInk(t *testing.T) []byte {
	t.Helper()
	pad := NewInkPad(300, 120)
	pad.AddStroke([]Point{{X: 30, Y: 60}, {X: 120, Y: 40}, {X: 250, Y: 80}})
	ink, err := pad.ExportImage()
	if err != nil {
		t.Fatalf("export ink: %v", err)
	}
	return ink
}

func composeRequest(t *testing.T, withDoctorInk bool) ComposeRequest {
	t.Helper()
	req := ComposeRequest{
		TemplateID:   "consentimiento-informado",
		DoctorID:     "doc-7",
		PatientEmail: "paciente@example.com",
		Context:      fullBindContext(),
	}
	if withDoctorInk {
		req.DoctorInk = doctorInk(t)
	}
	return req
}

func TestFinalizeWithoutDoctorInk(t *testing.T) {
	fx := newLifecycleFixture(t)

	_, err := fx.ctl.Finalize(context.Background(), composeRequest(t, false))
	if !errors.Is(err, ErrDoctorSignatureRequired) {
		t.Fatalf("expected ErrDoctorSignatureRequired, got %v", err)
	}
	if fx.repo.count() != 0 {
		t.Error("no registry row may exist")
	}
	path := blobstore.BuildPath("CIP-0042", "Consentimiento Informado", testNow)
	if ok, _ := fx.blobs.Exists(context.Background(), path); ok {
		t.Error("no blob may be written")
	}
}

func TestFinalize(t *testing.T) {
	fx := newLifecycleFixture(t)

	rec, err := fx.ctl.Finalize(context.Background(), composeRequest(t, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.IsSigned {
		t.Error("finalized record must be signed")
	}
	if rec.SignedAt == nil || !rec.SignedAt.Equal(testNow) {
		t.Errorf("signedAt = %v, want %v", rec.SignedAt, testNow)
	}
	wantExpiry := testNow.Add(LifecycleValidity)
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expiresAt = %v, want %v", rec.ExpiresAt, wantExpiry)
	}
	if rec.Status(testNow) != StatusSigned {
		t.Errorf("status = %s", rec.Status(testNow))
	}

	data, contentType, err := fx.blobs.Get(context.Background(), rec.StorageRef)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if contentType != "application/pdf" || len(data) == 0 {
		t.Errorf("artifact = %d bytes, %q", len(data), contentType)
	}
}

func TestSendForCounterSignature(t *testing.T) {
	fx := newLifecycleFixture(t)
	req := composeRequest(t, true)
	req.TemplateID = "informe-evolucion"

	rec, note, err := fx.ctl.SendForCounterSignature(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.IsSigned || rec.SignedAt != nil {
		t.Error("record must be pending the patient signature")
	}
	wantExpiry := testNow.Add(LifecycleValidity)
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expiresAt = %v, want %v", rec.ExpiresAt, wantExpiry)
	}
	if rec.Status(testNow) != StatusPendingSignature {
		t.Errorf("status = %s", rec.Status(testNow))
	}
	if note == nil || note.Status != "sent" {
		t.Errorf("notification outcome = %+v, want sent", note)
	}

	calls := fx.sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("notifications = %d, want 1", len(calls))
	}
	if calls[0].To != "paciente@example.com" {
		t.Errorf("recipient = %q", calls[0].To)
	}
}

func TestSendForCounterSignatureRequiresDoctorInk(t *testing.T) {
	fx := newLifecycleFixture(t)
	_, _, err := fx.ctl.SendForCounterSignature(context.Background(), composeRequest(t, false))
	if !errors.Is(err, ErrDoctorSignatureRequired) {
		t.Fatalf("expected ErrDoctorSignatureRequired, got %v", err)
	}
}

func TestSendForCounterSignatureNotifyFailureKeepsRecord(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.sender.ShouldFail = true
	fx.sender.FailError = "smtp down"

	rec, note, err := fx.ctl.SendForCounterSignature(context.Background(), composeRequest(t, true))
	if err != nil {
		t.Fatalf("notification failure must not fail the operation: %v", err)
	}
	if _, err := fx.repo.GetByID(context.Background(), rec.ID); err != nil {
		t.Error("record must survive a notification failure")
	}
	if note == nil {
		t.Fatal("delivery outcome must be reported to the caller")
	}
	if note.Status != "failed" || note.Error != "smtp down" {
		t.Errorf("notification outcome = %+v, want failed/smtp down", note)
	}
}

func TestComposeCorruptInkNoWrites(t *testing.T) {
	fx := newLifecycleFixture(t)
	req := composeRequest(t, true)
	req.DoctorInk = []byte("not a png")

	_, err := fx.ctl.Finalize(context.Background(), req)
	var rErr *render.RenderError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if fx.repo.count() != 0 {
		t.Error("no registry row may exist after a render failure")
	}
	path := blobstore.BuildPath("CIP-0042", "Consentimiento Informado", testNow)
	if ok, _ := fx.blobs.Exists(context.Background(), path); ok {
		t.Error("no blob may be written after a render failure")
	}
}

type failingStore struct{}

func (failingStore) Put(_ context.Context, path, _ string, _ []byte, _ bool) error {
	return &blobstore.StorageError{Op: "put", Path: path, Err: errors.New("disk full")}
}

func (failingStore) Get(_ context.Context, _ string) ([]byte, string, error) {
	return nil, "", blobstore.ErrBlobNotFound
}

func (failingStore) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

func TestComposeStorageFailureNoRegistryRow(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.ctl.blobs = failingStore{}

	_, err := fx.ctl.Finalize(context.Background(), composeRequest(t, true))
	var sErr *blobstore.StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if fx.repo.count() != 0 {
		t.Error("no registry row may exist after a storage failure")
	}
}

func TestComposeRegistryFailure(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.repo.failCreate = &RegistryError{Op: "create", Err: errors.New("connection refused")}

	_, err := fx.ctl.Finalize(context.Background(), composeRequest(t, true))
	var gErr *RegistryError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected RegistryError, got %v", err)
	}
	if fx.repo.count() != 0 {
		t.Error("no registry row may exist")
	}
}

func TestRegenerationSeed(t *testing.T) {
	fx := newLifecycleFixture(t)
	req := composeRequest(t, true)
	source, err := fx.ctl.Finalize(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seed, err := fx.ctl.RegenerationSeed(context.Background(), source.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed.TemplateID != req.TemplateID {
		t.Errorf("seed template = %q, want %q", seed.TemplateID, req.TemplateID)
	}
	if seed.CustomNotes != req.Context.CustomNotes {
		t.Errorf("seed notes = %q", seed.CustomNotes)
	}

	// finalizing the seeded composition creates an independent record
	again := composeRequest(t, true)
	again.TemplateID = seed.TemplateID
	again.Context.CustomNotes = seed.CustomNotes
	second, err := fx.ctl.Finalize(context.Background(), again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID == source.ID {
		t.Error("regeneration must create a new record")
	}
	if fx.repo.count() != 2 {
		t.Errorf("records = %d, want 2", fx.repo.count())
	}

	unchanged, err := fx.repo.GetByID(context.Background(), source.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unchanged.Name != source.Name || !unchanged.CreatedAt.Equal(source.CreatedAt) ||
		unchanged.IsSigned != source.IsSigned || unchanged.Metadata != source.Metadata {
		t.Error("source record must stay untouched")
	}
}

func TestRegenerationSeedContributedDocument(t *testing.T) {
	fx := newLifecycleFixture(t)
	rec := &DocumentRecord{
		PatientID: "CIP-0042",
		Name:      "Informe externo",
		Type:      TypeOther,
		Metadata:  Metadata{UploadedBy: "admin"},
		CreatedAt: testNow,
	}
	if err := fx.repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := fx.ctl.RegenerationSeed(context.Background(), rec.ID)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUploadSignedCopy(t *testing.T) {
	fx := newLifecycleFixture(t)
	pending, _, err := fx.ctl.SendForCounterSignature(context.Background(), composeRequest(t, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	signedPDF := []byte("%PDF-1.4 signed copy")
	rec, err := fx.ctl.UploadSignedCopy(context.Background(), pending.ID, signedPDF, "application/pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.IsSigned || rec.SignedAt == nil || !rec.SignedAt.Equal(testNow) {
		t.Errorf("record not marked signed: %+v", rec)
	}
	if rec.Name != pending.Name || !rec.CreatedAt.Equal(pending.CreatedAt) {
		t.Error("upload must not touch identity fields")
	}

	data, _, err := fx.blobs.Get(context.Background(), rec.StorageRef)
	if err != nil {
		t.Fatalf("stored copy missing: %v", err)
	}
	if string(data) != string(signedPDF) {
		t.Error("stored bytes differ from the upload")
	}
}

func TestUploadSignedCopyEmpty(t *testing.T) {
	fx := newLifecycleFixture(t)
	pending, _, err := fx.ctl.SendForCounterSignature(context.Background(), composeRequest(t, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = fx.ctl.UploadSignedCopy(context.Background(), pending.ID, nil, "application/pdf")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestExpiredSignedDocumentInPendingTab(t *testing.T) {
	fx := newLifecycleFixture(t)
	signedAt := testNow.Add(-2 * 365 * 24 * time.Hour)
	expiresAt := signedAt.Add(LifecycleValidity)
	rec := &DocumentRecord{
		PatientID: "CIP-0042",
		Name:      "Consentimiento Informado",
		Type:      TypeConsent,
		IsSigned:  true,
		SignedAt:  &signedAt,
		ExpiresAt: &expiresAt,
		CreatedAt: signedAt,
		Metadata:  Metadata{TemplateID: "consentimiento-informado"},
	}
	if err := fx.repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := Classify(rec.ExpiresAt, testNow); got.State != ExpiryExpired {
		t.Errorf("classification = %s, want expired", got.State)
	}
	if rec.Status(testNow) != StatusExpired {
		t.Errorf("status = %s, want expired", rec.Status(testNow))
	}

	items, total, err := fx.repo.ListByPatient(context.Background(), "CIP-0042", Filter{Tab: TabPending}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != rec.ID {
		t.Fatalf("expired document missing from pending tab: total=%d", total)
	}
}

func TestEmailDocument(t *testing.T) {
	fx := newLifecycleFixture(t)
	rec, err := fx.ctl.Finalize(context.Background(), composeRequest(t, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := fx.ctl.EmailDocument(context.Background(), rec.ID, "destino@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := fx.sender.Calls()
	if len(calls) != 1 || calls[0].To != "destino@example.com" {
		t.Fatalf("delivery not dispatched: %+v", calls)
	}
}

func TestEmailDocumentFailureKeepsRecord(t *testing.T) {
	fx := newLifecycleFixture(t)
	rec, err := fx.ctl.Finalize(context.Background(), composeRequest(t, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fx.sender.ShouldFail = true
	fx.sender.FailError = "smtp down"

	if err := fx.ctl.EmailDocument(context.Background(), rec.ID, "destino@example.com"); err == nil {
		t.Fatal("expected delivery error")
	}
	if _, err := fx.repo.GetByID(context.Background(), rec.ID); err != nil {
		t.Error("record must survive a delivery failure")
	}
}
