package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bastportal/internal/apperror"
	"bastportal/internal/attachment"
	"bastportal/internal/database"
	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 4, 17, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
}

func (n *recordingNotifier) Publish(topic string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
}

func (n *recordingNotifier) count(topic string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, t := range n.topics {
		if t == topic {
			c++
		}
	}
	return c
}

type fixture struct {
	db       *gorm.DB
	deps     Deps
	notifier *recordingNotifier
	vendor   *model.Vendor
	invType  *model.InvoiceType

	vendorActor   workflow.Actor
	reviewerActor workflow.Actor
	approverActor workflow.Actor
	staffActor    workflow.Actor
	adminActor    workflow.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(false))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{db: db, notifier: &recordingNotifier{}}
	f.vendor = &model.Vendor{Kode: "V001", Nama: "PT Maju Jaya", IsActive: true}
	if err := db.Create(f.vendor).Error; err != nil {
		t.Fatalf("vendor: %v", err)
	}
	f.invType = &model.InvoiceType{Kode: "JASA", Nama: "Jasa", IsActive: true}
	if err := db.Create(f.invType).Error; err != nil {
		t.Fatalf("invoice type: %v", err)
	}
	users := []model.User{
		{Email: "vendor@example.com", Name: "Vendor", Role: "vendor", VendorID: &f.vendor.ID, IsActive: true},
		{Email: "reviewer@example.com", Name: "Reviewer", Role: "reviewer", IsActive: true},
		{Email: "approver@example.com", Name: "Approver", Role: "approver", IsActive: true},
		{Email: "pic@example.com", Name: "PIC", Role: "staff", IsActive: true},
		{Email: "pic2@example.com", Name: "PIC 2", Role: "staff", IsActive: true},
		{Email: "admin@example.com", Name: "Admin", Role: "admin", IsActive: true},
	}
	if err := db.Create(&users).Error; err != nil {
		t.Fatalf("users: %v", err)
	}

	f.deps = Deps{
		Basts:        repository.NewBastRepository(db),
		Invoices:     repository.NewInvoiceRepository(db),
		Tracking:     repository.NewTrackingRepository(db),
		Audit:        repository.NewAuditRepository(db),
		Directory:    repository.NewUserRepository(db),
		Vendors:      repository.NewVendorRepository(db),
		InvoiceTypes: repository.NewInvoiceTypeRepository(db),
		TxManager:    repository.NewTransactionManager(db),
		Notifier:     f.notifier,
		Now:          func() time.Time { return testNow },
	}
	f.vendorActor = workflow.Actor{Email: "vendor@example.com", Role: workflow.RoleVendor, VendorID: f.vendor.ID.String()}
	f.reviewerActor = workflow.Actor{Email: "reviewer@example.com", Role: workflow.RoleReviewer}
	f.approverActor = workflow.Actor{Email: "approver@example.com", Role: workflow.RoleApprover}
	f.staffActor = workflow.Actor{Email: "pic@example.com", Role: workflow.RoleStaff}
	f.adminActor = workflow.Actor{Email: "admin@example.com", Role: workflow.RoleAdmin}
	return f
}

func fullPayload(vendorID uuid.UUID) BastPayload {
	return BastPayload{
		VendorID:              vendorID.String(),
		NomorPo:               "PO-2026-001",
		NomorKontrak:          "KTR-2026-01",
		Perihal:               "Pemeliharaan jaringan",
		TanggalMulaiKontrak:   "2026-01-01",
		TanggalAkhirKontrak:   "2026-03-31",
		TanggalSerahTerima:    "2026-04-01",
		ReviewerEmail:         "reviewer@example.com",
		KesesuaianSpesifikasi: "Sesuai",
		CopyKontrak:           "2026/04/kontrak.pdf",
		Items: []BastItemPayload{
			{Pekerjaan: "Instalasi", ProgressPercent: 100, NilaiTagihan: "1.000.000"},
			{Pekerjaan: "Konfigurasi", ProgressPercent: 100, NilaiTagihan: "500000"},
		},
		DokumenPendukung: []SupportingDocPayload{{Nama: "Foto pekerjaan", File: "2026/04/foto.zip"}},
		FakturPajak: &FakturPajakPayload{
			NomorFaktur:   "010.000-26.00000001",
			TanggalFaktur: "2026-04-01",
			Npwp:          "01.234.567.8-901.000",
			Dpp:           "1.500.000",
			Ppn:           "165.000",
			Berkas:        "2026/04/faktur.pdf",
		},
	}
}

func (f *fixture) createSubmitted(t *testing.T, svc BastService) *model.Bast {
	t.Helper()
	ctx := context.Background()
	b, err := svc.CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	return b
}

func (f *fixture) trackingLog(t *testing.T, parentType, id string) []model.TrackingLog {
	t.Helper()
	logs, err := f.deps.Tracking.ListByParent(context.Background(), parentType, id)
	if err != nil {
		t.Fatalf("tracking: %v", err)
	}
	return logs
}

func assertChain(t *testing.T, logs []model.TrackingLog) {
	t.Helper()
	for i := 1; i < len(logs); i++ {
		if logs[i].StatusSebelumnya != logs[i-1].StatusBaru {
			t.Fatalf("entry %d starts at %s, previous ended at %s", i, logs[i].StatusSebelumnya, logs[i-1].StatusBaru)
		}
		if logs[i].ChangedAt.Before(logs[i-1].ChangedAt) || logs[i].Seq != logs[i-1].Seq+1 {
			t.Fatalf("entry %d out of order", i)
		}
	}
}

func TestScenarioCreateAndSubmit(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	b, err := svc.CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "BAST-20260417-00001" {
		t.Fatalf("generated id = %s", b.ID)
	}
	if b.Status != workflow.BastDraft {
		t.Fatalf("status = %s", b.Status)
	}
	if len(f.trackingLog(t, model.ParentBast, b.ID)) != 0 {
		t.Fatalf("create must not append to the tracking log")
	}

	b, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if b.Status != workflow.BastWaitingReview {
		t.Fatalf("status = %s, want WAITING_REVIEW", b.Status)
	}
	if !b.Total.Equal(decimal.NewFromInt(1500000)) {
		t.Fatalf("total = %s, want 1500000", b.Total)
	}

	detail, err := svc.GetBastDetail(ctx, b.ID, f.vendorActor)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Tracking) != 1 || detail.Tracking[0].ChangedBy != "vendor@example.com" {
		t.Fatalf("tracking = %+v", detail.Tracking)
	}
	if detail.Items[0].No != 1 || detail.Items[1].No != 2 {
		t.Fatalf("items not numbered: %+v", detail.Items)
	}
	if f.notifier.count(TopicBastStatus) != 1 {
		t.Fatalf("expected one status push")
	}
}

func TestScenarioTidakSesuai(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	p := fullPayload(f.vendor.ID)
	p.KesesuaianSpesifikasi = "TidakSesuai"
	p.DendaKeterlambatan = "200.000"
	b, err := svc.CreateBast(ctx, f.vendorActor, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !b.Total.Equal(decimal.NewFromInt(1300000)) {
		t.Fatalf("total = %s, want 1300000", b.Total)
	}

	_, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, nil)
	var verrs validation.Errors
	if !errors.As(err, &verrs) || verrs["alasan_ketidaksesuaian"] != validation.Required {
		t.Fatalf("expected alasan_ketidaksesuaian error, got %v", err)
	}
	stored, _ := f.deps.Basts.FindByID(ctx, b.ID)
	if stored.Status != workflow.BastDraft {
		t.Fatalf("failed submit changed status to %s", stored.Status)
	}

	p.AlasanKetidaksesuaian = "Terlambat 10 hari"
	b, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, &p)
	if err != nil {
		t.Fatalf("submit with reason: %v", err)
	}
	if b.Status != workflow.BastWaitingReview || !b.Total.Equal(decimal.NewFromInt(1300000)) {
		t.Fatalf("status %s total %s", b.Status, b.Total)
	}
}

func TestScenarioRejectAndResubmit(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()
	b := f.createSubmitted(t, svc)

	if _, err := svc.TransitionBast(ctx, b.ID, "reject", f.reviewerActor, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("reject without note: %v", err)
	}
	b, err := svc.TransitionBast(ctx, b.ID, "reject", f.reviewerActor, "Faktur tidak terbaca")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if b.Status != workflow.BastRejectFromReview {
		t.Fatalf("status = %s", b.Status)
	}

	p := fullPayload(f.vendor.ID)
	p.FakturPajak.Berkas = "2026/04/faktur-v2.pdf"
	b, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, &p)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if b.Status != workflow.BastWaitingReview {
		t.Fatalf("status = %s", b.Status)
	}

	logs := f.trackingLog(t, model.ParentBast, b.ID)
	if len(logs) != 3 {
		t.Fatalf("log has %d entries, want 3", len(logs))
	}
	assertChain(t, logs)
	if logs[1].Note != "Faktur tidak terbaca" || logs[2].Event != string(workflow.EventResubmit) {
		t.Fatalf("unexpected log %+v", logs)
	}
}

func advanceToVendorApproved(t *testing.T, f *fixture, svc BastService) *model.Bast {
	t.Helper()
	ctx := context.Background()
	b := f.createSubmitted(t, svc)
	steps := []struct {
		event string
		actor workflow.Actor
	}{
		{"approve-review", f.reviewerActor},
		{"approve", f.approverActor},
		{"vendor-confirm", f.vendorActor},
	}
	for _, st := range steps {
		var err error
		if b, err = svc.TransitionBast(ctx, b.ID, st.event, st.actor, ""); err != nil {
			t.Fatalf("%s: %v", st.event, err)
		}
	}
	return b
}

func TestScenarioReconciliation(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	recon := NewReconciliationService(f.deps, false)
	ctx := context.Background()

	b := f.createSubmitted(t, svc)
	b, err := svc.TransitionBast(ctx, b.ID, "approve-review", f.reviewerActor, "")
	if err != nil {
		t.Fatalf("approve-review: %v", err)
	}

	_, err = recon.InputSagr(ctx, b.ID, SagrInput{NomorSagr: "5000012345", File: "2026/04/sagr.pdf"}, f.staffActor)
	var rerr *ReconciliationError
	if !errors.As(err, &rerr) || rerr.Code != CodeWrongStage {
		t.Fatalf("expected WrongStageForReconciliation, got %v", err)
	}
	if !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("wrong stage should unwrap to InvalidTransition")
	}

	for _, st := range []struct {
		event string
		actor workflow.Actor
	}{{"approve", f.approverActor}, {"vendor-confirm", f.vendorActor}} {
		if b, err = svc.TransitionBast(ctx, b.ID, st.event, st.actor, ""); err != nil {
			t.Fatalf("%s: %v", st.event, err)
		}
	}

	b, err = recon.InputSagr(ctx, b.ID, SagrInput{NomorSagr: "5000012345", File: "2026/04/sagr.pdf"}, f.staffActor)
	if err != nil {
		t.Fatalf("input sagr: %v", err)
	}
	if b.Status != workflow.BastInputSagr {
		t.Fatalf("status = %s", b.Status)
	}
	logs := f.trackingLog(t, model.ParentBast, b.ID)
	last := logs[len(logs)-1]
	if last.ChangedBy != "pic@example.com" || last.StatusBaru != string(workflow.BastInputSagr) {
		t.Fatalf("last entry = %+v", last)
	}
	assertChain(t, logs)

	detail, err := svc.GetBastDetail(ctx, b.ID, f.vendorActor)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Sagr == nil || detail.Sagr.NomorSagr != "5000012345" || !detail.Sagr.Total.Equal(decimal.NewFromInt(1500000)) {
		t.Fatalf("sagr = %+v", detail.Sagr)
	}

	b, err = svc.TransitionBast(ctx, b.ID, "finalize", f.staffActor, "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if b.Status != workflow.BastDone {
		t.Fatalf("status = %s", b.Status)
	}
	if _, err := svc.TransitionBast(ctx, b.ID, "finalize", f.staffActor, ""); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("finalize from BAST_DONE: %v", err)
	}
}

func TestInputSagrPreconditions(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	recon := NewReconciliationService(f.deps, false)
	ctx := context.Background()
	b := advanceToVendorApproved(t, f, svc)

	cases := []struct {
		name  string
		in    SagrInput
		actor workflow.Actor
		code  ReconciliationCode
		kind  error
	}{
		{"missing reference", SagrInput{File: "x.pdf"}, f.staffActor, CodeMissingReference, apperror.ErrValidation},
		{"missing file", SagrInput{NomorSagr: "5000012345"}, f.staffActor, CodeMissingFile, apperror.ErrValidation},
		{"wrong role", SagrInput{NomorSagr: "5000012345", File: "x.pdf"}, f.vendorActor, "", apperror.ErrUnauthorizedTransition},
	}
	for _, tc := range cases {
		_, err := recon.InputSagr(ctx, b.ID, tc.in, tc.actor)
		if !errors.Is(err, tc.kind) {
			t.Errorf("%s: got %v", tc.name, err)
			continue
		}
		var rerr *ReconciliationError
		if tc.code != "" && (!errors.As(err, &rerr) || rerr.Code != tc.code) {
			t.Errorf("%s: code = %v", tc.name, err)
		}
	}

	stored, err := f.deps.Basts.FindByIDWithRelations(ctx, b.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != workflow.BastDisetujuiVendor || stored.Sagr != nil {
		t.Fatalf("failed input mutated the BAST: %s %+v", stored.Status, stored.Sagr)
	}

	if _, err := svc.TransitionBast(ctx, b.ID, "input-sagr", f.staffActor, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("input-sagr without reference through TransitionBast: %v", err)
	}
}

func TestInputSagrAutoFinalize(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	recon := NewReconciliationService(f.deps, true)
	ctx := context.Background()
	b := advanceToVendorApproved(t, f, svc)

	b, err := recon.InputSagr(ctx, b.ID, SagrInput{NomorSagr: "5000012345", File: "sagr.pdf"}, f.staffActor)
	if err != nil {
		t.Fatalf("input sagr: %v", err)
	}
	if b.Status != workflow.BastDone {
		t.Fatalf("status = %s, want BAST_DONE", b.Status)
	}
	logs := f.trackingLog(t, model.ParentBast, b.ID)
	last := logs[len(logs)-1]
	if last.Event != string(workflow.EventFinalize) || last.ChangedBy != workflow.SystemActor.Email {
		t.Fatalf("finalize entry = %+v", last)
	}
	if len(logs) != 6 {
		t.Fatalf("log has %d entries, want 6", len(logs))
	}
	assertChain(t, logs)
}

func TestSecondSubmitIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()
	b := f.createSubmitted(t, svc)

	_, err := svc.SubmitBast(ctx, b.ID, f.vendorActor, nil)
	var terr *workflow.TransitionError
	if !errors.As(err, &terr) || !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("second submit: %v", err)
	}
	if terr.Current != string(workflow.BastWaitingReview) {
		t.Fatalf("current = %s", terr.Current)
	}
	if len(f.trackingLog(t, model.ParentBast, b.ID)) != 1 {
		t.Fatalf("second submit appended to the log")
	}
}

func TestRetryOnConflictReadsAgain(t *testing.T) {
	calls := 0
	err := retryOnConflict(func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("bast X: %w", apperror.ErrConcurrencyConflict)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}

	calls = 0
	err = retryOnConflict(func() error {
		calls++
		return apperror.ErrConcurrencyConflict
	})
	if !errors.Is(err, apperror.ErrConcurrencyConflict) || calls != 2 {
		t.Fatalf("persistent conflict: calls = %d, err = %v", calls, err)
	}
}

func TestTransitionIdentityChecks(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()
	b := f.createSubmitted(t, svc)

	other := workflow.Actor{Email: "someone@example.com", Role: workflow.RoleReviewer}
	if _, err := svc.TransitionBast(ctx, b.ID, "approve-review", other, ""); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("foreign reviewer: %v", err)
	}
	if _, err := svc.TransitionBast(ctx, b.ID, "approve-review", f.approverActor, ""); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("approver on review step: %v", err)
	}
	if _, err := svc.TransitionBast(ctx, b.ID, "approve", f.approverActor, ""); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("approve from WAITING_REVIEW: %v", err)
	}

	b, err := svc.TransitionBast(ctx, b.ID, "approve-review", f.reviewerActor, "")
	if err != nil {
		t.Fatalf("approve-review: %v", err)
	}
	if _, err := svc.TransitionBast(ctx, b.ID, "reject", f.approverActor, "no"); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("approver-stage reject must be unsupported: %v", err)
	}

	otherVendor := workflow.Actor{Email: "x@other.com", Role: workflow.RoleVendor, VendorID: uuid.NewString()}
	b, _ = svc.TransitionBast(ctx, b.ID, "approve", f.approverActor, "")
	if _, err := svc.TransitionBast(ctx, b.ID, "vendor-confirm", otherVendor, ""); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("foreign vendor confirm: %v", err)
	}
}

func TestSubmitChecksReviewerDirectory(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	cases := map[string]string{
		"nobody@example.com":   validation.NotFound,
		"approver@example.com": validation.WrongRole,
	}
	for email, code := range cases {
		p := fullPayload(f.vendor.ID)
		p.ReviewerEmail = email
		p.NomorPo = ""
		b, err := svc.CreateBast(ctx, f.vendorActor, p)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, nil)
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			t.Fatalf("%s: expected field errors, got %v", email, err)
		}
		if verrs["reviewer_email"] != code || verrs["nomor_po"] != validation.Required {
			t.Fatalf("%s: errors = %v", email, verrs)
		}
	}

	admin := fullPayload(f.vendor.ID)
	admin.ReviewerEmail = "admin@example.com"
	b, err := svc.CreateBast(ctx, f.vendorActor, admin)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SubmitBast(ctx, b.ID, f.vendorActor, nil); err != nil {
		t.Fatalf("admin reviewer rejected: %v", err)
	}
}

func TestSubmitReportsExternalLookupFailure(t *testing.T) {
	f := newFixture(t)
	deps := f.deps
	deps.Directory = failingDirectory{}
	svc := NewBastService(deps)
	ctx := context.Background()

	b, err := svc.CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.SubmitBast(ctx, b.ID, f.vendorActor, nil)
	if !errors.Is(err, apperror.ErrExternalLookup) || !apperror.Retryable(err) {
		t.Fatalf("expected external lookup failure, got %v", err)
	}
}

type failingDirectory struct{}

func (failingDirectory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, fmt.Errorf("directory: %w", apperror.ErrExternalLookup)
}

func TestCreateBastRules(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	if _, err := svc.CreateBast(ctx, f.reviewerActor, fullPayload(f.vendor.ID)); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("reviewer create: %v", err)
	}

	p := fullPayload(uuid.New())
	vendorless := workflow.Actor{Email: "ops@example.com", Role: workflow.RoleVendor}
	var verrs validation.Errors
	if _, err := svc.CreateBast(ctx, vendorless, p); !errors.As(err, &verrs) || verrs["vendor_id"] != validation.NotFound {
		t.Fatalf("unknown vendor: %v", err)
	}

	p = fullPayload(f.vendor.ID)
	p.IDBast = "BAST-VENDOR-7"
	b, err := svc.CreateBast(ctx, f.vendorActor, p)
	if err != nil || b.ID != "BAST-VENDOR-7" {
		t.Fatalf("vendor supplied id: %v %v", b, err)
	}
	verrs = nil
	if _, err := svc.CreateBast(ctx, f.vendorActor, p); !errors.As(err, &verrs) || verrs["id_bast"] != validation.Duplicate {
		t.Fatalf("duplicate id: %v", err)
	}

	p = fullPayload(f.vendor.ID)
	p.Items[0].NilaiTagihan = "1,000,000"
	verrs = nil
	if _, err := svc.CreateBast(ctx, f.vendorActor, p); !errors.As(err, &verrs) || verrs["items[0].nilai_tagihan"] != validation.InvalidValue {
		t.Fatalf("malformed amount: %v", err)
	}

	minimal := BastPayload{}
	b, err = svc.CreateBast(ctx, f.vendorActor, minimal)
	if err != nil {
		t.Fatalf("minimal create: %v", err)
	}
	if b.ID != "BAST-20260417-00001" || b.VendorID != f.vendor.ID {
		t.Fatalf("minimal create = %s %s", b.ID, b.VendorID)
	}
}

func TestSaveDraftOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	b, err := svc.CreateBast(ctx, f.vendorActor, BastPayload{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err = svc.SaveDraft(ctx, b.ID, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if b.Version != 2 || !b.Total.Equal(decimal.NewFromInt(1500000)) {
		t.Fatalf("version %d total %s", b.Version, b.Total)
	}
	if _, err := svc.SaveDraft(ctx, b.ID, f.vendorActor, fullPayload(f.vendor.ID)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if n := len(f.trackingLog(t, model.ParentBast, b.ID)); n != 0 {
		t.Fatalf("drafts logged %d entries", n)
	}

	if _, err := svc.SubmitBast(ctx, b.ID, f.vendorActor, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.SaveDraft(ctx, b.ID, f.vendorActor, fullPayload(f.vendor.ID)); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("save after submit: %v", err)
	}

	audits, _, err := f.deps.Audit.List(ctx, repository.AuditFilter{EntityID: b.ID, Page: 1, Limit: 10})
	if err != nil || len(audits) != 3 {
		t.Fatalf("audit entries = %d, %v", len(audits), err)
	}
}

func TestSupportingDocumentBounds(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	b, err := svc.CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if b, err = svc.AddSupportingDocument(ctx, b.ID, f.vendorActor, SupportingDocPayload{Nama: fmt.Sprintf("Lampiran %d", i+2), File: fmt.Sprintf("2026/04/lampiran-%d.pdf", i+2)}); err != nil {
			t.Fatalf("add %d: %v", i+2, err)
		}
	}
	if len(b.Dokumen) != 3 {
		t.Fatalf("docs = %d", len(b.Dokumen))
	}
	_, err = svc.AddSupportingDocument(ctx, b.ID, f.vendorActor, SupportingDocPayload{Nama: "Keempat"})
	var perr *attachment.PolicyError
	if !errors.As(err, &perr) || perr.Code != attachment.CodeLimitExceeded {
		t.Fatalf("fourth document: %v", err)
	}

	for i := 0; i < 2; i++ {
		if b, err = svc.RemoveSupportingDocument(ctx, b.ID, 0, f.vendorActor); err != nil {
			t.Fatalf("remove: %v", err)
		}
	}
	_, err = svc.RemoveSupportingDocument(ctx, b.ID, 0, f.vendorActor)
	if !errors.As(err, &perr) || perr.Code != attachment.CodeMinimumRequired {
		t.Fatalf("removing the last document: %v", err)
	}
	if _, err := svc.RemoveSupportingDocument(ctx, b.ID, 5, f.vendorActor); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("out of range: %v", err)
	}

	stored, _ := f.deps.Basts.FindByIDWithRelations(ctx, b.ID)
	if len(stored.Dokumen) != 1 || stored.Dokumen[0].Nama != "Lampiran 3" || stored.Dokumen[0].Urutan != 1 {
		t.Fatalf("stored docs = %+v", stored.Dokumen)
	}

	if _, err := svc.SubmitBast(ctx, b.ID, f.vendorActor, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.AddSupportingDocument(ctx, b.ID, f.vendorActor, SupportingDocPayload{Nama: "Late"}); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("add after submit: %v", err)
	}
}

func TestBastSummaryIsZeroFilled(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	f.createSubmitted(t, svc)
	if _, err := svc.CreateBast(ctx, f.vendorActor, BastPayload{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	summary, err := svc.GetBastSummary(ctx, BastListFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Counts) != len(workflow.BastStatuses) {
		t.Fatalf("counts = %v", summary.Counts)
	}
	if summary.Counts["DRAFT"] != 1 || summary.Counts["WAITING_REVIEW"] != 1 || summary.Counts["BAST_DONE"] != 0 || summary.Total != 2 {
		t.Fatalf("counts = %v total %d", summary.Counts, summary.Total)
	}

	list, total, err := svc.ListBasts(ctx, BastListFilter{Status: "DRAFT"})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("list = %d/%d %v", len(list), total, err)
	}
	if _, _, err := svc.ListBasts(ctx, BastListFilter{Status: "OPEN"}); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("unknown status filter: %v", err)
	}
}

func invoiceRequest(f *fixture) InvoiceUploadRequest {
	return InvoiceUploadRequest{
		NomorInvoice:      "INV-001",
		TipeInvoiceID:     f.invType.ID.String(),
		JumlahTagihan:     "750.000",
		TanggalInvoice:    "2026-04-10",
		TanggalJatuhTempo: "2026-05-10",
		Dokumen:           "2026/04/inv.pdf",
	}
}

func TestScenarioInvoiceDueDate(t *testing.T) {
	f := newFixture(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	req := invoiceRequest(f)
	req.TanggalJatuhTempo = "2026-04-01"
	_, err := svc.UploadInvoice(ctx, f.vendorActor, req)
	var verrs validation.Errors
	if !errors.As(err, &verrs) || verrs["tanggal_jatuh_tempo"] != validation.MustBeAfter {
		t.Fatalf("due before invoice date: %v", err)
	}
	var count int64
	f.db.Model(&model.Invoice{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected invoice was stored")
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	inv, err := svc.UploadInvoice(ctx, f.vendorActor, invoiceRequest(f))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if inv.Status != workflow.InvoiceSent || inv.VendorID != f.vendor.ID {
		t.Fatalf("uploaded = %+v", inv)
	}
	var verrs validation.Errors
	if _, err := svc.UploadInvoice(ctx, f.vendorActor, invoiceRequest(f)); !errors.As(err, &verrs) || verrs["nomor_invoice"] != validation.Duplicate {
		t.Fatalf("duplicate nomor: %v", err)
	}
	if _, err := svc.UploadInvoice(ctx, f.staffActor, invoiceRequest(f)); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("staff upload: %v", err)
	}

	id := inv.ID.String()
	if _, err := svc.AssignPic(ctx, id, "pic2@example.com", f.staffActor); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("staff assigning someone else: %v", err)
	}
	verrs = nil
	if _, err := svc.AssignPic(ctx, id, "reviewer@example.com", f.adminActor); !errors.As(err, &verrs) || verrs["pic_email"] != validation.WrongRole {
		t.Fatalf("non-staff pic: %v", err)
	}
	if inv, err = svc.AssignPic(ctx, id, "pic2@example.com", f.adminActor); err != nil {
		t.Fatalf("admin assign: %v", err)
	}
	if inv, err = svc.AssignPic(ctx, id, "pic@example.com", f.staffActor); err != nil {
		t.Fatalf("self claim: %v", err)
	}
	if inv.PicEmail != "pic@example.com" {
		t.Fatalf("pic = %s", inv.PicEmail)
	}

	if _, err := svc.TransitionInvoice(ctx, id, "pay", f.staffActor, ""); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("pay from sent: %v", err)
	}
	if _, err := svc.TransitionInvoice(ctx, id, "receive", f.vendorActor, ""); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
		t.Fatalf("vendor receive: %v", err)
	}
	for _, ev := range []string{"receive", "pay"} {
		if inv, err = svc.TransitionInvoice(ctx, id, ev, f.staffActor, ""); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	if inv.Status != workflow.InvoicePaid {
		t.Fatalf("status = %s", inv.Status)
	}
	if _, err := svc.AssignPic(ctx, id, "pic2@example.com", f.adminActor); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("assign after paid: %v", err)
	}

	detail, err := svc.GetInvoiceDetail(ctx, id, f.staffActor)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.TimeRemaining != workflow.RemainingPaid || len(detail.NextEvents) != 0 {
		t.Fatalf("detail = %s %v", detail.TimeRemaining, detail.NextEvents)
	}
	if len(detail.Tracking) != 4 {
		t.Fatalf("tracking has %d entries, want 4", len(detail.Tracking))
	}
	assertChain(t, detail.Tracking)
	if f.notifier.count(TopicInvoiceStatus) != 2 || f.notifier.count(TopicInvoicePic) != 2 {
		t.Fatalf("pushes = %v", f.notifier.topics)
	}
}

func TestInvoiceSummaryAndReminders(t *testing.T) {
	f := newFixture(t)
	svc := NewInvoiceService(f.deps)
	ctx := context.Background()

	dues := map[string]string{
		"INV-LATE":  "2026-04-15",
		"INV-TODAY": "2026-04-17",
		"INV-LATER": "2026-04-30",
	}
	for nomor, due := range dues {
		req := invoiceRequest(f)
		req.NomorInvoice = nomor
		req.TanggalJatuhTempo = due
		if _, err := svc.UploadInvoice(ctx, f.vendorActor, req); err != nil {
			t.Fatalf("upload %s: %v", nomor, err)
		}
	}

	summary, err := svc.GetInvoiceSummary(ctx, InvoiceListFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Counts["sent"] != 3 || summary.Counts["paid"] != 0 || len(summary.Counts) != 4 {
		t.Fatalf("counts = %v", summary.Counts)
	}
	// Less than a day past the deadline still counts as due today.
	if summary.Overdue != 1 || summary.DueToday != 1 {
		t.Fatalf("overdue %d due today %d", summary.Overdue, summary.DueToday)
	}

	due, err := svc.DueReminders(ctx)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if len(due) != 2 || due[0].NomorInvoice != "INV-LATE" || due[0].TimeRemaining != workflow.RemainingOverdue {
		t.Fatalf("due = %+v", due)
	}

	views, total, err := svc.ListInvoices(ctx, InvoiceListFilter{})
	if err != nil || total != 3 {
		t.Fatalf("list: %d %v", total, err)
	}
	if views[2].NomorInvoice != "INV-LATER" || views[2].TimeRemaining != "13 hari" {
		t.Fatalf("later = %s %s", views[2].NomorInvoice, views[2].TimeRemaining)
	}
}

func TestTrackingServiceValidatesParent(t *testing.T) {
	f := newFixture(t)
	bastSvc := NewBastService(f.deps)
	tracking := NewTrackingService(f.deps.Basts, f.deps.Invoices, f.deps.Tracking)
	ctx := context.Background()
	b := f.createSubmitted(t, bastSvc)

	logs, err := tracking.GetTrackingLog(ctx, "bast", b.ID, f.vendorActor)
	if err != nil || len(logs) != 1 {
		t.Fatalf("logs = %d, %v", len(logs), err)
	}
	if _, err := tracking.GetTrackingLog(ctx, "BAST", "BAST-NOPE", f.adminActor); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("unknown bast: %v", err)
	}
	if _, err := tracking.GetTrackingLog(ctx, "INVOICE", "not-a-uuid", f.adminActor); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("bad invoice id: %v", err)
	}
	if _, err := tracking.GetTrackingLog(ctx, "ORDER", b.ID, f.adminActor); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("unknown type: %v", err)
	}
}

func TestVendorReadsAreScopedToOwnDocuments(t *testing.T) {
	f := newFixture(t)
	bastSvc := NewBastService(f.deps)
	invSvc := NewInvoiceService(f.deps)
	tracking := NewTrackingService(f.deps.Basts, f.deps.Invoices, f.deps.Tracking)
	ctx := context.Background()

	b := f.createSubmitted(t, bastSvc)
	inv, err := invSvc.UploadInvoice(ctx, f.vendorActor, invoiceRequest(f))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	invID := inv.ID.String()
	other := workflow.Actor{Email: "sales@sinar.example.com", Role: workflow.RoleVendor, VendorID: uuid.NewString()}

	if _, err := bastSvc.GetBastDetail(ctx, b.ID, other); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("other vendor bast detail: %v", err)
	}
	if _, err := invSvc.GetInvoiceDetail(ctx, invID, other); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("other vendor invoice detail: %v", err)
	}
	if _, err := tracking.GetTrackingLog(ctx, "bast", b.ID, other); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("other vendor bast tracking: %v", err)
	}
	if _, err := tracking.GetTrackingLog(ctx, "invoice", invID, other); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("other vendor invoice tracking: %v", err)
	}

	for _, actor := range []workflow.Actor{f.vendorActor, f.staffActor, f.adminActor} {
		if _, err := bastSvc.GetBastDetail(ctx, b.ID, actor); err != nil {
			t.Fatalf("%s bast detail: %v", actor.Role, err)
		}
		if _, err := invSvc.GetInvoiceDetail(ctx, invID, actor); err != nil {
			t.Fatalf("%s invoice detail: %v", actor.Role, err)
		}
		if _, err := tracking.GetTrackingLog(ctx, "invoice", invID, actor); err != nil {
			t.Fatalf("%s invoice tracking: %v", actor.Role, err)
		}
	}
}

func (f *fixture) actorFor(role workflow.Role) workflow.Actor {
	switch role {
	case workflow.RoleVendor:
		return f.vendorActor
	case workflow.RoleReviewer:
		return f.reviewerActor
	case workflow.RoleApprover:
		return f.approverActor
	case workflow.RoleStaff:
		return f.staffActor
	case workflow.RoleAdmin:
		return f.adminActor
	}
	return workflow.SystemActor
}

// outsider returns a portal role that is not in roles.
func outsider(roles []workflow.Role) workflow.Role {
	for _, r := range []workflow.Role{workflow.RoleApprover, workflow.RoleVendor, workflow.RoleReviewer, workflow.RoleStaff} {
		allowed := false
		for _, x := range roles {
			if x == r {
				allowed = true
			}
		}
		if !allowed {
			return r
		}
	}
	return workflow.RoleAdmin
}

func (f *fixture) bastIn(t *testing.T, svc BastService, status workflow.BastStatus) string {
	t.Helper()
	b, err := svc.CreateBast(context.Background(), f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.db.Model(&model.Bast{}).Where("id = ?", b.ID).Update("status", string(status)).Error; err != nil {
		t.Fatalf("force status: %v", err)
	}
	return b.ID
}

func TestTransitionBastClosure(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	for _, st := range workflow.BastStatuses {
		for _, ev := range append(workflow.BastEvents, workflow.BastEvent("unknown")) {
			roles := workflow.BastRoles(st, ev)
			if roles == nil {
				for _, actor := range []workflow.Actor{f.vendorActor, f.reviewerActor, f.approverActor, f.staffActor} {
					id := f.bastIn(t, svc, st)
					_, err := svc.TransitionBast(ctx, id, string(ev), actor, "catatan")
					if !errors.Is(err, apperror.ErrInvalidTransition) {
						t.Fatalf("%s --%s--> as %s: got %v, want InvalidTransition", st, ev, actor.Role, err)
					}
					if n := len(f.trackingLog(t, model.ParentBast, id)); n != 0 {
						t.Fatalf("%s --%s--> appended %d log entries", st, ev, n)
					}
				}
				continue
			}

			id := f.bastIn(t, svc, st)
			wrong := f.actorFor(outsider(roles))
			if _, err := svc.TransitionBast(ctx, id, string(ev), wrong, "catatan"); !errors.Is(err, apperror.ErrUnauthorizedTransition) {
				t.Fatalf("%s --%s--> as %s: got %v, want UnauthorizedTransition", st, ev, wrong.Role, err)
			}

			_, err := svc.TransitionBast(ctx, id, string(ev), f.actorFor(roles[0]), "catatan")
			if errors.Is(err, apperror.ErrInvalidTransition) || errors.Is(err, apperror.ErrUnauthorizedTransition) {
				t.Fatalf("%s --%s--> as %s rejected: %v", st, ev, roles[0], err)
			}
		}
	}
}

func TestSubmitEventMustMatchStatus(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	draft, err := svc.CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.TransitionBast(ctx, draft.ID, "resubmit", f.vendorActor, ""); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("resubmit from DRAFT: %v", err)
	}
	if got, _ := f.deps.Basts.FindByID(ctx, draft.ID); got.Status != workflow.BastDraft {
		t.Fatalf("status after refused resubmit = %s", got.Status)
	}

	rejected := f.createSubmitted(t, svc)
	if _, err := svc.TransitionBast(ctx, rejected.ID, "reject", f.reviewerActor, "kurang lengkap"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := svc.TransitionBast(ctx, rejected.ID, "submit", f.vendorActor, ""); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("submit from REJECT_FROM_REVIEW: %v", err)
	}
	if n := len(f.trackingLog(t, model.ParentBast, rejected.ID)); n != 2 {
		t.Fatalf("log entries = %d, want 2", n)
	}

	b, err := svc.TransitionBast(ctx, rejected.ID, "resubmit", f.vendorActor, "")
	if err != nil || b.Status != workflow.BastWaitingReview {
		t.Fatalf("resubmit: %v", err)
	}
	logs := f.trackingLog(t, model.ParentBast, rejected.ID)
	if logs[len(logs)-1].Event != string(workflow.EventResubmit) {
		t.Fatalf("last event = %s", logs[len(logs)-1].Event)
	}
}

// takenOnce reports a stale sequence on its first call, as if another
// create had claimed the number in between.
type takenOnce struct {
	repository.BastRepository
	calls int
}

func (r *takenOnce) MaxSequence(ctx context.Context, prefix string) (int, error) {
	r.calls++
	if r.calls == 1 {
		return 1, nil
	}
	return r.BastRepository.MaxSequence(ctx, prefix)
}

func TestGeneratedBastIDSkipsTakenNumbers(t *testing.T) {
	f := newFixture(t)
	svc := NewBastService(f.deps)
	ctx := context.Background()

	p := fullPayload(f.vendor.ID)
	p.IDBast = "BAST-20260417-00002"
	if _, err := svc.CreateBast(ctx, f.vendorActor, p); err != nil {
		t.Fatalf("vendor supplied id: %v", err)
	}
	b, err := svc.CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create without id: %v", err)
	}
	if b.ID != "BAST-20260417-00003" {
		t.Fatalf("generated id = %s", b.ID)
	}

	deps := f.deps
	racing := &takenOnce{BastRepository: f.deps.Basts}
	deps.Basts = racing
	b, err = NewBastService(deps).CreateBast(ctx, f.vendorActor, fullPayload(f.vendor.ID))
	if err != nil {
		t.Fatalf("create after lost race: %v", err)
	}
	if b.ID != "BAST-20260417-00004" || racing.calls != 2 {
		t.Fatalf("retried id = %s after %d draws", b.ID, racing.calls)
	}
}

func TestPayloadWithBadValuesLeavesBastUntouched(t *testing.T) {
	vendorID := uuid.New()
	b := &model.Bast{ID: "BAST-20260417-00001"}
	if err := fullPayload(vendorID).applyTo(b); err != nil {
		t.Fatalf("apply: %v", err)
	}

	bad := fullPayload(uuid.New())
	bad.NomorPo = "PO-OTHER"
	bad.Items = []BastItemPayload{{Pekerjaan: "Lain", ProgressPercent: 50, NilaiTagihan: "satu juta"}}
	bad.FakturPajak = nil
	bad.TanggalSerahTerima = "17/04/2026"
	var verrs validation.Errors
	if err := bad.applyTo(b); !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("bad payload: %v", err)
	}

	if b.VendorID != vendorID || b.NomorPo != "PO-2026-001" || b.TanggalSerahTerima == nil {
		t.Fatalf("header changed: %s %s %v", b.VendorID, b.NomorPo, b.TanggalSerahTerima)
	}
	if len(b.Items) != 2 || b.Items[0].Pekerjaan != "Instalasi" || b.Items[0].BastID != b.ID {
		t.Fatalf("items changed: %+v", b.Items)
	}
	if b.FakturPajak == nil || !b.FakturPajak.Dpp.Equal(decimal.NewFromInt(1500000)) {
		t.Fatalf("faktur changed: %+v", b.FakturPajak)
	}
}
