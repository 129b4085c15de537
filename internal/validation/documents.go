package validation

import (
	"fmt"
	"strings"

	"bastportal/internal/attachment"
	"bastportal/internal/finance"
	"bastportal/internal/model"

	"github.com/google/uuid"
)

// ExceedsSubtotal marks a penalty larger than the billed subtotal.
const ExceedsSubtotal = "exceeds_subtotal"

// Submission checks a BAST leaving DRAFT or REJECT_FROM_REVIEW for review.
// It never stops at the first failure.
func Submission(b *model.Bast) error {
	errs := Errors{}
	structErrors(b, errs)

	if b.VendorID == uuid.Nil {
		errs.Add("vendor_id", Required)
	}
	if b.TanggalMulaiKontrak != nil && b.TanggalAkhirKontrak != nil &&
		b.TanggalAkhirKontrak.Before(*b.TanggalMulaiKontrak) {
		errs.Add("tanggal_akhir_kontrak", MustBeAfter)
	}

	for i, it := range b.Items {
		if !it.NilaiTagihan.IsPositive() {
			errs.Add(fmt.Sprintf("items[%d].nilai_tagihan", i), MustBePositive)
		}
	}

	if b.DendaKeterlambatan.IsNegative() {
		errs.Add("denda_keterlambatan", MustBePositive)
	} else if b.Kesesuaian == finance.ConformanceTidakSesuai && b.DendaKeterlambatan.IsZero() {
		errs.Add("denda_keterlambatan", Required)
	}

	if f := b.FakturPajak; f != nil {
		if !f.Dpp.IsPositive() {
			errs.Add("faktur_pajak.dpp", MustBePositive)
		}
		if f.Ppn.IsNegative() {
			errs.Add("faktur_pajak.ppn", MustBePositive)
		}
	}

	for _, pe := range attachment.Check(attachment.StageSubmit, b.Attachments()) {
		if pe.Slot == attachment.SlotFakturBerkas && b.FakturPajak == nil {
			continue // already reported as faktur_pajak
		}
		errs.Add(pe.Slot, string(pe.Code))
	}

	if len(b.Items) > 0 && !errs.Has("denda_keterlambatan") {
		if t := b.ComputeTotals(); t.Underflow {
			errs.Add("denda_keterlambatan", ExceedsSubtotal)
		}
	}
	return errs.Err()
}

// Draft checks what a draft save may not violate: the supporting document
// ceiling and the item progress range. Attachment breaches are reported under
// their slot next to the field errors.
func Draft(b *model.Bast) error {
	errs := Errors{}
	for _, pe := range attachment.Check(attachment.StageDraft, b.Attachments()) {
		errs.Add(pe.Slot, string(pe.Code))
	}
	for i, it := range b.Items {
		if it.ProgressPercent < 0 || it.ProgressPercent > 100 {
			errs.Add(fmt.Sprintf("items[%d].progress_percent", i), OutOfRange)
		}
		if it.NilaiTagihan.IsNegative() {
			errs.Add(fmt.Sprintf("items[%d].nilai_tagihan", i), MustBePositive)
		}
	}
	if b.DendaKeterlambatan.IsNegative() {
		errs.Add("denda_keterlambatan", MustBePositive)
	}
	if b.Kesesuaian != "" && !b.Kesesuaian.Valid() {
		errs.Add("kesesuaian_spesifikasi", InvalidValue)
	}
	return errs.Err()
}

// Invoice checks a vendor invoice upload.
func Invoice(inv *model.Invoice) error {
	errs := Errors{}
	structErrors(inv, errs)

	if inv.VendorID == uuid.Nil {
		errs.Add("vendor_id", Required)
	}
	if inv.TipeInvoiceID == uuid.Nil {
		errs.Add("tipe_invoice_id", Required)
	}
	if !inv.JumlahTagihan.IsPositive() {
		errs.Add("jumlah_tagihan", MustBePositive)
	}
	if inv.TanggalInvoice.IsZero() {
		errs.Add("tanggal_invoice", Required)
	}
	switch {
	case inv.TanggalJatuhTempo.IsZero():
		errs.Add("tanggal_jatuh_tempo", Required)
	case !inv.TanggalInvoice.IsZero() && !inv.TanggalJatuhTempo.After(inv.TanggalInvoice):
		errs.Add("tanggal_jatuh_tempo", MustBeAfter)
	}
	return errs.Err()
}

// Note requires a non-blank note, used for rejection reasons.
func Note(note string) error {
	if strings.TrimSpace(note) == "" {
		return Field("note", Required)
	}
	return nil
}
