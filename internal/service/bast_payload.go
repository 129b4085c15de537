package service

import (
	"fmt"
	"strings"
	"time"

	"bastportal/internal/finance"
	"bastportal/internal/model"
	"bastportal/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// --- DTOs ---

// BastPayload is the editable content of a BAST as sent by the vendor form.
// Amounts may carry thousands separators ("1.500.000").
type BastPayload struct {
	IDBast                string                 `json:"id_bast"`
	VendorID              string                 `json:"vendor_id"`
	NomorPo               string                 `json:"nomor_po"`
	NomorKontrak          string                 `json:"nomor_kontrak"`
	Perihal               string                 `json:"perihal"`
	TanggalMulaiKontrak   string                 `json:"tanggal_mulai_kontrak"`
	TanggalAkhirKontrak   string                 `json:"tanggal_akhir_kontrak"`
	TanggalSerahTerima    string                 `json:"tanggal_serah_terima"`
	ReviewerEmail         string                 `json:"reviewer_email"`
	KesesuaianSpesifikasi string                 `json:"kesesuaian_spesifikasi"`
	AlasanKetidaksesuaian string                 `json:"alasan_ketidaksesuaian"`
	DendaKeterlambatan    string                 `json:"denda_keterlambatan"`
	CopyKontrak           string                 `json:"copy_kontrak"`
	Items                 []BastItemPayload      `json:"items"`
	DokumenPendukung      []SupportingDocPayload `json:"dokumen_pendukung"`
	FakturPajak           *FakturPajakPayload    `json:"faktur_pajak"`
}

type BastItemPayload struct {
	Pekerjaan       string `json:"pekerjaan"`
	ProgressPercent int    `json:"progress_percent"`
	NilaiTagihan    string `json:"nilai_tagihan"`
	Keterangan      string `json:"keterangan"`
}

type SupportingDocPayload struct {
	Nama string `json:"nama" binding:"required"`
	File string `json:"file"`
}

type FakturPajakPayload struct {
	NomorFaktur   string `json:"nomor_faktur"`
	TanggalFaktur string `json:"tanggal_faktur"`
	Npwp          string `json:"npwp"`
	Dpp           string `json:"dpp"`
	Ppn           string `json:"ppn"`
	Berkas        string `json:"berkas"`
}

// applyTo copies p onto b. Values that cannot be parsed are reported
// together as field errors and b is left untouched.
func (p BastPayload) applyTo(b *model.Bast) error {
	errs := validation.Errors{}
	nb := *b

	if v := strings.TrimSpace(p.VendorID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			errs.Add("vendor_id", validation.InvalidValue)
		} else {
			nb.VendorID = id
		}
	}
	nb.NomorPo = strings.TrimSpace(p.NomorPo)
	nb.NomorKontrak = strings.TrimSpace(p.NomorKontrak)
	nb.Perihal = strings.TrimSpace(p.Perihal)
	nb.TanggalMulaiKontrak = parseDate(errs, "tanggal_mulai_kontrak", p.TanggalMulaiKontrak)
	nb.TanggalAkhirKontrak = parseDate(errs, "tanggal_akhir_kontrak", p.TanggalAkhirKontrak)
	nb.TanggalSerahTerima = parseDate(errs, "tanggal_serah_terima", p.TanggalSerahTerima)
	nb.ReviewerEmail = strings.ToLower(strings.TrimSpace(p.ReviewerEmail))
	nb.Kesesuaian = finance.Conformance(strings.TrimSpace(p.KesesuaianSpesifikasi))
	nb.AlasanKetidaksesuaian = strings.TrimSpace(p.AlasanKetidaksesuaian)
	nb.DendaKeterlambatan = parseAmount(errs, "denda_keterlambatan", p.DendaKeterlambatan)
	nb.CopyKontrak = strings.TrimSpace(p.CopyKontrak)

	nb.Items = make([]model.BastItem, 0, len(p.Items))
	for i, it := range p.Items {
		nb.Items = append(nb.Items, model.BastItem{
			BastID:          nb.ID,
			Pekerjaan:       strings.TrimSpace(it.Pekerjaan),
			ProgressPercent: it.ProgressPercent,
			NilaiTagihan:    parseAmount(errs, fmt.Sprintf("items[%d].nilai_tagihan", i), it.NilaiTagihan),
			Keterangan:      it.Keterangan,
		})
	}
	model.Resequence(nb.Items)

	nb.Dokumen = make([]model.BastSupportingDoc, 0, len(p.DokumenPendukung))
	for i, d := range p.DokumenPendukung {
		nb.Dokumen = append(nb.Dokumen, model.BastSupportingDoc{
			BastID: nb.ID,
			Urutan: i + 1,
			Nama:   strings.TrimSpace(d.Nama),
			File:   strings.TrimSpace(d.File),
		})
	}

	nb.FakturPajak = nil
	if f := p.FakturPajak; f != nil {
		nb.FakturPajak = &model.FakturPajak{
			BastID:        nb.ID,
			NomorFaktur:   strings.TrimSpace(f.NomorFaktur),
			TanggalFaktur: parseDate(errs, "faktur_pajak.tanggal_faktur", f.TanggalFaktur),
			Npwp:          strings.TrimSpace(f.Npwp),
			Dpp:           parseAmount(errs, "faktur_pajak.dpp", f.Dpp),
			Ppn:           parseAmount(errs, "faktur_pajak.ppn", f.Ppn),
			Berkas:        strings.TrimSpace(f.Berkas),
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}
	*b = nb
	return nil
}

func parseDate(errs validation.Errors, field, s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		errs.Add(field, validation.InvalidValue)
		return nil
	}
	return &t
}

func parseAmount(errs validation.Errors, field, s string) decimal.Decimal {
	d, err := finance.ParseOptional(s)
	if err != nil {
		errs.Add(field, validation.InvalidValue)
		return decimal.Zero
	}
	return d
}
