// Package attachment decides which document slots a BAST must fill at each
// stage of its lifecycle and how many supporting documents it may carry.
package attachment

import (
	"fmt"

	"bastportal/internal/apperror"
)

// Supporting document bounds.
const (
	MinSupportingDocs = 1
	MaxSupportingDocs = 3
)

// Stage is a point in the lifecycle where attachments are checked.
type Stage string

const (
	StageDraft     Stage = "DRAFT"
	StageSubmit    Stage = "SUBMIT"
	StageInputSagr Stage = "INPUT_SAGR"
)

// Need says whether a slot must be filled at a stage.
type Need int

const (
	NotApplicable Need = iota
	Optional
	Required
)

// Requirement is one row of the stage table.
type Requirement struct {
	CopyKontrak  Need
	FakturBerkas Need
	SagrFile     Need

	// MinDocs and MaxDocs bound the supporting documents. A zero MaxDocs
	// means the slot is not checked at this stage.
	MinDocs, MaxDocs int

	// DocWithFile requires at least one supporting document to carry a file.
	DocWithFile bool
}

var requirements = map[Stage]Requirement{
	StageDraft: {
		CopyKontrak:  Optional,
		MinDocs:      0,
		MaxDocs:      MaxSupportingDocs,
		FakturBerkas: Optional,
		SagrFile:     NotApplicable,
	},
	StageSubmit: {
		CopyKontrak:  Required,
		MinDocs:      MinSupportingDocs,
		MaxDocs:      MaxSupportingDocs,
		DocWithFile:  true,
		FakturBerkas: Required,
		SagrFile:     NotApplicable,
	},
	StageInputSagr: {
		SagrFile: Required,
	},
}

// For returns the requirement row for stage.
func For(stage Stage) (Requirement, bool) {
	r, ok := requirements[stage]
	return r, ok
}

// Code identifies an attachment policy breach.
type Code string

const (
	CodeLimitExceeded   Code = "AttachmentLimitExceeded"
	CodeMinimumRequired Code = "AttachmentMinimumRequired"
	CodeMissingFile     Code = "MissingFile"
)

// Slot names, matching the JSON field names of the BAST payload.
const (
	SlotCopyKontrak      = "copy_kontrak"
	SlotDokumenPendukung = "dokumen_pendukung"
	SlotFakturBerkas     = "faktur_pajak.berkas"
	SlotSagrFile         = "sagr.file"
)

// PolicyError is an attachment breach. It matches apperror.ErrAttachmentPolicy.
type PolicyError struct {
	Code    Code
	Slot    string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Slot, e.Message)
}

func (e *PolicyError) Is(target error) bool { return target == apperror.ErrAttachmentPolicy }

// Doc is a supporting document as seen by the policy.
type Doc struct {
	Nama string
	File string
}

// Set is the attachment state of a BAST.
type Set struct {
	CopyKontrak  string
	Docs         []Doc
	FakturBerkas string
	SagrFile     string
}

// Check returns every breach of the stage row, in slot order. An unknown
// stage has no requirements.
func Check(stage Stage, set Set) []*PolicyError {
	req, ok := requirements[stage]
	if !ok {
		return nil
	}
	var out []*PolicyError

	if req.CopyKontrak == Required && set.CopyKontrak == "" {
		out = append(out, &PolicyError{Code: CodeMissingFile, Slot: SlotCopyKontrak, Message: "copy kontrak wajib dilampirkan"})
	}

	if req.MaxDocs > 0 {
		n := len(set.Docs)
		switch {
		case n > req.MaxDocs:
			out = append(out, &PolicyError{
				Code:    CodeLimitExceeded,
				Slot:    SlotDokumenPendukung,
				Message: fmt.Sprintf("maksimal %d dokumen pendukung", req.MaxDocs),
			})
		case n < req.MinDocs:
			out = append(out, &PolicyError{
				Code:    CodeMinimumRequired,
				Slot:    SlotDokumenPendukung,
				Message: fmt.Sprintf("minimal %d dokumen pendukung", req.MinDocs),
			})
		case req.DocWithFile && !anyFile(set.Docs):
			out = append(out, &PolicyError{Code: CodeMissingFile, Slot: SlotDokumenPendukung, Message: "minimal satu dokumen pendukung harus memiliki file"})
		}
	}

	if req.FakturBerkas == Required && set.FakturBerkas == "" {
		out = append(out, &PolicyError{Code: CodeMissingFile, Slot: SlotFakturBerkas, Message: "berkas faktur pajak wajib dilampirkan"})
	}
	if req.SagrFile == Required && set.SagrFile == "" {
		out = append(out, &PolicyError{Code: CodeMissingFile, Slot: SlotSagrFile, Message: "file SA/GR wajib dilampirkan"})
	}
	return out
}

// CheckAdd fails when a BAST already holding count supporting documents may
// not take another one.
func CheckAdd(count int) error {
	if count >= MaxSupportingDocs {
		return &PolicyError{
			Code:    CodeLimitExceeded,
			Slot:    SlotDokumenPendukung,
			Message: fmt.Sprintf("maksimal %d dokumen pendukung", MaxSupportingDocs),
		}
	}
	return nil
}

// CheckRemove fails when removing one of count supporting documents would
// drop below the floor.
func CheckRemove(count int) error {
	if count <= MinSupportingDocs {
		return &PolicyError{
			Code:    CodeMinimumRequired,
			Slot:    SlotDokumenPendukung,
			Message: fmt.Sprintf("minimal %d dokumen pendukung", MinSupportingDocs),
		}
	}
	return nil
}

func anyFile(docs []Doc) bool {
	for _, d := range docs {
		if d.File != "" {
			return true
		}
	}
	return false
}
