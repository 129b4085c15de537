package attachment

import (
	"errors"
	"testing"

	"bastportal/internal/apperror"
)

func docs(n int, withFile bool) []Doc {
	out := make([]Doc, n)
	for i := range out {
		out[i] = Doc{Nama: "dok"}
		if withFile {
			out[i].File = "files/dok.pdf"
		}
	}
	return out
}

func TestSupportingDocBounds(t *testing.T) {
	for count := 0; count <= 4; count++ {
		err := CheckAdd(count)
		if count < MaxSupportingDocs && err != nil {
			t.Fatalf("add to %d docs: %v", count, err)
		}
		if count >= MaxSupportingDocs {
			var pe *PolicyError
			if !errors.As(err, &pe) || pe.Code != CodeLimitExceeded {
				t.Fatalf("add to %d docs: want AttachmentLimitExceeded, got %v", count, err)
			}
		}

		err = CheckRemove(count)
		if count > MinSupportingDocs && err != nil {
			t.Fatalf("remove from %d docs: %v", count, err)
		}
		if count <= MinSupportingDocs {
			var pe *PolicyError
			if !errors.As(err, &pe) || pe.Code != CodeMinimumRequired {
				t.Fatalf("remove from %d docs: want AttachmentMinimumRequired, got %v", count, err)
			}
		}
	}
}

func TestPolicyErrorKind(t *testing.T) {
	if !errors.Is(CheckAdd(3), apperror.ErrAttachmentPolicy) {
		t.Fatalf("PolicyError must match ErrAttachmentPolicy")
	}
}

func TestCheckDraftIsLenient(t *testing.T) {
	if got := Check(StageDraft, Set{}); len(got) != 0 {
		t.Fatalf("empty draft should pass, got %v", got)
	}
	got := Check(StageDraft, Set{Docs: docs(4, true)})
	if len(got) != 1 || got[0].Code != CodeLimitExceeded {
		t.Fatalf("4 docs in draft: %v", got)
	}
}

func TestCheckSubmitReportsEverySlot(t *testing.T) {
	got := Check(StageSubmit, Set{})
	slots := map[string]Code{}
	for _, e := range got {
		slots[e.Slot] = e.Code
	}
	want := map[string]Code{
		SlotCopyKontrak:      CodeMissingFile,
		SlotDokumenPendukung: CodeMinimumRequired,
		SlotFakturBerkas:     CodeMissingFile,
	}
	if len(slots) != len(want) {
		t.Fatalf("violations = %v", got)
	}
	for slot, code := range want {
		if slots[slot] != code {
			t.Fatalf("slot %s: got %s, want %s", slot, slots[slot], code)
		}
	}
}

func TestCheckSubmitNeedsOneDocWithFile(t *testing.T) {
	set := Set{CopyKontrak: "k.pdf", FakturBerkas: "f.pdf", Docs: docs(2, false)}
	got := Check(StageSubmit, set)
	if len(got) != 1 || got[0].Code != CodeMissingFile || got[0].Slot != SlotDokumenPendukung {
		t.Fatalf("violations = %v", got)
	}
	set.Docs[1].File = "d.pdf"
	if got := Check(StageSubmit, set); len(got) != 0 {
		t.Fatalf("complete set rejected: %v", got)
	}
}

func TestCheckInputSagr(t *testing.T) {
	got := Check(StageInputSagr, Set{})
	if len(got) != 1 || got[0].Slot != SlotSagrFile || got[0].Code != CodeMissingFile {
		t.Fatalf("violations = %v", got)
	}
	if got := Check(StageInputSagr, Set{SagrFile: "sagr.pdf"}); len(got) != 0 {
		t.Fatalf("violations = %v", got)
	}
}
