package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bastportal/internal/apperror"
	"bastportal/internal/attachment"
	"bastportal/internal/model"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"
)

// ReconciliationCode names why an SA/GR input was refused.
type ReconciliationCode string

const (
	CodeWrongStage       ReconciliationCode = "WrongStageForReconciliation"
	CodeMissingReference ReconciliationCode = "MissingReference"
	CodeMissingFile      ReconciliationCode = "MissingFile"
)

// ReconciliationError is a failed SA/GR precondition. Nothing was written.
// It matches apperror.ErrValidation; a wrong stage also unwraps to the
// underlying InvalidTransition.
type ReconciliationError struct {
	Code    ReconciliationCode
	Current workflow.BastStatus
	Message string
	cause   error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReconciliationError) Is(target error) bool { return target == apperror.ErrValidation }

func (e *ReconciliationError) Unwrap() error { return e.cause }

// --- DTOs ---

type SagrInput struct {
	NomorSagr string `json:"nomor_sagr"`
	File      string `json:"file"`
}

// --- Interface ---

type ReconciliationService interface {
	// InputSagr records the SA/GR reference of an approved BAST and moves it
	// to INPUT_SAGR.
	InputSagr(ctx context.Context, id string, in SagrInput, actor workflow.Actor) (*model.Bast, error)
}

type reconciliationService struct {
	deps         Deps
	machine      *bastMachine
	autoFinalize bool
}

// NewReconciliationService builds the SA/GR gateway. With autoFinalize a
// successful input is followed by a separate finalize transition applied by
// the system actor.
func NewReconciliationService(deps Deps, autoFinalize bool) ReconciliationService {
	deps = deps.withDefaults()
	return &reconciliationService{deps: deps, machine: &bastMachine{deps: deps}, autoFinalize: autoFinalize}
}

func (s *reconciliationService) InputSagr(ctx context.Context, id string, in SagrInput, actor workflow.Actor) (*model.Bast, error) {
	nomor := strings.TrimSpace(in.NomorSagr)
	file := strings.TrimSpace(in.File)

	var b *model.Bast
	err := retryOnConflict(func() error {
		var err error
		b, err = s.deps.Basts.FindByIDWithRelations(ctx, id)
		if err != nil {
			return err
		}
		to, err := workflow.NextBastStatus(b.Status, workflow.EventInputSagr, actor.Role)
		if err != nil {
			if errors.Is(err, apperror.ErrInvalidTransition) {
				return &ReconciliationError{
					Code:    CodeWrongStage,
					Current: b.Status,
					Message: fmt.Sprintf("BAST %s is %s, SA/GR is accepted only in %s", b.ID, b.Status, workflow.BastDisetujuiVendor),
					cause:   err,
				}
			}
			return err
		}
		if nomor == "" {
			return &ReconciliationError{Code: CodeMissingReference, Current: b.Status, Message: "nomor SA/GR is required"}
		}
		if v := attachment.Check(attachment.StageInputSagr, attachment.Set{SagrFile: file}); len(v) > 0 {
			return &ReconciliationError{Code: CodeMissingFile, Current: b.Status, Message: v[0].Message, cause: v[0]}
		}

		totals := b.ComputeTotals()
		if totals.Underflow {
			return validation.Field("denda_keterlambatan", validation.ExceedsSubtotal)
		}
		ref := &model.SagrReference{
			BastID:    b.ID,
			NomorSagr: nomor,
			File:      file,
			Total:     totals.Total,
			InputBy:   actor.Email,
			InputAt:   s.deps.Now(),
		}

		err = s.machine.apply(ctx, b, to, workflow.EventInputSagr, actor, "SA/GR "+nomor, func(txCtx context.Context) error {
			if err := s.deps.Basts.CreateSagr(txCtx, ref); err != nil {
				if errors.Is(err, apperror.ErrDuplicate) {
					return fmt.Errorf("SA/GR of %s already recorded: %w", b.ID, apperror.ErrConcurrencyConflict)
				}
				return err
			}
			return writeAudit(txCtx, s.deps.Audit, actor, model.ActionInputSagr, b.ID, nomor, map[string]interface{}{
				"file":  file,
				"total": totals.Total.String(),
			})
		})
		if err != nil {
			return err
		}
		b.Sagr = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !s.autoFinalize {
		return b, nil
	}
	to, err := workflow.NextBastStatus(b.Status, workflow.EventFinalize, workflow.SystemActor.Role)
	if err != nil {
		return b, err
	}
	if err := s.machine.apply(ctx, b, to, workflow.EventFinalize, workflow.SystemActor, "", nil); err != nil {
		log.Printf("[BAST] %s: SA/GR recorded but finalize failed: %v", b.ID, err)
		return b, fmt.Errorf("SA/GR recorded but finalize failed: %w", err)
	}
	return b, nil
}
