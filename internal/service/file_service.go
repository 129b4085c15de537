package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/storage"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"
)

// UploadedFile is the reference handed back for a stored binary.
type UploadedFile struct {
	Ref  string `json:"ref"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type FileService interface {
	Upload(ctx context.Context, actor workflow.Actor, name string, size int64, r io.Reader, contentType string) (UploadedFile, error)
	URL(ctx context.Context, ref string) (string, error)
}

type fileService struct {
	store     storage.FileStore
	auditRepo repository.AuditRepository
}

func NewFileService(store storage.FileStore, auditRepo repository.AuditRepository) FileService {
	return &fileService{store: store, auditRepo: auditRepo}
}

func (s *fileService) Upload(ctx context.Context, actor workflow.Actor, name string, size int64, r io.Reader, contentType string) (UploadedFile, error) {
	if strings.TrimSpace(name) == "" {
		return UploadedFile{}, validation.Field("file", validation.Required)
	}
	ref, err := s.store.Save(ctx, name, r, contentType)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("failed to store %s: %w", name, err)
	}
	url, err := s.store.URL(ctx, ref)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	if err := writeAudit(ctx, s.auditRepo, actor, model.ActionUploadFile, ref, name, map[string]interface{}{
		"size":         size,
		"content_type": contentType,
	}); err != nil {
		// The file is stored; the reference is still valid.
		log.Printf("[FILE] %s: %v", ref, err)
	}
	return UploadedFile{Ref: ref, URL: url, Name: name, Size: size}, nil
}

func (s *fileService) URL(ctx context.Context, ref string) (string, error) {
	return s.store.URL(ctx, ref)
}
