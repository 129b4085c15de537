package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bastportal/internal/model"
	"bastportal/internal/workflow"
	"bastportal/pkg/pagination"

	"gorm.io/gorm"
)

type BastFilter struct {
	Status        string
	VendorID      string
	ReviewerEmail string
	Search        string // matches id, nomor PO, nomor kontrak or perihal
	Page          int
	Limit         int
}

type BastRepository interface {
	Create(ctx context.Context, bast *model.Bast) error
	FindByID(ctx context.Context, id string) (*model.Bast, error)
	FindByIDWithRelations(ctx context.Context, id string) (*model.Bast, error)
	List(ctx context.Context, filter BastFilter) ([]model.Bast, int64, error)
	SavePayload(ctx context.Context, bast *model.Bast, expectedVersion int) error
	UpdateStatus(ctx context.Context, id string, from, to workflow.BastStatus, expectedVersion int) error
	ReplaceSupportingDocs(ctx context.Context, bast *model.Bast, expectedVersion int) error
	CreateSagr(ctx context.Context, ref *model.SagrReference) error
	CountByStatus(ctx context.Context, filter BastFilter) ([]model.StatusCount, error)
	MaxSequence(ctx context.Context, prefix string) (int, error)
}

type bastRepository struct {
	db *gorm.DB
}

func NewBastRepository(db *gorm.DB) BastRepository {
	return &bastRepository{db: db}
}

func (r *bastRepository) Create(ctx context.Context, bast *model.Bast) error {
	return translate(GetDB(ctx, r.db).Create(bast).Error, "create bast "+bast.ID)
}

func (r *bastRepository) FindByID(ctx context.Context, id string) (*model.Bast, error) {
	var bast model.Bast
	if err := GetDB(ctx, r.db).First(&bast, "id = ?", id).Error; err != nil {
		return nil, translate(err, "bast "+id)
	}
	return &bast, nil
}

func (r *bastRepository) FindByIDWithRelations(ctx context.Context, id string) (*model.Bast, error) {
	var bast model.Bast
	err := GetDB(ctx, r.db).
		Preload("Vendor").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("no asc") }).
		Preload("Dokumen", func(db *gorm.DB) *gorm.DB { return db.Order("urutan asc") }).
		Preload("FakturPajak").
		Preload("Sagr").
		First(&bast, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "bast "+id)
	}
	return &bast, nil
}

func (r *bastRepository) filtered(ctx context.Context, filter BastFilter) *gorm.DB {
	query := GetDB(ctx, r.db).Model(&model.Bast{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.ReviewerEmail != "" {
		query = query.Where("reviewer_email = ?", filter.ReviewerEmail)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("id LIKE ? OR nomor_po LIKE ? OR nomor_kontrak LIKE ? OR perihal LIKE ?", like, like, like, like)
	}
	return query
}

func (r *bastRepository) List(ctx context.Context, filter BastFilter) ([]model.Bast, int64, error) {
	var basts []model.Bast
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count basts: %w", err)
	}

	if err := r.filtered(ctx, filter).Preload("Vendor").
		Order("updated_at desc").Scopes(pagination.Scope(filter.Page, filter.Limit)).
		Find(&basts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch basts: %w", err)
	}

	return basts, total, nil
}

// SavePayload overwrites the header and the child rows of bast. The header
// update only applies while the stored row still has bast.Status and
// expectedVersion; otherwise nothing is written and a conflict is returned.
// Call it inside a transaction.
func (r *bastRepository) SavePayload(ctx context.Context, bast *model.Bast, expectedVersion int) error {
	db := GetDB(ctx, r.db)

	res := db.Model(&model.Bast{}).
		Where("id = ? AND status = ? AND version = ?", bast.ID, bast.Status, expectedVersion).
		Updates(map[string]interface{}{
			"vendor_id":              bast.VendorID,
			"nomor_po":               bast.NomorPo,
			"nomor_kontrak":          bast.NomorKontrak,
			"perihal":                bast.Perihal,
			"tanggal_mulai_kontrak":  bast.TanggalMulaiKontrak,
			"tanggal_akhir_kontrak":  bast.TanggalAkhirKontrak,
			"tanggal_serah_terima":   bast.TanggalSerahTerima,
			"reviewer_email":         bast.ReviewerEmail,
			"kesesuaian":             bast.Kesesuaian,
			"alasan_ketidaksesuaian": bast.AlasanKetidaksesuaian,
			"denda_keterlambatan":    bast.DendaKeterlambatan,
			"copy_kontrak":           bast.CopyKontrak,
			"subtotal":               bast.Subtotal,
			"deduction":              bast.Deduction,
			"total":                  bast.Total,
			"version":                expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save bast %s: %w", bast.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("bast " + bast.ID)
	}
	bast.Version = expectedVersion + 1

	if err := db.Where("bast_id = ?", bast.ID).Delete(&model.BastItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear bast items: %w", err)
	}
	if len(bast.Items) > 0 {
		for i := range bast.Items {
			bast.Items[i].BastID = bast.ID
		}
		if err := db.Create(&bast.Items).Error; err != nil {
			return fmt.Errorf("failed to save bast items: %w", err)
		}
	}

	if err := r.writeDocs(db, bast); err != nil {
		return err
	}

	if err := db.Where("bast_id = ?", bast.ID).Delete(&model.FakturPajak{}).Error; err != nil {
		return fmt.Errorf("failed to clear faktur pajak: %w", err)
	}
	if bast.FakturPajak != nil {
		bast.FakturPajak.BastID = bast.ID
		if err := db.Create(bast.FakturPajak).Error; err != nil {
			return fmt.Errorf("failed to save faktur pajak: %w", err)
		}
	}
	return nil
}

// ReplaceSupportingDocs rewrites only the supporting documents, guarded by
// the same status and version check as SavePayload.
func (r *bastRepository) ReplaceSupportingDocs(ctx context.Context, bast *model.Bast, expectedVersion int) error {
	db := GetDB(ctx, r.db)
	res := db.Model(&model.Bast{}).
		Where("id = ? AND status = ? AND version = ?", bast.ID, bast.Status, expectedVersion).
		Update("version", expectedVersion+1)
	if res.Error != nil {
		return fmt.Errorf("failed to bump bast %s: %w", bast.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("bast " + bast.ID)
	}
	bast.Version = expectedVersion + 1
	return r.writeDocs(db, bast)
}

func (r *bastRepository) writeDocs(db *gorm.DB, bast *model.Bast) error {
	if err := db.Where("bast_id = ?", bast.ID).Delete(&model.BastSupportingDoc{}).Error; err != nil {
		return fmt.Errorf("failed to clear supporting docs: %w", err)
	}
	if len(bast.Dokumen) == 0 {
		return nil
	}
	for i := range bast.Dokumen {
		bast.Dokumen[i].BastID = bast.ID
		bast.Dokumen[i].Urutan = i + 1
	}
	if err := db.Create(&bast.Dokumen).Error; err != nil {
		return fmt.Errorf("failed to save supporting docs: %w", err)
	}
	return nil
}

// UpdateStatus moves id from one status to another. It is a compare and swap
// on (status, version): when another request moved the row first, nothing is
// written and a conflict is returned.
func (r *bastRepository) UpdateStatus(ctx context.Context, id string, from, to workflow.BastStatus, expectedVersion int) error {
	res := GetDB(ctx, r.db).Model(&model.Bast{}).
		Where("id = ? AND status = ? AND version = ?", id, from, expectedVersion).
		Updates(map[string]interface{}{
			"status":  to,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update bast %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("bast " + id)
	}
	return nil
}

func (r *bastRepository) CreateSagr(ctx context.Context, ref *model.SagrReference) error {
	return translate(GetDB(ctx, r.db).Create(ref).Error, "sagr for bast "+ref.BastID)
}

func (r *bastRepository) CountByStatus(ctx context.Context, filter BastFilter) ([]model.StatusCount, error) {
	filter.Status = ""
	var rows []model.StatusCount
	if err := r.filtered(ctx, filter).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count basts by status: %w", err)
	}
	return rows, nil
}

// MaxSequence returns the highest numeric suffix among ids starting with
// prefix, or 0 when there is none. Ids whose suffix is not all digits are
// ignored.
func (r *bastRepository) MaxSequence(ctx context.Context, prefix string) (int, error) {
	var ids []string
	if err := GetDB(ctx, r.db).Model(&model.Bast{}).Where("id LIKE ?", prefix+"%").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to read bast ids: %w", err)
	}
	max := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil || n < 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
