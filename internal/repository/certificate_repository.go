package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(ctx context.Context, c *model.Certificate) error {
	err := r.DB.WithContext(ctx).Create(c).Error
	if isDuplicateKey(err) {
		return util.ErrDuplicateCertificateNumber
	}
	return err
}

// Revoke moves an active certificate to revoked. It reports false when the
// row is no longer active.
func (r *CertificateRepository) Revoke(ctx context.Context, id string, at time.Time, by uint, reason string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("id = ? AND status = ?", id, model.CertificateActive).
		Updates(map[string]interface{}{
			"status":            model.CertificateRevoked,
			"revoked_at":        at,
			"revoked_by":        by,
			"revocation_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

// Expire moves an active certificate whose validity ended by now to expired.
// It reports false when the row is no longer active.
func (r *CertificateRepository) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("id = ? AND status = ? AND valid_until IS NOT NULL AND valid_until <= ?", id, model.CertificateActive, now).
		UpdateColumn("status", model.CertificateExpired)
	return res.RowsAffected == 1, res.Error
}

func (r *CertificateRepository) SetDocumentPath(ctx context.Context, id, path string) error {
	return r.DB.WithContext(ctx).Model(&model.Certificate{}).Where("id = ?", id).
		UpdateColumn("document_path", path).Error
}

func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*model.Certificate, error) {
	var c model.Certificate
	if err := r.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, util.ErrCertificateNotFound)
	}
	return &c, nil
}

// FindByResultID returns nil, nil when the result has no certificate yet.
func (r *CertificateRepository) FindByResultID(ctx context.Context, resultID string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.WithContext(ctx).First(&c, "result_id = ?", resultID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LastSequence returns the highest sequence issued under prefix, or 0.
func (r *CertificateRepository) LastSequence(ctx context.Context, prefix string) (int, error) {
	var seq sql.NullInt64
	err := r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("certificate_number LIKE ?", likePrefix(prefix)).
		Select("MAX(sequence)").
		Row().Scan(&seq)
	if err != nil || !seq.Valid {
		return 0, err
	}
	return int(seq.Int64), nil
}

func (r *CertificateRepository) ListExpiring(ctx context.Context, now time.Time) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until <= ?", model.CertificateActive, now).
		Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) IncrementDownloads(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.Certificate{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching values that start with prefix
// literally. MySQL escapes with a backslash by default.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
