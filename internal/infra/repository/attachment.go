package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/infra/database/models"
)

// DefaultMaxAttachmentSize bounds a single stored payload.
const DefaultMaxAttachmentSize = 50 << 20

// AttachmentRepository keeps attachment payloads in the database next to their metadata.
type AttachmentRepository struct {
	db      *gorm.DB
	maxSize int64
}

func NewAttachmentRepository(db *gorm.DB, maxSize int64) *AttachmentRepository {
	if maxSize <= 0 {
		maxSize = DefaultMaxAttachmentSize
	}
	return &AttachmentRepository{db: db, maxSize: maxSize}
}

func (r *AttachmentRepository) Store(ctx context.Context, meta domain.Attachment, content io.Reader) (domain.Attachment, error) {
	if content == nil {
		return domain.Attachment{}, pkgerrors.Errorf("attachment %q has no content", meta.Filename)
	}

	body, err := io.ReadAll(io.LimitReader(content, r.maxSize+1))
	if err != nil {
		return domain.Attachment{}, pkgerrors.Wrapf(err, "read attachment %q", meta.Filename)
	}
	if int64(len(body)) > r.maxSize {
		return domain.Attachment{}, pkgerrors.Errorf("attachment %q exceeds %d bytes", meta.Filename, r.maxSize)
	}

	row := models.Attachment{
		ID:                      uuid.NewString(),
		Filename:                filepath.Base(meta.Filename),
		FileMetadataDescription: meta.FileMetadataDescription,
		Size:                    int64(len(body)),
		Checksum:                checksum(body),
		Content:                 body,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Attachment{}, pkgerrors.Wrapf(err, "store attachment %q", meta.Filename)
	}

	return attachmentFromModel(row), nil
}

func (r *AttachmentRepository) Fetch(ctx context.Context, id string) (domain.Attachment, io.ReadCloser, error) {
	var row models.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Attachment{}, nil, domain.NotFoundError{Resource: "attachment"}
		}
		return domain.Attachment{}, nil, pkgerrors.Wrapf(err, "fetch attachment %s", id)
	}

	if sum := checksum(row.Content); sum != row.Checksum {
		return domain.Attachment{}, nil, pkgerrors.Errorf("attachment %s is corrupt: checksum %s, stored %s", id, sum, row.Checksum)
	}

	return attachmentFromModel(row), io.NopCloser(bytes.NewReader(row.Content)), nil
}

func (r *AttachmentRepository) Remove(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Attachment{}).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "remove attachment %s", id)
	}
	return nil
}

func checksum(body []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(body))
}

func attachmentFromModel(row models.Attachment) domain.Attachment {
	return domain.Attachment{
		ID:                      row.ID,
		Filename:                row.Filename,
		FileMetadataDescription: row.FileMetadataDescription,
	}
}
