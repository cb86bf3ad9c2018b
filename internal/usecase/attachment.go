package usecase

import (
	"context"
	"io"

	"github.com/totegamma/logbook/internal/domain"
)

type AttachmentUsecase struct {
	blobs BlobStore
}

func NewAttachmentUsecase(blobs BlobStore) *AttachmentUsecase {
	return &AttachmentUsecase{blobs: blobs}
}

// Fetch returns the attachment metadata and a reader over its content. The caller closes the reader.
func (uc *AttachmentUsecase) Fetch(ctx context.Context, id string) (domain.Attachment, io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Attachment.Fetch")
	defer span.End()

	attachment, body, err := uc.blobs.Fetch(ctx, id)
	if err != nil {
		span.RecordError(err)
		return domain.Attachment{}, nil, err
	}
	return attachment, body, nil
}
