package sitecontent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// readUpload buffers an upload, enforcing the size cap and the MIME allow-list.
// It returns the bytes and the sniffed content type.
func (s *service) readUpload(u *Upload) ([]byte, string, error) {
	if u == nil || u.Reader == nil {
		return nil, "", invalid("image", "image file is required")
	}

	data, err := io.ReadAll(io.LimitReader(u.Reader, s.maxUploadBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", invalid("image", s.tooLargeMessage())
		}
		return nil, "", invalid("image", fmt.Sprintf("failed to read upload: %v", err))
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, "", invalid("image", s.tooLargeMessage())
	}
	if len(data) == 0 {
		return nil, "", invalid("image", "image file is empty")
	}

	sniffed := http.DetectContentType(data)
	if !s.allowedMimeTypes[sniffed] {
		return nil, "", invalid("image", fmt.Sprintf("unsupported file type %s", sniffed))
	}
	return data, sniffed, nil
}

func (s *service) tooLargeMessage() string {
	if s.maxUploadBytes >= 1<<20 && s.maxUploadBytes%(1<<20) == 0 {
		return fmt.Sprintf("file too large, maximum size is %dMB", s.maxUploadBytes>>20)
	}
	return fmt.Sprintf("file too large, maximum size is %d bytes", s.maxUploadBytes)
}

// normalize runs the transformer within the caller's deadline.
func (s *service) normalize(ctx context.Context, data []byte) (*TransformResult, error) {
	if s.transformer == nil {
		return nil, fmt.Errorf("%w: no transformer configured", ErrProcessingFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	result, err := s.transformer.Transform(ctx, bytes.NewReader(data), s.constraints)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return result, nil
}

// writeBlob stores a normalized image under key. A failed write may leave a
// partial object behind, so the key is discarded before returning.
func (s *service) writeBlob(ctx context.Context, key string, result *TransformResult) error {
	err := s.blobStore.UploadWithParams(ctx, bytes.NewReader(result.Data), UploadParams{
		ObjectKey: key,
		MimeType:  result.MimeType,
	})
	if err != nil {
		s.discardBlob(ctx, key, "upload failed")
		return &StorageError{Key: key, Op: "upload", Err: classify(err)}
	}
	return nil
}
