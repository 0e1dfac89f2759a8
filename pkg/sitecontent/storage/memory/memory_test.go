package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-site/pkg/sitecontent"
	memorystorage "github.com/tendant/simple-site/pkg/sitecontent/storage/memory"
)

var (
	_ sitecontent.BlobStore  = (*memorystorage.Backend)(nil)
	_ sitecontent.BlobLister = (*memorystorage.Backend)(nil)
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "media/site/object.jpg"
	testData := "not really a jpeg"

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "application/octet-stream", meta.ContentType)
		assert.False(t, meta.UpdatedAt.IsZero())
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloaded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(downloaded))
	})

	t.Run("UploadWithParams", func(t *testing.T) {
		key := "carousel/site/object.png"
		err := backend.UploadWithParams(ctx, strings.NewReader(testData), sitecontent.UploadParams{
			ObjectKey: key,
			MimeType:  "image/png",
		})
		require.NoError(t, err)

		meta, err := backend.GetObjectMeta(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "image/png", meta.ContentType)
	})

	t.Run("List", func(t *testing.T) {
		all, err := backend.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "carousel/site/object.png", all[0].Key)

		media, err := backend.List(ctx, "media/")
		require.NoError(t, err)
		require.Len(t, media, 1)
		assert.Equal(t, testKey, media[0].Key)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.GetObjectMeta(ctx, testKey)
		assert.ErrorIs(t, err, sitecontent.ErrObjectNotFound)
		_, err = backend.Download(ctx, testKey)
		assert.ErrorIs(t, err, sitecontent.ErrObjectNotFound)
		assert.ErrorIs(t, backend.Delete(ctx, testKey), sitecontent.ErrObjectNotFound)
	})

	t.Run("CancelledUploadStoresNothing", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		before := backend.Len()
		err := backend.Upload(cctx, "media/site/cancelled.jpg", strings.NewReader(testData))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, before, backend.Len())
	})
}
