package sitecontent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "missing record", err: fmt.Errorf("lookup: %w", ErrNotFound), want: ErrNotFoundOrForbidden},
		{name: "missing object", err: ErrObjectNotFound, want: ErrNotFoundOrForbidden},
		{name: "unique violation", err: ErrDuplicate, want: ErrConflict},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
		{name: "cancelled", err: context.Canceled, want: ErrTimeout},
		{name: "anything else", err: errors.New("connection refused"), want: ErrStorageUnavailable},
		{name: "already classified", err: invalid("name", "name is required"), want: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, classify(nil))
}

func TestValidationError(t *testing.T) {
	err := invalid("title", "title is required")
	assert.EqualError(t, err, "title: title is required")
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &verr))
	assert.Equal(t, "title", verr.Field)
}

func TestValidObjectKey(t *testing.T) {
	valid := []string{"media/site/abc.jpg", "carousel/objects/ab/cdef.jpg", "a"}
	bad := []string{"", "/etc/passwd", "../secret", "media/../../x", "media//x", "media\\x", "media/./x"}

	for _, k := range valid {
		assert.True(t, validObjectKey(k), k)
	}
	for _, k := range bad {
		assert.False(t, validObjectKey(k), k)
	}
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "photo.jpg", cleanFileName("photo.jpg"))
	assert.Equal(t, "photo.jpg", cleanFileName("C:\\Users\\me\\photo.jpg"))
	assert.Equal(t, "photo.jpg", cleanFileName("../../photo.jpg"))
	assert.Equal(t, "", cleanFileName("  "))
	assert.Equal(t, "", cleanFileName("/"))
}
