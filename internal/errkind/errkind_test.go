package errkind

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain", errors.New("boom"), Unknown},
		{"not found", New(NotFound, "profile %q", "u1"), NotFound},
		{"invalid", New(InvalidInput, "grade %d", 9), InvalidInput},
		{"wrapped transient", Wrap(TransientStorage, sql.ErrConnDone, "fetch profile"), TransientStorage},
		{"computation", New(Computation, "nan"), Computation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(TransientStorage, sql.ErrConnDone, "persist profile")
	assert.ErrorIs(t, err, ErrTransientStorage)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "persist profile")
}

func TestWrapPreservesExistingKind(t *testing.T) {
	notFound := New(NotFound, "profile u1")
	err := Wrap(TransientStorage, notFound, "get profile")
	assert.Equal(t, NotFound, KindOf(err))
	assert.NotErrorIs(t, err, ErrTransientStorage)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(TransientStorage, nil, "noop"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "NotFound", NotFound.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
