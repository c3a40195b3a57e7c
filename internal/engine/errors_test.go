package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunError_Format(t *testing.T) {
	cause := errors.New("disk full")

	full := &RunError{Code: ErrCodeStore, RunID: "r1", Origin: "f:3", Key: "0xabc", Err: cause}
	assert.Equal(t, "STORE_FAILED: disk full (run=r1, origin=f:3, key=0xabc)", full.Error())

	noKey := &RunError{Code: ErrCodeAck, RunID: "r1", Origin: "f:3", Err: cause}
	assert.Equal(t, "ACK_FAILED: disk full (run=r1, origin=f:3)", noKey.Error())

	bare := &RunError{Code: ErrCodeSource, RunID: "r1", Err: cause}
	assert.Equal(t, "SOURCE_FAILED: disk full (run=r1)", bare.Error())
	assert.ErrorIs(t, bare, cause)
}

func TestRunError_Predicates(t *testing.T) {
	storeErr := fmt.Errorf("ingest: %w", &RunError{Code: ErrCodeStore, Err: errors.New("x")})
	assert.True(t, IsStoreError(storeErr))
	assert.False(t, IsSourceError(storeErr))

	sourceErr := &RunError{Code: ErrCodeSource, Err: errors.New("x")}
	assert.True(t, IsSourceError(sourceErr))
	assert.False(t, IsStoreError(errors.New("plain")))
}
