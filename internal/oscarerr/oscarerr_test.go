package oscarerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesOnKindOnly(t *testing.T) {
	wrapped := New(KindPollTimeout, "artifact not found", errors.New("network blip"))

	assert.ErrorIs(t, wrapped, New(KindPollTimeout, "", nil))
	assert.NotErrorIs(t, wrapped, New(KindUploadError, "", nil))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := New(KindServiceListError, "list failed", cause)

	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorStringIncludesCauseWhenPresent(t *testing.T) {
	err := New(KindDownloadError, "download failed", errors.New("timeout"))
	assert.Contains(t, err.Error(), "download failed")
	assert.Contains(t, err.Error(), "timeout")
}

func TestErrorStringOmitsCauseWhenAbsent(t *testing.T) {
	err := New(KindNoCluster, "registry has no clusters", nil)
	assert.Equal(t, "NoCluster: registry has no clusters", err.Error())
}

func TestSentinelsAreUsableWithErrorsIs(t *testing.T) {
	assert.ErrorIs(t, NoCluster, NoCluster)
	assert.ErrorIs(t, OutputDirMissing, OutputDirMissing)
	assert.NotErrorIs(t, NoCluster, OutputDirMissing)
}
