package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grycap/cwl-oscar-go/internal/blobstore"
)

// fakeStore is an in-memory blobstore.Store for dispatcher tests: it keeps
// uploaded file contents in a map and lets tests script when a listing
// should reveal the exit-code artifact.
type fakeStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	revealAt  time.Time // ListFilesFromPath returns entries only once time.Now() >= revealAt
	artifact  string
	artifactBody []byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (f *fakeStore) UploadFile(_ context.Context, _, localPath, remoteDir string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filepath.Join(remoteDir, filepath.Base(localPath))] = data
	return nil
}

func (f *fakeStore) ListFilesFromPath(_ context.Context, _, remotePrefix string) ([]blobstore.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifact == "" || time.Now().Before(f.revealAt) {
		return nil, nil
	}
	return []blobstore.Entry{{Key: filepath.Join(remotePrefix, f.artifact), Size: int64(len(f.artifactBody))}}, nil
}

func (f *fakeStore) DownloadFile(_ context.Context, _, localDir, remotePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dest := filepath.Join(localDir, filepath.Base(remotePath))
	if err := os.WriteFile(dest, f.artifactBody, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *fakeStore) DeleteFile(_ context.Context, _, _ string) error { return nil }

func (f *fakeStore) setArtifact(name string, body []byte, revealAfter time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifact = name
	f.artifactBody = body
	f.revealAt = time.Now().Add(revealAfter)
}

func newTestDispatcher(t *testing.T, store blobstore.Store) *Dispatcher {
	d := New(store, "svc-test", t.TempDir())
	d.pollInterval = 5 * time.Millisecond
	d.pollDeadline = 200 * time.Millisecond
	return d
}

func TestExecuteParsesNumericExitCode(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(t, store)

	req := ExecuteRequest{JobID: "step1_1234", Command: []string{"echo", "hi"}, MountPath: "/mnt/cwloscar/mount"}
	store.setArtifact(req.JobID+".sh.exit_code", []byte("7\n"), 15*time.Millisecond)

	code := d.Execute(context.Background(), req)
	assert.Equal(t, 7, code)
}

func TestExecuteCoercesNonNumericArtifactToZero(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(t, store)

	req := ExecuteRequest{JobID: "step2_1234", Command: []string{"true"}}
	store.setArtifact(req.JobID+".sh.exit_code", []byte("OK\n"), 0)

	code := d.Execute(context.Background(), req)
	assert.Equal(t, 0, code)
}

func TestExecutePollTimeoutReturnsDispatcherFailure(t *testing.T) {
	store := newFakeStore() // never reveals an artifact
	d := newTestDispatcher(t, store)

	req := ExecuteRequest{JobID: "step3_1234", Command: []string{"true"}}

	code := d.Execute(context.Background(), req)
	assert.Equal(t, dispatcherFailureExitCode, code)
}

func TestExecuteCleansUpTempDirOnSuccessAndFailure(t *testing.T) {
	base := t.TempDir()

	storeOK := newFakeStore()
	storeOK.setArtifact("step4_1.sh.exit_code", []byte("0"), 0)
	dOK := New(storeOK, "svc", base)
	dOK.pollInterval = time.Millisecond
	dOK.pollDeadline = 50 * time.Millisecond
	dOK.Execute(context.Background(), ExecuteRequest{JobID: "step4_1", Command: []string{"true"}})

	storeFail := newFakeStore()
	dFail := New(storeFail, "svc", base)
	dFail.pollInterval = time.Millisecond
	dFail.pollDeadline = 20 * time.Millisecond
	dFail.Execute(context.Background(), ExecuteRequest{JobID: "step4_2", Command: []string{"true"}})

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp directories must be removed on every exit path")
}

func TestSynthesizeScriptQuotesEnvAndCommand(t *testing.T) {
	req := ExecuteRequest{
		JobID:   "step5_1",
		Command: []string{"echo", "hello world"},
		Env:     map[string]string{"GREETING": `say "hi" $USER`},
	}
	script := synthesizeScript(req)

	assert.Contains(t, script, `export CWL_JOB_ID=step5_1`)
	assert.Contains(t, script, `export GREETING="say \"hi\" \$USER"`)
	assert.Contains(t, script, `'hello world'`)
	assert.Contains(t, script, `cd "$TMP_OUTPUT_DIR"`)
	assert.Contains(t, script, `exit $exit_code`)
}

func TestSynthesizeScriptAppendsStdoutRedirect(t *testing.T) {
	req := ExecuteRequest{JobID: "step6_1", Command: []string{"echo", "hi"}, StdoutRedirect: "out.log"}
	script := synthesizeScript(req)
	assert.Contains(t, script, "> out.log 2>&1")
}
