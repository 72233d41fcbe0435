package combine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meganc/bidscombine/internal/catalog"
	"github.com/meganc/bidscombine/internal/filelock"
	"github.com/meganc/bidscombine/internal/logger"
)

// newDataset creates a BIDS root with a valid dataset description and
// returns its path.
func newDataset(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "bids")
	require.NoError(t, os.MkdirAll(root, 0755))
	description := `{"Name": "combine test", "BIDSVersion": "1.8.0"}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "dataset_description.json"), []byte(description), 0644))
	return root
}

// addImage writes a data file and its sidecar under
// root/sub-<subject>/ses-<session>/<datatype>/.
func addImage(t *testing.T, root, subject, session, datatype, filename string) {
	t.Helper()
	dir := filepath.Join(root, "sub-"+subject, "ses-"+session, datatype)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte("niidata-"+filename), 0644))

	sidecar := filepath.Join(dir, strings.TrimSuffix(filename, ".nii.gz")+".json")
	require.NoError(t, os.WriteFile(sidecar, []byte(`{"EchoTime": 0.03}`), 0644))
}

func openCatalog(t *testing.T, root string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestRunCombinesSubject(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "02", "anat", "sub-1017_ses-02_T1w.nii.gz")
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T2w.nii.gz")
	addImage(t, root, "1017", "01", "func", "sub-1017_ses-01_task-rest_run-1_bold.nii.gz")
	addImage(t, root, "1017", "01", "func", "sub-1017_ses-01_task-rest_run-2_bold.nii.gz")
	addImage(t, root, "1017", "02", "func", "sub-1017_ses-02_task-rest_run-1_bold.nii.gz")
	addImage(t, root, "1017", "02", "func", "sub-1017_ses-02_task-rest_run-2_bold.nii.gz")
	addImage(t, root, "1017", "02", "func", "sub-1017_ses-02_task-rest_run-3_bold.nii.gz")
	addImage(t, root, "1017", "01", "fmap", "sub-1017_ses-01_dir-AP_epi.nii.gz")
	addImage(t, root, "1017", "02", "fmap", "sub-1017_ses-02_epi.nii.gz")

	cat := openCatalog(t, root)
	result, err := Run(cat, Options{Participant: "1017"}, logger.Discard{})
	require.NoError(t, err)

	assert.Equal(t, []string{"01", "02"}, result.Sessions)
	assert.Equal(t, 10, result.FilesCopied)

	subjectDir := result.SubjectDir
	wantFiles := []string{
		"anat/sub-1017_run-01_T1w.nii.gz",
		"anat/sub-1017_run-02_T1w.nii.gz",
		"anat/sub-1017_run-01_T2w.nii.gz",
		"func/sub-1017_task-rest_run-01_bold.nii.gz",
		"func/sub-1017_task-rest_run-02_bold.nii.gz",
		"func/sub-1017_task-rest_run-03_bold.nii.gz",
		"func/sub-1017_task-rest_run-04_bold.nii.gz",
		"func/sub-1017_task-rest_run-05_bold.nii.gz",
		"fmap/sub-1017_run-01_dir-AP_epi.nii.gz",
		"fmap/sub-1017_run-01_epi.nii.gz",
	}
	for _, rel := range wantFiles {
		assert.FileExists(t, filepath.Join(subjectDir, rel))
		assert.FileExists(t, filepath.Join(subjectDir, strings.TrimSuffix(rel, ".nii.gz")+".json"))
	}

	// run-05 descends from ses-02's run-3 (ses-01's runs first).
	sidecarData, err := os.ReadFile(filepath.Join(subjectDir, "func", "sub-1017_task-rest_run-05_bold.json"))
	require.NoError(t, err)
	var sidecar map[string]any
	require.NoError(t, json.Unmarshal(sidecarData, &sidecar))
	assert.Equal(t, filepath.Join(root, "sub-1017", "ses-02", "func", "sub-1017_ses-02_task-rest_run-3_bold.nii.gz"), sidecar["SourceFile"])
	assert.Equal(t, 0.03, sidecar["EchoTime"])

	// Audit log exists and records the run.
	audit, err := os.ReadFile(filepath.Join(subjectDir, "README"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), "INFO: ")
	assert.Contains(t, string(audit), "Run ID: ")
	assert.Contains(t, string(audit), "Participant label: 1017")
}

func TestRunUnknownSubject(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")

	cat := openCatalog(t, root)
	_, err := Run(cat, Options{Participant: "9999"}, logger.Discard{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration), "want ErrConfiguration, got %v", err)
}

func TestRunUnknownSessionFailsBeforeCopy(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T2w.nii.gz")

	cat := openCatalog(t, root)
	result, err := Run(cat, Options{
		Participant: "1017",
		SessionList: []string{"01", "99"},
	}, logger.Discard{})
	require.Error(t, err)
	require.Nil(t, result)
	assert.True(t, errors.Is(err, ErrConfiguration), "want ErrConfiguration, got %v", err)

	// Nothing was copied.
	subjectDir := filepath.Join(root, "..", "niftis_desc-combined", "sub-1017")
	assert.NoDirExists(t, filepath.Join(subjectDir, "anat"))
}

func TestRunMissingT2FailsWithoutPartialAnat(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "02", "anat", "sub-1017_ses-02_T1w.nii.gz")

	cat := openCatalog(t, root)
	_, err := Run(cat, Options{Participant: "1017"}, logger.Discard{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataAbsent), "want ErrDataAbsent, got %v", err)

	// Collection fails before materialization: no anat directory with
	// dangling T1w copies.
	subjectDir := filepath.Join(root, "..", "niftis_desc-combined", "sub-1017")
	assert.NoDirExists(t, filepath.Join(subjectDir, "anat"))

	// The failure is recorded in the audit log.
	audit, err := os.ReadFile(filepath.Join(subjectDir, "README"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), "ERROR: ")
	assert.Contains(t, string(audit), "T2w")
}

func TestRunAnatomicalSessionOverride(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "02", "anat", "sub-1017_ses-02_T1w.nii.gz")
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T2w.nii.gz")

	cat := openCatalog(t, root)
	result, err := Run(cat, Options{
		Participant:    "1017",
		T1SessionLabel: "02",
	}, logger.Discard{})
	require.NoError(t, err)

	// Only ses-02 contributes T1w: a single run-01.
	assert.FileExists(t, filepath.Join(result.SubjectDir, "anat", "sub-1017_run-01_T1w.nii.gz"))
	assert.NoFileExists(t, filepath.Join(result.SubjectDir, "anat", "sub-1017_run-02_T1w.nii.gz"))

	sidecarData, err := os.ReadFile(filepath.Join(result.SubjectDir, "anat", "sub-1017_run-01_T1w.json"))
	require.NoError(t, err)
	var sidecar map[string]any
	require.NoError(t, json.Unmarshal(sidecarData, &sidecar))
	assert.Contains(t, sidecar["SourceFile"], "ses-02")
}

func TestRunWarnsOnMissingOptionalData(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T2w.nii.gz")

	cat := openCatalog(t, root)
	result, err := Run(cat, Options{Participant: "1017"}, logger.Discard{})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "only anatomical data")
	assert.Contains(t, result.Warnings[1], "no fmap data")
}

func TestRunDryRunCopiesNothing(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T2w.nii.gz")

	cat := openCatalog(t, root)
	result, err := Run(cat, Options{Participant: "1017", DryRun: true}, logger.Discard{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.FilesCopied)
	assert.NoDirExists(t, filepath.Join(result.SubjectDir, "anat"))

	// The plan is still recorded.
	audit, err := os.ReadFile(filepath.Join(result.SubjectDir, "README"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), "dry run")
}

func TestRunRefusesWhenLockHeld(t *testing.T) {
	root := newDataset(t)
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T1w.nii.gz")
	addImage(t, root, "1017", "01", "anat", "sub-1017_ses-01_T2w.nii.gz")

	subjectDir := filepath.Join(root, "..", "niftis_desc-combined", "sub-1017")
	require.NoError(t, os.MkdirAll(subjectDir, 0755))
	held := filelock.New(filepath.Join(subjectDir, ".bidscombine.lock"))
	acquired, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer held.Unlock() //nolint:errcheck

	cat := openCatalog(t, root)
	_, err = Run(cat, Options{Participant: "1017"}, logger.Discard{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO), "want ErrIO, got %v", err)
	assert.Contains(t, err.Error(), "lock")
}
