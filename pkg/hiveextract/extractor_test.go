package hiveextract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
)

// lays out files under a fake volume root, like the snapshot device path would have them
func makeVolume(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for relativePath, content := range files {
		full := filepath.Join(root, filepath.FromSlash(relativePath))

		assert.Assert(t, os.MkdirAll(filepath.Dir(full), 0700) == nil)
		assert.Assert(t, os.WriteFile(full, []byte(content), 0600) == nil)
	}

	return root
}

func outcomes(results []Result) string {
	parts := []string{}
	for _, res := range results {
		parts = append(parts, res.Target.Basename()+"="+res.Outcome.String())
	}

	return strings.Join(parts, " ")
}

func TestCopyAllWithoutDirectoryService(t *testing.T) {
	root := makeVolume(t, map[string]string{
		"Windows/System32/config/SYSTEM": "system hive",
		"Windows/System32/config/SAM":    "sam hive",
	})
	dest := filepath.Join(t.TempDir(), "nested", "out")

	results, err := New(nil).CopyAll(context.Background(), root, DefaultTargets(false), dest)
	assert.Assert(t, err == nil)
	assert.EqualString(t, outcomes(results), "SYSTEM=copied SAM=copied ntds.dit=skipped")

	assert.Assert(t, results[2].Err == nil)

	samCopy, err := os.ReadFile(filepath.Join(dest, "SAM"))
	assert.Assert(t, err == nil)
	assert.EqualString(t, string(samCopy), "sam hive")

	assert.Assert(t, results[1].Bytes == int64(len("sam hive")))
	// $ echo -n "sam hive" | sha256sum
	assert.EqualString(t, results[1].Sha256, "bd83e27e83d283102ef46072e2a901898499b3fe3da350786d098b6772cafea5")
	assert.Assert(t, !results[1].SourceModified.IsZero())
}

func TestCopyFailureDoesNotStopOthers(t *testing.T) {
	root := makeVolume(t, map[string]string{
		"Windows/System32/config/SAM": "sam hive",
		"Windows/NTDS/ntds.dit":       "directory",
	})

	// a directory where the SYSTEM hive file should be makes its copy fail
	assert.Assert(t, os.MkdirAll(filepath.Join(root, "Windows", "System32", "config", "SYSTEM"), 0700) == nil)

	dest := t.TempDir()

	targets := DefaultTargets(false)

	results, err := New(nil).CopyAll(context.Background(), root, targets, dest)
	assert.Assert(t, err == nil)
	assert.Assert(t, len(results) == len(targets))
	assert.EqualString(t, outcomes(results), "SYSTEM=failed SAM=copied ntds.dit=copied")
	assert.Assert(t, strings.Contains(results[0].Err.Error(), "is a directory"))

	_, err = os.Stat(filepath.Join(dest, "SYSTEM"))
	assert.Assert(t, os.IsNotExist(err))
}

func TestMissingNonConditionalIsSkipped(t *testing.T) {
	root := makeVolume(t, map[string]string{})

	results, err := New(nil).CopyAll(context.Background(), root, []Target{SamHive}, t.TempDir())
	assert.Assert(t, err == nil)
	assert.EqualString(t, outcomes(results), "SAM=skipped")
}

func TestDestinationUnavailable(t *testing.T) {
	root := makeVolume(t, map[string]string{
		"Windows/System32/config/SAM": "sam hive",
	})

	// a regular file blocks creating a directory under it
	blocker := filepath.Join(t.TempDir(), "blocker")
	assert.Assert(t, os.WriteFile(blocker, []byte("x"), 0600) == nil)

	results, err := New(nil).CopyAll(context.Background(), root, DefaultTargets(false), filepath.Join(blocker, "out"))
	assert.Assert(t, errors.Is(err, ErrDestinationUnavailable))
	assert.Assert(t, results == nil)
}

func TestRerunOverwritesWithoutDuplicates(t *testing.T) {
	root := makeVolume(t, map[string]string{
		"Windows/System32/config/SYSTEM": "v1",
		"Windows/System32/config/SAM":    "v1",
	})
	dest := t.TempDir()

	extractor := New(nil)

	_, err := extractor.CopyAll(context.Background(), root, DefaultTargets(false), dest)
	assert.Assert(t, err == nil)

	assert.Assert(t, os.WriteFile(filepath.Join(root, "Windows", "System32", "config", "SAM"), []byte("v2"), 0600) == nil)

	_, err = extractor.CopyAll(context.Background(), root, DefaultTargets(false), dest)
	assert.Assert(t, err == nil)

	entries, err := os.ReadDir(dest)
	assert.Assert(t, err == nil)

	names := []string{}
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	assert.EqualString(t, strings.Join(names, ","), "SAM,SYSTEM")

	samCopy, err := os.ReadFile(filepath.Join(dest, "SAM"))
	assert.Assert(t, err == nil)
	assert.EqualString(t, string(samCopy), "v2")
}

func TestCanceledContextFailsRemaining(t *testing.T) {
	root := makeVolume(t, map[string]string{
		"Windows/System32/config/SYSTEM": "x",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := New(nil).CopyAll(ctx, root, DefaultTargets(true), t.TempDir())
	assert.Assert(t, err == nil)
	assert.EqualString(t, outcomes(results), "SYSTEM=failed SAM=failed SECURITY=failed ntds.dit=failed")
	assert.Assert(t, errors.Is(results[0].Err, context.Canceled))
}

func TestDuplicateBasename(t *testing.T) {
	root := makeVolume(t, map[string]string{
		"Windows/System32/config/SAM": "real",
		"Backup/sam":                  "other",
	})

	results, err := New(nil).CopyAll(context.Background(), root, []Target{
		SamHive,
		{Name: "backup SAM", RelativePath: "Backup/sam"},
	}, t.TempDir())
	assert.Assert(t, err == nil)
	assert.EqualString(t, outcomes(results), "SAM=copied sam=failed")
	assert.Assert(t, errors.Is(results[1].Err, ErrDuplicateDestination))
}
