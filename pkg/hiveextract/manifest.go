package hiveextract

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/function61/gokit/jsonfile"
	"github.com/samber/lo"
)

const (
	ManifestFilename  = "manifest.json"
	ChecksumsFilename = "checksums.txt"
)

type Manifest struct {
	RunID      string           `json:"run_id"`
	Volume     string           `json:"volume"`
	SnapshotID string           `json:"snapshot_id"`
	DevicePath string           `json:"device_path"`
	CreatedAt  time.Time        `json:"created_at"`
	Files      []ManifestRecord `json:"files"`
}

type ManifestRecord struct {
	Target         string     `json:"target"`
	SourcePath     string     `json:"source_path"`
	Outcome        string     `json:"outcome"`
	File           string     `json:"file,omitempty"`
	Bytes          int64      `json:"bytes,omitempty"`
	Sha256         string     `json:"sha256,omitempty"`
	SourceModified *time.Time `json:"source_modified,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func NewManifest(runID string, volume string, snapshotID string, devicePath string, createdAt time.Time, results []Result) Manifest {
	return Manifest{
		RunID:      runID,
		Volume:     volume,
		SnapshotID: snapshotID,
		DevicePath: devicePath,
		CreatedAt:  createdAt.UTC(),
		Files: lo.Map(results, func(res Result, _ int) ManifestRecord {
			rec := ManifestRecord{
				Target:     res.Target.Name,
				SourcePath: res.Target.RelativePath,
				Outcome:    res.Outcome.String(),
			}

			switch res.Outcome {
			case OutcomeCopied:
				modified := res.SourceModified.UTC()

				rec.File = filepath.Base(res.Destination)
				rec.Bytes = res.Bytes
				rec.Sha256 = res.Sha256
				rec.SourceModified = &modified
			case OutcomeFailed:
				rec.Error = res.Err.Error()
			}

			return rec
		}),
	}
}

// writes manifest.json and checksums.txt (sha256sum format, verify with
// "$ sha256sum -c checksums.txt"). both are overwritten on each run.
func WriteManifest(destDir string, manifest Manifest) error {
	if err := jsonfile.Write(filepath.Join(destDir, ManifestFilename), manifest); err != nil {
		return err
	}

	checksums, err := os.Create(filepath.Join(destDir, ChecksumsFilename))
	if err != nil {
		return err
	}
	defer checksums.Close()

	copied := lo.Filter(manifest.Files, func(rec ManifestRecord, _ int) bool {
		return rec.Outcome == OutcomeCopied.String()
	})

	for _, rec := range copied {
		if _, err := fmt.Fprintf(checksums, "%s  %s\n", rec.Sha256, rec.File); err != nil {
			return err
		}
	}

	return checksums.Close()
}
