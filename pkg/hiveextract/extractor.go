package hiveextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/gokit/logex"
	"github.com/function61/hostkit/pkg/fssnapshot"
	"github.com/minio/sha256-simd"
)

var (
	ErrDestinationUnavailable = errors.New("destination unavailable")
	ErrDuplicateDestination   = errors.New("another target already uses the same destination file name")
)

type Outcome int

const (
	OutcomeCopied Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCopied:
		return "copied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type Result struct {
	Target         Target
	Outcome        Outcome
	Source         string
	Destination    string
	Bytes          int64
	Sha256         string    // hex, only for copied
	SourceModified time.Time // only for copied
	Err            error     // only for failed
}

type Extractor struct {
	log *logex.Leveled
}

func New(logger *log.Logger) *Extractor {
	return &Extractor{
		log: logex.Levels(logex.NonNil(logger)),
	}
}

// CopyAll only returns an error if destDir cannot be created. problems with individual
// targets are reported in the results, which always have one entry per target in the
// same order.
func (e *Extractor) CopyAll(
	ctx context.Context,
	root string,
	targets []Target,
	destDir string,
) ([]Result, error) {
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDestinationUnavailable, destDir, err)
	}

	results := make([]Result, 0, len(targets))
	basenamesTaken := map[string]bool{}

	for _, target := range targets {
		res := Result{
			Target:      target,
			Source:      fssnapshot.JoinUnderRoot(root, target.RelativePath),
			Destination: filepath.Join(destDir, target.Basename()),
		}

		switch {
		case ctx.Err() != nil:
			res.Outcome = OutcomeFailed
			res.Err = ctx.Err()
		case basenamesTaken[strings.ToLower(target.Basename())]:
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("%w: %s", ErrDuplicateDestination, target.Basename())
		default:
			basenamesTaken[strings.ToLower(target.Basename())] = true

			e.copyOne(&res)
		}

		switch res.Outcome {
		case OutcomeCopied:
			e.log.Info.Printf("copied %s (%d bytes)", target.Name, res.Bytes)
		case OutcomeSkipped:
			e.log.Info.Printf("skipped %s: not present at %s", target.Name, res.Source)
		case OutcomeFailed:
			e.log.Error.Printf("failed %s: %v", target.Name, res.Err)
		}

		results = append(results, res)
	}

	return results, nil
}

func (e *Extractor) copyOne(res *Result) {
	source, err := os.Open(res.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Outcome = OutcomeSkipped
		} else {
			res.Outcome = OutcomeFailed
			res.Err = err
		}
		return
	}
	defer source.Close()

	sourceInfo, err := source.Stat()
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return
	}

	if sourceInfo.IsDir() {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("%s is a directory", res.Source)
		return
	}

	contentHash := sha256.New()
	var written int64

	// temp file + rename: a rerun overwrites the previous copy and a failed copy never
	// leaves a truncated file behind
	if err := atomicfilewrite.Write(res.Destination, func(sink io.Writer) error {
		n, err := io.Copy(io.MultiWriter(sink, contentHash), source)
		written = n
		return err
	}); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return
	}

	res.Outcome = OutcomeCopied
	res.Bytes = written
	res.Sha256 = fmt.Sprintf("%x", contentHash.Sum(nil))
	res.SourceModified = times.Get(sourceInfo).ModTime()
}
