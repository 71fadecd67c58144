package browserscrape

import (
	"context"
	"os"
	"regexp"

	"github.com/samber/lo"
)

// browser databases store URLs as plain text inside SQLite pages, so a byte-level
// regexp finds them without understanding the file format
var DefaultPattern = regexp.MustCompile(`https?://[^\x00-\x20\x7f"'<>\\^` + "`" + `{|}]+`)

type Match struct {
	Browser Browser
	User    string
	Kind    Kind
	Value   string
	File    string // first file it was seen in
}

type FileError struct {
	File ArtifactFile
	Err  error
}

type Report struct {
	Scanned    int
	Matches    []Match
	Unreadable []FileError
}

// Scrape never fails as a whole: files that can't be read (typically locked by a running
// browser) are listed in Report.Unreadable. matches are de-duplicated per browser+user.
func Scrape(ctx context.Context, files []ArtifactFile, pattern *regexp.Regexp) (*Report, error) {
	if pattern == nil {
		pattern = DefaultPattern
	}

	report := &Report{}
	matches := []Match{}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(file.Path)
		if err != nil {
			report.Unreadable = append(report.Unreadable, FileError{File: file, Err: err})
			continue
		}

		report.Scanned++

		for _, value := range pattern.FindAll(content, -1) {
			matches = append(matches, Match{
				Browser: file.Browser,
				User:    file.User,
				Kind:    file.Kind,
				Value:   string(value),
				File:    file.Path,
			})
		}
	}

	report.Matches = lo.UniqBy(matches, func(match Match) string {
		return string(match.Browser) + "\x00" + match.User + "\x00" + match.Value
	})

	return report, nil
}
