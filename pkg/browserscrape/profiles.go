// Finds browser history, cookie and credential stores under user profiles and scrapes
// them for strings of interest (URLs by default)
package browserscrape

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/function61/hostkit/pkg/fssnapshot"
)

type Browser string

const (
	Chrome  Browser = "Chrome"
	Edge    Browser = "Edge"
	Brave   Browser = "Brave"
	Firefox Browser = "Firefox"
)

type Kind string

const (
	KindHistory Kind = "history"
	KindCookies Kind = "cookies"
	KindLogins  Kind = "logins"
)

type ArtifactFile struct {
	Browser  Browser
	User     string
	Profile  string
	Kind     Kind
	Path     string
	Modified time.Time
	Created  time.Time // zero if the filesystem doesn't record it
}

// Chromium-based browsers share the profile layout
var chromiumUserData = map[Browser]string{
	Chrome: "AppData/Local/Google/Chrome/User Data",
	Edge:   "AppData/Local/Microsoft/Edge/User Data",
	Brave:  "AppData/Local/BraveSoftware/Brave-Browser/User Data",
}

var chromiumFiles = []struct {
	kind Kind
	name string
}{
	{KindHistory, "History"},
	{KindCookies, "Network/Cookies"},
	{KindCookies, "Cookies"}, // before Chromium 96
	{KindLogins, "Login Data"},
}

const firefoxProfiles = "AppData/Roaming/Mozilla/Firefox/Profiles"

var firefoxFiles = []struct {
	kind Kind
	name string
}{
	{KindHistory, "places.sqlite"},
	{KindCookies, "cookies.sqlite"},
	{KindLogins, "logins.json"},
}

// not real users
var skipUserDirs = map[string]bool{
	"all users":    true,
	"default":      true,
	"default user": true,
	"public":       true,
}

// DefaultProfiles lists the artifact files that exist under each user directory of
// usersRoot (e.g. `C:\Users`, or the same directory inside a snapshot)
func DefaultProfiles(usersRoot string) ([]ArtifactFile, error) {
	userDirs, err := os.ReadDir(usersRoot)
	if err != nil {
		return nil, err
	}

	found := []ArtifactFile{}

	for _, userDir := range userDirs {
		if !userDir.IsDir() || skipUserDirs[strings.ToLower(userDir.Name())] {
			continue
		}

		user := userDir.Name()

		for browser, userData := range chromiumUserData {
			profiles := subdirs(usersRoot, path.Join(user, userData), func(name string) bool {
				return name == "Default" || strings.HasPrefix(name, "Profile ")
			})

			for _, profile := range profiles {
				for _, file := range chromiumFiles {
					if artifact, ok := stat(usersRoot, path.Join(user, userData, profile, file.name)); ok {
						artifact.Browser, artifact.User, artifact.Profile, artifact.Kind = browser, user, profile, file.kind
						found = append(found, artifact)
					}
				}
			}
		}

		for _, profile := range subdirs(usersRoot, path.Join(user, firefoxProfiles), nil) {
			for _, file := range firefoxFiles {
				if artifact, ok := stat(usersRoot, path.Join(user, firefoxProfiles, profile, file.name)); ok {
					artifact.Browser, artifact.User, artifact.Profile, artifact.Kind = Firefox, user, profile, file.kind
					found = append(found, artifact)
				}
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Path < found[j].Path
	})

	return found, nil
}

func subdirs(root string, relativePath string, include func(name string) bool) []string {
	entries, err := os.ReadDir(fssnapshot.JoinUnderRoot(root, relativePath))
	if err != nil {
		return nil // browser not installed for this user
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() && (include == nil || include(entry.Name())) {
			names = append(names, entry.Name())
		}
	}

	return names
}

func stat(root string, relativePath string) (ArtifactFile, bool) {
	fullPath := fssnapshot.JoinUnderRoot(root, relativePath)

	timestamps, err := times.Stat(fullPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			// exists but can't be looked at. let the scrape report it.
			return ArtifactFile{Path: fullPath}, true
		}
		return ArtifactFile{}, false
	}

	artifact := ArtifactFile{
		Path:     fullPath,
		Modified: timestamps.ModTime(),
	}

	if timestamps.HasBirthTime() {
		artifact.Created = timestamps.BirthTime()
	}

	return artifact, true
}
