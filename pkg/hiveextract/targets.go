// Copies well-known locked system files (registry hives, directory service database) out
// of a snapshot
package hiveextract

import (
	"path"
)

type Target struct {
	Name         string // human-friendly, like "SAM hive"
	RelativePath string // slash-separated, relative to volume root
	// only expected to exist on some hosts (domain controllers). absence is not worth
	// reporting as a problem.
	Conditional bool
}

// name of the file in the destination directory
func (t Target) Basename() string {
	return path.Base(t.RelativePath)
}

var (
	SystemHive = Target{
		Name:         "SYSTEM hive",
		RelativePath: "Windows/System32/config/SYSTEM",
	}
	SamHive = Target{
		Name:         "SAM hive",
		RelativePath: "Windows/System32/config/SAM",
	}
	SecurityHive = Target{
		Name:         "SECURITY hive",
		RelativePath: "Windows/System32/config/SECURITY",
	}
	DirectoryServiceDatabase = Target{
		Name:         "NTDS database",
		RelativePath: "Windows/NTDS/ntds.dit",
		Conditional:  true,
	}
)

func DefaultTargets(includeSecurityHive bool) []Target {
	targets := []Target{SystemHive, SamHive}

	if includeSecurityHive {
		targets = append(targets, SecurityHive)
	}

	return append(targets, DirectoryServiceDatabase)
}
