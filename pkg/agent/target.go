package agent

import (
	"path/filepath"
	"strings"
)

// ReviewTarget identifies what is being reviewed: either a local
// directory or a remote repository.
type ReviewTarget struct {
	directory    string
	repositoryID string
}

// LocalTarget creates a target for a local directory path.
func LocalTarget(directory string) ReviewTarget {
	return ReviewTarget{directory: directory}
}

// RemoteTarget creates a target for a remote repository identifier
// (for example "owner/repo").
func RemoteTarget(repositoryID string) ReviewTarget {
	return ReviewTarget{repositoryID: repositoryID}
}

// IsLocal reports whether the target is a local directory.
func (t ReviewTarget) IsLocal() bool {
	return t.directory != ""
}

// Directory returns the local directory, or empty for remote targets.
func (t ReviewTarget) Directory() string {
	return t.directory
}

// RepositoryID returns the remote repository identifier, or empty for
// local targets.
func (t ReviewTarget) RepositoryID() string {
	return t.repositoryID
}

// DisplayName returns a human-readable label: the last path segment for
// local targets, the repository identifier for remote targets.
func (t ReviewTarget) DisplayName() string {
	if t.IsLocal() {
		cleaned := filepath.Clean(t.directory)
		base := filepath.Base(cleaned)
		if base == "." || base == string(filepath.Separator) {
			return cleaned
		}
		return base
	}
	return strings.TrimSpace(t.repositoryID)
}
