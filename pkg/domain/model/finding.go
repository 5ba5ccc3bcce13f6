package model

import (
	"strings"
	"time"
)

// FindingKind is the scanner a finding originates from
type FindingKind string

const (
	FindingKindDependabot   FindingKind = "dependabot"
	FindingKindCodeScanning FindingKind = "codeql"
)

// AlertStateOpen is the only alert state that counts as active
const AlertStateOpen = "open"

// Finding is an alert from either scanner normalized to one shape
type Finding struct {
	Kind        FindingKind
	Repo        Repository
	Number      int    // Alert number within Repo
	Title       string // Advisory summary or rule description
	Description string
	CVEID       string // Dependabot only
	GHSAID      string // Dependabot only
	Package     string // Dependabot only
	Scope       string // Dependabot only: runtime or development
	URL         string
	State       string
	CreatedAt   time.Time
}

// IdentityKey returns the key used to deduplicate findings into one tracking ticket.
// Code scanning findings are never aggregated across repositories, so their key is
// qualified with the repository.
func (f *Finding) IdentityKey() string {
	switch f.Kind {
	case FindingKindCodeScanning:
		return strings.TrimSpace("[" + f.Repo.FullName() + "] " + f.Title)
	default:
		return strings.TrimSpace(f.Title)
	}
}

// IsOpen reports whether the underlying alert is still active
func (f *Finding) IsOpen() bool {
	return f.State == AlertStateOpen
}
