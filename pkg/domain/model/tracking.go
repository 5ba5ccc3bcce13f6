package model

import "strings"

// TrackingEntry is one repository's checklist line in a tracking ticket
type TrackingEntry struct {
	Repo        string
	URL         string
	Kind        FindingKind
	AlertNumber int
	Resolved    bool
}

// TrackingRecord is the parsed state of one open tracking ticket
type TrackingRecord struct {
	TicketNumber int
	Title        string
	Body         string
	Kind         FindingKind
	CVEID        string
	GHSAID       string
	Entries      []*TrackingEntry
}

// IdentityKey returns the key the record is indexed by. It is symmetric with
// Finding.IdentityKey because the ticket title is rendered from that key.
func (r *TrackingRecord) IdentityKey() string {
	return strings.TrimSpace(r.Title)
}

// Entry returns the entry for repo, or nil
func (r *TrackingRecord) Entry(repo string) *TrackingEntry {
	for _, e := range r.Entries {
		if e.Repo == repo {
			return e
		}
	}
	return nil
}

// AllResolved reports whether the ticket is eligible for closure
func (r *TrackingRecord) AllResolved() bool {
	for _, e := range r.Entries {
		if !e.Resolved {
			return false
		}
	}
	return true
}

// MatchesAdvisory reports whether the finding carries the same stable identifiers
func (r *TrackingRecord) MatchesAdvisory(f *Finding) bool {
	return r.CVEID == f.CVEID && r.GHSAID == f.GHSAID
}
