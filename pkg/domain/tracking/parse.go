package tracking

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
)

var (
	entryPattern = regexp.MustCompile("^- \\[([ xX])\\] `([^`]+)` - (https?://\\S+)$")
	linkPattern  = regexp.MustCompile(`/(dependabot|code-scanning)/(\d+)$`)
	cvePattern   = regexp.MustCompile("(?m)^#### CVE ID:\\s*`([^`]*)`")
	ghsaPattern  = regexp.MustCompile("(?m)^#### GHSA ID:\\s*`([^`]*)`")
)

// Parse reads a ticket back into a tracking record. The second return value is false
// when the ticket does not have the tracking layout; such tickets are not an error, they
// are simply not tracking tickets.
func Parse(ticket *model.Ticket) (*model.TrackingRecord, bool) {
	start, end, ok := repositoriesBlock(ticket.Body)
	if !ok {
		return nil, false
	}

	entries := parseEntries(ticket.Body[start:end])
	if len(entries) == 0 {
		return nil, false
	}

	rec := &model.TrackingRecord{
		TicketNumber: ticket.Number,
		Title:        ticket.Title,
		Body:         ticket.Body,
		Kind:         entries[0].Kind,
		Entries:      entries,
	}

	if rec.Kind == model.FindingKindDependabot {
		cve, okCVE := lastLabel(cvePattern, ticket.Body)
		ghsa, okGHSA := lastLabel(ghsaPattern, ticket.Body)
		if !okCVE || !okGHSA {
			return nil, false
		}
		rec.CVEID = cve
		rec.GHSAID = ghsa
	}

	return rec, true
}

func parseEntries(block string) []*model.TrackingEntry {
	var entries []*model.TrackingEntry
	seen := make(map[string]bool)

	for _, line := range strings.Split(block, "\n") {
		m := entryPattern.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if m == nil {
			continue
		}

		link := linkPattern.FindStringSubmatch(m[3])
		if link == nil {
			continue
		}
		number, err := strconv.Atoi(link[2])
		if err != nil {
			continue
		}

		// one entry per repository; the first line wins
		if seen[m[2]] {
			continue
		}
		seen[m[2]] = true

		kind := model.FindingKindDependabot
		if link[1] == "code-scanning" {
			kind = model.FindingKindCodeScanning
		}

		entries = append(entries, &model.TrackingEntry{
			Repo:        m[2],
			URL:         m[3],
			Kind:        kind,
			AlertNumber: number,
			Resolved:    m[1] != " ",
		})
	}

	return entries
}

// lastLabel returns the value of the last matching label line. The identifier lines trail
// the body, so a description quoting the same label does not shadow them.
func lastLabel(re *regexp.Regexp, body string) (string, bool) {
	all := re.FindAllStringSubmatch(body, -1)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1][1], true
}
