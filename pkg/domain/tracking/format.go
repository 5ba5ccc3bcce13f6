// Package tracking renders and parses the text layout of tracking tickets.
//
// The layout is both the on-issue schema and the only state carried between runs.
// Formatter and parser live side by side in this package and must change together.
package tracking

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	headerRepositories = "#### Repositories:"
	headerDescription  = "#### Description:"
	sectionPrefix      = "####"

	checkboxOpen     = "- [ ]"
	checkboxResolved = "- [x]"
)

// Title returns the ticket title for a finding. It equals the finding's identity key so
// that the index built from ticket titles can be looked up with Finding.IdentityKey.
func Title(f *model.Finding) string {
	return f.IdentityKey()
}

// EntryLine renders one checklist line without the trailing newline
func EntryLine(repo, link string, resolved bool) string {
	box := checkboxOpen
	if resolved {
		box = checkboxResolved
	}
	return fmt.Sprintf("%s `%s` - %s", box, repo, link)
}

// RenderBody renders the body of a new tracking ticket seeded with one entry
func RenderBody(f *model.Finding) string {
	var sb strings.Builder

	sb.WriteString(headerRepositories + "\n")
	sb.WriteString(EntryLine(f.Repo.FullName(), f.URL, false) + "\n")
	if f.Kind == model.FindingKindDependabot && f.Package != "" {
		sb.WriteString(fmt.Sprintf("#### Package: `%s`\n", f.Package))
	}
	sb.WriteString(headerDescription + "\n")
	sb.WriteString(f.Description + "\n")

	if f.Kind == model.FindingKindDependabot {
		sb.WriteString(fmt.Sprintf("\n#### CVE ID: `%s`\n#### GHSA ID: `%s`", f.CVEID, f.GHSAID))
	}

	return sb.String()
}

// AppendEntry adds an unchecked entry at the end of the repositories section. Every other
// byte of body is kept as is.
func AppendEntry(body, repo, link string) (string, error) {
	_, end, ok := repositoriesBlock(body)
	if !ok {
		return "", goerr.New("repositories section not found in ticket body", goerr.V("repo", repo))
	}

	head := body[:end]
	if head != "" && !strings.HasSuffix(head, "\n") {
		head += "\n"
	}

	return head + EntryLine(repo, link, false) + "\n" + body[end:], nil
}

// MarkEntryResolved flips the first unchecked entry of repo to checked. It reports
// whether the body changed.
func MarkEntryResolved(body, repo string) (string, bool) {
	start, end, ok := repositoriesBlock(body)
	if !ok {
		return body, false
	}

	target := checkboxOpen + " `" + repo + "` "
	pos := start
	for pos < end {
		lineEnd := strings.IndexByte(body[pos:end], '\n')
		if lineEnd < 0 {
			lineEnd = end - pos
		}

		if strings.HasPrefix(body[pos:pos+lineEnd], target) {
			return body[:pos] + checkboxResolved + body[pos+len(checkboxOpen):], true
		}
		pos += lineEnd + 1
	}

	return body, false
}

// RecordFromFinding builds the record of a ticket just created from f
func RecordFromFinding(number int, f *model.Finding) *model.TrackingRecord {
	rec := &model.TrackingRecord{
		TicketNumber: number,
		Title:        Title(f),
		Body:         RenderBody(f),
		Kind:         f.Kind,
		Entries: []*model.TrackingEntry{
			{
				Repo:        f.Repo.FullName(),
				URL:         f.URL,
				Kind:        f.Kind,
				AlertNumber: f.Number,
			},
		},
	}
	if f.Kind == model.FindingKindDependabot {
		rec.CVEID = f.CVEID
		rec.GHSAID = f.GHSAID
	}
	return rec
}

// repositoriesBlock returns the byte range of the checklist lines, from the line after the
// repositories header up to the next section header or the end of body.
func repositoriesBlock(body string) (start, end int, ok bool) {
	idx := -1
	for from := 0; from < len(body); {
		i := strings.Index(body[from:], headerRepositories)
		if i < 0 {
			break
		}
		i += from
		if i == 0 || body[i-1] == '\n' {
			idx = i
			break
		}
		from = i + len(headerRepositories)
	}
	if idx < 0 {
		return 0, 0, false
	}

	start = idx + len(headerRepositories)
	if nl := strings.IndexByte(body[start:], '\n'); nl >= 0 {
		start += nl + 1
	} else {
		start = len(body)
	}

	end = len(body)
	for pos := start; pos < len(body); {
		if strings.HasPrefix(body[pos:], sectionPrefix) {
			end = pos
			break
		}
		nl := strings.IndexByte(body[pos:], '\n')
		if nl < 0 {
			break
		}
		pos += nl + 1
	}

	return start, end, true
}
