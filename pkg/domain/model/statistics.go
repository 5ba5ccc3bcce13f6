package model

// RepoStatistics is one row of the statistics ticket
type RepoStatistics struct {
	Repo       string
	Downloads  int64
	OpenIssues int
	OpenAlerts int
}
