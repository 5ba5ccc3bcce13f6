package types

// Labels attached to tracking tickets.
const (
	LabelSecurity     = "security notification"
	LabelDependabot   = "dependabot"
	LabelCodeScanning = "codeql"
)
