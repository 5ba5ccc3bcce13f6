package model

import (
	"strings"

	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Repository identifies a GitHub repository
type Repository struct {
	Owner string
	Name  string
}

// FullName returns "owner/name"
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repository) String() string {
	return r.FullName()
}

// ParseRepository parses "owner/name"
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, goerr.New("repository must be in owner/name form",
			goerr.V("repository", s),
			goerr.T(types.ErrTagInvalidConfig),
		)
	}

	return Repository{Owner: owner, Name: name}, nil
}
