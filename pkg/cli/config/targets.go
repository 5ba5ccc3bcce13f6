package config

import (
	"os"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Targets holds the tracking repository and the repositories to scan
type Targets struct {
	TrackingRepo string
	Repos        []string
	File         string
}

// Target is one repository to scan
type Target struct {
	Repo       model.Repository
	NPMPackage string
}

type targetsFile struct {
	Tracking struct {
		Repository string `toml:"repository"`
	} `toml:"tracking"`
	Targets []struct {
		Repository string `toml:"repository"`
		NPMPackage string `toml:"npm_package"`
	} `toml:"targets"`
}

// Flags returns CLI flags for target configuration
func (c *Targets) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tracking-repo",
			Usage:       "Repository holding the tracking issues (owner/name)",
			Destination: &c.TrackingRepo,
			Sources:     cli.EnvVars("ALERTSYNC_TRACKING_REPO"),
		},
		&cli.StringSliceFlag{
			Name:        "target",
			Aliases:     []string{"t"},
			Usage:       "Repository to scan (owner/name), can be repeated",
			Destination: &c.Repos,
			Sources:     cli.EnvVars("ALERTSYNC_TARGETS"),
		},
		&cli.StringFlag{
			Name:        "targets-file",
			Usage:       "TOML file with [tracking] and [[targets]] tables",
			Destination: &c.File,
			Sources:     cli.EnvVars("ALERTSYNC_TARGETS_FILE"),
		},
	}
}

// TrackingRepository returns the tracking repository from the flag, or from the targets
// file when the flag is unset
func (c *Targets) TrackingRepository() (model.Repository, error) {
	name := c.TrackingRepo
	if name == "" && c.File != "" {
		f, err := loadTargetsFile(c.File)
		if err != nil {
			return model.Repository{}, err
		}
		name = f.Tracking.Repository
	}

	if name == "" {
		return model.Repository{}, goerr.New("tracking repository is required", goerr.T(types.ErrTagInvalidConfig))
	}
	return model.ParseRepository(name)
}

// Load returns the targets of --target flags followed by those of the targets file.
// Duplicates are dropped; an npm package from the file fills in a flag target.
func (c *Targets) Load() ([]*Target, error) {
	var targets []*Target
	seen := make(map[string]*Target)

	add := func(name, npmPackage string) error {
		repo, err := model.ParseRepository(name)
		if err != nil {
			return err
		}
		if t, ok := seen[repo.FullName()]; ok {
			if t.NPMPackage == "" {
				t.NPMPackage = npmPackage
			}
			return nil
		}
		t := &Target{Repo: repo, NPMPackage: npmPackage}
		seen[repo.FullName()] = t
		targets = append(targets, t)
		return nil
	}

	for _, name := range c.Repos {
		if err := add(name, ""); err != nil {
			return nil, err
		}
	}

	if c.File != "" {
		f, err := loadTargetsFile(c.File)
		if err != nil {
			return nil, err
		}
		for _, t := range f.Targets {
			if err := add(t.Repository, t.NPMPackage); err != nil {
				return nil, goerr.Wrap(err, "invalid target in targets file", goerr.V("path", c.File))
			}
		}
	}

	if len(targets) == 0 {
		return nil, goerr.New("no target repository given", goerr.T(types.ErrTagInvalidConfig))
	}
	return targets, nil
}

func loadTargetsFile(path string) (*targetsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read targets file", goerr.V("path", path))
	}

	var f targetsFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse targets file",
			goerr.V("path", path),
			goerr.T(types.ErrTagInvalidConfig),
		)
	}
	return &f, nil
}
