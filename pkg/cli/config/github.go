package config

import (
	"log/slog"
	"os"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	githubinfra "github.com/m-mizutani/alertsync/pkg/infra/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub API credentials. Either Token or the App triple must be set.
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	PrivateKeyFile string
	APIURL         string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token (alternative to GitHub App)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_APP_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key-file",
			Usage:       "Path to GitHub App private key (PEM)",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_APP_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub REST API base URL (for GitHub Enterprise Server)",
			Destination: &c.APIURL,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_API_URL"),
		},
	}
}

func (c *GitHub) useApp() bool {
	return c.AppID != 0 || c.InstallationID != 0 || c.PrivateKey != "" || c.PrivateKeyFile != ""
}

// Validate checks that exactly one authentication method is configured
func (c *GitHub) Validate() error {
	if c.Token != "" && c.useApp() {
		return goerr.New("github token and GitHub App are both configured", goerr.T(types.ErrTagInvalidConfig))
	}
	if c.Token != "" {
		return nil
	}

	if c.AppID == 0 || c.InstallationID == 0 || (c.PrivateKey == "" && c.PrivateKeyFile == "") {
		return goerr.New("github token, or app ID, installation ID and private key are required",
			goerr.V("app_id", c.AppID),
			goerr.V("installation_id", c.InstallationID),
			goerr.T(types.ErrTagInvalidConfig),
		)
	}
	return nil
}

// NewClient creates a GitHub client for the configured authentication method
func (c *GitHub) NewClient() (interfaces.GitHubClient, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []githubinfra.Option
	if c.APIURL != "" {
		opts = append(opts, githubinfra.WithBaseURL(c.APIURL))
	}

	if c.Token != "" {
		return githubinfra.NewClientWithToken(c.Token, opts...)
	}

	key := []byte(c.PrivateKey)
	if c.PrivateKeyFile != "" {
		raw, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKeyFile))
		}
		key = raw
	}

	return githubinfra.NewClient(c.AppID, c.InstallationID, key, opts...)
}

// LogValue hides credentials when the config is logged
func (c GitHub) LogValue() slog.Value {
	auth := "app"
	if c.Token != "" {
		auth = "token"
	}
	return slog.GroupValue(
		slog.String("auth", auth),
		slog.Int64("app_id", c.AppID),
		slog.String("api_url", c.APIURL),
	)
}
