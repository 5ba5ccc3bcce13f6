package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const perPage = 100

// Messages GitHub returns for conditions that mean "nothing to report"
var codeScanningUnavailableMessages = []string{
	"no analysis found",
	"Advanced Security must be enabled for this repository to use code scanning",
}

const alertNotFoundMessage = "No alert found for alert number"

type client struct {
	githubClient *github.Client
}

type config struct {
	baseURL   string
	transport http.RoundTripper
}

// Option is a functional option for the GitHub client
type Option func(*config)

// WithBaseURL sets the REST API base URL, e.g. for GitHub Enterprise Server
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the underlying HTTP transport
func WithTransport(tr http.RoundTripper) Option {
	return func(c *config) {
		c.transport = tr
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte, opts ...Option) (interfaces.GitHubClient, error) {
	cfg := newConfig(opts)

	// Create GitHub App transport
	itr, err := ghinstallation.New(cfg.transport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}
	if cfg.baseURL != "" {
		itr.BaseURL = strings.TrimSuffix(cfg.baseURL, "/")
	}

	return newClient(github.NewClient(&http.Client{Transport: itr}), cfg)
}

// NewClientWithToken creates a new GitHub client authenticated by a token
func NewClientWithToken(token string, opts ...Option) (interfaces.GitHubClient, error) {
	cfg := newConfig(opts)
	githubClient := github.NewClient(&http.Client{Transport: cfg.transport}).WithAuthToken(token)
	return newClient(githubClient, cfg)
}

func newClient(githubClient *github.Client, cfg *config) (*client, error) {
	if cfg.baseURL != "" {
		base := cfg.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub API base URL", goerr.V("base_url", cfg.baseURL))
		}
		githubClient.BaseURL = u
	}

	return &client{githubClient: githubClient}, nil
}

// ListOpenDependabotAlerts lists open Dependabot alerts of a repository
func (c *client) ListOpenDependabotAlerts(ctx context.Context, repo model.Repository) ([]*model.Finding, error) {
	opts := &github.ListAlertsOptions{
		State:             github.Ptr(model.AlertStateOpen),
		ListCursorOptions: github.ListCursorOptions{PerPage: perPage},
	}

	var findings []*model.Finding
	for {
		alerts, resp, err := c.githubClient.Dependabot.ListRepoAlerts(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list dependabot alerts", goerr.V("repo", repo.FullName()))
		}

		for _, alert := range alerts {
			findings = append(findings, toDependabotFinding(repo, alert))
		}

		if resp.After == "" {
			break
		}
		opts.ListCursorOptions.After = resp.After
	}

	return findings, nil
}

// GetDependabotAlertState returns the state of a single Dependabot alert
func (c *client) GetDependabotAlertState(ctx context.Context, repo model.Repository, number int) (string, error) {
	alert, _, err := c.githubClient.Dependabot.GetRepoAlert(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		if errorMessageContains(err, alertNotFoundMessage) {
			return "", goerr.Wrap(err, "dependabot alert not found",
				goerr.V("repo", repo.FullName()),
				goerr.V("number", number),
				goerr.T(types.ErrTagAlertNotFound),
			)
		}
		return "", goerr.Wrap(err, "failed to get dependabot alert",
			goerr.V("repo", repo.FullName()),
			goerr.V("number", number),
		)
	}

	return alert.GetState(), nil
}

// ListOpenCodeScanningAlerts lists open code scanning alerts of a repository
func (c *client) ListOpenCodeScanningAlerts(ctx context.Context, repo model.Repository) ([]*model.Finding, error) {
	opts := &github.AlertListOptions{
		State:       model.AlertStateOpen,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var findings []*model.Finding
	for {
		alerts, resp, err := c.githubClient.CodeScanning.ListAlertsForRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			for _, msg := range codeScanningUnavailableMessages {
				if errorMessageContains(err, msg) {
					return nil, goerr.Wrap(err, "code scanning alerts unavailable",
						goerr.V("repo", repo.FullName()),
						goerr.T(types.ErrTagSourceUnavailable),
					)
				}
			}
			return nil, goerr.Wrap(err, "failed to list code scanning alerts", goerr.V("repo", repo.FullName()))
		}

		for _, alert := range alerts {
			findings = append(findings, toCodeScanningFinding(repo, alert))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return findings, nil
}

// ListOpenTickets lists open issues, optionally filtered by a label
func (c *client) ListOpenTickets(ctx context.Context, repo model.Repository, label string) ([]*model.Ticket, error) {
	opts := &github.IssueListByRepoOptions{
		State:       string(model.TicketStateOpen),
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	if label != "" {
		opts.Labels = []string{label}
	}

	var tickets []*model.Ticket
	for {
		issues, resp, err := c.githubClient.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list issues",
				goerr.V("repo", repo.FullName()),
				goerr.V("label", label),
			)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			tickets = append(tickets, toTicket(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return tickets, nil
}

// CreateTicket creates an issue
func (c *client) CreateTicket(ctx context.Context, repo model.Repository, ticket *model.NewTicket) (*model.Ticket, error) {
	labels := ticket.Labels
	if labels == nil {
		labels = []string{}
	}

	issue, _, err := c.githubClient.Issues.Create(ctx, repo.Owner, repo.Name, &github.IssueRequest{
		Title:  github.Ptr(ticket.Title),
		Body:   github.Ptr(ticket.Body),
		Labels: &labels,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create issue",
			goerr.V("repo", repo.FullName()),
			goerr.V("title", ticket.Title),
		)
	}

	return toTicket(issue), nil
}

// UpdateTicket edits the body and/or state of an issue
func (c *client) UpdateTicket(ctx context.Context, repo model.Repository, number int, update *model.TicketUpdate) (*model.Ticket, error) {
	req := &github.IssueRequest{
		Body: update.Body,
	}
	if update.State != nil {
		req.State = github.Ptr(string(*update.State))
	}

	issue, _, err := c.githubClient.Issues.Edit(ctx, repo.Owner, repo.Name, number, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update issue",
			goerr.V("repo", repo.FullName()),
			goerr.V("number", number),
		)
	}

	return toTicket(issue), nil
}

func toDependabotFinding(repo model.Repository, alert *github.DependabotAlert) *model.Finding {
	advisory := alert.GetSecurityAdvisory()
	return &model.Finding{
		Kind:        model.FindingKindDependabot,
		Repo:        repo,
		Number:      alert.GetNumber(),
		Title:       advisory.GetSummary(),
		Description: advisory.GetDescription(),
		CVEID:       advisory.GetCVEID(),
		GHSAID:      advisory.GetGHSAID(),
		Package:     alert.GetDependency().GetPackage().GetName(),
		Scope:       alert.GetDependency().GetScope(),
		URL:         alert.GetHTMLURL(),
		State:       alert.GetState(),
		CreatedAt:   alert.GetCreatedAt().Time,
	}
}

func toCodeScanningFinding(repo model.Repository, alert *github.Alert) *model.Finding {
	return &model.Finding{
		Kind:        model.FindingKindCodeScanning,
		Repo:        repo,
		Number:      alert.GetNumber(),
		Title:       alert.GetRule().GetDescription(),
		Description: alert.GetMostRecentInstance().GetMessage().GetText(),
		URL:         alert.GetHTMLURL(),
		State:       alert.GetState(),
		CreatedAt:   alert.GetCreatedAt().Time,
	}
}

func toTicket(issue *github.Issue) *model.Ticket {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	return &model.Ticket{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  model.TicketState(issue.GetState()),
		Labels: labels,
		URL:    issue.GetHTMLURL(),
	}
}

func errorMessageContains(err error, msg string) bool {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && strings.Contains(errResp.Message, msg) {
		return true
	}
	return strings.Contains(err.Error(), msg)
}
