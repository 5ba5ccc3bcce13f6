package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	githubinfra "github.com/m-mizutani/alertsync/pkg/infra/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

var testRepo = model.Repository{Owner: "acme", Name: "svc"}

func newTestClient(t *testing.T, mux *http.ServeMux) interfaces.GitHubClient {
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := githubinfra.NewClientWithToken("test-token", githubinfra.WithBaseURL(server.URL))
	gt.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ListOpenDependabotAlerts(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/svc/dependabot/alerts", func(w http.ResponseWriter, r *http.Request) {
		calls++
		gt.V(t, r.URL.Query().Get("state")).Equal("open")
		gt.V(t, r.Header.Get("Authorization")).Equal("Bearer test-token")

		if r.URL.Query().Get("after") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/acme/svc/dependabot/alerts?after=cursor1&per_page=100&state=open>; rel="next"`, r.Host))
			writeJSON(w, http.StatusOK, []map[string]any{
				{
					"number":   1,
					"state":    "open",
					"html_url": "https://github.com/acme/svc/security/dependabot/1",
					"dependency": map[string]any{
						"package": map[string]any{"ecosystem": "npm", "name": "foo"},
						"scope":   "runtime",
					},
					"security_advisory": map[string]any{
						"ghsa_id":     "GHSA-xxxx",
						"cve_id":      "CVE-2024-0001",
						"summary":     "Prototype Pollution in foo",
						"description": "foo is vulnerable",
					},
					"created_at": "2024-01-02T03:04:05Z",
				},
			})
			return
		}

		gt.V(t, r.URL.Query().Get("after")).Equal("cursor1")
		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"number":   2,
				"state":    "open",
				"html_url": "https://github.com/acme/svc/security/dependabot/2",
				"security_advisory": map[string]any{
					"ghsa_id": "GHSA-yyyy",
					"summary": "ReDoS in bar",
				},
			},
		})
	})

	client := newTestClient(t, mux)
	findings, err := client.ListOpenDependabotAlerts(context.Background(), testRepo)
	gt.NoError(t, err)
	gt.V(t, calls).Equal(2)
	gt.A(t, findings).Length(2)

	f := findings[0]
	gt.V(t, f.Kind).Equal(model.FindingKindDependabot)
	gt.V(t, f.Repo).Equal(testRepo)
	gt.V(t, f.Number).Equal(1)
	gt.V(t, f.Title).Equal("Prototype Pollution in foo")
	gt.V(t, f.Description).Equal("foo is vulnerable")
	gt.V(t, f.CVEID).Equal("CVE-2024-0001")
	gt.V(t, f.GHSAID).Equal("GHSA-xxxx")
	gt.V(t, f.Package).Equal("foo")
	gt.V(t, f.Scope).Equal("runtime")
	gt.V(t, f.URL).Equal("https://github.com/acme/svc/security/dependabot/1")
	gt.True(t, f.IsOpen())

	gt.V(t, findings[1].CVEID).Equal("")
	gt.V(t, findings[1].Package).Equal("")
}

func TestClient_ListOpenDependabotAlerts_Error(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/svc/dependabot/alerts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Resource not accessible by integration"})
	})

	client := newTestClient(t, mux)
	_, err := client.ListOpenDependabotAlerts(context.Background(), testRepo)
	gt.Error(t, err)
	gt.False(t, goerr.HasTag(err, types.ErrTagSourceUnavailable))
}

func TestClient_GetDependabotAlertState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/svc/dependabot/alerts/", func(w http.ResponseWriter, r *http.Request) {
		number, _ := strconv.Atoi(r.URL.Path[len("/repos/acme/svc/dependabot/alerts/"):])
		switch number {
		case 1:
			writeJSON(w, http.StatusOK, map[string]any{"number": 1, "state": "fixed"})
		case 2:
			writeJSON(w, http.StatusOK, map[string]any{"number": 2, "state": "open"})
		case 3:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "No alert found for alert number 3"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
		}
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	state, err := client.GetDependabotAlertState(ctx, testRepo, 1)
	gt.NoError(t, err)
	gt.V(t, state).Equal("fixed")

	state, err = client.GetDependabotAlertState(ctx, testRepo, 2)
	gt.NoError(t, err)
	gt.V(t, state).Equal("open")

	_, err = client.GetDependabotAlertState(ctx, testRepo, 3)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagAlertNotFound))

	_, err = client.GetDependabotAlertState(ctx, testRepo, 4)
	gt.Error(t, err)
	gt.False(t, goerr.HasTag(err, types.ErrTagAlertNotFound))
}

func TestClient_ListOpenCodeScanningAlerts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/svc/code-scanning/alerts", func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.URL.Query().Get("state")).Equal("open")

		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/acme/svc/code-scanning/alerts?page=2&per_page=100&state=open>; rel="next"`, r.Host))
			writeJSON(w, http.StatusOK, []map[string]any{
				{
					"number":   3,
					"state":    "open",
					"html_url": "https://github.com/acme/svc/security/code-scanning/3",
					"rule":     map[string]any{"id": "js/path-injection", "description": "Uncontrolled data used in path expression"},
					"most_recent_instance": map[string]any{
						"message": map[string]any{"text": "This path depends on a user-provided value."},
					},
				},
			})
			return
		}

		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"number":   4,
				"state":    "open",
				"html_url": "https://github.com/acme/svc/security/code-scanning/4",
				"rule":     map[string]any{"description": "Database query built from user-controlled sources"},
			},
		})
	})

	client := newTestClient(t, mux)
	findings, err := client.ListOpenCodeScanningAlerts(context.Background(), testRepo)
	gt.NoError(t, err)
	gt.A(t, findings).Length(2)

	f := findings[0]
	gt.V(t, f.Kind).Equal(model.FindingKindCodeScanning)
	gt.V(t, f.Number).Equal(3)
	gt.V(t, f.Title).Equal("Uncontrolled data used in path expression")
	gt.V(t, f.Description).Equal("This path depends on a user-provided value.")
	gt.V(t, f.IdentityKey()).Equal("[acme/svc] Uncontrolled data used in path expression")
	gt.V(t, findings[1].Number).Equal(4)
}

func TestClient_ListOpenCodeScanningAlerts_Unavailable(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		message     string
		unavailable bool
	}{
		{
			name:        "no analysis yet",
			status:      http.StatusNotFound,
			message:     "no analysis found",
			unavailable: true,
		},
		{
			name:        "advanced security disabled",
			status:      http.StatusForbidden,
			message:     "Advanced Security must be enabled for this repository to use code scanning.",
			unavailable: true,
		},
		{
			name:        "other failure propagates",
			status:      http.StatusInternalServerError,
			message:     "Server Error",
			unavailable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/acme/svc/code-scanning/alerts", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"message": tt.message})
			})

			client := newTestClient(t, mux)
			_, err := client.ListOpenCodeScanningAlerts(context.Background(), testRepo)
			gt.Error(t, err)
			gt.V(t, goerr.HasTag(err, types.ErrTagSourceUnavailable)).Equal(tt.unavailable)
		})
	}
}

func TestClient_ListOpenTickets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/security/issues", func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.Method).Equal(http.MethodGet)
		gt.V(t, r.URL.Query().Get("state")).Equal("open")
		gt.V(t, r.URL.Query().Get("labels")).Equal(types.LabelSecurity)

		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"number":   10,
				"title":    "Prototype Pollution in foo",
				"body":     "#### Repositories:\n",
				"state":    "open",
				"html_url": "https://github.com/acme/security/issues/10",
				"labels":   []map[string]any{{"name": "dependabot"}, {"name": types.LabelSecurity}},
			},
			{
				"number":       11,
				"title":        "Bump foo",
				"state":        "open",
				"pull_request": map[string]any{"url": "https://api.github.com/repos/acme/security/pulls/11"},
			},
		})
	})

	client := newTestClient(t, mux)
	tickets, err := client.ListOpenTickets(context.Background(), model.Repository{Owner: "acme", Name: "security"}, types.LabelSecurity)
	gt.NoError(t, err)
	gt.A(t, tickets).Length(1)
	gt.V(t, tickets[0].Number).Equal(10)
	gt.V(t, tickets[0].State).Equal(model.TicketStateOpen)
	gt.V(t, tickets[0].Labels).Equal([]string{"dependabot", types.LabelSecurity})
	gt.V(t, tickets[0].URL).Equal("https://github.com/acme/security/issues/10")
}

func TestClient_CreateAndUpdateTicket(t *testing.T) {
	var created, edited map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/security/issues", func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.Method).Equal(http.MethodPost)
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &created))

		writeJSON(w, http.StatusCreated, map[string]any{
			"number": 12,
			"title":  created["title"],
			"body":   created["body"],
			"state":  "open",
		})
	})
	mux.HandleFunc("/repos/acme/security/issues/12", func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.Method).Equal(http.MethodPatch)
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &edited))

		writeJSON(w, http.StatusOK, map[string]any{
			"number": 12,
			"title":  "t",
			"body":   edited["body"],
			"state":  edited["state"],
		})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()
	repo := model.Repository{Owner: "acme", Name: "security"}

	ticket, err := client.CreateTicket(ctx, repo, &model.NewTicket{
		Title:  "t",
		Body:   "b",
		Labels: []string{types.LabelDependabot, types.LabelSecurity},
	})
	gt.NoError(t, err)
	gt.V(t, ticket.Number).Equal(12)
	gt.V(t, created["title"]).Equal("t")
	gt.V(t, created["labels"]).Equal([]any{types.LabelDependabot, types.LabelSecurity})

	body := "new body"
	closed := model.TicketStateClosed
	ticket, err = client.UpdateTicket(ctx, repo, 12, &model.TicketUpdate{Body: &body, State: &closed})
	gt.NoError(t, err)
	gt.V(t, ticket.State).Equal(model.TicketStateClosed)
	gt.V(t, edited["body"]).Equal("new body")
	gt.V(t, edited["state"]).Equal("closed")

	// body only: state must not be sent
	edited = nil
	_, err = client.UpdateTicket(ctx, repo, 12, &model.TicketUpdate{Body: &body})
	gt.NoError(t, err)
	_, hasState := edited["state"]
	gt.False(t, hasState)
}

func TestClient_NewClient_WithApp(t *testing.T) {
	// This test requires GitHub App credentials from environment variables
	appID := os.Getenv("TEST_GITHUB_APP_ID")
	installationID := os.Getenv("TEST_GITHUB_INSTALLATION_ID")
	privateKey := os.Getenv("TEST_GITHUB_PRIVATE_KEY")

	if appID == "" || installationID == "" || privateKey == "" {
		t.Skip("Test GitHub App credentials not provided via environment variables")
	}

	appIDInt, err := strconv.ParseInt(appID, 10, 64)
	gt.NoError(t, err)

	installationIDInt, err := strconv.ParseInt(installationID, 10, 64)
	gt.NoError(t, err)

	client, err := githubinfra.NewClient(appIDInt, installationIDInt, []byte(privateKey))
	gt.NoError(t, err)
	gt.Value(t, client).NotNil()
}
