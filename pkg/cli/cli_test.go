package cli_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/alertsync/pkg/cli"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRun_Check(t *testing.T) {
	var created []map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/svc/dependabot/alerts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"number":   1,
				"state":    "open",
				"html_url": "https://github.com/acme/svc/security/dependabot/1",
				"dependency": map[string]any{
					"package": map[string]any{"ecosystem": "npm", "name": "foo"},
				},
				"security_advisory": map[string]any{
					"ghsa_id": "GHSA-xxxx",
					"cve_id":  "CVE-2024-0001",
					"summary": "Prototype Pollution in foo",
				},
			},
		})
	})
	mux.HandleFunc("/repos/acme/svc/code-scanning/alerts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no analysis found"})
	})
	mux.HandleFunc("/repos/acme/security/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, []map[string]any{})
			return
		}

		raw, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		var req map[string]any
		gt.NoError(t, json.Unmarshal(raw, &req))
		created = append(created, req)

		writeJSON(w, http.StatusCreated, map[string]any{
			"number": len(created),
			"title":  req["title"],
			"body":   req["body"],
			"state":  "open",
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	err := cli.Run(context.Background(), []string{
		"alertsync",
		"--log-level", "error",
		"check",
		"--github-token", "test-token",
		"--github-api-url", server.URL,
		"--tracking-repo", "acme/security",
		"--target", "acme/svc",
	})
	gt.NoError(t, err)

	gt.A(t, created).Length(1)
	gt.V(t, created[0]["title"]).Equal("Prototype Pollution in foo")
}

func TestRun_CheckWithoutTrackingRepo(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"alertsync",
		"--log-level", "error",
		"check",
		"--github-token", "test-token",
		"--target", "acme/svc",
	})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagInvalidConfig))
}

func TestRun_InvalidLogLevel(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"alertsync",
		"--log-level", "verbose",
		"check",
	})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagInvalidConfig))
}
