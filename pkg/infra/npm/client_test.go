package npm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/alertsync/pkg/infra/npm"
	"github.com/m-mizutani/gt"
)

func TestClient_MonthlyDownloads(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		switch r.URL.Path {
		case "/downloads/point/last-month/testcafe":
			_, _ = w.Write([]byte(`{"downloads":31337,"start":"2024-04-01","end":"2024-04-30","package":"testcafe"}`))
		case "/downloads/point/last-month/@devexpress/callsite-record":
			_, _ = w.Write([]byte(`{"downloads":42,"package":"@devexpress/callsite-record"}`))
		case "/downloads/point/last-month/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"package not found"}`))
		}
	}))
	defer server.Close()

	client := npm.New(npm.WithBaseURL(server.URL), npm.WithHTTPClient(server.Client()))
	ctx := context.Background()

	n, err := client.MonthlyDownloads(ctx, "testcafe")
	gt.NoError(t, err)
	gt.V(t, n).Equal(int64(31337))

	n, err = client.MonthlyDownloads(ctx, "@devexpress/callsite-record")
	gt.NoError(t, err)
	gt.V(t, n).Equal(int64(42))
	gt.V(t, paths[1]).Equal("/downloads/point/last-month/@devexpress/callsite-record")

	n, err = client.MonthlyDownloads(ctx, "no-such-package")
	gt.NoError(t, err)
	gt.V(t, n).Equal(int64(0))

	_, err = client.MonthlyDownloads(ctx, "broken")
	gt.Error(t, err)
}
