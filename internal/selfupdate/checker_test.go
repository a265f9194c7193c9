package selfupdate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func latestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/abhisek/socratic/releases/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	srv := latestServer(t, `{"tag_name":"v1.4.0","html_url":"https://example.com/v1.4.0"}`)
	checker := NewChecker(WithBaseURL(srv.URL))

	tests := []struct {
		version string
		want    bool
	}{
		{"v1.3.9", true},
		{"1.3.9", true},
		{"v1.4.0", false},
		{"v2.0.0", false},
		{"(devel)", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			res, err := checker.Check(context.Background(), &CheckInput{Version: tt.version})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.UpdateAvailable)
			assert.Equal(t, "v1.4.0", res.LatestVersion)
			assert.Equal(t, "https://example.com/v1.4.0", res.ReleaseURL)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	t.Run("bad tag", func(t *testing.T) {
		srv := latestServer(t, `{"tag_name":"nightly"}`)
		_, err := NewChecker(WithBaseURL(srv.URL)).Check(context.Background(), &CheckInput{Version: "v1.0.0"})
		assert.ErrorContains(t, err, "not a semantic version")
	})

	t.Run("other repository", func(t *testing.T) {
		srv := latestServer(t, `{"tag_name":"v1.0.0"}`)
		_, err := NewChecker(WithBaseURL(srv.URL), WithRepository("someone", "fork")).
			Check(context.Background(), &CheckInput{Version: "v1.0.0"})
		assert.ErrorContains(t, err, "HTTP 404")
	})
}
