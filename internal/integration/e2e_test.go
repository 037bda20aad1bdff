package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/server"
)

const (
	apacheLine = `192.168.1.100 - - [01/Jan/2024:12:00:00 +0000] "GET /index.html HTTP/1.1" 200 2326`
	kvLine     = `2024-01-15 10:30:00 user=alice action="login" status=200`
)

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

type extraction struct {
	Format     string  `json:"format"`
	Sourcetype string  `json:"sourcetype"`
	Fields     []field `json:"fields"`
	Pattern    string  `json:"pattern"`
	Timestamp  struct {
		Prefix       string `json:"prefix"`
		Format       string `json:"format"`
		MaxLookahead string `json:"maxLookahead"`
	} `json:"timestamp"`
}

type session struct {
	ID         string  `json:"id"`
	Format     string  `json:"format"`
	Sourcetype string  `json:"sourcetype"`
	Fields     []field `json:"fields"`
	Pattern    string  `json:"pattern"`
}

// E2ETestSuite drives a fully wired server over real HTTP
type E2ETestSuite struct {
	client  *http.Client
	baseURL string
}

// NewE2ETestSuite starts a server with in-memory sessions and no cache
func NewE2ETestSuite(t *testing.T) *E2ETestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logging.InitGlobalLogger(&logging.LoggerConfig{Level: "error", Output: "stderr", Format: "text"})

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Server.RateLimitRPS = 0

	srv, resources, err := server.NewFromConfig(cfg)
	require.NoError(t, err)
	srv.SetupRoutes()

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		resources.Close()
	})

	return &E2ETestSuite{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: ts.URL,
	}
}

func (s *E2ETestSuite) post(t *testing.T, path string, body interface{}, out interface{}) int {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := s.client.Post(s.baseURL+path, "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

func valuesOf(fields []field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Value
	}
	return out
}

func countSource(fields []field, source string) int {
	n := 0
	for _, f := range fields {
		if f.Source == source {
			n++
		}
	}
	return n
}

// TestFormatDetectionAcrossFormats extracts one sample of every supported grammar
func TestFormatDetectionAcrossFormats(t *testing.T) {
	suite := NewE2ETestSuite(t)

	tests := []struct {
		name       string
		sample     string
		format     string
		sourcetype string
		field      string
		value      string
	}{
		{"JSON object", `{"level":"INFO","userId":"12345"}`, "json", "json_log", "userId", "12345"},
		{"NDJSON", "{\"level\":\"INFO\"}\n{\"level\":\"WARN\"}", "json", "json_log", "level", "INFO"},
		{"CSV with header", "a,b,c\n1,\"x,y\",3", "csv", "csv_log", "b", "x,y"},
		{"Apache common log", apacheLine, "apache_clf", "apache_access", "status", "200"},
		{"Syslog", "Jan 15 10:30:00 web01 app: user=alice action=login", "syslog_standard", "syslog", "host", "web01"},
		{"XML elements", "<event><user>alice</user><ip>10.0.0.1</ip></event>", "xml", "xml_log", "ip", "10.0.0.1"},
		{"Key value", kvLine, "keyvalue", "kv_log", "action", "login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ext extraction
			status := suite.post(t, "/api/v1/extract", map[string]string{"sample": tt.sample}, &ext)
			require.Equal(t, http.StatusOK, status)

			assert.Equal(t, tt.format, ext.Format)
			assert.Equal(t, tt.sourcetype, ext.Sourcetype)
			assert.Equal(t, tt.value, valuesOf(ext.Fields)[tt.field])
			assert.NotEmpty(t, ext.Pattern)
			for _, f := range ext.Fields {
				assert.Equal(t, "auto_detect", f.Source)
			}
		})
	}

	t.Run("Unstructured text", func(t *testing.T) {
		var ext extraction
		status := suite.post(t, "/api/v1/extract", map[string]string{"sample": "just some words"}, &ext)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "none", ext.Format)
		assert.Empty(t, ext.Fields)
		assert.Equal(t, "CURRENT_TIME", ext.Timestamp.Format)
	})
}

// TestSynthesizedPatternRoundTrip applies each synthesized pattern as a custom regex
// and expects it to recover the values the parser extracted
func TestSynthesizedPatternRoundTrip(t *testing.T) {
	suite := NewE2ETestSuite(t)

	tests := []struct {
		name   string
		sample string
		fields []string
	}{
		{"Apache", apacheLine, []string{"clientip", "status", "bytes"}},
		{"Key value", kvLine, []string{"timestamp", "user", "action", "status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ext extraction
			require.Equal(t, http.StatusOK, suite.post(t, "/api/v1/extract", map[string]string{"sample": tt.sample}, &ext))

			var applied struct {
				Fields     []field `json:"fields"`
				MatchCount int     `json:"matchCount"`
			}
			status := suite.post(t, "/api/v1/regex/apply", map[string]string{"sample": tt.sample, "pattern": ext.Pattern}, &applied)
			require.Equal(t, http.StatusOK, status)
			require.Equal(t, 1, applied.MatchCount)

			extracted, recovered := valuesOf(ext.Fields), valuesOf(applied.Fields)
			for _, name := range tt.fields {
				assert.Equal(t, extracted[name], recovered[name], name)
			}
		})
	}
}

// TestOnboardingSessionWorkflow walks one sample through every extraction path
func TestOnboardingSessionWorkflow(t *testing.T) {
	suite := NewE2ETestSuite(t)

	var created session
	require.Equal(t, http.StatusCreated, suite.post(t, "/api/v1/sessions", map[string]string{"sample": kvLine}, &created))
	base := "/api/v1/sessions/" + created.ID

	t.Run("Platform fields first", func(t *testing.T) {
		var s session
		body := map[string]interface{}{"fields": []map[string]string{{"name": "user", "type": "string"}}}
		require.Equal(t, http.StatusOK, suite.post(t, base+"/existing", body, &s))
		assert.Equal(t, 1, countSource(s.Fields, "splunk_existing"))
	})

	t.Run("Auto extraction skips platform fields", func(t *testing.T) {
		var s session
		require.Equal(t, http.StatusOK, suite.post(t, base+"/auto", nil, &s))
		assert.Equal(t, "keyvalue", s.Format)
		assert.Equal(t, 3, countSource(s.Fields, "auto_detect"))
		assert.NotContains(t, s.Pattern, "(?<user>")
	})

	t.Run("Custom regex", func(t *testing.T) {
		var out struct {
			Session session `json:"session"`
		}
		require.Equal(t, http.StatusOK, suite.post(t, base+"/custom-regex", map[string]string{"pattern": `status=(\d+)`}, &out))
		assert.Equal(t, 1, countSource(out.Session.Fields, "custom_regex"))
		assert.Equal(t, `status=(?<clientip>\d+)`, out.Session.Pattern)
	})

	t.Run("AI result", func(t *testing.T) {
		var out struct {
			Session session `json:"session"`
		}
		body := map[string]interface{}{
			"sourcetype":     "auth_audit",
			"combined_regex": `action="(?P<action>\w+)" status=(?P<status>\d+)`,
			"time_format":    "%Y-%m-%d %H:%M:%S",
		}
		require.Equal(t, http.StatusOK, suite.post(t, base+"/ai", body, &out))
		assert.Equal(t, 2, countSource(out.Session.Fields, "ai_detection"))
		assert.Equal(t, "auth_audit", out.Session.Sourcetype)
	})

	t.Run("Every path keeps its own fields", func(t *testing.T) {
		resp, err := suite.client.Get(suite.baseURL + base)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var s session
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
		assert.Equal(t, 1, countSource(s.Fields, "splunk_existing"))
		assert.Equal(t, 3, countSource(s.Fields, "auto_detect"))
		assert.Equal(t, 1, countSource(s.Fields, "custom_regex"))
		assert.Equal(t, 2, countSource(s.Fields, "ai_detection"))
	})
}
