package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/odyssey-erp/odyssey-rbac/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`odyssey_[a-z_]+`)

func loadRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "rbac.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "rbac", file.Groups[0].Name)
	return file.Groups[0].Rules
}

func TestRBACAlertRules(t *testing.T) {
	expected := map[string]string{
		"AuthzDenialSpike":     "warning",
		"UnauthenticatedSurge": "warning",
		"HighErrorRate":        "critical",
		"SessionPruneFailing":  "warning",
		"SessionPruneStale":    "warning",
	}
	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-rbac.md"))
	require.NoError(t, err)

	rules := loadRules(t)
	require.Len(t, rules, len(expected))
	for _, rule := range rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.Expr, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)

		path, anchor, found := strings.Cut(rule.Annotations["runbook"], "#")
		require.True(t, found, rule.Alert)
		assert.Equal(t, "docs/runbook-rbac.md", path, rule.Alert)
		heading := "## " + strings.ReplaceAll(anchor, "-", " ")
		assert.Contains(t, strings.ToLower(string(runbook)), heading, rule.Alert)
	}
}

func TestAlertExpressionsReferenceExportedMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveDecision("allow")
	metrics.Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	task := asynq.NewTask("sessions:prune", nil)
	ok := asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil })
	failing := asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return errors.New("boom") })
	require.NoError(t, jobs.Instrument(ok).ProcessTask(t.Context(), task))
	require.Error(t, jobs.Instrument(failing).ProcessTask(t.Context(), task))
	jobs.AddPrunedSessions(1)

	families, err := metrics.registry.Gather()
	require.NoError(t, err)
	exported := make(map[string]bool, len(families))
	for _, mf := range families {
		exported[mf.GetName()] = true
	}

	for _, rule := range loadRules(t) {
		for _, name := range metricName.FindAllString(rule.Expr, -1) {
			assert.True(t, exported[name], "%s references unknown metric %s", rule.Alert, name)
		}
	}
}
