package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verte-zerg/figexport/internal/csvexport"
	"github.com/verte-zerg/figexport/internal/model"
)

func newTestExportCmd(t *testing.T, configBody string, args ...string) *cobra.Command {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(tokenEnv, "")

	cmd := newExportCmd()
	addPersistentFlags(cmd)
	path := filepath.Join(dir, "config.toml")
	if configBody != "" {
		require.NoError(t, os.WriteFile(path, []byte(configBody), 0o644))
	}
	require.NoError(t, cmd.ParseFlags(append([]string{"--config", path}, args...)))
	return cmd
}

func TestLoadSettingsDefaults(t *testing.T) {
	cmd := newTestExportCmd(t, "")
	s, err := loadSettings(cmd)
	require.NoError(t, err)
	require.Equal(t, defaultPageSize, s.Export.PageSize)
	require.Equal(t, "profile__name", s.Export.Query.Ordering)
	require.True(t, s.Export.BOM)
	require.Equal(t, 30*time.Second, s.API.Timeout)
	require.Equal(t, filepath.Join(os.Getenv("XDG_DATA_HOME"), "figexport", "exports"), s.Export.OutputDir)
}

func TestLoadSettingsConfigAndFlagPrecedence(t *testing.T) {
	cmd := newTestExportCmd(t, `
[api]
base-url = "https://lms.example.com"
timeout = "5s"

[export]
page-size = 50
bom = false
ordering = "email"
`, "--page-size", "7", "--course", "C1,C2", "--course", "C1")

	s, err := loadSettings(cmd)
	require.NoError(t, err)
	require.Equal(t, "https://lms.example.com", s.API.BaseURL)
	require.Equal(t, 5*time.Second, s.API.Timeout)
	require.Equal(t, 7, s.Export.PageSize)
	require.False(t, s.Export.BOM)
	require.Equal(t, "email", s.Export.Query.Ordering)
	require.Equal(t, []model.ID{"C1", "C2"}, s.Export.Query.CourseIDs)
}

func TestLoadSettingsTokenFromEnv(t *testing.T) {
	cmd := newTestExportCmd(t, "")
	t.Setenv(tokenEnv, "from-env")

	s, err := loadSettings(cmd)
	require.NoError(t, err)
	require.Equal(t, "from-env", s.API.Token)

	require.NoError(t, cmd.Flags().Set("token", "from-flag"))
	s, err = loadSettings(cmd)
	require.NoError(t, err)
	require.Equal(t, "from-flag", s.API.Token)
}

func TestValidateAPI(t *testing.T) {
	good := model.APIConfig{BaseURL: "https://lms.example.com", Timeout: time.Second, CourseLimit: 10}
	require.NoError(t, validateAPI(good))

	cases := map[string]func(*model.APIConfig){
		"missing base":  func(c *model.APIConfig) { c.BaseURL = "" },
		"relative base": func(c *model.APIConfig) { c.BaseURL = "lms.example.com" },
		"zero timeout":  func(c *model.APIConfig) { c.Timeout = 0 },
		"negative rps":  func(c *model.APIConfig) { c.RequestsPerSecond = -1 },
		"zero limit":    func(c *model.APIConfig) { c.CourseLimit = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := good
			mutate(&cfg)
			require.Error(t, validateAPI(cfg))
		})
	}
}

func TestValidateExportAndList(t *testing.T) {
	require.NoError(t, validateExport(model.ExportConfig{PageSize: 10, OutputDir: "out"}))
	require.NoError(t, validateExport(model.ExportConfig{PageSize: 10, Output: "-"}))
	require.Error(t, validateExport(model.ExportConfig{PageSize: 0, OutputDir: "out"}))
	require.Error(t, validateExport(model.ExportConfig{PageSize: 10, MaxPages: -1, OutputDir: "out"}))
	require.Error(t, validateExport(model.ExportConfig{PageSize: 10}))

	require.NoError(t, validateList(20, 1))
	require.Error(t, validateList(0, 1))
	require.Error(t, validateList(20, 0))
}

func TestBuildQueryTrimsAndDeduplicates(t *testing.T) {
	q := buildQuery("  ann ", []string{"C1", " ", "C2", "C1"}, "-email")
	require.Equal(t, model.Query{Search: "ann", CourseIDs: []model.ID{"C1", "C2"}, Ordering: "-email"}, q)
}

func TestResolveSink(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	sink, name, err := resolveSink(cmd, model.ExportConfig{Output: "-"})
	require.NoError(t, err)
	require.Empty(t, name)
	require.IsType(t, csvexport.WriterSink{}, sink)

	sink, name, err = resolveSink(cmd, model.ExportConfig{OutputDir: "exports"})
	require.NoError(t, err)
	require.Empty(t, name)
	require.Equal(t, csvexport.FileSink{Dir: "exports"}, sink)

	_, name, err = resolveSink(cmd, model.ExportConfig{Output: "lpo.csv", OutputDir: "exports"})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(name))
	require.Equal(t, "lpo.csv", filepath.Base(name))
}

func TestLogProgressLogsEachTenthOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	progress := logProgress(zap.New(core))
	for _, v := range []float64{0.01, 0.05, 0.12, 0.15, 0.5, 0.99, 1} {
		progress(v)
	}
	var got []string
	for _, entry := range logs.All() {
		got = append(got, entry.ContextMap()["progress"].(string))
	}
	require.Equal(t, []string{"1%", "12%", "50%", "99%", "100%"}, got)
}

func TestHistoryTable(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	runs := []model.ExportRun{
		{
			StartedAt: start, EndedAt: start.Add(1500 * time.Millisecond),
			Query:  model.Query{Search: "ann", CourseIDs: []model.ID{"C1", "C2"}},
			Status: model.RunSucceeded, Learners: 12, Pages: 2, Location: "/tmp/a.csv",
		},
		{
			StartedAt: start, EndedAt: start,
			Status: model.RunFailed, Error: "status 500",
		},
	}
	headers, rows := historyTable(runs)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(headers))
	require.Equal(t, []string{"succeeded", "12", "2", "1.5s", "ann", "C1,C2", "/tmp/a.csv"}, rows[0][1:])
	require.Equal(t, "status 500", rows[1][7])
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	tmpl := defaultConfigTemplate()
	require.True(t, strings.HasPrefix(tmpl, "# figexport configuration"))
	for _, section := range []string{"[api]", "[export]", "[list]", "[log]"} {
		require.Contains(t, tmpl, section)
	}

	cmd := newTestExportCmd(t, tmpl)
	_, err := loadSettings(cmd)
	require.NoError(t, err)
}
