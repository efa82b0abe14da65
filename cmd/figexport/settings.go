package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/figexport/internal/client"
	"github.com/verte-zerg/figexport/internal/config"
	"github.com/verte-zerg/figexport/internal/logging"
	"github.com/verte-zerg/figexport/internal/model"
	"github.com/verte-zerg/figexport/internal/query"
)

const (
	defaultPageSize = 100
	defaultPerPage  = 20
	defaultLogLevel = "info"
	tokenEnv        = "FIGEXPORT_TOKEN"
)

// settings is the merged view of flags, config file and environment.
type settings struct {
	API      model.APIConfig
	Export   model.ExportConfig
	PerPage  int
	Page     int
	HistoryN int
	Log      logging.Config
}

var (
	configPath string

	apiBaseURL      string
	apiLearnersPath string
	apiCoursesPath  string
	apiToken        string
	apiTimeout      time.Duration
	apiRPS          float64
	apiCourseLimit  int

	logLevel  string
	logFormat string
	logFile   string

	querySearch   string
	queryCourses  []string
	queryOrdering string

	exportPageSize  int
	exportMaxPages  int
	exportOutput    string
	exportOutputDir string
	exportTitle     string
	exportNoBOM     bool

	listPage    int
	listPerPage int

	historyLimit int
)

func addPersistentFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	f.StringVar(&apiBaseURL, "base-url", "", "LMS base URL, e.g. https://lms.example.com")
	f.StringVar(&apiLearnersPath, "learners-path", client.DefaultLearnersPath, "learner metrics endpoint path")
	f.StringVar(&apiCoursesPath, "courses-path", client.DefaultCoursesPath, "course index endpoint path")
	f.StringVar(&apiToken, "token", "", "API token (default $"+tokenEnv+")")
	f.DurationVar(&apiTimeout, "timeout", client.DefaultTimeout, "per-request timeout")
	f.Float64Var(&apiRPS, "rps", 0, "max requests per second (0 = unlimited)")
	f.IntVar(&apiCourseLimit, "course-limit", client.DefaultCourseLimit, "course index page size")
	f.StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	f.StringVar(&logFile, "log-file", "", "write logs to this file")
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&querySearch, "search", "", "search learners by name, username or email")
	cmd.Flags().StringSliceVar(&queryCourses, "course", nil, "course ID filter (repeatable)")
	cmd.Flags().StringVar(&queryOrdering, "ordering", query.DefaultOrdering, "sort field, prefix with - for descending")
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&exportPageSize, "page-size", defaultPageSize, "learners per request while exporting")
	cmd.Flags().IntVar(&exportMaxPages, "max-pages", 0, "abort after this many pages (0 = unlimited)")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, - for stdout (default: timestamped file in --output-dir)")
	cmd.Flags().StringVar(&exportOutputDir, "output-dir", config.DefaultExportDir(), "directory for exported files")
	cmd.Flags().StringVar(&exportTitle, "title", "", "title line written before the header")
	cmd.Flags().BoolVar(&exportNoBOM, "no-bom", false, "omit the UTF-8 byte order mark")
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&listPerPage, "per-page", defaultPerPage, "learners per page")
}

// loadSettings merges the config file into flags the user did not set.
func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "base-url", &apiBaseURL, fileCfg.API.BaseURL)
	applyStringConfig(cmd, "learners-path", &apiLearnersPath, fileCfg.API.LearnersPath)
	applyStringConfig(cmd, "courses-path", &apiCoursesPath, fileCfg.API.CoursesPath)
	applyStringConfig(cmd, "token", &apiToken, fileCfg.API.Token)
	applyDurationConfig(cmd, "timeout", &apiTimeout, fileCfg.API.Timeout)
	applyFloatConfig(cmd, "rps", &apiRPS, fileCfg.API.RequestsPerSecond)
	applyIntConfig(cmd, "course-limit", &apiCourseLimit, fileCfg.API.CourseLimit)

	applyStringConfig(cmd, "ordering", &queryOrdering, fileCfg.Export.Ordering)
	applyIntConfig(cmd, "page-size", &exportPageSize, fileCfg.Export.PageSize)
	applyIntConfig(cmd, "max-pages", &exportMaxPages, fileCfg.Export.MaxPages)
	applyStringConfig(cmd, "output-dir", &exportOutputDir, fileCfg.Export.OutputDir)
	applyStringConfig(cmd, "title", &exportTitle, fileCfg.Export.Title)
	if fileCfg.Export.BOM != nil {
		noBOM := !*fileCfg.Export.BOM
		applyBoolConfig(cmd, "no-bom", &exportNoBOM, &noBOM)
	}
	applyIntConfig(cmd, "per-page", &listPerPage, fileCfg.List.PerPage)

	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Log.Format)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)

	token := apiToken
	if token == "" {
		token = strings.TrimSpace(os.Getenv(tokenEnv))
	}

	s := settings{
		API: model.APIConfig{
			BaseURL:           strings.TrimSpace(apiBaseURL),
			LearnersPath:      apiLearnersPath,
			CoursesPath:       apiCoursesPath,
			Token:             token,
			Timeout:           apiTimeout,
			RequestsPerSecond: apiRPS,
			CourseLimit:       apiCourseLimit,
		},
		Export: model.ExportConfig{
			Query:     buildQuery(querySearch, queryCourses, queryOrdering),
			PageSize:  exportPageSize,
			OutputDir: exportOutputDir,
			Output:    exportOutput,
			Title:     exportTitle,
			BOM:       !exportNoBOM,
			MaxPages:  exportMaxPages,
		},
		PerPage:  listPerPage,
		Page:     listPage,
		HistoryN: historyLimit,
		Log: logging.Config{
			Level:  logLevel,
			Format: logFormat,
			File:   logFile,
		},
	}
	return s, nil
}

func buildQuery(search string, courses []string, ordering string) model.Query {
	q := model.Query{Search: strings.TrimSpace(search), Ordering: strings.TrimSpace(ordering)}
	seen := map[string]struct{}{}
	for _, c := range courses {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		q.CourseIDs = append(q.CourseIDs, model.ID(c))
	}
	return q
}

func validateAPI(cfg model.APIConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("--base-url is required (or set api.base-url in %s)", configPath)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("--base-url must be an absolute URL with scheme and host")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("--rps must be >= 0")
	}
	if cfg.CourseLimit <= 0 {
		return fmt.Errorf("--course-limit must be > 0")
	}
	return nil
}

func validateExport(cfg model.ExportConfig) error {
	if cfg.PageSize <= 0 {
		return fmt.Errorf("--page-size must be > 0")
	}
	if cfg.MaxPages < 0 {
		return fmt.Errorf("--max-pages must be >= 0")
	}
	if cfg.Output == "" && cfg.OutputDir == "" {
		return fmt.Errorf("--output-dir must not be empty")
	}
	return nil
}

func validateList(perPage, page int) error {
	if perPage <= 0 {
		return fmt.Errorf("--per-page must be > 0")
	}
	if page < 1 {
		return fmt.Errorf("--page must be >= 1")
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# figexport configuration
# Uncomment a value to enable it. CLI flags override config values.

[api]
# base-url = "https://lms.example.com"
# learners-path = %q
# courses-path = %q
# token = ""                 # Or set $%s
# timeout = %q
# requests-per-second = 0    # 0 disables client-side rate limiting
# course-limit = %d

[export]
# page-size = %d
# ordering = %q
# output-dir = %q
# title = ""                 # Title line before the CSV header
# bom = true                 # Prefix the CSV with a UTF-8 BOM
# max-pages = 0              # 0 = unlimited

[list]
# per-page = %d

[log]
# level = %q
# format = "console"         # console or json
# file = ""                  # Defaults to %s while a TUI is shown
`,
		client.DefaultLearnersPath,
		client.DefaultCoursesPath,
		tokenEnv,
		client.DefaultTimeout.String(),
		client.DefaultCourseLimit,
		defaultPageSize,
		query.DefaultOrdering,
		config.DefaultExportDir(),
		defaultPerPage,
		defaultLogLevel,
		config.DefaultLogPath(),
	)
}
