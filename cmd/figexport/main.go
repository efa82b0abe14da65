// Package main provides the CLI entrypoint for figexport.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/verte-zerg/figexport/internal/aggregate"
	"github.com/verte-zerg/figexport/internal/browseui"
	"github.com/verte-zerg/figexport/internal/client"
	"github.com/verte-zerg/figexport/internal/config"
	"github.com/verte-zerg/figexport/internal/csvexport"
	"github.com/verte-zerg/figexport/internal/export"
	"github.com/verte-zerg/figexport/internal/listing"
	"github.com/verte-zerg/figexport/internal/logging"
	"github.com/verte-zerg/figexport/internal/model"
	"github.com/verte-zerg/figexport/internal/progressui"
	"github.com/verte-zerg/figexport/internal/reshape"
	"github.com/verte-zerg/figexport/internal/store"
	"github.com/verte-zerg/figexport/internal/table"
)

const defaultHistoryLimit = 20

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "figexport",
		Short:         "Browse and export Figures learner progress",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	addPersistentFlags(rootCmd)

	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newLearnersCmd())
	rootCmd.AddCommand(newCoursesCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every matching learner to CSV",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	addQueryFlags(cmd)
	addExportFlags(cmd)
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	interactive := isInteractive() && exportOutput != "-"
	s, logger, err := setup(cmd, interactive)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	if err := validateExport(s.Export); err != nil {
		return err
	}
	return runExport(cmd.Context(), cmd, s, s.Export.Query, logger, interactive)
}

func runExport(ctx context.Context, cmd *cobra.Command, s settings, q model.Query, logger *zap.Logger, interactive bool) error {
	c, err := client.New(s.API, client.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []export.Option{export.WithLogger(logger), export.WithBaseURL(s.API.BaseURL)}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logger.Warn("export history disabled", zap.Error(err))
	} else {
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logger.Warn("failed to close db", zap.Error(cerr))
			}
		}()
		opts = append(opts, export.WithRecorder(st))
	}

	sink, filename, err := resolveSink(cmd, s.Export)
	if err != nil {
		return err
	}
	svc := export.NewService(c, sink, opts...)
	req := export.Request{
		Query:       q,
		PageSize:    s.Export.PageSize,
		MaxPages:    s.Export.MaxPages,
		CourseLimit: s.API.CourseLimit,
		Filename:    filename,
		CSV:         csvexport.Options{NoBOM: !s.Export.BOM, Title: s.Export.Title},
	}

	if interactive {
		_, err := progressui.Run(ctx, os.Stderr, func(ctx context.Context, report func(float64)) (progressui.DoneMsg, error) {
			res, err := svc.Run(ctx, req, report)
			return progressui.DoneMsg{Location: res.Location, Learners: res.Learners}, err
		})
		return err
	}

	res, err := svc.Run(ctx, req, logProgress(logger))
	if err != nil {
		return err
	}
	logErrf("Exported %d learners to %s\n", res.Learners, res.Location)
	return nil
}

// resolveSink picks where the document goes. A relative --output is taken
// from the working directory, not --output-dir.
func resolveSink(cmd *cobra.Command, cfg model.ExportConfig) (csvexport.Sink, string, error) {
	switch cfg.Output {
	case "-":
		return csvexport.WriterSink{W: cmd.OutOrStdout()}, "", nil
	case "":
		return csvexport.FileSink{Dir: cfg.OutputDir}, "", nil
	default:
		path, err := filepath.Abs(cfg.Output)
		if err != nil {
			return nil, "", fmt.Errorf("invalid --output: %w", err)
		}
		return csvexport.FileSink{}, path, nil
	}
}

// logProgress logs each tenth of progress once.
func logProgress(logger *zap.Logger) aggregate.ProgressFunc {
	last := -1
	return func(v float64) {
		step := int(v * 10)
		if step == last {
			return
		}
		last = step
		logger.Info("export progress", zap.String("progress", strconv.Itoa(int(math.Round(v*100)))+"%"))
	}
}

func newLearnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learners",
		Short: "Show one page of learner progress",
		Args:  cobra.NoArgs,
		RunE:  runLearnersCmd,
	}
	addQueryFlags(cmd)
	addListFlags(cmd)
	cmd.Flags().IntVar(&listPage, "page", 1, "page number (1-based)")
	return cmd
}

func runLearnersCmd(cmd *cobra.Command, _ []string) error {
	s, logger, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	if err := validateList(s.PerPage, s.Page); err != nil {
		return err
	}
	ctx := cmd.Context()
	c, err := client.New(s.API, client.WithLogger(logger))
	if err != nil {
		return err
	}
	courses, err := c.FetchCourses(ctx, s.API.CourseLimit)
	if err != nil {
		return fmt.Errorf("failed to load course index: %w", err)
	}
	lister := listing.New(c, s.Export.Query, s.PerPage)
	if err := lister.Load(ctx, s.Page); err != nil {
		return err
	}

	selected, unknown := reshape.SelectCourses(lister.Query().CourseIDs, courses)
	for _, id := range unknown {
		logger.Warn("selected course not in course index", zap.String("course_id", id.String()))
	}
	columns := reshape.ColumnCourses(selected, courses)
	rows := make([][]string, 0, len(lister.Learners()))
	for _, l := range lister.Learners() {
		rows = append(rows, reshape.ListRow(l, columns))
	}
	out := cmd.OutOrStdout()
	if err := table.Fprint(out, reshape.ListHeaders(columns), rows, nil); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := fmt.Fprintf(out, "page %d/%d (%d learners)\n", lister.CurrentPage(), max(1, lister.Pages()), lister.Count()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the course index",
		Args:  cobra.NoArgs,
		RunE:  runCoursesCmd,
	}
}

func runCoursesCmd(cmd *cobra.Command, _ []string) error {
	s, logger, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	c, err := client.New(s.API, client.WithLogger(logger))
	if err != nil {
		return err
	}
	courses, err := c.FetchCourses(cmd.Context(), s.API.CourseLimit)
	if err != nil {
		return fmt.Errorf("failed to load course index: %w", err)
	}
	if len(courses) == 0 {
		logErrln("No courses found.")
		return nil
	}
	rows := make([][]string, 0, len(courses))
	for _, course := range courses {
		rows = append(rows, []string{course.ID.String(), course.Name, course.Number, course.Org})
	}
	if err := table.Fprint(cmd.OutOrStdout(), []string{"ID", "Name", "Number", "Org"}, rows, nil); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse learner progress interactively",
		Args:  cobra.NoArgs,
		RunE:  runBrowseCmd,
	}
	addQueryFlags(cmd)
	addListFlags(cmd)
	addExportFlags(cmd)
	return cmd
}

func runBrowseCmd(cmd *cobra.Command, _ []string) error {
	if !isInteractive() {
		return fmt.Errorf("browse needs a terminal; use learners or export instead")
	}
	s, logger, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	if err := validateList(s.PerPage, 1); err != nil {
		return err
	}
	if err := validateExport(s.Export); err != nil {
		return err
	}
	ctx := cmd.Context()
	c, err := client.New(s.API, client.WithLogger(logger))
	if err != nil {
		return err
	}
	courses, err := c.FetchCourses(ctx, s.API.CourseLimit)
	if err != nil {
		return fmt.Errorf("failed to load course index: %w", err)
	}

	m := browseui.NewModel(ctx, listing.New(c, s.Export.Query, s.PerPage), courses)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run browse TUI: %w", err)
	}
	if !m.ExportRequested() {
		return nil
	}
	return runExport(ctx, cmd, s, m.Query(), logger, true)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous export runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "number of runs to show (0 = all)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	runs, err := st.ListRuns(cmd.Context(), s.HistoryN)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(runs) == 0 {
		logErrln("No exports recorded yet.")
		return nil
	}
	headers, rows := historyTable(runs)
	if err := table.Fprint(cmd.OutOrStdout(), headers, rows, map[int]bool{2: true, 3: true, 4: true}); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func historyTable(runs []model.ExportRun) ([]string, [][]string) {
	headers := []string{"Started", "Status", "Learners", "Pages", "Took", "Search", "Courses", "Result"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		result := run.Location
		if run.Status == model.RunFailed {
			result = run.Error
		}
		courses := make([]string, len(run.Query.CourseIDs))
		for i, id := range run.Query.CourseIDs {
			courses[i] = id.String()
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(run.Status),
			strconv.Itoa(run.Learners),
			strconv.Itoa(run.Pages),
			run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			run.Query.Search,
			strings.Join(courses, ","),
			table.Truncate(result, 80),
		})
	}
	return headers, rows
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// setup loads settings, validates the API section and builds the logger.
// With tui set, logs go to a file so they do not corrupt the screen.
func setup(cmd *cobra.Command, tui bool) (settings, *zap.Logger, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return settings{}, nil, err
	}
	if err := validateAPI(s.API); err != nil {
		return settings{}, nil, err
	}
	logCfg := s.Log
	if tui && logCfg.File == "" {
		logCfg.File = config.DefaultLogPath()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return settings{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("settings loaded",
		zap.String("config", configPath),
		zap.String("base_url", s.API.BaseURL),
		zap.Bool("token", s.API.Token != ""),
		zap.String("ordering", s.Export.Query.Ordering),
	)
	return s, logger, nil
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		// stderr cannot be synced on some terminals.
		_ = err
	}
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
