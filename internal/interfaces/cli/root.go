// Package cli implements the scentiq command line tool. Commands run the
// intelligence engine in-process against a JSON collection file or the
// configured PostgreSQL store.
package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/bootstrap"
	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath     string
	LogLevel       string
	OutputFormat   string
	Verbose        bool
	Timeout        time.Duration
	CollectionFile string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config         *config.Config
	Logger         logging.Logger
	OutputFormat   string
	Verbose        bool
	Timeout        time.Duration
	CollectionFile string

	infra  *bootstrap.Infrastructure
	engine intelligence.Engine
}

// NewRootCommand creates the root command with its global flags and every
// subcommand.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scentiq",
		Short: "ScentIQ collection intelligence CLI",
		Long: "scentiq analyzes a user's fragrance collection: taste patterns, coverage gaps,\n" +
			"optimization plans, personality profile, insights and notifications.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cc, err := GetCLIContext(cmd); err == nil {
				cc.close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "json", "output format (json, table, text)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")
	pf.StringVarP(&opts.CollectionFile, "file", "f", "", "read collections from a JSON file instead of PostgreSQL")

	cmd.AddCommand(
		NewAnalyzeCmd(),
		NewRecommendCmd(),
		NewOperationCmd("patterns", "Analyze taste patterns (views: brands, notes, clusters, usage)"),
		NewOperationCmd("gaps", "Identify coverage gaps (views: seasonal, occasions, intensity, diversity)"),
		NewOperationCmd("optimization", "Suggest optimizations (views: balance, budget, usage)"),
		NewOperationCmd("personality", "Profile the collector (views: lifestyle, experience, evolution)"),
		NewOperationCmd("insights", "Derive insights (views: predictive, health, moods)"),
		NewPlanCmd(),
		NewNotifyCmd(),
		NewHealthCmd(),
		NewPingCmd(),
		NewMigrateCmd(),
		NewImportCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// persistentPreRun loads config and logger, then stores the CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "json", "table", "text":
	default:
		return errors.NewValidation("unsupported output format %q; expected json|table|text", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cc := &CLIContext{
		Config:         cfg,
		Logger:         logger,
		OutputFormat:   strings.ToLower(opts.OutputFormat),
		Verbose:        opts.Verbose,
		Timeout:        opts.Timeout,
		CollectionFile: opts.CollectionFile,
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	cmd.SetContext(context.WithValue(parent, cliContextKey{}, cc))
	return nil
}

// initConfig loads configuration with priority: env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	return config.LoadOrEnv(opts.ConfigPath)
}

// initLogger creates a console logger on stderr so stdout carries only results.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := logging.LevelWarn
	switch strings.ToLower(opts.LogLevel) {
	case "debug":
		level = logging.LevelDebug
	case "info":
		level = logging.LevelInfo
	case "error":
		level = logging.LevelError
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.NewValidation("command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.NewValidation("CLIContext not found in command context")
	}
	return cc, nil
}

// operationContext bounds one command by the global timeout.
func (cc *CLIContext) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if cc.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, cc.Timeout)
}

// Infrastructure connects the configured stores once per invocation.
func (cc *CLIContext) Infrastructure(ctx context.Context) (*bootstrap.Infrastructure, error) {
	if cc.infra != nil {
		return cc.infra, nil
	}
	infra, err := bootstrap.Connect(ctx, cc.Config, cc.Logger, nil)
	if err != nil {
		return nil, err
	}
	cc.infra = infra
	return infra, nil
}

// Engine builds the engine over the collection file when one is given,
// otherwise over the configured stores.
func (cc *CLIContext) Engine(ctx context.Context) (intelligence.Engine, error) {
	if cc.engine != nil {
		return cc.engine, nil
	}
	var (
		engine intelligence.Engine
		err    error
	)
	if cc.CollectionFile != "" {
		repo, lerr := LoadCollectionFile(cc.CollectionFile)
		if lerr != nil {
			return nil, lerr
		}
		engine, err = intelligence.NewEngine(intelligence.EngineConfig{
			Repository: repo,
			Logger:     cc.Logger,
			Thresholds: bootstrap.ThresholdsFrom(cc.Config.Analysis),
			Catalog:    repo,
		})
	} else {
		infra, cerr := cc.Infrastructure(ctx)
		if cerr != nil {
			return nil, cerr
		}
		engine, err = infra.NewEngine()
	}
	if err != nil {
		return nil, err
	}
	cc.engine = engine
	return engine, nil
}

func (cc *CLIContext) close() {
	if cc.infra != nil {
		cc.infra.Close()
		cc.infra = nil
	}
	_ = cc.Logger.Sync()
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

// tableProvider is implemented by results with a tabular rendering.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// reportView wraps an engine report to give it a table. JSON and text output
// encode the wrapped report itself.
type reportView interface {
	tableProvider
	report() interface{}
}

func unwrapView(data interface{}) interface{} {
	if v, ok := data.(reportView); ok {
		return v.report()
	}
	return data
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, unwrapView(data))
	}
	switch cc.OutputFormat {
	case "table":
		return printTable(cmd, data)
	case "text":
		return printText(cmd, unwrapView(data))
	default:
		return printJSON(cmd, unwrapView(data))
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printText renders "key: value" lines for the top-level fields.
func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
		return nil
	}
	fields, err := flatten(data)
	if err != nil {
		return err
	}
	for _, kv := range fields {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kv[0], kv[1])
	}
	return nil
}

// printTable uses the result's own table when it has one and otherwise
// tabulates its top-level fields.
func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	rows, err := flatten(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), FormatTable([]string{"FIELD", "VALUE"}, rows))
	return nil
}

// flatten summarises a value's top-level JSON fields in key order. Nested
// objects and lists are reduced to their size.
func flatten(data interface{}) ([][]string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return [][]string{{"value", string(raw)}}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, summarize(m[k])})
	}
	return rows, nil
}

func summarize(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case []interface{}:
		return fmt.Sprintf("[%d items]", len(x))
	case map[string]interface{}:
		return fmt.Sprintf("{%d fields}", len(x))
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", x), "0"), ".")
	default:
		return fmt.Sprint(x)
	}
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padRight(h, colWidths[i]))
	}
	sb.WriteString("\n")

	for i, w := range colWidths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")

	for _, row := range rows {
		for i := 0; i < len(headers); i++ {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			sb.WriteString(padRight(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// exitOnFailure turns a failed report into a command error after it has been
// printed, so scripts see a non-zero exit status.
func exitOnFailure(rep intelligence.Reporter) error {
	if err := rep.Status().Err(); err != nil {
		return err
	}
	return nil
}
