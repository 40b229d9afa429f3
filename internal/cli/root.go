package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/denismitr/edusiap"
	"github.com/denismitr/edusiap/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type globalOptions struct {
	dbPath  string
	envFile string
	asJSON  bool
}

type commandDeps struct {
	out     io.Writer
	globals *globalOptions
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &globalOptions{}
	deps := commandDeps{out: out, globals: globals}

	cmd := &cobra.Command{
		Use:           "edusiap",
		Short:         "Maintain the edusiap school administration database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.PersistentFlags().StringVar(&globals.dbPath, "db", "", "Database file (overrides EDUSIAP_DB_PATH)")
	cmd.PersistentFlags().StringVar(&globals.envFile, "env-file", ".env", "Optional env file read before the environment")
	cmd.PersistentFlags().BoolVar(&globals.asJSON, "json", false, "Print machine readable output")

	cmd.AddCommand(newVersionCommand(deps, build))
	cmd.AddCommand(newMigrateCommand(deps))
	cmd.AddCommand(newListCommand(deps))
	cmd.AddCommand(newExportCommand(deps))
	cmd.AddCommand(newRestoreCommand(deps))
	cmd.AddCommand(newImportCommand(deps))
	cmd.AddCommand(newWipeCommand(deps))
	return cmd
}

// Execute runs the root command and maps failures to exit-code errors.
func Execute(ctx context.Context, cmd *cobra.Command) error {
	if err := cmd.ExecuteContext(ctx); err != nil {
		return mapCommandError(err)
	}
	return nil
}

func newVersionCommand(deps commandDeps, build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.globals.asJSON {
				return printJSON(deps.out, build)
			}

			_, err := fmt.Fprintf(deps.out, "version=%s commit=%s build_time=%s\n", build.Version, build.Commit, build.BuildTime)
			return err
		},
	}
}

func (d commandDeps) loadConfig() (*config.Config, error) {
	var files []string
	if d.globals.envFile != "" {
		files = append(files, d.globals.envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return nil, asExitError(ExitCodeUsage, err)
	}

	if d.globals.dbPath != "" {
		cfg.DBPath = d.globals.dbPath
	}

	return cfg, nil
}

// withDB opens the database for the duration of fn.
func (d commandDeps) withDB(fn func(db *edusiap.DB, lg *zap.Logger) error) error {
	cfg, err := d.loadConfig()
	if err != nil {
		return err
	}

	lg, err := cfg.Logger()
	if err != nil {
		return asExitError(ExitCodeUsage, err)
	}
	defer func() { _ = lg.Sync() }()

	dbCfg := &edusiap.Config{
		PersistenceStrategy:      edusiap.PersistenceStrategy(cfg.Persistence),
		AsyncPersistenceInterval: cfg.FlushInterval,
		AutoCompactionMinSize:    cfg.CompactAt,
		PasswordHashCost:         cfg.HashCost,
		Logger:                   lg,
	}

	db, closer, err := edusiap.Open(cfg.DBPath, dbCfg)
	if err != nil {
		return err
	}

	fnErr := fn(db, lg)

	// a wiped database is already closed
	if err := closer(); err != nil && fnErr == nil && !isClosed(err) {
		return err
	}

	return fnErr
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
