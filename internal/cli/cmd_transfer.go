package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/denismitr/edusiap"
	"github.com/denismitr/edusiap/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type transferResult struct {
	Path        string         `json:"path"`
	Collections map[string]int `json:"collections"`
}

func newTransferResult(path string, snap edusiap.Snapshot, names []string) transferResult {
	r := transferResult{Path: path, Collections: make(map[string]int, len(names))}
	for _, n := range names {
		r.Collections[n] = len(snap[n])
	}
	return r
}

func (d commandDeps) printTransfer(verb string, r transferResult) error {
	if d.globals.asJSON {
		return printJSON(d.out, r)
	}

	total := 0
	for _, n := range r.Collections {
		total += n
	}

	_, err := fmt.Fprintf(d.out, "%s %d records in %d collections (%s)\n", verb, total, len(r.Collections), r.Path)
	return err
}

func newExportCommand(deps commandDeps) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collection to a JSON backup file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputPath) == "" {
				outputPath = edusiap.BackupFileName(time.Now())
			}

			return deps.withDB(func(db *edusiap.DB, lg *zap.Logger) error {
				snap, err := db.Transfer().ExportAll(cmd.Context())
				if err != nil {
					return err
				}

				f, fClose, err := storage.CreateFile(outputPath, storage.DefaultFilePerm)
				if err != nil {
					return err
				}

				if err := edusiap.WriteSnapshot(f, snap); err != nil {
					_ = fClose()
					return err
				}

				if err := fClose(); err != nil {
					return err
				}

				lg.Info("database exported", zap.String("output", outputPath))
				return deps.printTransfer("exported", newTransferResult(outputPath, snap, snap.Names()))
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default edusiap_backup_<date>.json)")
	return cmd
}

func readSnapshotFile(path string) (edusiap.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return edusiap.ReadSnapshot(f)
}

func newRestoreCommand(deps commandDeps) *cobra.Command {
	var (
		fromPath string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the whole database with a JSON backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(fromPath) == "" {
				return usageErrorf("restore requires --from")
			}
			if !yes {
				return usageErrorf("restore replaces every record including accounts; pass --yes to confirm")
			}

			snap, err := readSnapshotFile(fromPath)
			if err != nil {
				return err
			}

			return deps.withDB(func(db *edusiap.DB, lg *zap.Logger) error {
				if err := db.Transfer().RestoreAll(cmd.Context(), snap); err != nil {
					return err
				}

				return deps.printTransfer("restored", newTransferResult(fromPath, snap, snap.Names()))
			})
		},
	}

	cmd.Flags().StringVar(&fromPath, "from", "", "Backup file to restore")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm that existing data is replaced")
	return cmd
}

func newImportCommand(deps commandDeps) *cobra.Command {
	var (
		fromPath string
		excluded []string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace selected collections with the ones found in a JSON backup",
		Long: "Replace every collection present in the backup, except the excluded ones. " +
			"The users collection is never imported.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(fromPath) == "" {
				return usageErrorf("import requires --from")
			}
			if !yes {
				return usageErrorf("import replaces the collections found in %s; pass --yes to confirm", fromPath)
			}

			snap, err := readSnapshotFile(fromPath)
			if err != nil {
				return err
			}

			return deps.withDB(func(db *edusiap.DB, lg *zap.Logger) error {
				affected, err := db.Transfer().ImportPartial(cmd.Context(), snap, excluded...)
				if err != nil {
					return err
				}

				return deps.printTransfer("imported", newTransferResult(fromPath, snap, affected))
			})
		},
	}

	cmd.Flags().StringVar(&fromPath, "from", "", "Backup file to import from")
	cmd.Flags().StringSliceVar(&excluded, "exclude", nil, "Collections to leave untouched")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm that the imported collections are replaced")
	return cmd
}

func newWipeCommand(deps commandDeps) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete the database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usageErrorf("wipe deletes every record; pass --yes to confirm")
			}

			return deps.withDB(func(db *edusiap.DB, lg *zap.Logger) error {
				path := db.Path()
				if err := db.Transfer().WipeDatabase(cmd.Context()); err != nil {
					return err
				}

				if deps.globals.asJSON {
					return printJSON(deps.out, map[string]string{"wiped": path})
				}

				_, err := fmt.Fprintf(deps.out, "wiped %s\n", path)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm that every record is deleted")
	return cmd
}
