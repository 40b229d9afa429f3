package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/denismitr/edusiap"
	"github.com/denismitr/edusiap/options"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type schemaStatus struct {
	Path        string         `json:"path"`
	Version     int            `json:"version"`
	Collections map[string]int `json:"collections"`
}

func newMigrateCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing collections and indexes and seed default records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withDB(func(db *edusiap.DB, lg *zap.Logger) error {
				status := schemaStatus{Path: db.Path(), Collections: map[string]int{}}

				err := db.View(cmd.Context(), func(tx *edusiap.Tx) error {
					status.Version = tx.Version()
					for _, name := range tx.Collections() {
						n, err := tx.Count(name)
						if err != nil {
							return err
						}
						status.Collections[name] = n
					}
					return nil
				})
				if err != nil {
					return err
				}

				if deps.globals.asJSON {
					return printJSON(deps.out, status)
				}

				_, err = fmt.Fprintf(deps.out, "%s is at schema version %d with %d collections\n",
					status.Path, status.Version, len(status.Collections))
				return err
			})
		},
	}
}

func newListCommand(deps commandDeps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "Print the records of a collection in key order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("list requires exactly one collection name")
			}

			return deps.withDB(func(db *edusiap.DB, lg *zap.Logger) error {
				recs, err := db.Store().Find(cmd.Context(), args[0], optionsWithLimit(limit))
				if err != nil {
					return err
				}

				if deps.globals.asJSON {
					return printJSON(deps.out, recs)
				}

				desc, _ := db.Registry().Lookup(args[0])
				for _, rec := range recs {
					k, err := rec.Key(desc.KeyPath)
					if err != nil {
						return err
					}

					b, err := encodeLine(rec)
					if err != nil {
						return err
					}

					if _, err := fmt.Fprintf(deps.out, "%s\t%s\n", k.String(), b); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many records")
	return cmd
}

func isClosed(err error) bool {
	return errors.Is(err, edusiap.ErrDatabaseClosed)
}

func optionsWithLimit(limit int) *options.FindOptions {
	return options.Find().SetLimit(limit)
}

func encodeLine(rec edusiap.M) ([]byte, error) {
	return json.Marshal(rec)
}
