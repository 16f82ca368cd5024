package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docrepo/pkg/repository/document"
)

// withRuntime loads configuration, opens the store and runs fn with a
// request-scoped context. Metrics are written to stderr afterwards when asked.
func withRuntime(cmd *cobra.Command, flags *globalFlags, printMetrics bool, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, log, err := LoadConfigAndLogger(flags.configPath, flags.envPrefix)
	if err != nil {
		return err
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if err := fn(ctx, rt); err != nil {
		return err
	}
	if printMetrics {
		if rt.registry == nil {
			rt.log.Warn("metrics are disabled; set observability.metrics_enabled to collect them")
			return nil
		}
		return rt.writeMetrics(cmd.ErrOrStderr())
	}
	return nil
}

type queryFlags struct {
	filter       string
	skip         int64
	limit        int64
	order        []string
	searchFields []string
	where        string
	text         string
	pipeline     string
	printMetrics bool
}

func newQueryCommand(flags *globalFlags) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Page through a collection with search, sort, skip and limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, flags, qf.printMetrics, func(ctx context.Context, rt *runtime) error {
				coll, err := rt.collection(args[0], qf.searchFields)
				if err != nil {
					return err
				}
				source, err := qf.source(coll, cmd.Flags().Changed("text"))
				if err != nil {
					return err
				}
				page, err := coll.Paginate(ctx, queryParams(qf.filter, qf.skip, qf.limit, qf.order), source)
				if err != nil {
					return err
				}
				out, err := newPageOutput(page)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, out)
			})
		},
	}
	cmd.Flags().StringVar(&qf.filter, "filter", "", "free text matched against the searchable fields")
	cmd.Flags().Int64Var(&qf.skip, "skip", 0, "records to skip")
	cmd.Flags().Int64Var(&qf.limit, "limit", 0, "maximum records to return")
	cmd.Flags().StringArrayVar(&qf.order, "order", nil, "sort key, '-' prefix for descending (repeatable)")
	cmd.Flags().StringSliceVar(&qf.searchFields, "search-fields", nil, "searchable fields, overriding query.searchable_fields")
	cmd.Flags().StringVar(&qf.where, "where", "", "base filter as an Extended JSON document")
	cmd.Flags().StringVar(&qf.text, "text", "", "search text used as the base query")
	cmd.Flags().StringVar(&qf.pipeline, "pipeline", "", "aggregation pipeline as an Extended JSON array")
	cmd.Flags().BoolVar(&qf.printMetrics, "print-metrics", false, "write store metrics to stderr when done")
	cmd.MarkFlagsMutuallyExclusive("where", "text", "pipeline")
	return cmd
}

// source picks the query source from the flags: a pipeline, search text, or a plain filter.
func (qf *queryFlags) source(coll *document.Collection[bson.M], textSet bool) (document.QuerySource, error) {
	switch {
	case qf.pipeline != "":
		stages, err := parsePipeline(qf.pipeline)
		if err != nil {
			return nil, err
		}
		return document.Pipeline(func() document.PipelineCursor {
			return coll.Aggregate(stages)
		}), nil
	case textSet:
		return document.Text(qf.text), nil
	default:
		filter, err := parseFilter(qf.where)
		if err != nil {
			return nil, err
		}
		return document.Plain(filter), nil
	}
}

func newFindOneCommand(flags *globalFlags) *cobra.Command {
	var (
		where        string
		printMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "find-one <collection>",
		Short: "Print the first document matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(where)
			if err != nil {
				return err
			}
			return withRuntime(cmd, flags, printMetrics, func(ctx context.Context, rt *runtime) error {
				coll, err := rt.collection(args[0], nil)
				if err != nil {
					return err
				}
				doc, err := coll.FindOne(ctx, filter, nil)
				if err != nil {
					return err
				}
				out, err := extJSON(doc)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, out)
			})
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "filter as an Extended JSON document; a string _id is read as an ObjectID")
	cmd.Flags().BoolVar(&printMetrics, "print-metrics", false, "write store metrics to stderr when done")
	return cmd
}

func newCountCommand(flags *globalFlags) *cobra.Command {
	var (
		where        string
		printMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count documents matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(where)
			if err != nil {
				return err
			}
			return withRuntime(cmd, flags, printMetrics, func(ctx context.Context, rt *runtime) error {
				coll, err := rt.collection(args[0], nil)
				if err != nil {
					return err
				}
				n, err := coll.Count(ctx, filter, nil)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, map[string]int64{"count": n})
			})
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "filter as an Extended JSON document")
	cmd.Flags().BoolVar(&printMetrics, "print-metrics", false, "write store metrics to stderr when done")
	return cmd
}

func newSeedCommand(flags *globalFlags) *cobra.Command {
	var (
		file string
		drop bool
	)
	cmd := &cobra.Command{
		Use:   "seed <collection>",
		Short: "Insert documents from an Extended JSON array file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			docs, err := parseDocuments(data)
			if err != nil {
				return err
			}
			return withRuntime(cmd, flags, false, func(ctx context.Context, rt *runtime) error {
				if drop {
					if err := rt.adapter.DropCollection(ctx, args[0]); err != nil {
						return err
					}
				}
				inserted := 0
				if len(docs) > 0 {
					res, err := rt.adapter.InsertMany(ctx, args[0], docs)
					if err != nil {
						return err
					}
					inserted = len(res.InsertedIDs)
				}
				rt.log.Info("collection seeded", "collection", args[0], "inserted", inserted, "dropped", drop)
				return render(cmd.OutOrStdout(), flags.output, map[string]int{"inserted": inserted})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON array of documents")
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the collection before inserting")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
