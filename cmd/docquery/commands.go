package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/request"
)

type queryFlags struct {
	spec     string
	doc      string
	where    []string
	orWhere  []string
	orderBy  []string
	populate []string
	limit    int
	page     int
	perPage  int
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.spec, "spec", "", "read a JSON or YAML query spec from a file, - for stdin")
	fl.StringVar(&f.doc, "doc", "", "scope the query to one document id")
	fl.StringArrayVar(&f.where, "where", nil, "AND condition field:op:value or field:value (repeatable)")
	fl.StringArrayVar(&f.orWhere, "or-where", nil, "OR condition field:op:value or field:value (repeatable)")
	fl.StringArrayVar(&f.orderBy, "order-by", nil, "sort key field[:asc|desc] (repeatable)")
	fl.StringSliceVar(&f.populate, "populate", nil, "reference fields to resolve")
	fl.IntVar(&f.limit, "limit", 0, "maximum number of documents")
	fl.IntVar(&f.page, "page", 0, "1-based page number")
	fl.IntVar(&f.perPage, "per-page", 0, "page size, used with --page")
}

// toSpec merges an optional spec file with the flag conditions
func (f *queryFlags) toSpec(cmd *cobra.Command, args []string) (*request.QuerySpec, error) {
	spec := &request.QuerySpec{}
	if f.spec != "" {
		data, err := readSource(cmd.InOrStdin(), f.spec)
		if err != nil {
			return nil, err
		}
		if spec, err = request.Parse(data); err != nil {
			return nil, err
		}
	}

	if len(args) > 0 {
		spec.Collection = args[0]
	}
	if f.doc != "" {
		spec.Document = f.doc
	}
	for _, raw := range f.where {
		cond, err := request.ParseCondition(raw)
		if err != nil {
			return nil, err
		}
		spec.Where = append(spec.Where, cond)
	}
	for _, raw := range f.orWhere {
		cond, err := request.ParseCondition(raw)
		if err != nil {
			return nil, err
		}
		spec.OrWhere = append(spec.OrWhere, cond)
	}
	for _, raw := range f.orderBy {
		order, err := request.ParseOrder(raw)
		if err != nil {
			return nil, err
		}
		spec.OrderBy = append(spec.OrderBy, order)
	}
	spec.Populate = append(spec.Populate, f.populate...)
	if cmd.Flags().Changed("limit") {
		spec.Limit = f.limit
	}
	if cmd.Flags().Changed("page") || cmd.Flags().Changed("per-page") {
		spec.Page, spec.PerPage = f.page, f.perPage
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (a *app) newGetCmd(first bool) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "get [collection]",
		Short: "Print the documents matching the query as a JSON array",
		Args:  cobra.MaximumNArgs(1),
	}
	if first {
		cmd.Use = "first [collection]"
		cmd.Short = "Print the first matching document, or null"
	}
	f.register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		spec, err := f.toSpec(cmd, args)
		if err != nil {
			return err
		}

		db, err := a.open(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		docs, err := db.Run(cmd.Context(), spec)
		if err != nil {
			return err
		}
		if first {
			if len(docs) == 0 {
				return writeJSON(cmd.OutOrStdout(), nil)
			}
			return writeJSON(cmd.OutOrStdout(), encode(docs[0]))
		}

		out := make([]map[string]any, len(docs))
		for i, doc := range docs {
			out[i] = encode(doc)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return cmd
}

func (a *app) newInsertCmd() *cobra.Command {
	var data, refCollection, refData string
	cmd := &cobra.Command{
		Use:   "insert <collection>",
		Short: "Create a document and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseData(cmd, data)
			if err != nil {
				return err
			}

			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := db.Collection(args[0]).Insert(cmd.Context(), body)
			if err != nil {
				return err
			}
			if refCollection != "" {
				related, err := parseData(cmd, refData)
				if err != nil {
					return err
				}
				if _, err := b.Ref(cmd.Context(), refCollection, related); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{core.IdentityField: b.LastWritten()})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "document body as a JSON object, - for stdin")
	cmd.Flags().StringVar(&refCollection, "ref", "", "link the new document to a related collection")
	cmd.Flags().StringVar(&refData, "ref-data", "{}", "related document body as a JSON object")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func (a *app) newUpdateCmd() *cobra.Command {
	var data, doc string
	cmd := &cobra.Command{
		Use:   "update <collection>",
		Short: "Merge fields into an existing document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseData(cmd, data)
			if err != nil {
				return err
			}

			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := db.Doc(args[0], doc).Update(cmd.Context(), body)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{core.IdentityField: b.LastWritten()})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "fields to merge as a JSON object, - for stdin")
	cmd.Flags().StringVar(&doc, "doc", "", "document id")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	var doc string
	cmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Doc(args[0], doc).Delete(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": doc})
		},
	}
	cmd.Flags().StringVar(&doc, "doc", "", "document id")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <collection>...",
		Short: "Prepare backend storage for collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			status := make(map[string]string, len(args))
			for _, name := range args {
				created, err := db.EnsureCollection(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("init %s: %w", name, err)
				}
				status[name] = "ready"
				if created {
					status[name] = "created"
				}
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
}

func parseData(cmd *cobra.Command, raw string) (map[string]any, error) {
	data := []byte(raw)
	if raw == "-" {
		var err error
		if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}
	body, err := core.UnmarshalObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: data must be a JSON object: %w", errors.ErrInvalidArguments, err)
	}
	return body, nil
}

func readSource(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func encode(doc core.Document) map[string]any {
	return core.EncodeDocument(doc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
