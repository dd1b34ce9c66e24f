// Command docquery runs document queries against a configured backend from the shell.
//
//	docquery get users --where age:>=:18 --order-by name:asc --limit 10
//	docquery insert posts --data '{"title":"hi"}' --ref users --ref-data '{"userId":"u1"}'
//	docquery init users posts
//
// Configuration comes from --config (YAML), DOCQUERY_* environment variables
// and the flags below, in increasing precedence.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theory-cloud/docquery"
	"github.com/theory-cloud/docquery/pkg/session"
)

type app struct {
	v          *viper.Viper
	out        io.Writer
	errOut     io.Writer
	configFile string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "docquery",
		Short:         "Query document stores with a fluent filter syntax",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file")
	flags.String("backend", "", "backend: memory, dynamodb, sql or firestore")
	flags.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	flags.String("endpoint", "", "DynamoDB endpoint override, e.g. http://localhost:8000")
	flags.String("sql-driver", "", "sql driver: sqlite, postgres or mysql")
	flags.String("sql-dsn", "", "sql data source name")

	for key, flag := range map[string]string{
		"backend":    "backend",
		"log_level":  "log-level",
		"endpoint":   "endpoint",
		"sql_driver": "sql-driver",
		"sql_dsn":    "sql-dsn",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.newGetCmd(false),
		a.newGetCmd(true),
		a.newInsertCmd(),
		a.newUpdateCmd(),
		a.newDeleteCmd(),
		a.newInitCmd(),
	)
	return root
}

// open loads the layered configuration and connects to the backend
func (a *app) open(ctx context.Context) (*docquery.DB, error) {
	cfg, err := session.LoadConfig(a.v, a.configFile)
	if err != nil {
		return nil, err
	}
	return docquery.Open(ctx, cfg, docquery.WithLogOutput(a.errOut))
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
