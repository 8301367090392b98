package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"kugl/internal/builtins"
	"kugl/internal/cache"
	"kugl/internal/config"
	"kugl/internal/engine"
	"kugl/internal/output"
	"kugl/internal/query"
	"kugl/internal/registry"
	"kugl/internal/util"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := afero.NewOsFs()
	userInit, err := config.LoadInit(fs, filepath.Join(util.Home(), "init.yaml"))
	if err != nil {
		return err
	}
	argv, err = expandShortcut(argv, userInit.Shortcuts)
	if err != nil {
		return err
	}

	var (
		namespace     string
		allNamespaces bool
		update        bool
		noUpdate      bool
		schemaName    string
		format        string
		debug         string
	)

	rootCmd := &cobra.Command{
		Use:           "kugl <sql>",
		Short:         "Query Kubernetes and other structured data with SQL",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if update && noUpdate {
				return fmt.Errorf("cannot use both -u/--update and --no-update")
			}
			if allNamespaces && namespace != "" {
				return fmt.Errorf("cannot use both -a/--all-namespaces and -n/--namespace")
			}
			if debug != "" {
				util.DebugOn(strings.Split(debug, ",")...)
			}

			flag := cache.Check
			if update {
				flag = cache.AlwaysUpdate
			} else if noUpdate {
				flag = cache.NeverUpdate
			}

			reg := registry.Global()
			if err := builtins.Register(reg); err != nil {
				return err
			}
			e := engine.New(reg, *userInit.Settings, fs, util.CacheDir(), util.GetClock())
			q := query.New(args[0])
			if schemaName != "" {
				q.DefaultSchema = schemaName
			}
			result, err := e.Query(q, engine.Options{
				CacheFlag:     flag,
				Namespace:     namespace,
				AllNamespaces: allNamespaces,
			})
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(format)
			if err != nil {
				return err
			}
			text, err := formatter.FormatResult(result)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Print(text)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Kubernetes namespace to query")
	rootCmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "a", false, "Query all Kubernetes namespaces")
	rootCmd.Flags().BoolVarP(&update, "update", "u", false, "Always refresh resource data")
	rootCmd.Flags().BoolVar(&noUpdate, "no-update", false, "Never refresh cached resource data")
	rootCmd.Flags().StringVar(&schemaName, "schema", "", "Default schema for unqualified table names")
	rootCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: human or json")
	rootCmd.Flags().StringVar(&debug, "debug", "", "Comma-separated debug features to enable")

	rootCmd.SetArgs(argv)
	return rootCmd.Execute()
}

// expandShortcut replaces a trailing bare word with its shortcut argv
// from init.yaml. The word can't be SQL; real queries contain spaces.
func expandShortcut(argv []string, shortcuts []config.Shortcut) ([]string, error) {
	if len(argv) == 0 {
		return argv, nil
	}
	last := argv[len(argv)-1]
	if strings.HasPrefix(last, "-") || strings.Contains(last, " ") {
		return argv, nil
	}
	for _, s := range shortcuts {
		if s.Name == last {
			return append(append([]string{}, argv[:len(argv)-1]...), s.Args...), nil
		}
	}
	return nil, fmt.Errorf("no shortcut named '%s'", last)
}
