package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/fetchling/packages/core/config"
	fhttp "github.com/abdul-hamid-achik/fetchling/packages/http"
	"github.com/abdul-hamid-achik/fetchling/packages/output"
	"github.com/abdul-hamid-achik/fetchling/packages/tree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var treeCmd = &cobra.Command{
	Use:   "tree <file.yaml>",
	Short: "Print the resources and methods a resource tree resolves to",
	Long: `Load a YAML resource tree and print every resource with its resolved URL
and the methods it accepts.

Example file:
  name: zoo
  url: https://zoo.example.com/api
  resources:
    animals:
      methods: [get, post]
      instance:
        methods: [get, put, delete]`,
	Args: cobra.ExactArgs(1),
	RunE: treeCommand,
}

var callCmd = &cobra.Command{
	Use:   "call <file.yaml> <resource> <method>",
	Short: "Call a method on a resource of a YAML resource tree",
	Long: `Call a method on a resource of a YAML resource tree. The resource is a
dot-separated path of names; name:id selects the member id of a collection.
Arguments become the query string for GET, HEAD and OPTIONS and the JSON body
for every other method.

Examples:
  fetchling call zoo.yaml animals get --arg species=cat
  fetchling call zoo.yaml animals:42 put --arg name=Rex
  fetchling call zoo.yaml animals:42.photos get --select '#.url'`,
	Args: cobra.ExactArgs(3),
	RunE: callCommand,
}

var argFlags []string

func init() {
	addRequestFlags(callCmd)
	callCmd.Flags().StringArrayVarP(&argFlags, "arg", "a", nil, "Call argument as key=value (repeatable)")
}

// loadTree reads the tree file and builds it on a client configured from cfg.
func loadTree(cfg *config.Config, logger *zap.Logger, path string) (*tree.Tree, error) {
	node, err := tree.Load(path)
	if err != nil {
		return nil, withExitCode(ExitParseError, err)
	}
	if cfg.BaseURL != "" {
		node.URL = resolveBaseURL(cfg, node.URL)
	}
	node.URL = os.ExpandEnv(node.URL)

	client := fhttp.NewClient(cfg.ClientOptions(logger)...)
	built, err := tree.Build(client, node, cfg.Init(), sessionInit())
	if err != nil {
		return nil, withExitCode(ExitParseError, err)
	}
	return built, nil
}

func treeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	built, err := loadTree(cfg, zap.NewNop(), args[0])
	if err != nil {
		return err
	}

	entries, err := resourceEntries(built)
	if err != nil {
		return withExitCode(ExitParseError, err)
	}

	name := built.Name
	if name == "" {
		name = args[0]
	}

	formatter := newFormatter(cfg, cmd.OutOrStdout())
	formatter.FormatResources(name, entries)
	return flush(formatter, time.Now())
}

// resourceEntries lists every resource of built in walk order.
func resourceEntries(built *tree.Tree) ([]output.ResourceEntry, error) {
	var entries []output.ResourceEntry
	err := built.Walk(func(path string, t *tree.Tree) error {
		entries = append(entries, output.ResourceEntry{
			Path:     path,
			URL:      t.Resource.URL(),
			Methods:  t.Methods(),
			Instance: t.HasInstance(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return entries, nil
}

func callCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("cannot create logger: %w", err))
	}
	defer func() { _ = logger.Sync() }()

	built, err := loadTree(cfg, logger, args[0])
	if err != nil {
		return err
	}

	target, err := resolveResource(built, args[1])
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	callArgs, err := parseArgs(argFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter := newFormatter(cfg, cmd.OutOrStdout())
	if cfg.GetVerbose() {
		formatter.FormatHeader(version)
	}
	return send(ctx, formatter, func(ctx context.Context) (*fhttp.Response, error) {
		return target.Call(ctx, args[2], callArgs)
	})
}

// resolveResource follows a dot-separated path where a name:id segment
// selects a collection member, e.g. "animals:42.photos".
func resolveResource(root *tree.Tree, path string) (*tree.Tree, error) {
	current := root
	if path == "" || path == "." {
		return current, nil
	}
	for _, segment := range strings.Split(path, ".") {
		name, id, hasID := strings.Cut(segment, ":")
		next, ok := current.Child(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, path)
		}
		if hasID {
			member, err := next.Instance(os.ExpandEnv(id))
			if err != nil {
				return nil, err
			}
			next = member
		}
		current = next
	}
	return current, nil
}

// parseArgs turns key=value pairs into call arguments.
func parseArgs(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	args := make(map[string]any, len(raw))
	for _, a := range raw {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", a)
		}
		args[key] = os.ExpandEnv(value)
	}
	return args, nil
}
