package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/symdex"
	"github.com/jward/symdex/internal/index"
)

var (
	flagKinds             []string
	flagLimit             int
	flagWhere             string
	flagIncludeInternal   bool
	flagIncludeDeprecated bool
	flagReceiverSupers    []string
	flagIncludeAny        bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the symbol index",
	Long: "Loads the project (from the cache when it is fresh) and runs one lookup. " +
		"--where takes a Risor expression over name, fq_name, kind, pkg, visibility, deprecated, " +
		"receiver, return_type, container, signature, file, arity, type_params and supers.",
}

func init() {
	queryCmd.PersistentFlags().StringSliceVar(&flagKinds, "kind", nil, "keep only these kinds (e.g. CLASS,FUNCTION)")
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "maximum results, 0 for all")
	queryCmd.PersistentFlags().StringVar(&flagWhere, "where", "", "Risor filter expression")
	queryCmd.PersistentFlags().BoolVar(&flagIncludeInternal, "include-internal", false, "include internal, private and package-private symbols")
	queryCmd.PersistentFlags().BoolVar(&flagIncludeDeprecated, "include-deprecated", false, "include deprecated symbols")

	extensionsCmd.Flags().StringSliceVar(&flagReceiverSupers, "receiver-supers", nil, "supertypes of the receiver to search as well")
	extensionsCmd.Flags().BoolVar(&flagIncludeAny, "include-any", false, "include extensions on Any")

	for _, c := range []*cobra.Command{
		newQueryCmd("fqname <fq-name>", "Look up one symbol by fully qualified name", 1),
		newQueryCmd("name <name>", "Find symbols by simple name", 1),
		newQueryCmd("prefix <prefix>", "Complete a name prefix (case-insensitive)", 1),
		newQueryCmd("package <package>", "List the symbols of a package", 1),
		extensionsCmd,
		newQueryCmd("visible <file> <prefix>", "Completion candidates visible from a file", 2),
		newQueryCmd("members <class-fq-name>", "List the members of a class", 1),
		newQueryCmd("subpackages <package>", "List direct child packages", 1),
	} {
		queryCmd.AddCommand(c)
	}
}

var extensionsCmd = newQueryCmd("extensions <receiver-type>", "Find extension functions and properties for a receiver type", 1)

func newQueryCmd(use, short string, nargs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE:  runQueryCmd,
	}
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	command := "query " + cmd.Name()
	req := queryRequest{
		Mode:              cmd.Name(),
		Args:              args,
		Limit:             flagLimit,
		Where:             flagWhere,
		IncludeInternal:   flagIncludeInternal,
		IncludeDeprecated: flagIncludeDeprecated,
		Supertypes:        flagReceiverSupers,
		IncludeAny:        flagIncludeAny,
	}
	kinds, err := parseKinds(flagKinds)
	if err != nil {
		return outputError(command, err)
	}
	req.Kinds = kinds
	if req.Mode == "visible" {
		if req.Args[0], err = filepath.Abs(req.Args[0]); err != nil {
			return outputError(command, fmt.Errorf("resolving file path %q: %w", args[0], err))
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return outputError(command, err)
	}
	s, err := openSession(cfg)
	if err != nil {
		return outputError(command, err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, _, err := loadProject(ctx, s, cfg, cfg.SourcePaths()); err != nil {
		return outputError(command, err)
	}

	result, err := runQuery(ctx, s, req)
	if err != nil {
		return outputError(command, err)
	}
	result.Command = command
	return outputResult(result)
}

// queryRequest is one query subcommand invocation with its flags.
type queryRequest struct {
	Mode              string
	Args              []string
	Kinds             []symdex.SymbolKind
	Limit             int
	Where             string
	IncludeInternal   bool
	IncludeDeprecated bool
	Supertypes        []string
	IncludeAny        bool
}

// runQuery answers req against the Session's index. Symbol results are
// filtered by kind, visibility, deprecation and --where before the limit is
// applied; TotalCount holds the count before the limit.
func runQuery(ctx context.Context, s *symdex.Session, req queryRequest) (CLIResult, error) {
	if req.Limit < 0 {
		return CLIResult{}, fmt.Errorf("invalid --limit %d: must be non-negative", req.Limit)
	}
	idx := s.Index()
	q := symdex.IndexQuery{
		Kinds:             req.Kinds,
		IncludeDeprecated: req.IncludeDeprecated,
		IncludeInternal:   req.IncludeInternal,
	}

	var syms []*symdex.Symbol
	switch req.Mode {
	case "fqname":
		q.FqName = req.Args[0]
		syms = idx.Query(q)
	case "name":
		q.Name = req.Args[0]
		syms = idx.Query(q)
	case "prefix":
		q.Prefix = req.Args[0]
		syms = idx.Query(q)
	case "package":
		q.Package = req.Args[0]
		syms = idx.Query(q)
	case "extensions":
		q.Receiver = req.Args[0]
		q.Supertypes = req.Supertypes
		q.IncludeAny = req.IncludeAny
		syms = idx.Query(q)
	case "visible":
		if idx.File(req.Args[0]) == nil {
			return CLIResult{}, fmt.Errorf("%w: %s", index.ErrFileNotIndexed, req.Args[0])
		}
		syms = keep(idx.FindVisibleFrom(req.Args[0], req.Args[1], 0), q)
	case "members":
		syms = keep(idx.FindMembers(req.Args[0]), q)
	case "subpackages":
		pkgs := idx.Subpackages(req.Args[0])
		if pkgs == nil {
			pkgs = []string{}
		}
		return CLIResult{Results: pkgs}, nil
	default:
		return CLIResult{}, fmt.Errorf("unknown query %q", req.Mode)
	}

	if req.Where != "" {
		var err error
		if syms, err = s.Filter(ctx, req.Where, syms); err != nil {
			return CLIResult{}, err
		}
	}
	total := len(syms)
	if req.Limit > 0 && len(syms) > req.Limit {
		syms = syms[:req.Limit]
	}
	return CLIResult{Results: symbolsToCLI(syms), TotalCount: &total}, nil
}

func keep(syms []*symdex.Symbol, q symdex.IndexQuery) []*symdex.Symbol {
	out := make([]*symdex.Symbol, 0, len(syms))
	for _, s := range syms {
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// parseKinds validates --kind values. Unlike snapshot loading, unknown
// kinds are an error here.
func parseKinds(values []string) ([]symdex.SymbolKind, error) {
	var out []symdex.SymbolKind
	for _, v := range values {
		k := symdex.SymbolKind(strings.ToUpper(strings.TrimSpace(v)))
		if !slices.Contains(index.AllKinds, k) {
			return nil, fmt.Errorf("unknown kind %q", v)
		}
		out = append(out, k)
	}
	return out, nil
}
