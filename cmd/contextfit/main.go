// Command contextfit assembles scored sections into a model input that
// fits a token budget, or prints the budget plan without assembling.
//
// Usage:
//
//	contextfit assemble --sections sections.yaml
//	contextfit assemble --config config.yaml --sections - --format messages
//	contextfit plan --sections sections.yaml --policy research_heavy
//	contextfit version
//
// Sections files hold a list of {bucket, content, score} entries, in YAML
// or JSON by file extension. "-" reads the list from stdin. The assembled
// output goes to stdout; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/contextfit"
	"github.com/BaSui01/contextfit/config"
	"github.com/BaSui01/contextfit/internal/telemetry"
	"github.com/BaSui01/contextfit/messages"
	"github.com/BaSui01/contextfit/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "assemble":
		runAssemble(os.Args[2:])
	case "plan":
		runPlan(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// cmdFlags holds the flags shared by assemble and plan.
type cmdFlags struct {
	configPath   string
	sectionsPath string
	policy       string
	format       string
	contextLimit int
	outputBudget int
	overhead     int
}

func registerFlags(fs *flag.FlagSet, f *cmdFlags) {
	fs.StringVar(&f.configPath, "config", "", "Path to config file (YAML or JSON)")
	fs.StringVar(&f.sectionsPath, "sections", "", `Sections file (YAML or JSON), "-" reads stdin`)
	fs.StringVar(&f.policy, "policy", "", "Policy to resolve (default policy when empty)")
	fs.IntVar(&f.contextLimit, "context-limit", 0, "Override the model context limit")
	fs.IntVar(&f.outputBudget, "output-budget", 0, "Override the reserved output budget")
	fs.IntVar(&f.overhead, "overhead", 0, "Override the system overhead")
}

func runAssemble(args []string) {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	var f cmdFlags
	registerFlags(fs, &f)
	fs.StringVar(&f.format, "format", "text", "Output format: text, json or messages")
	fs.Parse(args)

	client, req, cleanup := setup(f)
	defer cleanup()

	out, err := client.Assemble(context.Background(), req)
	if err != nil {
		fatal("Assemble failed: %v", err)
	}

	switch f.format {
	case "text":
		fmt.Println(out.Text)
	case "json":
		printJSON(out)
	case "messages":
		printJSON(messages.FromContext(out))
	default:
		fatal("Unknown format: %s (expected text, json or messages)", f.format)
	}
}

func runPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	var f cmdFlags
	registerFlags(fs, &f)
	fs.StringVar(&f.format, "format", "text", "Output format: text or json")
	fs.Parse(args)

	client, req, cleanup := setup(f)
	defer cleanup()

	pol, plan, err := client.Plan(context.Background(), req)
	if err != nil {
		fatal("Plan failed: %v", err)
	}

	switch f.format {
	case "text":
		printPlanTable(pol, plan)
	case "json":
		printJSON(struct {
			Policy *contextfit.ResolvedPolicy `json:"policy"`
			Plan   *contextfit.BudgetPlan     `json:"plan"`
		}{pol, plan})
	default:
		fatal("Unknown format: %s (expected text or json)", f.format)
	}
}

// setup loads and validates the config, builds the logger and telemetry,
// constructs the client and decodes the sections into a request. The
// returned cleanup flushes telemetry and the logger.
func setup(f cmdFlags) (*contextfit.Client, contextfit.Request, func()) {
	loader := config.NewLoader()
	if f.configPath != "" {
		loader = loader.WithPath(f.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid config: %v", err)
	}

	// stdout carries the assembled output.
	cfg.Log.OutputPaths = []string{"stderr"}
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fatal("Failed to build logger: %v", err)
	}

	logger.Debug("starting contextfit",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	client, err := contextfit.New(cfg, contextfit.WithLogger(logger))
	if err != nil {
		fatal("Failed to build client: %v", err)
	}

	sections, err := readSections(f.sectionsPath)
	if err != nil {
		fatal("Failed to read sections: %v", err)
	}

	limits := cfg.Limits()
	req := contextfit.Request{
		Sections:     sections,
		Policy:       f.policy,
		ContextLimit: pick(f.contextLimit, limits.ContextLimit),
		OutputBudget: pick(f.outputBudget, limits.OutputBudget),
		Overhead:     pick(f.overhead, limits.Overhead),
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("client close failed", zap.Error(err))
		}
		if providers != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}
		logger.Sync()
	}
	return client, req, cleanup
}

func pick(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}

// readSections decodes a list of sections from a file, or from stdin when
// path is "-". Files ending in .json decode as JSON, everything else as
// YAML, which accepts JSON too.
func readSections(path string) ([]types.Section, error) {
	if path == "" {
		return nil, fmt.Errorf("missing --sections")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var sections []types.Section
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &sections)
	} else {
		err = yaml.Unmarshal(data, &sections)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return sections, nil
}

func printPlanTable(pol *contextfit.ResolvedPolicy, plan *contextfit.BudgetPlan) {
	fmt.Printf("policy: %s\n", pol.Name)

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUCKET\tPLACEMENT\tMIN\tMAX\tWEIGHT\tTOKENS\tSTATUS")
	for _, alloc := range plan.Allocations {
		bk, _ := pol.Bucket(alloc.Bucket)
		status := "ok"
		if alloc.Dropped {
			status = "dropped"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%d\t%s\n",
			alloc.Bucket, placementOf(pol, alloc.Bucket),
			bk.MinTokens, bk.MaxTokens, bk.Weight, alloc.Tokens, status)
	}
	w.Flush()

	fmt.Printf("budget %d, allocated %d\n", plan.Budget, plan.TotalAllocated)
}

// placementOf reports the position group a bucket would render into: the
// policy's declared lists win, then the bucket's own hint, middle when
// unset.
func placementOf(pol *contextfit.ResolvedPolicy, id types.BucketID) types.Placement {
	for _, h := range pol.Placements.Head {
		if h == id {
			return types.PlacementHead
		}
	}
	for _, m := range pol.Placements.Middle {
		if m == id {
			return types.PlacementMiddle
		}
	}
	for _, t := range pol.Placements.Tail {
		if t == id {
			return types.PlacementTail
		}
	}
	bk, ok := pol.Bucket(id)
	if !ok || bk.Placement == "" {
		return types.PlacementMiddle
	}
	return bk.Placement
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("Failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("contextfit %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`contextfit - fit scored sections into a model context window

Usage:
  contextfit <command> [options]

Commands:
  assemble  Assemble sections into model input under the token budget
  plan      Show the budget plan without assembling
  version   Show version information
  help      Show this help message

Options for 'assemble' and 'plan':
  --config <path>       Path to configuration file (YAML or JSON)
  --sections <path>     Sections file (YAML or JSON), "-" reads stdin
  --policy <name>       Policy to resolve (default policy when empty)
  --format <fmt>        assemble: text, json or messages; plan: text or json
  --context-limit <n>   Override the model context limit
  --output-budget <n>   Override the reserved output budget
  --overhead <n>        Override the system overhead

Examples:
  contextfit assemble --sections sections.yaml
  cat sections.json | contextfit assemble --sections - --format messages
  contextfit plan --config config.yaml --sections sections.yaml
  contextfit version`)
}
