package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"coherence/internal/reporter"
	"coherence/internal/runner"
	"coherence/internal/scenario"
	"coherence/internal/steps"
	"coherence/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	subsystem = "MCPServer"

	// ServerName is advertised to MCP clients
	ServerName = "coherence"
)

// Options configure a Server.
type Options struct {
	// ScenarioPath is the scenario file or directory
	ScenarioPath string
	// Registry resolves step actions; nil uses the built-in actions
	Registry *steps.Registry
	// RunConfig is the base configuration of every run
	RunConfig runner.Config
	// Metrics receives execution counters, if set
	Metrics runner.Metrics
	// Version is advertised to MCP clients
	Version string
}

// Server serves coherence tools over MCP.
type Server struct {
	opts      Options
	loader    *scenario.Loader
	results   *reporter.Structured
	runner    *runner.Runner
	mcpServer *server.MCPServer

	// runs are serialized so Structured attributes results to the right run
	runMu sync.Mutex
}

// New creates a server and registers its tools.
func New(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = steps.DefaultRegistry()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	results := reporter.NewStructured()
	var runnerOpts []runner.Option
	if opts.Metrics != nil {
		runnerOpts = append(runnerOpts, runner.WithMetrics(opts.Metrics))
	}

	s := &Server{
		opts:    opts,
		loader:  scenario.NewLoader(),
		results: results,
		runner:  runner.New(opts.Registry, results, runnerOpts...),
		mcpServer: server.NewMCPServer(
			ServerName,
			opts.Version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Results returns the in-memory store of completed runs.
func (s *Server) Results() *reporter.Structured { return s.results }

// Start serves MCP over stdin and stdout until the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	logging.Info(subsystem, "Serving MCP over stdio (scenarios: %s)", s.opts.ScenarioPath)
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("coherence_list_scenarios",
		mcp.WithDescription("List the available test scenarios"),
		mcp.WithString("tag",
			mcp.Description("Only list scenarios carrying this tag"),
		),
	)
	s.mcpServer.AddTool(listTool, s.handleListScenarios)

	runTool := mcp.NewTool("coherence_run_scenarios",
		mcp.WithDescription("Run test scenarios and return the suite result"),
		mcp.WithString("scenario",
			mcp.Description("Scenario name or glob pattern; empty runs every scenario"),
		),
		mcp.WithString("tag",
			mcp.Description("Only run scenarios carrying this tag"),
		),
		mcp.WithNumber("parallel",
			mcp.Description("Number of scenarios run concurrently"),
		),
		mcp.WithBoolean("fail_fast",
			mcp.Description("Stop scheduling scenarios after the first failure"),
		),
	)
	s.mcpServer.AddTool(runTool, s.handleRunScenarios)

	validateTool := mcp.NewTool("coherence_validate_scenarios",
		mcp.WithDescription("Validate every scenario without running it"),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidateScenarios)

	resultsTool := mcp.NewTool("coherence_get_results",
		mcp.WithDescription("Get the result of a previous run"),
		mcp.WithString("run_id",
			mcp.Description("Run to return; empty returns the latest run"),
		),
	)
	s.mcpServer.AddTool(resultsTool, s.handleGetResults)
}

// scenarioSummary is the listing entry of one scenario.
type scenarioSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Steps       int      `json:"steps"`
	Skip        bool     `json:"skip,omitempty"`
	Source      string   `json:"source,omitempty"`
}

func (s *Server) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarios, err := s.loader.LoadScenarios(s.opts.ScenarioPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load scenarios: %v", err)), nil
	}
	args := request.GetArguments()
	scenarios = scenario.FilterScenarios(scenarios, scenario.Filter{Tags: tags(args)})

	summaries := make([]scenarioSummary, 0, len(scenarios))
	for _, sc := range scenarios {
		summaries = append(summaries, scenarioSummary{
			Name:        sc.Name,
			Description: sc.Description,
			Tags:        sc.Tags,
			Steps:       len(sc.Steps),
			Skip:        sc.Skip,
			Source:      sc.SourcePath,
		})
	}
	return jsonResult(summaries)
}

func (s *Server) handleRunScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	parallel, err := intArg(args, "parallel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	failFast, err := boolArg(args, "fail_fast")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	scenarios, err := s.loader.LoadScenarios(s.opts.ScenarioPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load scenarios: %v", err)), nil
	}
	name, _ := args["scenario"].(string)
	scenarios = scenario.FilterScenarios(scenarios, scenario.Filter{Name: name, Tags: tags(args)})
	if len(scenarios) == 0 {
		return mcp.NewToolResultError("No scenarios match the given filter"), nil
	}
	if err := scenario.ValidateAll(scenarios, s.opts.Registry); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Scenario validation failed: %v", err)), nil
	}

	cfg := s.opts.RunConfig
	if parallel > 0 {
		cfg.Parallel = parallel
	}
	if failFast != nil {
		cfg.FailFast = *failFast
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	suite, err := s.runner.Run(ctx, cfg, scenarios)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Run %s interrupted: %v", suite.RunID, err)), nil
	}
	return jsonResult(suite)
}

func (s *Server) handleValidateScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarios, err := s.loader.LoadScenarios(s.opts.ScenarioPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load scenarios: %v", err)), nil
	}
	if err := scenario.ValidateAll(scenarios, s.opts.Registry); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("All %d scenarios are valid", len(scenarios))), nil
}

func (s *Server) handleGetResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, _ := request.GetArguments()["run_id"].(string)

	if runID == "" {
		suite, ok := s.results.Latest()
		if !ok {
			return mcp.NewToolResultError("No runs have completed yet"), nil
		}
		return jsonResult(suite)
	}

	if suite, ok := s.results.Result(runID); ok {
		return jsonResult(suite)
	}
	if progress, ok := s.results.Progress(runID); ok {
		return jsonResult(progress)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Run not found: %s", runID)), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func tags(args map[string]interface{}) []string {
	if tag, ok := args["tag"].(string); ok && tag != "" {
		return []string{tag}
	}
	return nil
}

// intArg reads a whole number; JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) || v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative whole number", key)
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative whole number", key)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
}

func boolArg(args map[string]interface{}, key string) (*bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return nil, fmt.Errorf("%s must be a boolean, got %T", key, raw)
	}
	return &v, nil
}
