package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/dejo1307/stabilitymcp/internal/engine"
	"github.com/dejo1307/stabilitymcp/internal/stability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxQueryResults caps query_composables output.
const maxQueryResults = 100

// Server wraps the MCP server and connects it to the stability engine.
type Server struct {
	mcp     *mcp.Server
	eng     *engine.Engine
	version string
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, version string) (*Server, error) {
	s := &Server{
		eng:     eng,
		version: version,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "stabilitymcp",
		Version: version,
	}, nil)

	s.mcp = mcpServer
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	log.Println("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerResources adds MCP resources for the report and the raw record stream.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         "stability://report",
		Name:        "Stability Report",
		Description: "Composable stability report as it would be exported (anonymous functions removed, sorted by qualified name)",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		doc, err := s.eng.CurrentDocument()
		if err != nil {
			return nil, fmt.Errorf("no report available: %w (record composables first)", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: string(doc), MIMEType: "application/json"},
			},
		}, nil
	})

	s.mcp.AddResource(&mcp.Resource{
		URI:         "stability://records",
		Name:        "Recorded Functions",
		Description: "Every recorded function in insertion order, anonymous ones included, in JSONL format",
		MIMEType:    "application/jsonl",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.recordsJSONL()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: text, MIMEType: "application/jsonl"},
			},
		}, nil
	})
}

// recordComposableArgs are the arguments for the record_composable tool.
type recordComposableArgs struct {
	Composable stability.FunctionRecord `json:"composable" jsonschema:"Function record with qualifiedName, simpleName, visibility, skippable, restartable, returnType and parameters"`
}

// ingestArgs are the arguments for the ingest_records tool.
type ingestArgs struct {
	Path string `json:"path,omitempty" jsonschema:"JSONL record file to ingest. Defaults to the configured input."`
}

// queryComposablesArgs are the arguments for the query_composables tool.
type queryComposablesArgs struct {
	Name        string `json:"name,omitempty" jsonschema:"Filter by qualified name using substring match"`
	Skippable   *bool  `json:"skippable,omitempty" jsonschema:"Filter by skippable"`
	Restartable *bool  `json:"restartable,omitempty" jsonschema:"Filter by restartable"`
	Stability   string `json:"stability,omitempty" jsonschema:"Only functions with at least one parameter of this stability: STABLE, UNSTABLE or RUNTIME"`
}

type noArgs struct{}

// registerTools adds MCP tools for recording, exporting, querying and checking.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "record_composable",
		Description: "Record the stability information of one composable function for the current compilation unit.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recordComposableArgs) (*mcp.CallToolResult, any, error) {
		return s.recordComposable(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_records",
		Description: "Record every function from a JSONL record file produced by the stability analyzer.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ingestArgs) (*mcp.CallToolResult, any, error) {
		n, err := s.eng.Ingest(ctx, args.Path)
		if err != nil {
			return errorResult(fmt.Sprintf("ingest failed: %v", err)), nil, nil
		}
		return textResult(fmt.Sprintf("Ingested %d records (%d total).", n, s.eng.Collector().Count())), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export_report",
		Description: "Write the stability report. Anonymous functions are dropped and entries are sorted by qualified name. Nothing is written when no composable qualifies.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args noArgs) (*mcp.CallToolResult, any, error) {
		return s.exportReport(), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_composables",
		Description: "Query the current stability report by name, skippable, restartable, or parameter stability. Returns matching functions as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryComposablesArgs) (*mcp.CallToolResult, any, error) {
		return s.queryComposables(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "check_baseline",
		Description: "Compare the current report with the stability baseline and list added, removed and changed composables with a unified diff.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args noArgs) (*mcp.CallToolResult, any, error) {
		return s.checkBaseline(), nil, nil
	})
}

func (s *Server) recordComposable(args recordComposableArgs) *mcp.CallToolResult {
	f := args.Composable
	if f.QualifiedName == "" {
		return errorResult("composable.qualifiedName is required")
	}
	for i, p := range f.Parameters {
		if !p.Stability.Valid() {
			return errorResult(fmt.Sprintf("composable.parameters[%d].stability: %v", i, stability.ErrInvalidStability))
		}
	}

	s.eng.Record(f)
	msg := fmt.Sprintf("Recorded %s (%d records total).", f.QualifiedName, s.eng.Collector().Count())
	if f.IsAnonymous() {
		msg += " Anonymous functions are excluded from the report."
	}
	return textResult(msg)
}

func (s *Server) exportReport() *mcp.CallToolResult {
	res, err := s.eng.Export()
	if err != nil {
		return errorResult(fmt.Sprintf("export failed: %v", err))
	}
	if !res.Written {
		return textResult(fmt.Sprintf("No composables to report; %s was not written.", res.Path))
	}
	return textResult(fmt.Sprintf("Wrote %d composables to %s.", res.Count, res.Path))
}

func (s *Server) queryComposables(args queryComposablesArgs) *mcp.CallToolResult {
	report, ok := s.eng.Collector().Report()
	if !ok {
		return errorResult("No composables recorded. Use record_composable or ingest_records first.")
	}

	var want stability.Stability
	if args.Stability != "" {
		st, err := stability.ParseStability(strings.ToUpper(args.Stability))
		if err != nil {
			return errorResult(err.Error())
		}
		want = st
	}

	var results []stability.FunctionRecord
	for _, f := range report.Composables {
		if args.Name != "" && !strings.Contains(f.QualifiedName, args.Name) {
			continue
		}
		if args.Skippable != nil && f.Skippable != *args.Skippable {
			continue
		}
		if args.Restartable != nil && f.Restartable != *args.Restartable {
			continue
		}
		if want != "" && !hasParamStability(f, want) {
			continue
		}
		results = append(results, f)
	}

	total := len(results)
	if total > maxQueryResults {
		results = results[:maxQueryResults]
	}
	if results == nil {
		results = []stability.FunctionRecord{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}

	text := string(data)
	if total > maxQueryResults {
		text += fmt.Sprintf("\n\n... (showing %d of %d results, refine your query)", maxQueryResults, total)
	}
	return textResult(text)
}

func (s *Server) checkBaseline() *mcp.CallToolResult {
	res, err := s.eng.Check()
	if err != nil {
		return errorResult(fmt.Sprintf("baseline check failed: %v", err))
	}
	if len(res.Changes) == 0 {
		return textResult(fmt.Sprintf("No stability changes against %s.", res.BaselinePath))
	}

	var sb strings.Builder
	if !res.HasBaseline {
		sb.WriteString(fmt.Sprintf("No baseline at %s; every composable is new.\n\n", res.BaselinePath))
	}
	sb.WriteString(fmt.Sprintf("%d stability changes:\n", len(res.Changes)))
	for _, c := range res.Changes {
		sb.WriteString("- " + c.String() + "\n")
	}
	if res.Diff != "" {
		sb.WriteString("\n```diff\n" + res.Diff + "```\n")
	}
	return textResult(sb.String())
}

func (s *Server) recordsJSONL() (string, error) {
	var buf bytes.Buffer
	if err := stability.WriteJSONL(&buf, s.eng.Collector().Records()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hasParamStability(f stability.FunctionRecord, want stability.Stability) bool {
	for _, p := range f.Parameters {
		if p.Stability == want {
			return true
		}
	}
	return false
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
