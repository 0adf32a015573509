package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/careerscope/careerscope/internal/jobsearch"
	"github.com/careerscope/careerscope/internal/payroll"
	"github.com/careerscope/careerscope/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Search  *jobsearch.Engine
	Payroll *payroll.Analyzer
}

// NewMCPServer creates an MCP server exposing job search and salary
// analytics as tools.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"careerscope",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("careerscope: search open city job postings and analyze historical payroll salaries."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_jobs",
			mcp.WithDescription("Search open job postings. Results are ranked by how many of the given keywords each posting carries."),
			mcp.WithArray("keywords", mcp.Description("Keywords every result must carry"), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("resume", mcp.Description("Resume text; recognized skills are added to the keywords")),
			mcp.WithString("title", mcp.Description("Case-insensitive substring of the job title")),
			mcp.WithString("agency", mcp.Description("Case-insensitive substring of the agency")),
			mcp.WithString("borough", mcp.Description("Manhattan, Brooklyn, Queens, Bronx or Staten Island")),
			mcp.WithBoolean("fullTime", mcp.Description("Only full-time postings")),
			mcp.WithBoolean("residency", mcp.Description("Only postings with a residency requirement")),
			mcp.WithString("minDate", mcp.Description("Earliest posting date, YYYY-MM-DD")),
			mcp.WithNumber("minSalary", mcp.Description("Minimum salary")),
			mcp.WithNumber("maxSalary", mcp.Description("Maximum salary")),
			mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
			mcp.WithNumber("pageSize", mcp.Description("Results per page, 10-100")),
		),
		mcpSearchJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("job_stats",
			withPayrollFilters("Salary statistics (count, average, median, min, max) for an exact payroll title.",
				mcp.WithString("title", mcp.Description("Payroll job title"), mcp.Required()),
			)...,
		),
		mcpJobStats(deps),
	)

	s.AddTool(
		mcp.NewTool("compare_jobs",
			withPayrollFilters("Compare salary statistics of two payroll titles, with percentage differences from A to B.",
				mcp.WithString("titleA", mcp.Description("First payroll title"), mcp.Required()),
				mcp.WithString("titleB", mcp.Description("Second payroll title"), mcp.Required()),
			)...,
		),
		mcpCompareJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("experience_stats",
			withPayrollFilters("Salary statistics for a payroll title restricted to employment spans of a given length in years.",
				mcp.WithString("title", mcp.Description("Payroll job title"), mcp.Required()),
				mcp.WithNumber("minYears", mcp.Description("Minimum years in the role")),
				mcp.WithNumber("maxYears", mcp.Description("Maximum years in the role")),
			)...,
		),
		mcpExperienceStats(deps),
	)

	s.AddTool(
		mcp.NewTool("career_transitions",
			mcp.WithDescription("Other titles held by employees who held the given title, most frequent first."),
			mcp.WithString("fromTitle", mcp.Description("Payroll job title"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of titles (default 5)")),
		),
		mcpCareerTransitions(deps),
	)

	s.AddTool(
		mcp.NewTool("advanced_job_list",
			mcp.WithDescription("Payroll titles rolled up by count, average salary and year range, highest average first."),
			mcp.WithString("agency", mcp.Description("Exact payroll agency name")),
			mcp.WithString("borough", mcp.Description("Borough")),
			mcp.WithNumber("yearFrom", mcp.Description("Keep records still employed in or after this year")),
			mcp.WithNumber("yearTo", mcp.Description("Keep records started in or before this year")),
			mcp.WithNumber("minAvgSalary", mcp.Description("Minimum average salary")),
			mcp.WithNumber("minCount", mcp.Description("Minimum number of records")),
			mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
		),
		mcpAdvancedJobList(deps),
	)

	s.AddTool(
		mcp.NewTool("payroll_titles",
			mcp.WithDescription("List the exact payroll titles accepted by job_stats, compare_jobs and experience_stats."),
			mcp.WithString("contains", mcp.Description("Case-insensitive substring to narrow the list")),
		),
		mcpPayrollTitles(deps),
	)

	return s
}

// withPayrollFilters adds the description and the shared payroll filter
// arguments to opts.
func withPayrollFilters(description string, opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{mcp.WithDescription(description)}, append(opts,
		mcp.WithString("agency", mcp.Description("Exact payroll agency name")),
		mcp.WithString("borough", mcp.Description("Borough")),
		mcp.WithNumber("minSalary", mcp.Description("Keep records whose start or end salary reaches this amount")),
	)...)
}

func payrollFilters(req mcp.CallToolRequest) (payroll.Filters, error) {
	return payroll.FilterOptions{
		Agency:    req.GetString("agency", ""),
		Borough:   req.GetString("borough", ""),
		MinSalary: req.GetArguments()["minSalary"],
	}.Parse()
}

// toolResult marshals v, or turns err into an error result. Validation
// failures are reported with their field message.
func toolResult(v any, err error) *mcp.CallToolResult {
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			return mcpError(verr.Error())
		}
		return mcpError(fmt.Sprintf("request failed: %v", err))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpSearchJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		opts := jobsearch.Options{
			Agency:    req.GetString("agency", ""),
			Title:     req.GetString("title", ""),
			Borough:   req.GetString("borough", ""),
			Keywords:  req.GetStringSlice("keywords", nil),
			Resume:    req.GetString("resume", ""),
			FullTime:  args["fullTime"],
			Residency: args["residency"],
			MinDate:   req.GetString("minDate", ""),
			MinSalary: args["minSalary"],
			MaxSalary: args["maxSalary"],
			Page:      args["page"],
			PageSize:  args["pageSize"],
		}
		res, err := deps.Search.SearchOptions(ctx, opts)
		if errors.Is(err, jobsearch.ErrNoResults) {
			return mcpText("No jobs match the search."), nil
		}
		return toolResult(res, err), nil
	}
}

func mcpJobStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		f, err := payrollFilters(req)
		if err != nil {
			return toolResult(nil, err), nil
		}
		return toolResult(deps.Payroll.JobStats(ctx, title, f)), nil
	}
}

func mcpCompareJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		titleA, err := req.RequireString("titleA")
		if err != nil {
			return mcpError("titleA is required"), nil
		}
		titleB, err := req.RequireString("titleB")
		if err != nil {
			return mcpError("titleB is required"), nil
		}
		f, err := payrollFilters(req)
		if err != nil {
			return toolResult(nil, err), nil
		}
		return toolResult(deps.Payroll.CompareJobs(ctx, titleA, titleB, f)), nil
	}
}

func mcpExperienceStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		args := req.GetArguments()
		minYears, err := validate.OptionalNumber("minYears", args["minYears"], validate.AtLeast(0))
		if err != nil {
			return toolResult(nil, err), nil
		}
		maxYears, err := validate.OptionalNumber("maxYears", args["maxYears"], validate.AtLeast(0))
		if err != nil {
			return toolResult(nil, err), nil
		}
		f, err := payrollFilters(req)
		if err != nil {
			return toolResult(nil, err), nil
		}
		return toolResult(deps.Payroll.ExperienceStats(ctx, title, minYears, maxYears, f)), nil
	}
}

func mcpCareerTransitions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		from, err := req.RequireString("fromTitle")
		if err != nil {
			return mcpError("fromTitle is required"), nil
		}
		limit := req.GetInt("limit", 0)
		if limit > 100 {
			limit = 100
		}
		return toolResult(deps.Payroll.CareerTransitions(ctx, from, limit)), nil
	}
}

func mcpAdvancedJobList(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		f, err := payroll.AdvancedOptions{
			Agency:       req.GetString("agency", ""),
			Borough:      req.GetString("borough", ""),
			YearFrom:     args["yearFrom"],
			YearTo:       args["yearTo"],
			MinAvgSalary: args["minAvgSalary"],
			MinCount:     args["minCount"],
		}.Parse()
		if err != nil {
			return toolResult(nil, err), nil
		}
		page, err := validate.Page("page", args["page"])
		if err != nil {
			return toolResult(nil, err), nil
		}
		return toolResult(deps.Payroll.AdvancedJobPage(ctx, f, page)), nil
	}
}

func mcpPayrollTitles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		titles, err := deps.Payroll.Titles(ctx)
		if err != nil {
			return toolResult(nil, err), nil
		}
		if sub := strings.ToLower(strings.TrimSpace(req.GetString("contains", ""))); sub != "" {
			kept := []string{}
			for _, t := range titles {
				if strings.Contains(strings.ToLower(t), sub) {
					kept = append(kept, t)
				}
			}
			titles = kept
		}
		return toolResult(titles, nil), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
