package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/careerscope/careerscope/internal/jobsearch"
	"github.com/careerscope/careerscope/internal/keywords"
	"github.com/careerscope/careerscope/internal/payroll"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	store := seedStore(t)
	return MCPDeps{
		Search:  jobsearch.New(store, keywords.NewExtractor([]string{"python", "sql", "autocad"})),
		Payroll: payroll.New(store),
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func decodeTool(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
}

// --- tests ---

func TestMCPServerRegistersTools(t *testing.T) {
	s := NewMCPServer(newTestMCPDeps(t), "test")
	msg := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, name := range []string{"search_jobs", "job_stats", "compare_jobs", "experience_stats", "career_transitions", "advanced_job_list", "payroll_titles"} {
		if !strings.Contains(string(b), `"`+name+`"`) {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestMCPTool_SearchJobs(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpSearchJobs(deps), "search_jobs", map[string]interface{}{
		"keywords": []interface{}{"autocad"},
		"fullTime": false,
	})

	var res jobsearch.Result
	decodeTool(t, result, &res)
	if res.PageInfo.NumResults != 1 || res.Jobs[0].ID != "2" {
		t.Errorf("result = %+v, want posting 2", res)
	}
}

func TestMCPTool_SearchJobs_NoResults(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpSearchJobs(deps), "search_jobs", map[string]interface{}{"title": "astronaut"})
	if result.IsError {
		t.Fatalf("no results should not be an error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "No jobs") {
		t.Errorf("text = %q", toolText(t, result))
	}
}

func TestMCPTool_SearchJobs_InvalidBorough(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpSearchJobs(deps), "search_jobs", map[string]interface{}{"borough": "Hoboken"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "borough") {
		t.Errorf("error should name the field, got %q", toolText(t, result))
	}
}

func TestMCPTool_JobStats(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpJobStats(deps), "job_stats", map[string]interface{}{
		"title":     "Clerk",
		"minSalary": 41000,
	})

	var st payroll.Stats
	decodeTool(t, result, &st)
	if st.Count != 1 || st.Avg == nil || *st.Avg != 42000 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMCPTool_JobStats_MissingTitle(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpJobStats(deps), "job_stats", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestMCPTool_CompareJobs(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpCompareJobs(deps), "compare_jobs", map[string]interface{}{
		"titleA": "Clerk",
		"titleB": "Data Analyst",
	})

	var c payroll.Comparison
	decodeTool(t, result, &c)
	if c.A.Count != 2 || c.B.Count != 1 || c.Diffs.AvgPct == nil {
		t.Errorf("comparison = %+v", c)
	}
}

func TestMCPTool_ExperienceStats(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpExperienceStats(deps), "experience_stats", map[string]interface{}{
		"title":    "Clerk",
		"maxYears": 5,
	})

	var st payroll.ExperienceResult
	decodeTool(t, result, &st)
	if st.Count != 1 || st.Avg == nil || *st.Avg != 42000 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMCPTool_CareerTransitions(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpCareerTransitions(deps), "career_transitions", map[string]interface{}{
		"fromTitle": "Clerk",
		"limit":     3,
	})

	var ts []payroll.Transition
	decodeTool(t, result, &ts)
	if len(ts) != 1 || ts[0].Title != "Data Analyst" {
		t.Errorf("transitions = %+v", ts)
	}
}

func TestMCPTool_AdvancedJobList(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpAdvancedJobList(deps), "advanced_job_list", map[string]interface{}{
		"yearFrom": 2019,
	})

	var p payroll.AggregatePage
	decodeTool(t, result, &p)
	// Clerk r3 (2010-2020) and Data Analyst r2 (2019-2021) overlap 2019 onwards.
	if p.TotalResults != 2 {
		t.Errorf("page = %+v", p)
	}

	bad := callTool(t, mcpAdvancedJobList(deps), "advanced_job_list", map[string]interface{}{"yearTo": 3000})
	if !bad.IsError {
		t.Error("expected error for out-of-range year")
	}
}

func TestMCPTool_PayrollTitles(t *testing.T) {
	deps := newTestMCPDeps(t)

	var all []string
	decodeTool(t, callTool(t, mcpPayrollTitles(deps), "payroll_titles", nil), &all)
	if len(all) != 2 || all[0] != "Clerk" || all[1] != "Data Analyst" {
		t.Errorf("titles = %v", all)
	}

	var some []string
	decodeTool(t, callTool(t, mcpPayrollTitles(deps), "payroll_titles", map[string]interface{}{"contains": "ANALYST"}), &some)
	if len(some) != 1 || some[0] != "Data Analyst" {
		t.Errorf("filtered titles = %v", some)
	}

	var none []string
	decodeTool(t, callTool(t, mcpPayrollTitles(deps), "payroll_titles", map[string]interface{}{"contains": "pilot"}), &none)
	if none == nil || len(none) != 0 {
		t.Errorf("no match should be an empty list, got %v", none)
	}
}
