package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/careerscope/careerscope/internal/config"
	"github.com/careerscope/careerscope/internal/ingest"
	"github.com/careerscope/careerscope/internal/resume"
	"github.com/careerscope/careerscope/internal/storage"
	"github.com/spf13/cobra"
)

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import dataset exports into the local store",
	Long: `Import JSON exports of job postings, payroll records and users.
Each given dataset replaces the stored one. Files default to the
import.* config keys.

Examples:
  careerscope import --postings ./postings.json
  careerscope import --payroll ./payroll.json --users ./users.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		files := importFiles(cfg)
		for flag, dst := range map[string]*string{
			"postings": &files.Postings,
			"payroll":  &files.Payroll,
			"users":    &files.Users,
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				*dst = v
			}
		}
		if files == (ingest.Files{}) {
			return fmt.Errorf("one of --postings, --payroll, or --users is required")
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		printStep("Importing into %s", cfg.Storage.DataDir)
		reports, err := ingest.NewImporter(store).ImportFiles(cmd.Context(), files)
		printReports(reports)
		return err
	},
}

func init() {
	importCmd.Flags().String("postings", "", "job postings JSON file")
	importCmd.Flags().String("payroll", "", "payroll records JSON file")
	importCmd.Flags().String("users", "", "users with tagged jobs JSON file")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search open job postings",
	Long: `Search open job postings. Results are ranked by how many of the
requested keywords each posting carries.

Examples:
  careerscope search --keywords python,sql --borough brooklyn
  careerscope search --resume-pdf ./resume.pdf --full-time`,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := searchBody(cmd)
		if err != nil {
			return err
		}
		return postAndPrint(cmd.Context(), "/jobs/search", body)
	},
}

func init() {
	f := searchCmd.Flags()
	f.String("keywords", "", "comma-separated keywords every result must carry")
	f.String("resume", "", "plain-text resume file")
	f.String("resume-pdf", "", "PDF resume file")
	f.String("title", "", "job title substring")
	f.String("agency", "", "agency substring")
	f.String("borough", "", "borough")
	f.Bool("full-time", false, "only full-time postings")
	f.Bool("residency", false, "only postings with a residency requirement")
	f.String("min-date", "", "earliest posting date, YYYY-MM-DD")
	f.Float64("min-salary", 0, "minimum salary")
	f.Float64("max-salary", 0, "maximum salary")
	f.Int("page", 1, "page number")
	f.Int("page-size", 10, "results per page, 10-100")
	f.String("user", "", "restrict to jobs tagged by this user")
	f.String("tag", "", "restrict to the user's jobs with this tag status")
}

// searchBody builds the search request from the flags that were set.
func searchBody(cmd *cobra.Command) (map[string]any, error) {
	f := cmd.Flags()
	body := map[string]any{}

	for flag, field := range map[string]string{
		"title":    "title",
		"agency":   "agency",
		"borough":  "borough",
		"min-date": "minDate",
		"user":     "userId",
		"tag":      "jobTag",
	} {
		if v, _ := f.GetString(flag); v != "" {
			body[field] = v
		}
	}
	for flag, field := range map[string]string{"full-time": "fullTime", "residency": "residency"} {
		if f.Changed(flag) {
			v, _ := f.GetBool(flag)
			body[field] = v
		}
	}
	for flag, field := range map[string]string{"min-salary": "minSalary", "max-salary": "maxSalary"} {
		if f.Changed(flag) {
			v, _ := f.GetFloat64(flag)
			body[field] = v
		}
	}
	for flag, field := range map[string]string{"page": "page", "page-size": "pageSize"} {
		if f.Changed(flag) {
			v, _ := f.GetInt(flag)
			body[field] = v
		}
	}

	if kw, _ := f.GetString("keywords"); kw != "" {
		body["keywords"] = splitList(kw)
	}

	var resumeText []string
	if path, _ := f.GetString("resume"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading resume: %w", err)
		}
		resumeText = append(resumeText, string(data))
	}
	if path, _ := f.GetString("resume-pdf"); path != "" {
		text, err := resume.TextFromFile(path)
		if err != nil {
			return nil, err
		}
		resumeText = append(resumeText, text)
	}
	if len(resumeText) > 0 {
		body["resume"] = strings.Join(resumeText, "\n")
	}
	return body, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// --- options ---

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the values available for search or payroll filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/jobs/options"
		if p, _ := cmd.Flags().GetBool("payroll"); p {
			path = "/compare/options"
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var out any
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	optionsCmd.Flags().Bool("payroll", false, "list payroll titles, boroughs, agencies and years")
}

// --- payroll analytics ---

func addPayrollFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("agency", "", "exact payroll agency name")
	cmd.Flags().String("borough", "", "borough")
	cmd.Flags().Float64("min-salary", 0, "keep records whose start or end salary reaches this amount")
}

func payrollFilterBody(cmd *cobra.Command) map[string]any {
	f := cmd.Flags()
	body := map[string]any{}
	if v, _ := f.GetString("agency"); v != "" {
		body["agency"] = v
	}
	if v, _ := f.GetString("borough"); v != "" {
		body["borough"] = v
	}
	if f.Changed("min-salary") {
		v, _ := f.GetFloat64("min-salary")
		body["minSalary"] = v
	}
	return body
}

var statsCmd = &cobra.Command{
	Use:   "stats <title>",
	Short: "Salary statistics for a payroll title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postAndPrint(cmd.Context(), "/compare/stats", map[string]any{
			"title":   strings.Join(args, " "),
			"filters": payrollFilterBody(cmd),
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <titleA> <titleB>",
	Short: "Compare the salaries of two payroll titles",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postAndPrint(cmd.Context(), "/compare/jobs", map[string]any{
			"titleA":  args[0],
			"titleB":  args[1],
			"filters": payrollFilterBody(cmd),
		})
	},
}

var transitionsCmd = &cobra.Command{
	Use:   "transitions <title>",
	Short: "Titles most often held by employees who held title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"fromTitle": strings.Join(args, " ")}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			body["limit"] = limit
		}
		return postAndPrint(cmd.Context(), "/compare/transitions", body)
	},
}

var experienceCmd = &cobra.Command{
	Use:   "experience <title>",
	Short: "Salary statistics for a payroll title by years in the role",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"title":   strings.Join(args, " "),
			"filters": payrollFilterBody(cmd),
		}
		for flag, field := range map[string]string{"min-years": "minYears", "max-years": "maxYears"} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetFloat64(flag)
				body[field] = v
			}
		}
		return postAndPrint(cmd.Context(), "/compare/experience", body)
	},
}

var advancedCmd = &cobra.Command{
	Use:   "advanced",
	Short: "Payroll titles rolled up by count, average salary and year range",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		body := map[string]any{}
		if v, _ := f.GetString("agency"); v != "" {
			body["agency"] = v
		}
		if v, _ := f.GetString("borough"); v != "" {
			body["borough"] = v
		}
		for flag, field := range map[string]string{
			"year-from": "yearFrom",
			"year-to":   "yearTo",
			"min-count": "minCount",
			"page":      "page",
		} {
			if f.Changed(flag) {
				v, _ := f.GetInt(flag)
				body[field] = v
			}
		}
		if f.Changed("min-avg-salary") {
			v, _ := f.GetFloat64("min-avg-salary")
			body["minAvgSalary"] = v
		}
		return postAndPrint(cmd.Context(), "/compare/advanced", body)
	},
}

func init() {
	addPayrollFilterFlags(statsCmd)
	addPayrollFilterFlags(compareCmd)
	addPayrollFilterFlags(experienceCmd)

	transitionsCmd.Flags().Int("limit", 0, "maximum number of titles (default from transitions.limit)")

	experienceCmd.Flags().Float64("min-years", 0, "minimum years in the role")
	experienceCmd.Flags().Float64("max-years", 0, "maximum years in the role")

	f := advancedCmd.Flags()
	f.String("agency", "", "exact payroll agency name")
	f.String("borough", "", "borough")
	f.Int("year-from", 0, "keep records still employed in or after this year")
	f.Int("year-to", 0, "keep records started in or before this year")
	f.Float64("min-avg-salary", 0, "minimum average salary")
	f.Int("min-count", 0, "minimum number of records")
	f.Int("page", 1, "page number")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			line := fmt.Sprintf("%-22s %-36s %s", k.Key, colorize(colorCyan, k.EnvVar), k.Value)
			if k.Default != "" {
				line += colorize(colorYellow, fmt.Sprintf(" (default %s)", k.Default))
			}
			fmt.Fprintln(stdout, line)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a key to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a key from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
