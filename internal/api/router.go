package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/careerscope/careerscope/internal/jobsearch"
	"github.com/careerscope/careerscope/internal/payroll"
	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/validate"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Records reads single postings and users.
type Records interface {
	GetPosting(ctx context.Context, id string) (storage.JobPosting, error)
	GetUser(ctx context.Context, id string) (storage.User, error)
}

type Deps struct {
	Search  *jobsearch.Engine
	Payroll *payroll.Analyzer
	Records Records
	// Token enables bearer auth on every route except /health.
	Token string
}

// NewHandler returns the JSON API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/jobs/search", handleSearch(deps))
		r.Get("/jobs/options", handleDropdown(deps))
		r.Get("/jobs/{id}", handleGetPosting(deps))
		r.Get("/users/{id}", handleGetUser(deps))

		r.Route("/compare", func(r chi.Router) {
			r.Get("/options", handleCompareOptions(deps))
			r.Post("/data", handleSalaryData(deps))
			r.Post("/stats", handleJobStats(deps))
			r.Post("/transitions", handleTransitions(deps))
			r.Post("/jobs", handleCompareJobs(deps))
			r.Post("/graph", handleGraphData(deps))
			r.Post("/advanced", handleAdvanced(deps))
			r.Post("/experience", handleExperience(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// emptySearch is the response for a well-formed search without matches.
type emptySearch struct {
	jobsearch.Result
	Message string `json:"message"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts jobsearch.Options
		if !decodeBody(w, r, &opts) {
			return
		}

		res, err := deps.Search.SearchOptions(r.Context(), opts)
		if errors.Is(err, jobsearch.ErrNoResults) {
			writeJSON(w, emptySearch{
				Result:  jobsearch.Result{Jobs: []storage.ScoredPosting{}},
				Message: "No jobs match your search.",
			})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, res)
	}
}

func handleDropdown(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Search.DropdownOptions(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, d)
	}
}

func handleGetPosting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Records.GetPosting(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, p)
	}
}

func handleGetUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := deps.Records.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, u)
	}
}

func handleCompareOptions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Payroll.CompareOptions(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, c)
	}
}

func handleSalaryData(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobTitle string `json:"jobTitle"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		sals, err := deps.Payroll.AllSalariesForJob(r.Context(), req.JobTitle, payroll.Filters{})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"salaries": sals})
	}
}

func handleJobStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title   string                `json:"title"`
			Filters payroll.FilterOptions `json:"filters"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		f, err := req.Filters.Parse()
		if err != nil {
			writeError(w, r, err)
			return
		}
		st, err := deps.Payroll.JobStats(r.Context(), req.Title, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, st)
	}
}

func handleTransitions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FromTitle string `json:"fromTitle"`
			Limit     any    `json:"limit"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		limit, err := validate.NumberOr("limit", req.Limit, 0, validate.AtLeast(0), validate.AtMost(100))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ts, err := deps.Payroll.CareerTransitions(r.Context(), req.FromTitle, int(limit))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"transitions": ts})
	}
}

func handleCompareJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TitleA  string                `json:"titleA"`
			TitleB  string                `json:"titleB"`
			Filters payroll.FilterOptions `json:"filters"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		f, err := req.Filters.Parse()
		if err != nil {
			writeError(w, r, err)
			return
		}
		c, err := deps.Payroll.CompareJobs(r.Context(), req.TitleA, req.TitleB, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, c)
	}
}

func handleGraphData(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title   string                `json:"title"`
			Filters payroll.FilterOptions `json:"filters"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		f, err := req.Filters.Parse()
		if err != nil {
			writeError(w, r, err)
			return
		}
		sals, err := deps.Payroll.AllSalariesForJob(r.Context(), req.Title, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		url, err := deps.Payroll.ListingURL(r.Context(), req.Title)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"salaries": sals, "listingUrl": url})
	}
}

func handleAdvanced(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			payroll.AdvancedOptions
			Page any `json:"page"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		f, err := req.AdvancedOptions.Parse()
		if err != nil {
			writeError(w, r, err)
			return
		}
		page, err := validate.Page("page", req.Page)
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := deps.Payroll.AdvancedJobPage(r.Context(), f, page)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, p)
	}
}

func handleExperience(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string                `json:"title"`
			MinYears any                   `json:"minYears"`
			MaxYears any                   `json:"maxYears"`
			Filters  payroll.FilterOptions `json:"filters"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		minYears, err := validate.OptionalNumber("minYears", req.MinYears, validate.AtLeast(0))
		if err != nil {
			writeError(w, r, err)
			return
		}
		maxYears, err := validate.OptionalNumber("maxYears", req.MaxYears, validate.AtLeast(0))
		if err != nil {
			writeError(w, r, err)
			return
		}
		f, err := req.Filters.Parse()
		if err != nil {
			writeError(w, r, err)
			return
		}
		st, err := deps.Payroll.ExperienceStats(r.Context(), req.Title, minYears, maxYears, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, st)
	}
}
