// handlers/web/jobs.go
package web

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pathlog/api"
	"pathlog/config"
	"pathlog/middleware"
	"pathlog/models"
	"pathlog/notify"
	"pathlog/query"
	"pathlog/utils"
)

const defaultPerPage = 10

type JobsHandler struct {
	config *config.Config
	client *api.Client
	cache  *query.Cache
	toasts *notify.Store
}

func NewJobsHandler(cfg *config.Config, client *api.Client, cache *query.Cache, toasts *notify.Store) *JobsHandler {
	return &JobsHandler{
		config: cfg,
		client: client,
		cache:  cache,
		toasts: toasts,
	}
}

// listParams reads page, page size and the active filters off the
// request.
func listParams(c *fiber.Ctx) (page, perPage int, filters models.JobFilters) {
	page = 1
	if p := c.Query("page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 {
			page = val
		}
	}
	perPage = defaultPerPage
	if p := c.Query("per_page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 && val <= 100 {
			perPage = val
		}
	}
	filters = models.JobFilters{
		Search:      strings.TrimSpace(c.Query("search")),
		Status:      models.JobStatus(c.Query("status")),
		DateApplied: c.Query("date_applied"),
	}
	if filters.Status != "" && !models.ValidStatus(filters.Status) {
		filters.Status = ""
	}
	return page, perPage, filters
}

// scope returns the session's cache key namespace.
func scope(c *fiber.Ctx) query.Scope {
	return query.ForSession(middleware.SessionID(c))
}

// list reads one page through the cache; concurrent requests for the
// same page share a single backend call.
func (h *JobsHandler) list(c *fiber.Ctx, page, perPage int, filters models.JobFilters) (*models.PaginatedJobs, error) {
	data, err := h.cache.Fetch(c.UserContext(), scope(c).JobList(page, perPage, filters), func(ctx context.Context) (interface{}, error) {
		return h.client.ListJobs(ctx, page, perPage, filters)
	})
	if err != nil {
		return nil, err
	}
	return data.(*models.PaginatedJobs), nil
}

// listData assembles the dashboard render payload. The only error it
// surfaces is a cancellation; any other list failure already toasted in
// the client, so the page shell renders rather than stranding the user
// on a blank screen.
func (h *JobsHandler) listData(c *fiber.Ctx) (fiber.Map, error) {
	page, perPage, filters := listParams(c)

	jobs, err := h.list(c, page, perPage, filters)
	if err != nil {
		if api.IsCancelled(err) {
			return nil, err
		}
		jobs = &models.PaginatedJobs{Meta: models.PaginationMeta{CurrentPage: page, PerPage: perPage, LastPage: 1}}
	}

	user, _ := c.Locals("user").(models.User)

	previews := make(map[int]string, len(jobs.Data))
	for _, job := range jobs.Data {
		if job.JobDescriptionText != "" {
			previews[job.ID] = utils.TextPreview(job.JobDescriptionText, 120)
		}
	}

	return fiber.Map{
		"User":       user,
		"Jobs":       jobs.Data,
		"Pagination": jobs,
		"Previews":   previews,
		"Search":     filters.Search,
		"Status":     string(filters.Status),
		"Date":       filters.DateApplied,
		"PerPage":    perPage,
		"Toast":      h.toasts.Current(middleware.SessionID(c)),
		"CSRFToken":  c.Locals("csrf"),
		"Lang":       middleware.Lang(c),
		"Form":       models.CreateJobRequest{},
	}, nil
}

// HandleJobs renders the dashboard: the paginated, filterable list.
func (h *JobsHandler) HandleJobs(c *fiber.Ctx) error {
	data, err := h.listData(c)
	if err != nil {
		return nil
	}
	return c.Render("jobs", data)
}

// renderFormError re-renders the dashboard with the submitted values
// and the validation message inline, alongside the toast the client
// already raised.
func (h *JobsHandler) renderFormError(c *fiber.Ctx, req models.CreateJobRequest, err error) error {
	data, derr := h.listData(c)
	if derr != nil {
		return nil
	}
	data["Form"] = req
	data["FormError"] = formMessage(err, "Could not save the application")
	return c.Status(formStatus(err)).Render("jobs", data)
}

// HandleJobDetail renders one job for the details modal.
func (h *JobsHandler) HandleJobDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.BadRequestError("Invalid job id", err)
	}

	data, err := h.cache.Fetch(c.UserContext(), scope(c).JobDetail(id), func(ctx context.Context) (interface{}, error) {
		return h.client.GetJob(ctx, id)
	})
	if err != nil {
		if api.IsCancelled(err) {
			return nil
		}
		return err
	}

	job := data.(*models.JobApplication)
	return c.Render("job_detail", fiber.Map{
		"Job":         job,
		"Description": utils.SanitizeDescription(job.JobDescriptionText),
		"CSRFToken":   c.Locals("csrf"),
	}, "")
}

// HandleCreateJob creates a record and refreshes every cached job read.
func (h *JobsHandler) HandleCreateJob(c *fiber.Ctx) error {
	req, err := jobForm(c)
	if err != nil {
		return err
	}

	if _, err := h.client.CreateJob(c.UserContext(), req); err != nil {
		if api.IsKind(err, api.KindValidation) {
			return h.renderFormError(c, req, err)
		}
		return redirectBack(c, "/jobs")
	}

	// Invalidation only on the success path; a failed write must leave
	// the cache untouched.
	h.cache.Invalidate(scope(c).JobsRoot())
	h.toasts.Success(c.UserContext(), "toast_job_created")
	return redirectBack(c, "/jobs")
}

// HandleUpdateJob updates a record; its detail entry and every list
// page go stale together.
func (h *JobsHandler) HandleUpdateJob(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.BadRequestError("Invalid job id", err)
	}

	req, err := jobForm(c)
	if err != nil {
		return err
	}

	if _, err := h.client.UpdateJob(c.UserContext(), id, req); err != nil {
		if api.IsKind(err, api.KindValidation) {
			return h.renderFormError(c, req, err)
		}
		return redirectBack(c, "/jobs")
	}

	h.cache.Invalidate(scope(c).JobDetail(id))
	h.cache.Invalidate(scope(c).JobLists())
	h.toasts.Success(c.UserContext(), "toast_job_updated")
	return redirectBack(c, "/jobs")
}

// HandleDeleteJob removes one record. No optimistic removal: the list
// only changes after the server confirms.
func (h *JobsHandler) HandleDeleteJob(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.BadRequestError("Invalid job id", err)
	}

	if err := h.client.DeleteJob(c.UserContext(), id); err != nil {
		return redirectBack(c, "/jobs")
	}

	h.cache.Invalidate(scope(c).JobsRoot())
	h.toasts.Success(c.UserContext(), "toast_job_deleted")
	return redirectBack(c, "/jobs")
}

// HandleBulkDelete removes the selected records in one round trip. The
// selection lives in the form; success clears it by virtue of the
// redirect re-rendering an unselected list.
func (h *JobsHandler) HandleBulkDelete(c *fiber.Ctx) error {
	ids, err := parseIDList(c.FormValue("ids"))
	if err != nil || len(ids) == 0 {
		return utils.BadRequestError("No jobs selected", err)
	}

	if err := h.client.BulkDeleteJobs(c.UserContext(), ids); err != nil {
		return redirectBack(c, "/jobs")
	}

	h.cache.Invalidate(scope(c).JobsRoot())
	h.toasts.Success(c.UserContext(), "toast_jobs_deleted")
	return redirectBack(c, "/jobs")
}

// jobForm validates and assembles the create/update payload. Only
// cheap local checks happen here; real validation is the backend's.
func jobForm(c *fiber.Ctx) (models.CreateJobRequest, error) {
	req := models.CreateJobRequest{
		CompanyName:        strings.TrimSpace(c.FormValue("company_name")),
		JobTitle:           strings.TrimSpace(c.FormValue("job_title")),
		Status:             models.JobStatus(c.FormValue("status")),
		AppliedAt:          c.FormValue("applied_at"),
		JobDescriptionURL:  strings.TrimSpace(c.FormValue("job_description_url")),
		JobDescriptionText: utils.SanitizeDescription(c.FormValue("job_description_text")),
		ContactPerson:      strings.TrimSpace(c.FormValue("contact_person")),
		ContactPersonEmail: strings.TrimSpace(c.FormValue("contact_person_email")),
	}

	if req.CompanyName == "" || req.JobTitle == "" {
		return req, utils.BadRequestError("Company and title are required", nil)
	}
	if !models.ValidStatus(req.Status) {
		return req, utils.BadRequestError("Unknown status", nil)
	}
	return req, nil
}

func parseIDList(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil || id <= 0 {
			return nil, utils.BadRequestError("Invalid job id "+p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// redirectBack returns to the page the form was posted from so the
// active page and filters survive the round trip.
func redirectBack(c *fiber.Ctx, fallback string) error {
	if ref := c.Get("Referer"); ref != "" {
		return c.Redirect(ref)
	}
	return c.Redirect(fallback)
}
