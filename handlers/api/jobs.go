// handlers/api/jobs.go
package api

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	client "pathlog/api"
	"pathlog/middleware"
	"pathlog/models"
	"pathlog/query"
	"pathlog/utils"
)

// JobsHandler serves the JSON endpoints the jobs page uses for
// repagination without a full reload. This is where placeholder-data
// semantics are visible on the wire: while a new page is loading we
// answer with the previous page marked stale instead of nothing.
type JobsHandler struct {
	client *client.Client
	cache  *query.Cache
}

func NewJobsHandler(apiClient *client.Client, cache *query.Cache) *JobsHandler {
	return &JobsHandler{
		client: apiClient,
		cache:  cache,
	}
}

// listResponse is the page envelope plus the flags consumers need to
// tell "stale page N-1 while N loads" apart from "no data yet".
type listResponse struct {
	Data  []models.JobApplication `json:"data"`
	Meta  models.PaginationMeta   `json:"meta"`
	Stale bool                    `json:"stale"`
}

// GetJobs returns one page of the list. A request abandoned by the
// browser (tab closed, superseded by new parameters) is dropped
// without response or cache write; the front end never sees an error
// for it.
func (h *JobsHandler) GetJobs(c *fiber.Ctx) error {
	page, perPage, filters := listQuery(c)
	scope := query.ForSession(middleware.SessionID(c))
	key := scope.JobList(page, perPage, filters)

	// Serve the previous page as placeholder when this key has no data
	// yet but a sibling page does and the fetch is still running.
	if peek := h.cache.Peek(key); !peek.HasData {
		if prev, ok := h.cache.Placeholder(scope.JobLists()); ok {
			go h.warm(c.UserContext(), key, page, perPage, filters)
			jobs := prev.(*models.PaginatedJobs)
			return c.JSON(listResponse{Data: jobs.Data, Meta: jobs.Meta, Stale: true})
		}
	}

	data, err := h.cache.Fetch(c.UserContext(), key, func(ctx context.Context) (interface{}, error) {
		return h.client.ListJobs(ctx, page, perPage, filters)
	})
	if err != nil {
		if client.IsCancelled(err) {
			return nil
		}
		return err
	}

	jobs := data.(*models.PaginatedJobs)
	return c.JSON(listResponse{Data: jobs.Data, Meta: jobs.Meta})
}

// GetJob returns one record for the details modal.
func (h *JobsHandler) GetJob(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.BadRequestError("Invalid job id", err)
	}

	scope := query.ForSession(middleware.SessionID(c))
	data, err := h.cache.Fetch(c.UserContext(), scope.JobDetail(id), func(ctx context.Context) (interface{}, error) {
		return h.client.GetJob(ctx, id)
	})
	if err != nil {
		if client.IsCancelled(err) {
			return nil
		}
		return err
	}

	return c.JSON(fiber.Map{"data": data})
}

// warm starts the real fetch behind a placeholder response. It runs on
// a detached context: the browser request that triggered it already
// got its placeholder back.
func (h *JobsHandler) warm(ctx context.Context, key query.Key, page, perPage int, filters models.JobFilters) {
	detached := client.WithSessionID(context.Background(), client.SessionID(ctx))
	_, err := h.cache.Fetch(detached, key, func(ctx context.Context) (interface{}, error) {
		return h.client.ListJobs(ctx, page, perPage, filters)
	})
	if err != nil && !client.IsCancelled(err) {
		utils.Log.Debug("background page fetch failed: %v", err)
	}
}

func listQuery(c *fiber.Ctx) (page, perPage int, filters models.JobFilters) {
	page = 1
	if val, err := strconv.Atoi(c.Query("page")); err == nil && val > 0 {
		page = val
	}
	perPage = 10
	if val, err := strconv.Atoi(c.Query("per_page")); err == nil && val > 0 && val <= 100 {
		perPage = val
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
