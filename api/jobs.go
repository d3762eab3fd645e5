package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"pathlog/models"
)

// jobEnvelope is the single-resource wrapper the backend uses for
// writes: {data: JobApplication}.
type jobEnvelope struct {
	Data models.JobApplication `json:"data"`
}

// ListJobs fetches one page of the job list with the active filters.
func (c *Client) ListJobs(ctx context.Context, page, perPage int, filters models.JobFilters) (*models.PaginatedJobs, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	if filters.Search != "" {
		query.Set("search", filters.Search)
	}
	if filters.Status != "" {
		query.Set("status", string(filters.Status))
	}
	if filters.DateApplied != "" {
		query.Set("date_applied", filters.DateApplied)
	}

	var resp models.PaginatedJobs
	if err := c.Get(ctx, "/jobs", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, id int) (*models.JobApplication, error) {
	var resp jobEnvelope
	if err := c.Get(ctx, fmt.Sprintf("/jobs/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreateJob creates a job application record.
func (c *Client) CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.JobApplication, error) {
	var resp jobEnvelope
	if err := c.Post(ctx, "/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateJob replaces the mutable fields of a job record.
func (c *Client) UpdateJob(ctx context.Context, id int, req models.CreateJobRequest) (*models.JobApplication, error) {
	var resp jobEnvelope
	if err := c.Put(ctx, fmt.Sprintf("/jobs/%d", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// DeleteJob removes a single job. Destructive, so callers wait for the
// server before updating anything visible.
func (c *Client) DeleteJob(ctx context.Context, id int) error {
	return c.Delete(ctx, fmt.Sprintf("/jobs/%d", id), nil)
}

// BulkDeleteJobs removes a set of jobs in one round trip.
func (c *Client) BulkDeleteJobs(ctx context.Context, ids []int) error {
	return c.Post(ctx, "/jobs/bulk-delete", map[string][]int{"ids": ids}, nil)
}
