package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pathlog/models"
)

func TestKeyString_EscapesSeparator(t *testing.T) {
	scope := ForSession("s1")

	// A search string containing the separator must not collide with a
	// differently shaped key.
	withSlash := scope.JobList(1, 10, models.JobFilters{Search: "a/b"})
	plain := scope.JobList(1, 10, models.JobFilters{Search: "a"})

	assert.NotEqual(t, withSlash.String(), plain.String())
	assert.Contains(t, withSlash.String(), "a%2Fb")
}

func TestKeyHasPrefix(t *testing.T) {
	scope := ForSession("s1")

	page := scope.JobList(2, 10, models.JobFilters{Status: models.StatusApplied})
	detail := scope.JobDetail(7)

	assert.True(t, page.HasPrefix(scope.JobsRoot()))
	assert.True(t, page.HasPrefix(scope.JobLists()))
	assert.True(t, detail.HasPrefix(scope.JobsRoot()))
	assert.False(t, detail.HasPrefix(scope.JobLists()))
	assert.False(t, scope.Settings().HasPrefix(scope.JobsRoot()))
}

func TestScope_SessionsDoNotOverlap(t *testing.T) {
	a := ForSession("session-a")
	b := ForSession("session-b")

	assert.False(t, b.JobList(1, 10, models.JobFilters{}).HasPrefix(a.JobsRoot()))
	assert.False(t, b.Settings().HasPrefix(a.Root()))
}

func TestKeyStringHasPrefix_Boundary(t *testing.T) {
	// "jobs" must not match "jobsite": prefixes end at a separator.
	assert.True(t, keyStringHasPrefix("s1/jobs/list/1", "s1/jobs"))
	assert.True(t, keyStringHasPrefix("s1/jobs", "s1/jobs"))
	assert.False(t, keyStringHasPrefix("s1/jobsite/list/1", "s1/jobs"))
	assert.True(t, keyStringHasPrefix("anything", ""))
}
