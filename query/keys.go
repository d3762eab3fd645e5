package query

import (
	"net/url"
	"strconv"
	"strings"

	"pathlog/models"
)

// Key is the ordered composite identifier of a cached read: session
// scope, resource, operation, then parameters. Invalidation is scoped
// by key prefix, so every job-list page and every job detail of one
// session sits under that session's "jobs" root.
type Key []string

// String renders the key for map storage. Parts are escaped so a
// search string containing the separator cannot collide with another
// key.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = url.QueryEscape(p)
	}
	return strings.Join(parts, "/")
}

// HasPrefix reports whether k sits under prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Scope namespaces keys by browser session. The cache is one process-
// wide instance; two logins must never see each other's pages.
type Scope struct {
	session string
}

// ForSession returns the key scope of one browser session.
func ForSession(sessionID string) Scope {
	return Scope{session: sessionID}
}

// Root covers everything this session has cached.
func (s Scope) Root() Key {
	return Key{s.session}
}

// JobsRoot covers every cached job read: all list pages and details.
func (s Scope) JobsRoot() Key {
	return Key{s.session, "jobs"}
}

// JobLists covers every list page regardless of parameters.
func (s Scope) JobLists() Key {
	return Key{s.session, "jobs", "list"}
}

// JobList addresses one page of the list under one filter set.
func (s Scope) JobList(page, perPage int, filters models.JobFilters) Key {
	return Key{
		s.session, "jobs", "list",
		strconv.Itoa(page),
		strconv.Itoa(perPage),
		filters.Search,
		string(filters.Status),
		filters.DateApplied,
	}
}

// JobDetail addresses a single job record.
func (s Scope) JobDetail(id int) Key {
	return Key{s.session, "jobs", "detail", strconv.Itoa(id)}
}

// Settings addresses the session's settings row.
func (s Scope) Settings() Key {
	return Key{s.session, "settings"}
}
