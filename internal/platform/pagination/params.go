package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

var (
	ErrInvalidPage   = errors.New("pagination: invalid page")
	ErrInvalidLimit  = errors.New("pagination: invalid limit")
	ErrInvalidFilter = errors.New("pagination: invalid filter")
)

// Params bundles paging and status filtering values extracted from a request.
type Params struct {
	Page     int
	Limit    int
	Statuses []string
}

// Pagination converts the parsed values into the domain paging input.
func (p Params) Pagination() domain.Pagination {
	return domain.Pagination{Page: p.Page, Limit: p.Limit}
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultLimit    int
	MaxLimit        int
	AllowedStatuses []string
}

// FromRequest parses the supported query parameters from the supplied request.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes page, limit and status from the query. Limits above the maximum are clamped rather
// than rejected.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	page, err := parsePage(values.Get("page"))
	if err != nil {
		return Params{}, err
	}
	limit, err := parseLimit(values.Get("limit"), opts)
	if err != nil {
		return Params{}, err
	}
	statuses, err := parseStatuses(values["status"], opts.AllowedStatuses)
	if err != nil {
		return Params{}, err
	}

	return Params{Page: page, Limit: limit, Statuses: statuses}, nil
}

func parsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPage)
	}
	if value < 1 {
		return 0, fmt.Errorf("%w: must be at least 1", ErrInvalidPage)
	}
	return value, nil
}

func parseLimit(raw string, opts Options) (int, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = domain.MaxPageLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultPageLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidLimit)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidLimit)
	}
	if value > maxLimit {
		value = maxLimit
	}
	return value, nil
}

func parseStatuses(values []string, allowed []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, status := range allowed {
		allowedSet[status] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			status := strings.ToLower(strings.TrimSpace(part))
			if status == "" {
				continue
			}
			if len(allowedSet) == 0 {
				return nil, fmt.Errorf("%w: status filtering not supported", ErrInvalidFilter)
			}
			if _, ok := allowedSet[status]; !ok {
				return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidFilter, status)
			}
			if _, dup := seen[status]; dup {
				continue
			}
			seen[status] = struct{}{}
			out = append(out, status)
		}
	}
	return out, nil
}
