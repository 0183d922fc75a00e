package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/auth"
)

const maxPages = 10000

type HTTPConfig struct {
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// HTTPSource reads the directory's paginated employee endpoint.
type HTTPSource struct {
	baseURL  string
	pageSize int
	timeout  time.Duration
	tokens   auth.TokenIssuer
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewHTTPSource builds a source. tokens may be nil when the directory is
// reachable without authentication.
func NewHTTPSource(config HTTPConfig, tokens auth.TokenIssuer, logger *slog.Logger) *HTTPSource {
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPSource{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		pageSize: pageSize,
		timeout:  timeout,
		tokens:   tokens,
		client:   &http.Client{},
		logger:   logger,
		now:      time.Now,
	}
}

type employeesPage struct {
	Data     []EmployeeRecord `json:"data"`
	NextPage *int             `json:"next_page"`
}

func (s *HTTPSource) Fetch(ctx context.Context, tenantID string) (Snapshot, error) {
	if tenantID == "" {
		return Snapshot{}, internal.ErrTenantRequired
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	var token string
	if s.tokens != nil {
		t, err := s.tokens.Issue(tenantID)
		if err != nil {
			return Snapshot{}, unavailable(tenantID, err)
		}
		token = t
	}

	s.logger.Info("fetching employee snapshot",
		"tenant_id", tenantID,
		"base_url", s.baseURL,
		"page_size", s.pageSize)

	var records []EmployeeRecord
	page, pages := 1, 0
	for {
		if pages >= maxPages {
			return Snapshot{}, unavailable(tenantID, fmt.Errorf("more than %d pages", maxPages))
		}

		resp, err := s.fetchPage(ctx, tenantID, page, token)
		if err != nil {
			s.logger.Error("employee snapshot fetch failed",
				"tenant_id", tenantID,
				"page", page,
				"error", err)
			return Snapshot{}, unavailable(tenantID, err)
		}
		pages++
		records = append(records, resp.Data...)

		if resp.NextPage == nil {
			break
		}
		if *resp.NextPage <= page {
			return Snapshot{}, unavailable(tenantID, fmt.Errorf("next_page %d does not advance past %d", *resp.NextPage, page))
		}
		page = *resp.NextPage
	}

	if err := checkTenant(tenantID, records); err != nil {
		return Snapshot{}, err
	}
	if err := checkDuplicates(records); err != nil {
		return Snapshot{}, unavailable(tenantID, err)
	}

	s.logger.Info("employee snapshot fetched",
		"tenant_id", tenantID,
		"records", len(records),
		"pages", pages)

	return NewSnapshot(tenantID, records, pages, s.now()), nil
}

func (s *HTTPSource) fetchPage(ctx context.Context, tenantID string, page int, token string) (*employeesPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(s.pageSize))
	endpoint := fmt.Sprintf("%s/api/v1/tenants/%s/employees?%s", s.baseURL, url.PathEscape(tenantID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch timed out after %s: %w", s.timeout, err)
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("directory returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out employeesPage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
