/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
)

const pageSize = 100

// Client collects issues with their status changelogs from Jira Cloud.
// It owns pagination, auth and retry; consumers only ever see conforming
// domain.IssueRecord values.
type Client struct {
	baseURL string
	email   string
	token   string
	jql     string
	http    *http.Client
	log     zerolog.Logger
	delay   time.Duration
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.JiraBaseURL, "/"),
		email:   cfg.JiraEmail,
		token:   cfg.JiraAPIToken,
		jql:     cfg.JiraJQLFilter,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
		delay:   cfg.APIDelay,
	}
}

// jiraTime handles Jira's REST timestamp format.
type jiraTime struct{ time.Time }

func (t *jiraTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05.000-0700", s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil { return fmt.Errorf("jira: bad timestamp %q", s) }
	}
	t.Time = parsed
	return nil
}

type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []rawIssue `json:"issues"`
}

type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary        string    `json:"summary"`
		Created        jiraTime  `json:"created"`
		ResolutionDate *jiraTime `json:"resolutiondate"`
		Status         struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Parent *struct {
			Key    string `json:"key"`
			Fields struct {
				Summary   string `json:"summary"`
				IssueType struct {
					Name string `json:"name"`
				} `json:"issuetype"`
			} `json:"fields"`
		} `json:"parent"`
	} `json:"fields"`
	Changelog struct {
		Histories []struct {
			Created jiraTime `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

// CollectIssues fetches every issue updated since the cutoff across the
// given projects, changelog included.
func (c *Client) CollectIssues(ctx context.Context, projects []string, since time.Time) ([]domain.IssueRecord, error) {
	var out []domain.IssueRecord
	for _, project := range projects {
		issues, err := c.collectProject(ctx, project, since)
		if err != nil { return nil, fmt.Errorf("jira: project %s: %w", project, err) }
		out = append(out, issues...)
	}
	return out, nil
}

func (c *Client) collectProject(ctx context.Context, project string, since time.Time) ([]domain.IssueRecord, error) {
	jql := fmt.Sprintf("project = %s AND (%s) AND updated >= %q ORDER BY created ASC",
		project, c.jql, since.Format("2006-01-02"))

	var out []domain.IssueRecord
	for startAt := 0; ; {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", fmt.Sprint(pageSize))
		q.Set("fields", "summary,created,resolutiondate,status,issuetype,assignee,parent")
		q.Set("expand", "changelog")

		var page searchResponse
		if err := c.doJSON(ctx, c.baseURL+"/rest/api/2/search?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		for _, ri := range page.Issues {
			out = append(out, c.toRecord(project, ri))
		}
		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 { break }
		if c.delay > 0 { time.Sleep(c.delay) }
	}
	c.log.Info().Str("project", project).Int("issues", len(out)).Msg("jira collect done")
	return out, nil
}

func (c *Client) toRecord(project string, ri rawIssue) domain.IssueRecord {
	rec := domain.IssueRecord{
		Key:           ri.Key,
		Project:       project,
		Type:          ri.Fields.IssueType.Name,
		Summary:       ri.Fields.Summary,
		Created:       ri.Fields.Created.Time,
		CurrentStatus: ri.Fields.Status.Name,
	}
	if ri.Fields.ResolutionDate != nil && !ri.Fields.ResolutionDate.IsZero() {
		t := ri.Fields.ResolutionDate.Time
		rec.Resolved = &t
	}
	if ri.Fields.Assignee != nil {
		rec.Assignee = ri.Fields.Assignee.DisplayName
	}
	if ri.Fields.Parent != nil {
		rec.ParentKey = ri.Fields.Parent.Key
		rec.ParentSummary = ri.Fields.Parent.Fields.Summary
		rec.ParentType = ri.Fields.Parent.Fields.IssueType.Name
	}
	for _, h := range ri.Changelog.Histories {
		for _, item := range h.Items {
			if item.Field != "status" { continue }
			rec.Transitions = append(rec.Transitions, domain.StatusTransition{
				FromStatus: item.FromString,
				ToStatus:   item.ToString,
				At:         h.Created.Time,
			})
		}
	}
	// histories arrive newest-first; the engine wants chronological order
	sort.SliceStable(rec.Transitions, func(i, j int) bool {
		return rec.Transitions[i].At.Before(rec.Transitions[j].At)
	})
	return rec
}

func (c *Client) doJSON(ctx context.Context, u string, out any) error {
	if c.baseURL == "" { return errors.New("jira: empty baseURL") }
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil { return err }
		req.SetBasicAuth(c.email, c.token)
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			b, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if rerr != nil { return rerr }
			if resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				// retry on 429/5xx only
				if resp.StatusCode != 429 && resp.StatusCode < 500 { return lastErr }
			} else {
				return json.Unmarshal(b, out)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return lastErr
}
