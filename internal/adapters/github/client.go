/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
)

const perPage = 100

// Client collects closed pull requests and their review timelines from the
// GitHub REST API, normalized into domain.PrRecord.
type Client struct {
	token string
	org   string
	keyRe *regexp.Regexp
	http  *http.Client
	log   zerolog.Logger
	delay time.Duration
}

func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
	re, err := regexp.Compile(cfg.PrIssuePattern)
	if err != nil { return nil, fmt.Errorf("github: bad issue pattern: %w", err) }
	return &Client{
		token: cfg.GithubToken,
		org:   cfg.GithubOrg,
		keyRe: re,
		http:  &http.Client{Timeout: cfg.HTTPTimeout},
		log:   log,
		delay: cfg.APIDelay,
	}, nil
}

type rawPr struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

type rawReview struct {
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	State       string    `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CollectPrs fetches every closed PR updated since the cutoff from the given
// repos, with submitted reviews. A repo that fails entirely fails the run;
// a single PR with a broken review timeline is logged and skipped.
func (c *Client) CollectPrs(ctx context.Context, repos []string, since time.Time) ([]domain.PrRecord, error) {
	var out []domain.PrRecord
	for _, repo := range repos {
		prs, err := c.collectRepo(ctx, repo, since)
		if err != nil { return nil, fmt.Errorf("github: repo %s: %w", repo, err) }
		out = append(out, prs...)
	}
	return out, nil
}

func (c *Client) collectRepo(ctx context.Context, repo string, since time.Time) ([]domain.PrRecord, error) {
	var out []domain.PrRecord
	for page := 1; ; page++ {
		u := fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls?state=closed&sort=updated&direction=desc&per_page=%d&page=%d",
			c.org, repo, perPage, page)
		var prs []rawPr
		if err := c.getJSON(ctx, u, &prs); err != nil { return nil, err }
		if len(prs) == 0 { break }

		done := false
		for _, pr := range prs {
			if pr.UpdatedAt.Before(since) {
				// sorted by updated desc; everything after is older
				done = true
				break
			}
			rec, err := c.toRecord(ctx, repo, pr)
			if err != nil {
				c.log.Warn().Str("repo", repo).Int("pr", pr.Number).Err(err).Msg("skip pr")
				continue
			}
			out = append(out, rec)
		}
		if done || len(prs) < perPage { break }
		if c.delay > 0 { time.Sleep(c.delay) }
	}
	c.log.Info().Str("repo", repo).Int("prs", len(out)).Msg("github collect done")
	return out, nil
}

func (c *Client) toRecord(ctx context.Context, repo string, pr rawPr) (domain.PrRecord, error) {
	// the list endpoint omits additions/deletions; fetch the full PR
	var full rawPr
	u := fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls/%d", c.org, repo, pr.Number)
	if err := c.getJSON(ctx, u, &full); err != nil { return domain.PrRecord{}, err }

	rec := domain.PrRecord{
		Repo:      repo,
		Number:    pr.Number,
		Title:     pr.Title,
		Author:    pr.User.Login,
		JiraKeys:  c.issueKeys(pr),
		CreatedAt: pr.CreatedAt,
		MergedAt:  pr.MergedAt,
		Additions: full.Additions,
		Deletions: full.Deletions,
	}
	if pr.MergedAt == nil {
		rec.ClosedAt = pr.ClosedAt
	}

	var reviews []rawReview
	u = fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls/%d/reviews?per_page=%d", c.org, repo, pr.Number, perPage)
	if err := c.getJSON(ctx, u, &reviews); err != nil { return domain.PrRecord{}, err }
	for _, r := range reviews {
		// self-reviews never count as pickup
		if r.User.Login == pr.User.Login || r.SubmittedAt.IsZero() { continue }
		state, ok := normalizeState(r.State)
		if !ok { continue }
		rec.ReviewEvents = append(rec.ReviewEvents, domain.ReviewEvent{At: r.SubmittedAt, State: state})
	}
	return rec, nil
}

// issueKeys extracts Jira keys from the PR title and branch name.
func (c *Client) issueKeys(pr rawPr) []string {
	seen := map[string]bool{}
	var keys []string
	for _, text := range []string{pr.Title, pr.Head.Ref} {
		for _, m := range c.keyRe.FindAllString(text, -1) {
			k := strings.ToUpper(m)
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func normalizeState(state string) (string, bool) {
	switch state {
	case "APPROVED":
		return domain.ReviewApproved, true
	case "CHANGES_REQUESTED":
		return domain.ReviewChangesRequested, true
	case "COMMENTED":
		return domain.ReviewCommented, true
	}
	return "", false
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil { return err }
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" { req.Header.Set("Authorization", "Bearer "+c.token) }
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			b, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if rerr != nil { return rerr }
			if resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				if resp.StatusCode != 429 && resp.StatusCode != 403 && resp.StatusCode < 500 { return lastErr }
			} else {
				return json.Unmarshal(b, out)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(500*(1<<attempt)) * time.Millisecond):
		}
	}
	return lastErr
}
