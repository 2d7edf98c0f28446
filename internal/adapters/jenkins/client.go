/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
)

// Client collects recent build outcomes from Jenkins via the JSON API.
type Client struct {
	baseURL string
	user    string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.JenkinsBaseURL, "/"),
		user:    cfg.JenkinsUser,
		token:   cfg.JenkinsAPIToken,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
	}
}

type jobResponse struct {
	Builds []struct {
		Number    int    `json:"number"`
		Result    string `json:"result"`
		Timestamp int64  `json:"timestamp"`
		Duration  int64  `json:"duration"`
	} `json:"builds"`
}

// CollectBuilds fetches builds started since the cutoff for each job. A job
// that cannot be read is logged and skipped; CI health is supplemental and
// never fails a run.
func (c *Client) CollectBuilds(ctx context.Context, jobs []string, since time.Time) ([]domain.BuildRecord, error) {
	var out []domain.BuildRecord
	for _, job := range jobs {
		builds, err := c.collectJob(ctx, job, since)
		if err != nil {
			c.log.Warn().Str("job", job).Err(err).Msg("skip jenkins job")
			continue
		}
		out = append(out, builds...)
	}
	return out, nil
}

func (c *Client) collectJob(ctx context.Context, job string, since time.Time) ([]domain.BuildRecord, error) {
	// jobs may be nested, e.g. "folder/core-deploy"
	var path strings.Builder
	for _, part := range strings.Split(job, "/") {
		path.WriteString("/job/")
		path.WriteString(url.PathEscape(part))
	}
	u := fmt.Sprintf("%s%s/api/json?tree=builds[number,result,timestamp,duration]{0,200}", c.baseURL, path.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil { return nil, err }
	if c.user != "" { req.SetBasicAuth(c.user, c.token) }
	resp, err := c.http.Do(req)
	if err != nil { return nil, err }
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("jenkins api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var jr jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil { return nil, err }

	var out []domain.BuildRecord
	for _, b := range jr.Builds {
		started := time.UnixMilli(b.Timestamp)
		if started.Before(since) {
			// builds arrive newest-first
			break
		}
		out = append(out, domain.BuildRecord{
			Job:         job,
			BuildNumber: b.Number,
			Result:      b.Result,
			Duration:    time.Duration(b.Duration) * time.Millisecond,
			StartedAt:   started,
		})
	}
	return out, nil
}
