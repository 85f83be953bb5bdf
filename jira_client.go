package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	jiraSearchPageSize = 50
	jiraSearchFields   = "summary,description,created,project,issuetype"
)

// Issue is the subset of a Jira issue the bridge reads and writes.
// Created is kept exactly as Jira returned it; it is parsed only when the
// issue is turned into an event.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Created     string
	ProjectKey  string
	IssueType   string
}

type IssueFields struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
}

type jiraIssue struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Fields jiraIssueFields `json:"fields"`
}

type jiraCreateRequest struct {
	Fields jiraIssueFields `json:"fields"`
}

type jiraIssueFields struct {
	Project     *jiraKeyRef  `json:"project,omitempty"`
	Summary     string       `json:"summary"`
	Description *string      `json:"description,omitempty"`
	Created     string       `json:"created,omitempty"`
	IssueType   *jiraNameRef `json:"issuetype,omitempty"`
}

type jiraKeyRef struct {
	Key string `json:"key"`
}

type jiraNameRef struct {
	Name string `json:"name"`
}

type jiraSearchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []jiraIssue `json:"issues"`
}

type jiraCreateResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type jiraErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// JiraClient talks to the Jira REST API v2 with basic auth.
type JiraClient struct {
	baseURL  string
	username string
	apiToken string
	client   *http.Client
	pageSize int
}

func NewJiraClient(cfg JiraConfig, client *http.Client) *JiraClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &JiraClient{
		baseURL:  strings.TrimRight(cfg.ServerURL, "/"),
		username: cfg.Username,
		apiToken: cfg.APIToken,
		client:   client,
		pageSize: jiraSearchPageSize,
	}
}

// SearchIssues runs jql and follows startAt paging until every match has
// been read.
func (j *JiraClient) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	for {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(j.pageSize))
		params.Set("fields", jiraSearchFields)

		var page jiraSearchResponse
		if err := j.do(ctx, http.MethodGet, "/rest/api/2/search?"+params.Encode(), nil, http.StatusOK, &page); err != nil {
			return nil, errors.Wrap(err, "searching issues")
		}

		for _, raw := range page.Issues {
			issues = append(issues, issueFromJira(raw))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return issues, nil
		}
	}
}

func (j *JiraClient) CreateIssue(ctx context.Context, fields IssueFields) (Issue, error) {
	description := fields.Description
	payload := jiraCreateRequest{
		Fields: jiraIssueFields{
			Project:     &jiraKeyRef{Key: fields.ProjectKey},
			Summary:     fields.Summary,
			Description: &description,
			IssueType:   &jiraNameRef{Name: fields.IssueType},
		},
	}

	var created jiraCreateResponse
	if err := j.do(ctx, http.MethodPost, "/rest/api/2/issue", payload, http.StatusCreated, &created); err != nil {
		return Issue{}, errors.Wrap(err, "creating issue")
	}

	return Issue{
		Key:         created.Key,
		Summary:     fields.Summary,
		Description: fields.Description,
		ProjectKey:  fields.ProjectKey,
		IssueType:   fields.IssueType,
	}, nil
}

// CheckAuth calls /myself to confirm the configured credentials.
func (j *JiraClient) CheckAuth(ctx context.Context) error {
	return j.do(ctx, http.MethodGet, "/rest/api/2/myself", nil, http.StatusOK, nil)
}

func (j *JiraClient) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, j.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.SetBasicAuth(j.username, j.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(resp.Body)
		return errors.Newf("jira returned %d: %s", resp.StatusCode, jiraErrorMessage(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func jiraErrorMessage(data []byte) string {
	var parsed jiraErrorResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return strings.TrimSpace(string(data))
	}

	messages := append([]string(nil), parsed.ErrorMessages...)
	fields := make([]string, 0, len(parsed.Errors))
	for field := range parsed.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, parsed.Errors[field]))
	}
	if len(messages) == 0 {
		return strings.TrimSpace(string(data))
	}
	return strings.Join(messages, "; ")
}

func issueFromJira(raw jiraIssue) Issue {
	issue := Issue{
		Key:     raw.Key,
		Summary: raw.Fields.Summary,
		Created: raw.Fields.Created,
	}
	if raw.Fields.Description != nil {
		issue.Description = *raw.Fields.Description
	}
	if raw.Fields.Project != nil {
		issue.ProjectKey = raw.Fields.Project.Key
	}
	if raw.Fields.IssueType != nil {
		issue.IssueType = raw.Fields.IssueType.Name
	}
	return issue
}
