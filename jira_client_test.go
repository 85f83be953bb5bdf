package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJiraClient(t *testing.T, handler http.HandlerFunc) *JiraClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewJiraClient(JiraConfig{
		ServerURL: srv.URL + "/",
		Username:  "bot@example.com",
		APIToken:  "secret",
	}, srv.Client())
}

func TestJiraClient_SearchIssuesFollowsPages(t *testing.T) {
	all := []string{"A-1", "A-2", "A-3"}
	var startAts []string

	client := newTestJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Equal(t, "updated >= -1w", r.URL.Query().Get("jql"))
		assert.Equal(t, jiraSearchFields, r.URL.Query().Get("fields"))

		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		startAts = append(startAts, r.URL.Query().Get("startAt"))

		end := startAt + maxResults
		if end > len(all) {
			end = len(all)
		}
		var issues []map[string]any
		for _, key := range all[startAt:end] {
			issues = append(issues, map[string]any{
				"id":  "1",
				"key": key,
				"fields": map[string]any{
					"summary":     "summary " + key,
					"description": nil,
					"created":     "2024-03-04T09:15:00.000+0000",
					"project":     map[string]string{"key": "A"},
					"issuetype":   map[string]string{"name": "Bug"},
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt":    startAt,
			"maxResults": maxResults,
			"total":      len(all),
			"issues":     issues,
		})
	})
	client.pageSize = 2

	issues, err := client.SearchIssues(context.Background(), "updated >= -1w")
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "2"}, startAts)
	require.Len(t, issues, 3)
	assert.Equal(t, Issue{
		Key:        "A-3",
		Summary:    "summary A-3",
		Created:    "2024-03-04T09:15:00.000+0000",
		ProjectKey: "A",
		IssueType:  "Bug",
	}, issues[2])
}

func TestJiraClient_SearchIssuesEmpty(t *testing.T) {
	client := newTestJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"startAt":0,"maxResults":50,"total":0,"issues":[]}`)
	})

	issues, err := client.SearchIssues(context.Background(), "updated >= -1w")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestJiraClient_CreateIssue(t *testing.T) {
	var body map[string]json.RawMessage

	client := newTestJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"10001","key":"PROJ-7","self":"http://jira/rest/api/2/issue/10001"}`)
	})

	issue, err := client.CreateIssue(context.Background(), IssueFields{
		ProjectKey: "PROJ",
		Summary:    "Untitled Event",
		IssueType:  "Task",
	})
	require.NoError(t, err)

	assert.Equal(t, "PROJ-7", issue.Key)
	require.Len(t, body, 1, "only fields is sent on create")
	var fields map[string]any
	require.NoError(t, json.Unmarshal(body["fields"], &fields))
	assert.Equal(t, map[string]any{"key": "PROJ"}, fields["project"])
	assert.Equal(t, map[string]any{"name": "Task"}, fields["issuetype"])
	assert.Equal(t, "Untitled Event", fields["summary"])
	assert.Equal(t, "", fields["description"])
}

func TestJiraClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "field errors",
			body: `{"errorMessages":[],"errors":{"project":"valid project is required","issuetype":"invalid"}}`,
			want: "jira returned 400: issuetype: invalid; project: valid project is required",
		},
		{
			name: "messages",
			body: `{"errorMessages":["Field 'x' cannot be set."]}`,
			want: "jira returned 400: Field 'x' cannot be set.",
		},
		{
			name: "plain text",
			body: "Bad Request\n",
			want: "jira returned 400: Bad Request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.CreateIssue(context.Background(), IssueFields{ProjectKey: "X"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJiraClient_CheckAuth(t *testing.T) {
	client := newTestJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, pass, _ := r.BasicAuth(); pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/rest/api/2/myself", r.URL.Path)
		fmt.Fprint(w, `{"name":"bot"}`)
	})
	require.NoError(t, client.CheckAuth(context.Background()))

	client.apiToken = "wrong"
	assert.Error(t, client.CheckAuth(context.Background()))
}
