package gitcore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const githubListLimit = "50"

func (s *Service) CreateGitHubRepo(ctx context.Context, workspaceID, repo, visibility string, branch *string) (json.RawMessage, error) {
	repo = strings.TrimSpace(repo)
	if err := validateRef("repo", repo); err != nil {
		return nil, err
	}
	switch visibility {
	case "public", "private", "internal":
	default:
		return nil, fmt.Errorf("invalid visibility: %s", visibility)
	}

	var result map[string]any
	err := s.mutate(ctx, workspaceID, func(dir string) error {
		if branch != nil && strings.TrimSpace(*branch) != "" {
			if err := validateRef("branch", *branch); err != nil {
				return err
			}
			if _, err := git(ctx, dir, "branch", "-M", strings.TrimSpace(*branch)); err != nil {
				return err
			}
		}
		args := []string{"repo", "create", repo, "--" + visibility, "--source", ".", "--remote", "origin"}
		if hasHead(ctx, dir) {
			args = append(args, "--push")
		}
		if _, err := gh(ctx, dir, args...); err != nil {
			return err
		}
		result = map[string]any{"status": "created", "repo": repo}
		if out, err := git(ctx, dir, "remote", "get-url", "origin"); err == nil {
			result["remoteUrl"] = strings.TrimSpace(out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (s *Service) GetGitHubIssues(ctx context.Context, workspaceID string) (GitHubIssuesResponse, error) {
	resp := GitHubIssuesResponse{Issues: []GitHubIssue{}}
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return resp, err
	}
	out, err := gh(ctx, dir, "issue", "list", "--state", "open", "--limit", githubListLimit,
		"--json", "number,title,url,updatedAt")
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(out), &resp.Issues); err != nil {
		return resp, fmt.Errorf("parsing gh issue list: %w", err)
	}
	resp.Total = len(resp.Issues)
	return resp, nil
}

func (s *Service) GetGitHubPullRequests(ctx context.Context, workspaceID string) (GitHubPullRequestsResponse, error) {
	resp := GitHubPullRequestsResponse{PullRequests: []GitHubPullRequest{}}
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return resp, err
	}
	out, err := gh(ctx, dir, "pr", "list", "--state", "open", "--limit", githubListLimit,
		"--json", "number,title,url,updatedAt,createdAt,body,headRefName,baseRefName,isDraft,author")
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(out), &resp.PullRequests); err != nil {
		return resp, fmt.Errorf("parsing gh pr list: %w", err)
	}
	resp.Total = len(resp.PullRequests)
	return resp, nil
}

func (s *Service) GetGitHubPullRequestDiff(ctx context.Context, workspaceID string, prNumber uint64) ([]GitHubPullRequestDiff, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out, err := gh(ctx, dir, "pr", "diff", strconv.FormatUint(prNumber, 10), "--color", "never")
	if err != nil {
		return nil, err
	}
	return splitUnifiedDiff(out), nil
}

// splitUnifiedDiff cuts a multi-file patch at each "diff --git" header.
func splitUnifiedDiff(patch string) []GitHubPullRequestDiff {
	diffs := []GitHubPullRequestDiff{}
	var cur *GitHubPullRequestDiff
	var body strings.Builder

	flush := func() {
		if cur == nil {
			return
		}
		cur.Diff = body.String()
		diffs = append(diffs, *cur)
		body.Reset()
	}

	for _, line := range strings.SplitAfter(patch, "\n") {
		if rest, ok := strings.CutPrefix(line, "diff --git "); ok {
			flush()
			path := strings.TrimSpace(rest)
			if idx := strings.LastIndex(path, " b/"); idx >= 0 {
				path = path[idx+3:]
			}
			cur = &GitHubPullRequestDiff{Path: path, Status: "M"}
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "new file mode"):
			cur.Status = "A"
		case strings.HasPrefix(line, "deleted file mode"):
			cur.Status = "D"
		case strings.HasPrefix(line, "rename to "):
			cur.Status = "R"
		}
		body.WriteString(line)
	}
	flush()
	return diffs
}

// ghComment is the REST shape returned by the issues comments endpoint.
type ghComment struct {
	ID        uint64      `json:"id"`
	Body      string      `json:"body"`
	CreatedAt string      `json:"created_at"`
	HTMLURL   string      `json:"html_url"`
	User      *GitHubUser `json:"user"`
}

func (s *Service) GetGitHubPullRequestComments(ctx context.Context, workspaceID string, prNumber uint64) ([]GitHubPullRequestComment, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("repos/{owner}/{repo}/issues/%d/comments", prNumber)
	out, err := gh(ctx, dir, "api", "--paginate", endpoint)
	if err != nil {
		return nil, err
	}
	var raw []ghComment
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parsing pull request comments: %w", err)
	}
	comments := make([]GitHubPullRequestComment, 0, len(raw))
	for _, c := range raw {
		comments = append(comments, GitHubPullRequestComment{
			ID:        c.ID,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
			URL:       c.HTMLURL,
			Author:    c.User,
		})
	}
	return comments, nil
}

func (s *Service) CheckoutGitHubPullRequest(ctx context.Context, workspaceID string, prNumber uint64) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		_, err := gh(ctx, dir, "pr", "checkout", strconv.FormatUint(prNumber, 10))
		return err
	})
}
