// Package github is the issue-tracker client used by the publish workflow.
// It wraps go-github with an oauth2 token transport layered on the shared
// retrying HTTP client.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gh "github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/httpclient"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

var (
	// ErrBranchNotFound is returned by BranchSHA when the branch does not
	// exist.
	ErrBranchNotFound = errors.New("branch not found")
	// ErrAlreadyExists marks a create call that hit an existing resource
	// (HTTP 409 or 422).
	ErrAlreadyExists = errors.New("resource already exists")
)

// Issue is the subset of a GitHub issue the publish workflow reads.
type Issue struct {
	Number  int
	Title   string
	Body    string
	HTMLURL string
}

// Options configures New.
type Options struct {
	Token string
	Owner string
	Repo  string
	// BaseURL overrides the REST endpoint, e.g. for GitHub Enterprise. It
	// must point at the API root.
	BaseURL string
	Retries int
	Timeout time.Duration
}

// Client performs the repository operations of the publish workflow
// against one owner/repo.
type Client struct {
	gh     *gh.Client
	owner  string
	repo   string
	logger *log.Logger
}

// New returns a Client authenticated with opts.Token.
func New(opts Options) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	logger := logging.New(logging.ComponentGitHub)

	base := httpclient.New(httpclient.Options{
		Retries: opts.Retries,
		Timeout: opts.Timeout,
		Logger:  logger,
	})
	hc := base
	if opts.Token != "" {
		hc = &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
				Base:   base.Transport,
			},
		}
	}

	client := gh.NewClient(hc)
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: parsing base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{gh: client, owner: opts.Owner, repo: opts.Repo, logger: logger}, nil
}

// Repo returns "owner/repo".
func (c *Client) Repo() string { return c.owner + "/" + c.repo }

// BranchSHA returns the head commit SHA of branch.
func (c *Client) BranchSHA(ctx context.Context, branch string) (string, error) {
	ref, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+branch)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("github: branch %q: %w", branch, ErrBranchNotFound)
		}
		return "", fmt.Errorf("github: reading branch %q: %w", branch, err)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("github: branch %q has no head commit", branch)
	}
	return sha, nil
}

// CreateBranch creates branch name at sha. An existing branch is not an
// error.
func (c *Client) CreateBranch(ctx context.Context, name, sha string) error {
	_, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &gh.Reference{
		Ref:    gh.Ptr("refs/heads/" + name),
		Object: &gh.GitObject{SHA: gh.Ptr(sha)},
	})
	if err != nil {
		if isConflict(err) {
			c.logger.Info("branch already exists", "branch", name)
			return nil
		}
		return fmt.Errorf("github: creating branch %q: %w", name, err)
	}
	c.logger.Debug("branch created", "branch", name, "sha", sha)
	return nil
}

// CommitFile creates path with content on branch.
func (c *Client) CommitFile(ctx context.Context, branch, path, content, message string) error {
	_, _, err := c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: []byte(content),
		Branch:  gh.Ptr(branch),
	})
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("github: committing %s: %w", path, ErrAlreadyExists)
		}
		return fmt.Errorf("github: committing %s: %w", path, err)
	}
	return nil
}

// CreatePullRequest opens a pull request from head into base and returns its
// web URL.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
		Head:  gh.Ptr(head),
		Base:  gh.Ptr(base),
	})
	if err != nil {
		return "", fmt.Errorf("github: creating pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}

// CommentOnIssue posts body as a comment on issue number.
func (c *Client) CommentOnIssue(ctx context.Context, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return fmt.Errorf("github: commenting on issue #%d: %w", number, err)
	}
	return nil
}

// Issue fetches issue number.
func (c *Client) Issue(ctx context.Context, number int) (Issue, error) {
	is, _, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return Issue{}, fmt.Errorf("github: fetching issue #%d: %w", number, err)
	}
	return FromAPI(is), nil
}

// FromAPI converts a go-github issue.
func FromAPI(is *gh.Issue) Issue {
	return Issue{
		Number:  is.GetNumber(),
		Title:   is.GetTitle(),
		Body:    is.GetBody(),
		HTMLURL: is.GetHTMLURL(),
	}
}

func statusCode(err error) int {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	return 0
}

func isConflict(err error) bool {
	code := statusCode(err)
	return code == http.StatusConflict || code == http.StatusUnprocessableEntity
}
