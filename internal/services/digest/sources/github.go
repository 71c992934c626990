package sources

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	gitHubBaseURL       = "https://api.github.com"
	gitHubCandidates    = 15
	gitHubTrendingLimit = 5
	gitHubMinStars      = 50
	gitHubSearchPage    = 50
	gitHubActivityPage  = 100
	gitHubParallelism   = 4
)

// GitHubTrending ranks repositories created in the last week by how fast
// they are gaining stars and commits today.
type GitHubTrending struct {
	BaseURL string
	Limit   int
	token   string
	clock   func() time.Time
	http    requester
}

// NewGitHubTrending returns the trending repositories adapter.
func NewGitHubTrending(opts Options) *GitHubTrending {
	opts = opts.normalized()
	return &GitHubTrending{
		BaseURL: gitHubBaseURL,
		Limit:   gitHubTrendingLimit,
		token:   opts.GitHubToken,
		clock:   opts.Clock,
		http:    newRequester(opts),
	}
}

func (g *GitHubTrending) Name() string { return domain.SourceGitHubTrending }

type gitHubSearch struct {
	Items []Repo `json:"items"`
}

type gitHubStargazer struct {
	StarredAt string `json:"starred_at"`
}

type gitHubCommit struct {
	Commit struct {
		Author struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// Fetch searches candidates, gathers today's activity for each, and returns
// the best scored. A candidate whose activity lookups fail is left out.
func (g *GitHubTrending) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	now := g.clock().UTC()
	today := now.Format(time.DateOnly)
	weekAgo := now.AddDate(0, 0, -candidateWindowDays).Format(time.DateOnly)

	query := url.Values{}
	query.Set("q", fmt.Sprintf("created:>%s stars:>%d fork:false", weekAgo, gitHubMinStars))
	query.Set("sort", "stars")
	query.Set("order", "desc")
	query.Set("per_page", fmt.Sprint(gitHubSearchPage))

	var search gitHubSearch
	if err := g.http.getJSON(ctx, g.BaseURL+"/search/repositories?"+query.Encode(), g.header(""), &search); err != nil {
		return nil, adapterError(g.Name(), err)
	}
	candidates := search.Items
	if len(candidates) > gitHubCandidates {
		candidates = candidates[:gitHubCandidates]
	}

	slots := make([]*Activity, len(candidates))
	var group errgroup.Group
	group.SetLimit(gitHubParallelism)
	for i, repo := range candidates {
		group.Go(func() error {
			activity, err := g.activity(ctx, repo, today)
			if err != nil {
				log.Printf("github trending: skip %s: %v", repo.FullName, err)
				return nil
			}
			slots[i] = &activity
			return nil
		})
	}
	_ = group.Wait()
	// Per-repo failures are skipped, but a cancelled fetch must not pass as an
	// empty result that gets cached.
	if err := ctx.Err(); err != nil {
		return nil, adapterError(g.Name(), err)
	}

	eligible := make([]Activity, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			eligible = append(eligible, *slot)
		}
	}
	return TrendingItems(ScoreCandidates(eligible), g.Limit), nil
}

func (g *GitHubTrending) activity(ctx context.Context, repo Repo, today string) (Activity, error) {
	repoPath := g.BaseURL + "/repos/" + repo.FullName

	var stargazers []gitHubStargazer
	starsURL := fmt.Sprintf("%s/stargazers?per_page=%d", repoPath, gitHubActivityPage)
	if err := g.http.getJSON(ctx, starsURL, g.header("application/vnd.github.star+json"), &stargazers); err != nil {
		return Activity{}, fmt.Errorf("stargazers: %w", err)
	}
	recentStars := 0
	for _, s := range stargazers {
		if strings.HasPrefix(s.StarredAt, today) {
			recentStars++
		}
	}

	var commits []gitHubCommit
	commitsURL := fmt.Sprintf("%s/commits?per_page=%d&since=%sT00:00:00Z", repoPath, gitHubActivityPage, today)
	if err := g.http.getJSON(ctx, commitsURL, g.header(""), &commits); err != nil {
		return Activity{}, fmt.Errorf("commits: %w", err)
	}
	recentCommits := 0
	for _, c := range commits {
		if strings.HasPrefix(c.Commit.Author.Date, today) {
			recentCommits++
		}
	}

	return Activity{Repo: repo, RecentStars: recentStars, RecentCommits: recentCommits}, nil
}

func (g *GitHubTrending) header(accept string) http.Header {
	header := http.Header{}
	if accept == "" {
		accept = "application/vnd.github.v3+json"
	}
	header.Set("Accept", accept)
	if token := strings.TrimSpace(g.token); token != "" {
		header.Set("Authorization", "token "+token)
	}
	return header
}
