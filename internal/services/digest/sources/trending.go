package sources

import (
	"fmt"
	"math"
	"sort"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

// Composite score weights.
const (
	starVelocityWeight  = 3.0
	recentCommitsWeight = 2.0
	forkWeight          = 0.5
	candidateWindowDays = 7
)

// Repo is the subset of a GitHub repository record the scorer reads.
type Repo struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
}

// Activity is the per-candidate input to scoring.
type Activity struct {
	Repo          Repo
	RecentStars   int
	RecentCommits int
}

// CandidateRepo is a repository with its derived trending metrics.
type CandidateRepo struct {
	Repo           Repo
	StarVelocity   float64
	RecentCommits  int
	CompositeScore float64
}

// StarVelocity is today's star count, or the weekly average when no star
// landed today.
func StarVelocity(recentStars, totalStars int) float64 {
	if recentStars > 0 {
		return float64(recentStars)
	}
	return float64(totalStars) / candidateWindowDays
}

// CompositeScore weighs star velocity, today's commits, and forks.
func CompositeScore(starVelocity float64, recentCommits, forks int) float64 {
	return starVelocity*starVelocityWeight +
		float64(recentCommits)*recentCommitsWeight +
		float64(forks)*forkWeight
}

// ScoreCandidates derives metrics for each activity record and orders the
// result by composite score, highest first. Equal scores keep input order.
func ScoreCandidates(activity []Activity) []CandidateRepo {
	candidates := make([]CandidateRepo, 0, len(activity))
	for _, a := range activity {
		velocity := StarVelocity(a.RecentStars, a.Repo.Stars)
		candidates = append(candidates, CandidateRepo{
			Repo:           a.Repo,
			StarVelocity:   velocity,
			RecentCommits:  a.RecentCommits,
			CompositeScore: CompositeScore(velocity, a.RecentCommits, a.Repo.Forks),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CompositeScore > candidates[j].CompositeScore
	})
	return candidates
}

// TrendingItems turns the first limit scored candidates into news items.
func TrendingItems(candidates []CandidateRepo, limit int) []domain.NewsItem {
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	items := make([]domain.NewsItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, domain.NewsItem{
			Title:       trendingTitle(c),
			URL:         c.Repo.HTMLURL,
			Description: domain.Describe(c.Repo.Description, domain.NoDescription),
			Source:      domain.SourceGitHubTrending,
			Language:    c.Repo.Language,
			Score:       math.Round(c.CompositeScore*100) / 100,
		})
	}
	return items
}

func trendingTitle(c CandidateRepo) string {
	if c.Repo.Description == "" {
		return fmt.Sprintf("%s (%d★)", c.Repo.FullName, c.Repo.Stars)
	}
	return fmt.Sprintf("%s (%d★ | +%.1f stars/day | %d commits today) - %s",
		c.Repo.FullName, c.Repo.Stars, c.StarVelocity, c.RecentCommits, c.Repo.Description)
}
