package model

import "strings"

// ActorFilter selects which actors' activity is included in a metric query.
// Exactly one of ExcludeBots/BotsOnly may be set; when neither is set every
// item passes through unchanged.
type ActorFilter struct {
	ExcludeBots bool
	BotsOnly    bool
	// CustomBots are registered usernames treated as bots in addition to
	// the "[bot]" suffix convention.
	CustomBots []string
}

// IsBot reports whether a username is a bot account.
func (f ActorFilter) IsBot(username string) bool {
	if strings.HasSuffix(username, "[bot]") {
		return true
	}
	for _, bot := range f.CustomBots {
		if username == bot {
			return true
		}
	}
	return false
}

// FilterByActor applies the filter to any item kind given a strategy that
// extracts the acting username.
func FilterByActor[T any](items []T, f ActorFilter, actor func(T) string) []T {
	if !f.ExcludeBots && !f.BotsOnly {
		return items
	}
	result := make([]T, 0, len(items))
	for _, item := range items {
		isBot := f.IsBot(actor(item))
		if f.BotsOnly && isBot {
			result = append(result, item)
		} else if f.ExcludeBots && !isBot {
			result = append(result, item)
		}
	}
	return result
}

// FilterPullRequests applies the actor filter to PRs by author.
func (f ActorFilter) FilterPullRequests(prs []*PullRequest) []*PullRequest {
	return FilterByActor(prs, f, func(pr *PullRequest) string { return pr.Author })
}

// FilterReviews applies the actor filter to reviews by reviewer.
func (f ActorFilter) FilterReviews(reviews []*Review) []*Review {
	return FilterByActor(reviews, f, func(r *Review) string { return r.Reviewer })
}

// FilterMembers applies the actor filter to members by login.
func (f ActorFilter) FilterMembers(members []*Member) []*Member {
	return FilterByActor(members, f, func(m *Member) string { return m.Login })
}
