package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/internal/twitter"
)

const unknownAuthor = "unknown"

type TweetMetrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

type SearchRecord struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Author    string       `json:"author"`
	CreatedAt string       `json:"created_at"`
	Metrics   TweetMetrics `json:"metrics"`
}

type TimelineRecord struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	CreatedAt string       `json:"created_at"`
	Metrics   TweetMetrics `json:"metrics"`
}

type UserMetrics struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
	Tweets    int `json:"tweets"`
}

type UserProfile struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Verified    bool        `json:"verified"`
	CreatedAt   string      `json:"created_at"`
	Metrics     UserMetrics `json:"metrics"`
}

func SearchTweets(client twitter.Client) tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:  "search_tweets",
			Title: "Search Tweets",
			Description: `Search recent tweets by keyword, author, or hashtag.

Supports the standard search operators, for example "AI", "from:nasa" or "#bitcoin".
Returns id, text, author, creation time and like/retweet/reply counts per tweet.`,
			Schema: tools.Schema{Params: []tools.Param{
				{
					Name:        "query",
					Type:        tools.TypeString,
					Description: `Search query (e.g. "AI", "from:nasa", "#bitcoin")`,
					Required:    true,
				},
				{
					Name:        "max_results",
					Type:        tools.TypeInteger,
					Description: "Maximum number of tweets to return (10-100, default 10)",
					Default:     10,
					Range:       &tools.Range{Min: 10, Max: 100},
				},
			}},
			Annotations: tools.ReadOnlyAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var req struct {
				Query      string `json:"query"`
				MaxResults int    `json:"max_results"`
			}
			if err := json.Unmarshal(input, &req); err != nil {
				return nil, tools.NewInvalidArgumentsError("search_tweets", err)
			}

			page, err := client.SearchRecent(ctx, req.Query, req.MaxResults)
			if err != nil {
				return nil, upstreamError("tweet search", err)
			}

			records := make([]SearchRecord, 0, len(page.Tweets))
			for _, t := range page.Tweets {
				author := unknownAuthor
				if u, ok := page.Author(t); ok {
					author = fmt.Sprintf("%s (@%s)", u.Name, u.Username)
				}
				records = append(records, SearchRecord{
					ID:        t.ID,
					Text:      t.Text,
					Author:    author,
					CreatedAt: t.CreatedAt,
					Metrics:   tweetMetrics(t.PublicMetrics),
				})
			}
			return records, nil
		},
	}
}

func UserInfo(client twitter.Client) tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:        "get_user_info",
			Title:       "Get User Info",
			Description: "Get a user's profile: display name, bio, verification, and follower/following/tweet counts",
			Schema: tools.Schema{Params: []tools.Param{
				{
					Name:        "username",
					Type:        tools.TypeString,
					Description: "Username without the leading @",
					Required:    true,
				},
			}},
			Annotations: tools.ReadOnlyAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var req struct {
				Username string `json:"username"`
			}
			if err := json.Unmarshal(input, &req); err != nil {
				return nil, tools.NewInvalidArgumentsError("get_user_info", err)
			}

			user, err := client.UserByUsername(ctx, normalizeUsername(req.Username))
			if err != nil {
				return nil, upstreamError("user lookup", err)
			}

			profile := UserProfile{
				ID:          user.ID,
				Username:    user.Username,
				Name:        user.Name,
				Description: user.Description,
				Verified:    user.Verified,
				CreatedAt:   user.CreatedAt,
			}
			if m := user.PublicMetrics; m != nil {
				profile.Metrics = UserMetrics{
					Followers: m.FollowersCount,
					Following: m.FollowingCount,
					Tweets:    m.TweetCount,
				}
			}
			return profile, nil
		},
	}
}

func UserTweets(client twitter.Client) tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:        "get_user_tweets",
			Title:       "Get User Tweets",
			Description: "Get the most recent tweets posted by a user",
			Schema: tools.Schema{Params: []tools.Param{
				{
					Name:        "username",
					Type:        tools.TypeString,
					Description: "Username without the leading @",
					Required:    true,
				},
				{
					Name:        "max_results",
					Type:        tools.TypeInteger,
					Description: "Maximum number of tweets to return (5-100, default 10)",
					Default:     10,
					Range:       &tools.Range{Min: 5, Max: 100},
				},
			}},
			Annotations: tools.ReadOnlyAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var req struct {
				Username   string `json:"username"`
				MaxResults int    `json:"max_results"`
			}
			if err := json.Unmarshal(input, &req); err != nil {
				return nil, tools.NewInvalidArgumentsError("get_user_tweets", err)
			}

			user, err := client.UserByUsername(ctx, normalizeUsername(req.Username))
			if err != nil {
				return nil, upstreamError("user lookup", err)
			}

			page, err := client.UserTimeline(ctx, user.ID, req.MaxResults)
			if err != nil {
				return nil, upstreamError("user timeline", err)
			}

			records := make([]TimelineRecord, 0, len(page.Tweets))
			for _, t := range page.Tweets {
				records = append(records, TimelineRecord{
					ID:        t.ID,
					Text:      t.Text,
					CreatedAt: t.CreatedAt,
					Metrics:   tweetMetrics(t.PublicMetrics),
				})
			}
			return records, nil
		},
	}
}

// TrendingTopics is declared so clients can discover it, but trends are not
// served by the v2 API at the access level this server uses.
func TrendingTopics() tools.Capability {
	return tools.Capability{
		Descriptor: tools.Descriptor{
			Name:        "get_trending_topics",
			Title:       "Get Trending Topics",
			Description: "Get trending topics for a location. Requires enterprise API access; use search_tweets with a hashtag otherwise.",
			Schema: tools.Schema{Params: []tools.Param{
				{
					Name:        "woeid",
					Type:        tools.TypeInteger,
					Description: "Yahoo! Where On Earth ID (1 = worldwide, 23424977 = United States)",
					Default:     1,
				},
			}},
			Annotations: tools.ReadOnlyAnnotations(),
		},
		Handler: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			return nil, tools.NewUnsupportedError(
				"trending topics require enterprise API access; try search_tweets with a hashtag query such as #trending")
		},
	}
}

func tweetMetrics(m *twitter.TweetMetrics) TweetMetrics {
	if m == nil {
		return TweetMetrics{}
	}
	return TweetMetrics{
		Likes:    m.LikeCount,
		Retweets: m.RetweetCount,
		Replies:  m.ReplyCount,
	}
}

func normalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// upstreamError turns access-tier rejections into UnsupportedOperation. Any
// other error is returned as is and classified by the dispatcher.
func upstreamError(op string, err error) error {
	if errors.Is(err, twitter.ErrAccessLevel) {
		return &tools.ToolError{
			Kind:    tools.KindUnsupportedOperation,
			Message: fmt.Sprintf("%s is not available at the current API access level: %v", op, err),
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
