package twitter

import "context"

// Client is the read-only slice of the X API v2 that capabilities depend on.
type Client interface {
	SearchRecent(ctx context.Context, query string, maxResults int) (*TweetPage, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserTimeline(ctx context.Context, userID string, maxResults int) (*TweetPage, error)
}

type Tweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	AuthorID      string        `json:"author_id,omitempty"`
	CreatedAt     string        `json:"created_at,omitempty"`
	PublicMetrics *TweetMetrics `json:"public_metrics,omitempty"`
}

type TweetMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

type User struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Username      string       `json:"username"`
	Description   string       `json:"description,omitempty"`
	Verified      bool         `json:"verified,omitempty"`
	CreatedAt     string       `json:"created_at,omitempty"`
	PublicMetrics *UserMetrics `json:"public_metrics,omitempty"`
}

type UserMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
	ListedCount    int `json:"listed_count"`
}

// TweetPage is one page of tweets plus the users referenced by the author_id expansion.
type TweetPage struct {
	Tweets    []Tweet
	Users     []User
	NextToken string
}

// Author returns the expanded user who wrote t, if the page includes it.
func (p *TweetPage) Author(t Tweet) (User, bool) {
	for _, u := range p.Users {
		if u.ID == t.AuthorID {
			return u, true
		}
	}
	return User{}, false
}

type problem struct {
	Title        string `json:"title"`
	Detail       string `json:"detail"`
	Type         string `json:"type"`
	Reason       string `json:"reason,omitempty"`
	Status       int    `json:"status,omitempty"`
	Value        string `json:"value,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

type meta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

type envelope[T any] struct {
	Data     T         `json:"data"`
	Includes *includes `json:"includes,omitempty"`
	Errors   []problem `json:"errors,omitempty"`
	Meta     *meta     `json:"meta,omitempty"`
}

type includes struct {
	Users []User `json:"users"`
}
