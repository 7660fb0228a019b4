// Package apify runs Apify scraping actors synchronously and returns their dataset items.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

const (
	DefaultBaseURL = "https://api.apify.com/v2"

	TweetActorID   = "u6ppkMWAx2E2MpEuF"
	RepliesActorID = "qhybbvlFivx7AP0Oh"

	DefaultReplyLimit = 50

	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 2048
)

// StatusError is a non-2xx answer from the Apify API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apify: status %d: %s", e.StatusCode, e.Body)
}

var ErrEmptyDataset = errors.New("apify: actor returned no items")

type Options struct {
	Token   string
	BaseURL string
	// RequestsPerSecond caps actor runs; 0 means one per second.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            logrus.FieldLogger
}

type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("apify.New: missing api token")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		token:   opts.Token,
		baseURL: base,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     logging.Or(opts.Logger),
	}, nil
}

// RunActor starts actorID with input, waits for it to finish and returns the default dataset items.
// Numbers are kept as json.Number so large status ids survive.
func (c *Client) RunActor(ctx context.Context, actorID string, input any) ([]map[string]any, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("RunActor: marshal input: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("RunActor: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items", c.baseURL, url.PathEscape(actorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("RunActor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	log := c.log.WithField("actor", actorID)
	start := time.Now()
	log.Debug("running actor")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("RunActor: %s: %w", actorID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		log.WithError(serr).WithField("status_code", resp.StatusCode).Error("actor run failed")
		return nil, fmt.Errorf("RunActor: %s: %w", actorID, serr)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("RunActor: %s: decode items: %w", actorID, err)
	}
	log.WithFields(logrus.Fields{"items": len(items), "elapsed": time.Since(start).Round(time.Millisecond)}).Info("actor finished")
	return items, nil
}

type startURL struct {
	URL string `json:"url"`
}

type proxyConfig struct {
	UseApifyProxy bool `json:"useApifyProxy"`
}

type tweetInput struct {
	StartURLs     []startURL  `json:"startUrls"`
	TweetsDesired int         `json:"tweetsDesired"`
	AddUserInfo   bool        `json:"addUserInfo"`
	ProxyConfig   proxyConfig `json:"proxyConfig"`
}

type repliesInput struct {
	PostURLs     []string `json:"postUrls"`
	ResultsLimit int      `json:"resultsLimit"`
}

// FetchTweet returns the raw record of the post at rawURL. When the actor returns several items the
// one whose id matches the URL wins; otherwise the first item is used.
func (c *Client) FetchTweet(ctx context.Context, rawURL string) (map[string]any, error) {
	u, id, err := xthread.ParseTweetURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("FetchTweet: %w", err)
	}
	items, err := c.RunActor(ctx, TweetActorID, tweetInput{
		StartURLs:     []startURL{{URL: u}},
		TweetsDesired: 1,
		AddUserInfo:   true,
		ProxyConfig:   proxyConfig{UseApifyProxy: true},
	})
	if err != nil {
		return nil, fmt.Errorf("FetchTweet: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("FetchTweet: %s: %w", u, ErrEmptyDataset)
	}
	for _, it := range items {
		if rec, err := xthread.Extract(it); err == nil && rec.ID == id {
			return it, nil
		}
	}
	c.log.WithFields(logrus.Fields{"tweet_id": id, "items": len(items)}).Warn("no item matched the requested id, using the first")
	return items[0], nil
}

// FetchReplies returns up to limit raw reply records for the post at rawURL. Items carrying the root
// post itself are dropped.
func (c *Client) FetchReplies(ctx context.Context, rawURL string, limit int) ([]map[string]any, error) {
	u, id, err := xthread.ParseTweetURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("FetchReplies: %w", err)
	}
	if limit <= 0 {
		limit = DefaultReplyLimit
	}
	items, err := c.RunActor(ctx, RepliesActorID, repliesInput{PostURLs: []string{u}, ResultsLimit: limit})
	if err != nil {
		return nil, fmt.Errorf("FetchReplies: %w", err)
	}
	out := make([]map[string]any, 0, len(items))
	for i, it := range items {
		if rec, err := xthread.Extract(it); err == nil && rec.ID == id {
			continue
		}
		if i == 0 {
			c.log.WithField("keys", fileutils.Truncate(strings.Join(slices.Sorted(maps.Keys(it)), ","), 400)).Debug("first reply item")
		}
		out = append(out, it)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
