// Package bibletext proxies an upstream scripture API: passage lookup and
// keyword search, with premium translations gated per user.
package bibletext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/pkg/logger"
)

var (
	// ErrPremiumRequired is returned when a free user requests a licensed
	// translation.
	ErrPremiumRequired = errors.New("translation requires a premium account")
	// ErrRateLimited is returned when the upstream call budget is spent.
	ErrRateLimited = errors.New("too many scripture requests")
	// ErrUserNotFound mirrors the storage sentinel for unknown users.
	ErrUserNotFound = errors.New("user not found")
)

// DefaultTranslation is used when the caller does not name one.
const DefaultTranslation = "WEB"

// premiumTranslations are licensed texts only premium accounts may read.
var premiumTranslations = map[string]bool{
	"NIV": true,
	"NLT": true,
	"ESV": true,
}

// Passage is one verse or span returned by the upstream API.
type Passage struct {
	VerseID     string `json:"verse_id"`
	Reference   string `json:"reference"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// Service talks to the upstream scripture API on behalf of users.
type Service struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	limiter  *rate.Limiter
	users    storage.UserStore
	log      *logger.Logger
}

// New constructs a bibletext service. rps bounds upstream calls per second;
// zero disables the limit.
func New(client *http.Client, endpoint, apiKey string, rps float64, users storage.UserStore, log *logger.Logger) (*Service, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("scripture endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse scripture endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("bibletext")
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &Service{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		limiter:  limiter,
		users:    users,
		log:      log,
	}, nil
}

// Lookup fetches a single passage by reference in the given translation.
func (s *Service) Lookup(ctx context.Context, userID int64, reference, translation string) (Passage, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Passage{}, fmt.Errorf("reference is required")
	}
	translation, err := s.resolveTranslation(ctx, userID, translation)
	if err != nil {
		return Passage{}, err
	}

	body, err := s.fetch(ctx, "/passage", url.Values{
		"reference":   {reference},
		"translation": {translation},
	})
	if err != nil {
		return Passage{}, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return Passage{}, fmt.Errorf("passage %q not found", reference)
	}
	return Passage{
		VerseID:     data.Get("id").String(),
		Reference:   data.Get("reference").String(),
		Text:        strings.TrimSpace(data.Get("content").String()),
		Translation: translation,
	}, nil
}

// Search finds verses matching query in the given translation.
func (s *Service) Search(ctx context.Context, userID int64, query, translation string) ([]Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	translation, err := s.resolveTranslation(ctx, userID, translation)
	if err != nil {
		return nil, err
	}

	body, err := s.fetch(ctx, "/search", url.Values{
		"query":       {query},
		"translation": {translation},
	})
	if err != nil {
		return nil, err
	}

	results := make([]Passage, 0)
	gjson.GetBytes(body, "data.verses").ForEach(func(_, v gjson.Result) bool {
		results = append(results, Passage{
			VerseID:     v.Get("id").String(),
			Reference:   v.Get("reference").String(),
			Text:        strings.TrimSpace(v.Get("text").String()),
			Translation: translation,
		})
		return true
	})
	return results, nil
}

// resolveTranslation normalizes the requested translation and enforces the
// premium gate.
func (s *Service) resolveTranslation(ctx context.Context, userID int64, translation string) (string, error) {
	translation = strings.ToUpper(strings.TrimSpace(translation))
	if translation == "" {
		translation = DefaultTranslation
	}
	if !premiumTranslations[translation] {
		return translation, nil
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if !u.IsPremium {
		return "", fmt.Errorf("%w: %s", ErrPremiumRequired, translation)
	}
	return translation, nil
}

func (s *Service) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	requestURL := *s.endpoint
	requestURL.Path = strings.TrimSuffix(requestURL.Path, "/") + path
	requestURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build scripture request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scripture request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).WithField("path", path).
			Warn("scripture upstream returned non-200")
		return nil, fmt.Errorf("scripture upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read scripture response: %w", err)
	}
	return body, nil
}
