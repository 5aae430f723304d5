// Package postgrest talks to the hosted data service through its REST API.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"math-quiz-service/internal/domain"
)

const (
	table        = "quiz_results"
	entryColumns = "initials,score,age_group"
	scoreOrder   = "score.desc,id.asc"
	maxErrorBody = 64 << 10
)

// ScoreStore implements app.ScoreStore against a PostgREST endpoint
// (for example a Supabase project).
type ScoreStore struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewScoreStore builds a store for the service at baseURL authenticated with key.
func NewScoreStore(baseURL, key string, client *http.Client) (*ScoreStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("store url %q is not absolute", baseURL)
	}
	if key == "" {
		return nil, fmt.Errorf("store key is empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ScoreStore{
		endpoint: strings.TrimRight(u.String(), "/") + "/rest/v1/" + table,
		key:      key,
		client:   client,
	}, nil
}

type insertRow struct {
	Initials string `json:"initials"`
	Email    string `json:"email"`
	Score    int    `json:"score"`
	AgeGroup string `json:"age_group"`
}

type entryRow struct {
	Initials string `json:"initials"`
	Score    int    `json:"score"`
	AgeGroup string `json:"age_group"`
}

func (s *ScoreStore) Insert(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	body, err := json.Marshal([]insertRow{{
		Initials: record.Initials,
		Email:    record.Email,
		Score:    record.Score,
		AgeGroup: string(record.AgeGroup),
	}})
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []domain.ScoreRecord
	if err := s.do(req, &rows); err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("insert quiz result: %w", err)
	}
	if len(rows) == 0 {
		return domain.ScoreRecord{}, &domain.StoreError{Message: "no data returned from insert operation"}
	}
	return rows[0], nil
}

func (s *ScoreStore) TopByBracket(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	q := url.Values{}
	q.Set("select", entryColumns)
	q.Set("age_group", "eq."+string(bracket))
	q.Set("order", scoreOrder)
	q.Set("limit", strconv.Itoa(limit))
	return s.list(ctx, q)
}

func (s *ScoreStore) ListByScore(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	q := url.Values{}
	q.Set("select", entryColumns)
	q.Set("order", scoreOrder)
	return s.list(ctx, q)
}

func (s *ScoreStore) list(ctx context.Context, q url.Values) ([]domain.LeaderboardEntry, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var rows []entryRow
	if err := s.do(req, &rows); err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			Initials:   row.Initials,
			Score:      row.Score,
			AgeBracket: domain.AgeBracket(row.AgeGroup),
		})
	}
	return entries, nil
}

func (s *ScoreStore) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx body into out. Error bodies become StoreErrors;
// a body without recognizable fields yields an empty StoreError.
func (s *ScoreStore) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		storeErr := &domain.StoreError{}
		if err := json.Unmarshal(raw, storeErr); err != nil {
			return &domain.StoreError{}
		}
		return storeErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
