package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const DefaultVerseAPI = "https://bible-api.com"

var ErrVerseNotFound = errors.New("verse not found")

type Verse struct {
	Book    string
	Chapter int
	Number  int
	Text    string
}

type Passage struct {
	Reference   string
	Translation string
	Text        string
	Verses      []Verse
}

// VerseLookup fetches passage text from a bible-api.com style service:
// GET {base}/{reference} answering with reference, text and verses[].
type VerseLookup struct {
	baseURL     string
	translation string
	httpClient  *http.Client
}

func NewVerseLookup(baseURL, translation string, httpClient *http.Client) *VerseLookup {
	if baseURL == "" {
		baseURL = DefaultVerseAPI
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &VerseLookup{
		baseURL:     strings.TrimRight(baseURL, "/"),
		translation: translation,
		httpClient:  httpClient,
	}
}

func (l *VerseLookup) Lookup(ctx context.Context, reference string) (*Passage, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}

	target := l.baseURL + "/" + url.PathEscape(reference)
	if l.translation != "" {
		target += "?translation=" + url.QueryEscape(l.translation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build verse request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verse lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read verse response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrVerseNotFound, reference)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verse lookup: unexpected status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("verse lookup: invalid JSON response")
	}

	result := gjson.ParseBytes(body)
	if msg := result.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrVerseNotFound, msg.String())
	}

	passage := &Passage{
		Reference:   result.Get("reference").String(),
		Translation: result.Get("translation_name").String(),
		Text:        strings.TrimSpace(result.Get("text").String()),
	}
	result.Get("verses").ForEach(func(_, v gjson.Result) bool {
		passage.Verses = append(passage.Verses, Verse{
			Book:    v.Get("book_name").String(),
			Chapter: int(v.Get("chapter").Int()),
			Number:  int(v.Get("verse").Int()),
			Text:    strings.TrimSpace(v.Get("text").String()),
		})
		return true
	})

	if passage.Text == "" && len(passage.Verses) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVerseNotFound, reference)
	}
	return passage, nil
}
