// Package builtin ships the tools every chat gets out of the box.
package builtin

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/inference/tools"
)

// maxFetchBody caps how much of a page web_fetch reads, responses past this
// are truncated rather than rejected.
const maxFetchBody = 512 * 1024

// Register adds all builtin tools to the registry.
func Register(registry tools.Registry) error {
	defs := []*tools.Definition{
		tools.MustNewToolFromFunc("get_time", "Returns the current time, optionally in a specific IANA timezone.", GetTime),
		tools.MustNewToolFromFunc("web_fetch", "Fetches a web page and returns its text content, optionally narrowed to a CSS selector.", WebFetch),
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

type GetTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name, e.g. Europe/Paris. Defaults to UTC."`
}

type GetTimeOutput struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Unix     int64  `json:"unix"`
}

func GetTime(input GetTimeInput) (GetTimeOutput, error) {
	loc := time.UTC
	if input.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(input.Timezone)
		if err != nil {
			return GetTimeOutput{}, errors.Wrapf(err, "unknown timezone %s", input.Timezone)
		}
	}

	now := time.Now().In(loc)
	return GetTimeOutput{
		Time:     now.Format(time.RFC3339),
		Timezone: loc.String(),
		Unix:     now.Unix(),
	}, nil
}

type WebFetchInput struct {
	URL      string `json:"url" jsonschema:"required" jsonschema_description:"The http(s) URL to fetch."`
	Selector string `json:"selector,omitempty" jsonschema_description:"Optional CSS selector; only matching elements are returned."`
}

type WebFetchOutput struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

func WebFetch(ctx context.Context, input WebFetchInput) (WebFetchOutput, error) {
	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return WebFetchOutput{}, errors.Errorf("unsupported URL scheme in %s", input.URL)
	}

	events.PublishEventToContext(ctx, events.NewStatusEvent(events.EventMetadata{}, "fetching "+input.URL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return WebFetchOutput{}, errors.Wrap(err, "could not build request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return WebFetchOutput{}, errors.Wrapf(err, "could not fetch %s", input.URL)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return WebFetchOutput{}, errors.Errorf("fetching %s returned status %d", input.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return WebFetchOutput{}, errors.Wrapf(err, "could not parse %s", input.URL)
	}

	out := WebFetchOutput{
		URL:   input.URL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if input.Selector != "" {
		var parts []string
		doc.Find(input.Selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		out.Content = strings.Join(parts, "\n\n")
		return out, nil
	}

	doc.Find("script, style, noscript").Remove()
	out.Content = condenseWhitespace(doc.Find("body").Text())
	return out, nil
}

func condenseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
