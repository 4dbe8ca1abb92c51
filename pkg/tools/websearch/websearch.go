// Package websearch provides a Google web search capability backed by
// the Custom Search API.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/odaihq/odai-server/pkg/tools"
)

func init() {
	tools.Register(tools.Definition{
		Name:         "search_google",
		Label:        "Searching Google...",
		Description:  "Perform a Google web search and return the top results.",
		SamplePrompt: "Search for the latest AI news",
		Params: map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search query string",
				Required: true,
			},
		},
	}, search)
}

type searchArgs struct {
	Query string `json:"query"`
}

func search(ctx context.Context, raw json.RawMessage) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", errors.Wrap(err, "parse arguments")
	}
	if args.Query == "" {
		return "", errors.New("query is required")
	}
	conf := tools.Conf()
	if conf.SearchKey == "" || conf.SearchCX == "" {
		return "", errors.New("google search not configured")
	}

	var payload struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	reqURL := fmt.Sprintf("https://www.googleapis.com/customsearch/v1?key=%s&cx=%s&q=%s",
		url.QueryEscape(conf.SearchKey), url.QueryEscape(conf.SearchCX), url.QueryEscape(args.Query))
	if err := tools.FetchJSON(ctx, reqURL, nil, &payload); err != nil {
		return "", err
	}
	if len(payload.Items) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, item := range payload.Items {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n", i+1, item.Title, item.Link, item.Snippet)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
