// Package finance provides stock and crypto price capabilities backed
// by Finnhub and CoinMarketCap.
package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/odaihq/odai-server/pkg/tools"
)

func init() {
	tools.Register(tools.Definition{
		Name:         "get_stock_price_at_finnhub",
		Label:        "Getting Stock Price...",
		Description:  "Get the real-time stock price and trading data for a ticker symbol.",
		SamplePrompt: "How is the AAPL stock doing?",
		Params: map[string]*schema.ParameterInfo{
			"symbol": {
				Type:     schema.String,
				Desc:     "Ticker symbol, e.g. AAPL",
				Required: true,
			},
		},
	}, getStockPrice)

	tools.Register(tools.Definition{
		Name:         "check_crypto_price_at_coinmarketcap",
		Label:        "Checking Crypto Price...",
		Description:  "Check the current price and market data for a cryptocurrency.",
		SamplePrompt: "What's the price of BTC right now?",
		Params: map[string]*schema.ParameterInfo{
			"crypto_symbol": {
				Type:     schema.String,
				Desc:     "Cryptocurrency ticker symbol, e.g. BTC, ETH, SOL",
				Required: true,
			},
		},
	}, checkCryptoPrice)
}

type stockArgs struct {
	Symbol string `json:"symbol"`
}

// finnhubQuote mirrors the fields of Finnhub's /quote response.
type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	Open          float64 `json:"o"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
}

func getStockPrice(ctx context.Context, raw json.RawMessage) (string, error) {
	var args stockArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", errors.Wrap(err, "parse arguments")
	}
	if args.Symbol == "" {
		return "", errors.New("symbol is required")
	}
	key := tools.Conf().FinnhubKey
	if key == "" {
		return "", errors.New("finnhub api key not configured")
	}

	var quote finnhubQuote
	reqURL := fmt.Sprintf("https://finnhub.io/api/v1/quote?symbol=%s&token=%s",
		url.QueryEscape(args.Symbol), url.QueryEscape(key))
	if err := tools.FetchJSON(ctx, reqURL, nil, &quote); err != nil {
		return "", err
	}
	if quote.Current == 0 && quote.Open == 0 && quote.High == 0 {
		return "", errors.Errorf("no quote data for %s", args.Symbol)
	}

	return fmt.Sprintf("%s: price %.2f, change %+.2f (%+.2f%%), open %.2f, high %.2f, low %.2f",
		args.Symbol, quote.Current, quote.Change, quote.PercentChange, quote.Open, quote.High, quote.Low), nil
}

type cryptoArgs struct {
	Symbol string `json:"crypto_symbol"`
}

func checkCryptoPrice(ctx context.Context, raw json.RawMessage) (string, error) {
	var args cryptoArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", errors.Wrap(err, "parse arguments")
	}
	if args.Symbol == "" {
		return "", errors.New("crypto_symbol is required")
	}
	key := tools.Conf().CoinMarketCapKey
	if key == "" {
		return "", errors.New("coinmarketcap api key not configured")
	}

	var payload struct {
		Data map[string]struct {
			Name  string `json:"name"`
			Quote map[string]struct {
				Price            float64 `json:"price"`
				PercentChange24h float64 `json:"percent_change_24h"`
				MarketCap        float64 `json:"market_cap"`
			} `json:"quote"`
		} `json:"data"`
	}
	reqURL := "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest?symbol=" + url.QueryEscape(args.Symbol)
	headers := map[string]string{"X-CMC_PRO_API_KEY": key}
	if err := tools.FetchJSON(ctx, reqURL, headers, &payload); err != nil {
		return "", err
	}

	entry, ok := payload.Data[args.Symbol]
	if !ok {
		return "", errors.Errorf("no data for %s", args.Symbol)
	}
	usd, ok := entry.Quote["USD"]
	if !ok {
		return "", errors.Errorf("no USD quote for %s", args.Symbol)
	}
	return fmt.Sprintf("%s (%s): $%.2f, 24h change %+.2f%%, market cap $%.0f",
		entry.Name, args.Symbol, usd.Price, usd.PercentChange24h, usd.MarketCap), nil
}
