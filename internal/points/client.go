package points

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/httpx"
	"github.com/keelerlabs/lenderctl/internal/model"
)

// Client reads reward standings from the protocol's off-chain points API.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func New(httpClient *httpx.Client, baseURL, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

type pointsResponse struct {
	Address string `json:"address"`
	Points  struct {
		Total  float64 `json:"total"`
		Lend   float64 `json:"lend"`
		Borrow float64 `json:"borrow"`
	} `json:"points"`
	Rank      int64  `json:"rank"`
	UpdatedAt string `json:"updated_at"`
}

func (c *Client) Fetch(ctx context.Context, address string) (model.PointsSummary, error) {
	if c.baseURL == "" {
		return model.PointsSummary{}, clierr.New(clierr.CodeUsage, "points api url is not configured")
	}
	endpoint := fmt.Sprintf("%s/v1/points/%s", c.baseURL, url.PathEscape(address))
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp pointsResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, headers, &resp); err != nil {
		return model.PointsSummary{}, err
	}
	return model.PointsSummary{
		Address:      resp.Address,
		TotalPoints:  resp.Points.Total,
		LendPoints:   resp.Points.Lend,
		BorrowPoints: resp.Points.Borrow,
		Rank:         resp.Rank,
		UpdatedAt:    resp.UpdatedAt,
	}, nil
}
