/*
Package classify is the HTTP client of the consignment classifier.

The classifier looks at a truck (identified by booking or withdrawal id) and
reports how many sacks it counted and which commodity it saw:

  GET {url}?id={id}
  Authorization: {token}

  200 {"Booking ID": "BK-0001", "Sacks Counting": "40", "Commodity": "Wheat"}

"Sacks Counting" arrives as a string or a number depending on the model
version; both are accepted.
*/
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/warehousing"
)

// Client implements warehousing.Classifier over HTTP.
type Client struct {
	baseURL       string
	authorization string
	http          *http.Client
}

// New returns nil when cfg has no URL, which turns verification off.
func New(cfg config.ClassifierConfig) *Client {
	if cfg.URL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       cfg.URL,
		authorization: cfg.Authorization,
		http:          &http.Client{Timeout: timeout},
	}
}

type response struct {
	BookingID  string          `json:"Booking ID"`
	SacksCount json.RawMessage `json:"Sacks Counting"`
	Commodity  string          `json:"Commodity"`
}

func (c *Client) Classify(ctx context.Context, id string) (warehousing.Classification, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return warehousing.Classification{}, errors.Wrap(err, "invalid classifier url")
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return warehousing.Classification{}, errors.Wrap(err, "failed to build classifier request")
	}
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return warehousing.Classification{}, errors.Wrap(err, "classifier request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return warehousing.Classification{}, errors.Errorf("classifier returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return warehousing.Classification{}, errors.Wrap(err, "failed to decode classifier response")
	}
	sacks, err := parseSacks(r.SacksCount)
	if err != nil {
		return warehousing.Classification{}, err
	}
	return warehousing.Classification{
		SacksCount: sacks,
		Commodity:  strings.TrimSpace(r.Commodity),
	}, nil
}

func parseSacks(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("classifier response has no sacks count")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.Wrapf(err, "unexpected sacks count %s", string(raw))
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("unexpected sacks count %q", s))
	}
	return n, nil
}

var _ warehousing.Classifier = (*Client)(nil)
