package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/pkg/circuit_breaker"
)

type Config struct {
	URL     string        `envconfig:"METADATA_URL" default:"https://openlibrary.org"`
	Timeout time.Duration `envconfig:"METADATA_TIMEOUT" default:"5s"`

	BreakerWindow   int           `envconfig:"METADATA_CB_WINDOW" default:"10"`
	BreakerTimeout  time.Duration `envconfig:"METADATA_CB_TIMEOUT" default:"30s"`
	BreakerRatio    float64       `envconfig:"METADATA_CB_RATIO" default:"0.5"`
	BreakerRecovery int           `envconfig:"METADATA_CB_RECOVERY" default:"2"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errNoRecord = errors.New("no record")

// Client queries the Open Library books API.
type Client struct {
	log     *zap.Logger
	client  *http.Client
	baseURL string
	cb      circuit_breaker.CircuitBreaker
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		log:     log.Named("metadata"),
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.URL,
		cb:      circuit_breaker.New(cfg.BreakerWindow, cfg.BreakerTimeout, cfg.BreakerRatio, cfg.BreakerRecovery),
	}
}

type namedEntry struct {
	Name string `json:"name"`
}

type record struct {
	Title         string       `json:"title"`
	Authors       []namedEntry `json:"authors"`
	Publishers    []namedEntry `json:"publishers"`
	NumberOfPages int          `json:"number_of_pages"`
	Cover         struct {
		Medium string `json:"medium"`
	} `json:"cover"`
}

// Lookup reports ok=false for unknown ISBNs and for every failure, including an open breaker.
func (c *Client) Lookup(ctx context.Context, isbn string) (*model.BookMetadata, bool) {
	var data *model.BookMetadata
	err := c.cb.Call(func() error {
		var err error
		data, err = c.fetch(ctx, isbn)
		if errors.Is(err, errNoRecord) {
			// a miss is a healthy answer
			return nil
		}
		return err
	})
	if err != nil {
		c.log.Warn("lookup", zap.String("isbn", isbn), zap.Error(err))
		return nil, false
	}
	return data, data != nil
}

func (c *Client) fetch(ctx context.Context, isbn string) (*model.BookMetadata, error) {
	key := "ISBN:" + isbn
	q := url.Values{}
	q.Set("bibkeys", key)
	q.Set("format", "json")
	q.Set("jscmd", "data")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/books?%s", c.baseURL, q.Encode()), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body map[string]record
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	rec, ok := body[key]
	if !ok {
		return nil, errNoRecord
	}

	data := &model.BookMetadata{
		ISBN:     isbn,
		Title:    rec.Title,
		Pages:    rec.NumberOfPages,
		CoverURL: rec.Cover.Medium,
		Authors:  make([]string, 0, len(rec.Authors)),
	}
	for _, a := range rec.Authors {
		data.Authors = append(data.Authors, a.Name)
	}
	if len(rec.Publishers) > 0 {
		data.Publisher = rec.Publishers[0].Name
	}
	return data, nil
}
