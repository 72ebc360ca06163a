package thingspeak

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
)

// Channel field assignments. The channel layout is fixed by the hardware side:
// field1..field6 are sensor readings and the pump relay, field7 is the
// auto/manual mode flag.
const (
	FieldTemperature   = "field1"
	FieldAirHumidity   = "field2"
	FieldSoilHumidity  = "field3"
	FieldPrecipitation = "field4"
	FieldPump          = "field5"
	FieldPressure      = "field6"
	FieldMode          = "field7"
)

// FieldNames lists the channel fields in wire order.
var FieldNames = []string{
	FieldTemperature,
	FieldAirHumidity,
	FieldSoilHumidity,
	FieldPrecipitation,
	FieldPump,
	FieldPressure,
	FieldMode,
}

const (
	defaultBaseURL = "https://api.thingspeak.com"
	requestTimeout = 15 * time.Second
)

// Config carries the two channel credentials and the channel id. BaseURL is
// overridable for tests.
type Config struct {
	BaseURL   string
	ChannelID int
	ReadKey   string
	WriteKey  string
}

// Client talks to a single ThingSpeak channel: read the latest feed entry,
// write a full field set. The channel is eventually consistent, so a write
// acknowledged here may not be visible to ReadLast for several seconds.
type Client struct {
	baseURL   string
	channelID int
	readKey   string
	writeKey  string
	http      *http.Client
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		channelID: cfg.ChannelID,
		readKey:   cfg.ReadKey,
		writeKey:  cfg.WriteKey,
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DisableKeepAlives: false,
			},
		},
	}
}

// Feed is the JSON shape of a single channel entry. Fields the channel never
// wrote arrive as null and decode to "".
type Feed struct {
	CreatedAt string `json:"created_at"`
	EntryID   int64  `json:"entry_id"`
	Field1    string `json:"field1"`
	Field2    string `json:"field2"`
	Field3    string `json:"field3"`
	Field4    string `json:"field4"`
	Field5    string `json:"field5"`
	Field6    string `json:"field6"`
	Field7    string `json:"field7"`
}

// Field returns the value of a field by its wire name ("field1".."field7").
func (f Feed) Field(name string) string {
	switch name {
	case FieldTemperature:
		return f.Field1
	case FieldAirHumidity:
		return f.Field2
	case FieldSoilHumidity:
		return f.Field3
	case FieldPrecipitation:
		return f.Field4
	case FieldPump:
		return f.Field5
	case FieldPressure:
		return f.Field6
	case FieldMode:
		return f.Field7
	}
	return ""
}

// ReadLast fetches the most recent entry of the channel. The t parameter is a
// cache buster; intermediaries otherwise serve stale reads for this endpoint.
func (c *Client) ReadLast(ctx context.Context) (Feed, error) {
	q := url.Values{}
	q.Set("api_key", c.readKey)
	q.Set("t", strconv.FormatInt(time.Now().UnixNano(), 10))

	u := fmt.Sprintf("%s/channels/%d/feeds/last.json?%s", c.baseURL, c.channelID, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Feed{}, &FetchError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Feed{}, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Feed{}, &FetchError{Status: resp.StatusCode}
	}

	var f Feed
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return Feed{}, &FetchError{Err: fmt.Errorf("decode feed: %w", err)}
	}
	return f, nil
}

// Update writes a full field set to the channel. The endpoint responds with a
// plain-text entry id; anything non-positive means the write was rejected
// (bad key, or the 15 s per-channel rate limit).
func (c *Client) Update(ctx context.Context, params url.Values) (int64, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api_key", c.writeKey)

	u := c.baseURL + "/update?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return 0, &FetchError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &FetchError{Err: err}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected update response %q: %w", strings.TrimSpace(string(body)), err)
	}
	if id <= 0 {
		return id, fmt.Errorf("%w (entry id %d)", ErrWriteRejected, id)
	}
	return id, nil
}
