// Package entropy provides the simulation's pluggable randomness: a seeded
// math/rand source for reproducible runs, crypto/rand for unseeded runs,
// and an optional random.org pool for true randomness.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	mathrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// Source is the randomness the engine consumes: chest medal draws, turn
// order shuffles and starting capital. *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewSeeded returns a deterministic source.
func NewSeeded(seed int64) Source {
	return mathrand.New(mathrand.NewSource(seed))
}

// IntBetween returns a uniform integer in [lo, hi].
func IntBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// floatSource adapts a [0,1) float generator into a Source.
type floatSource struct {
	float func() float64
}

func (f floatSource) Intn(n int) int {
	if n <= 0 {
		panic("entropy: invalid argument to Intn")
	}
	v := int(f.float() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Shuffle is a Fisher–Yates shuffle.
func (f floatSource) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, f.Intn(i+1))
	}
}

// NewCrypto returns a source backed by crypto/rand.
func NewCrypto() Source {
	return floatSource{float: cryptoRandFloat}
}

// Client provides true random numbers from random.org with a local pool.
type Client struct {
	apiKey string
	client *http.Client
	url    string

	mu   sync.Mutex
	pool []float64
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		url:    "https://api.random.org/json-rpc/4/invoke",
	}
}

// Source returns a Source drawing from the random.org pool, or crypto/rand
// when the client is nil.
func (c *Client) Source() Source {
	return floatSource{float: func() float64 { return FloatFromSource(c) }}
}

// Float returns a random float64 in [0, 1). Uses the pool, refilling from
// random.org when low. Falls back to crypto/rand on API failure.
func (c *Client) Float() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < 10 {
		c.refill()
	}

	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}

	val := c.pool[0]
	c.pool = c.pool[1:]
	return val
}

func (c *Client) refill() {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             100,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return
	}

	c.pool = append(c.pool, result.Result.Random.Data...)
	slog.Debug("random.org pool refilled", "count", len(result.Result.Random.Data))
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// FloatFromSource returns a random float from the client if available, or crypto/rand.
func FloatFromSource(c *Client) float64 {
	if c != nil && c.Enabled() {
		return c.Float()
	}
	return cryptoRandFloat()
}
