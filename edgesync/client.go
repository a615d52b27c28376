package edgesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cedarpos/pos_backend/models"
)

// Header names shared by the client and the cloud-side middleware.
const (
	HeaderSyncKey    = "X-Edge-Sync-Key"
	HeaderNodeId     = "X-Edge-Node-Id"
	HeaderBusinessId = "X-Business-Id"
)

// Client talks to the cloud sync surface from an edge deployment. Requests
// share one ticker so a catch-up pull cannot saturate the uplink.
type Client struct {
	baseURL    string
	syncKey    string
	nodeId     string
	businessId string
	http       *http.Client
	limiter    <-chan time.Time
}

func NewClientFromEnv() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("EDGE_SYNC_TARGET_URL"))
	if baseURL == "" {
		return nil, errors.New("EDGE_SYNC_TARGET_URL is empty")
	}
	syncKey := strings.TrimSpace(os.Getenv("EDGE_SYNC_KEY"))
	if syncKey == "" {
		return nil, errors.New("EDGE_SYNC_KEY is empty")
	}
	businessId := strings.TrimSpace(os.Getenv("EDGE_SYNC_BUSINESS_ID"))
	if businessId == "" {
		return nil, errors.New("EDGE_SYNC_BUSINESS_ID is empty")
	}
	nodeId := strings.TrimSpace(os.Getenv("EDGE_SYNC_NODE_ID"))
	if nodeId == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			return nil, errors.New("EDGE_SYNC_NODE_ID is empty and hostname is unavailable")
		}
		nodeId = host
	}
	ratePerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("EDGE_SYNC_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ratePerMin = n
		}
	}
	interval := time.Minute / time.Duration(ratePerMin)

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		syncKey:    syncKey,
		nodeId:     nodeId,
		businessId: businessId,
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    time.Tick(interval),
	}, nil
}

func (c *Client) NodeId() string     { return c.nodeId }
func (c *Client) BusinessId() string { return c.businessId }

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, payload interface{}, out interface{}) error {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set(HeaderSyncKey, c.syncKey)
	req.Header.Set(HeaderNodeId, c.nodeId)
	req.Header.Set(HeaderBusinessId, c.businessId)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("edge sync error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// FetchMasterdata pulls one keyset page of one entity from the cloud.
func (c *Client) FetchMasterdata(ctx context.Context, entity string, sinceTs time.Time, sinceId string, limit int) (*MasterdataPage, error) {
	params := url.Values{}
	params.Set("since_ts", sinceTs.UTC().Format(time.RFC3339Nano))
	params.Set("since_id", sinceId)
	params.Set("limit", strconv.Itoa(limit))

	var page MasterdataPage
	if err := c.do(ctx, http.MethodGet, "/edge/masterdata/"+entity, params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PushSalesBundle lands one posted document on the cloud.
func (c *Client) PushSalesBundle(ctx context.Context, bundle *SalesBundle) (*ImportReceipt, error) {
	var receipt ImportReceipt
	if err := c.do(ctx, http.MethodPost, "/edge/import/sales-bundle", nil, bundle, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// PushCustomer lands one locally-created customer on the cloud.
func (c *Client) PushCustomer(ctx context.Context, customer *models.Customer) error {
	return c.do(ctx, http.MethodPost, "/edge/import/customer", nil, customer, nil)
}

// Ping reports liveness and fetches the server clock.
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var pong PingResponse
	if err := c.do(ctx, http.MethodPost, "/edge/ping", nil, nil, &pong); err != nil {
		return nil, err
	}
	return &pong, nil
}
