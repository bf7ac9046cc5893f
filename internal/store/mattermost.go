package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const appsKVPath = "/plugins/com.mattermost.apps/api/v1/kv/"

// MattermostKV stores each namespace as one document in the Mattermost Apps KV store.
// The platform offers no compare-and-set, so merges are serialized within the process.
type MattermostKV struct {
	siteURL string
	token   func() string
	http    *http.Client
	mu      sync.Mutex
}

var _ KV = (*MattermostKV)(nil)

// NewMattermostKV authenticates with the bot token returned by token on every request,
// so a refreshed bot token is picked up without rebuilding the store.
func NewMattermostKV(siteURL string, token func() string) *MattermostKV {
	return &MattermostKV{
		siteURL: strings.TrimSuffix(siteURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *MattermostKV) GetAll(ctx context.Context, ns Namespace) (map[string]json.RawMessage, error) {
	raw, err := m.do(ctx, http.MethodGet, ns, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ns, err)
	}
	return out, nil
}

func (m *MattermostKV) SetAll(ctx context.Context, ns Namespace, values map[string]json.RawMessage) error {
	if values == nil {
		values = map[string]json.RawMessage{}
	}
	body, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ns, err)
	}
	_, err = m.do(ctx, http.MethodPost, ns, body)
	return err
}

func (m *MattermostKV) GetOne(ctx context.Context, ns Namespace, id string) (json.RawMessage, error) {
	all, err := m.GetAll(ctx, ns)
	if err != nil {
		return nil, err
	}
	v, ok := all[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MattermostKV) MergeOne(ctx context.Context, ns Namespace, id string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.GetAll(ctx, ns)
	if err != nil {
		return err
	}
	merged, err := mergeJSON(all[id], value)
	if err != nil {
		return err
	}
	all[id] = merged
	return m.SetAll(ctx, ns, all)
}

func (m *MattermostKV) do(ctx context.Context, method string, ns Namespace, body []byte) ([]byte, error) {
	endpoint := m.siteURL + appsKVPath + url.PathEscape(string(ns))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s kv %s: %w", method, ns, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s kv %s: status %d: %s", method, ns, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
