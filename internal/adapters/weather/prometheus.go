package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// gaugeSample is one series from an instant vector query.
type gaugeSample struct {
	Metric map[string]string
	Time   int64
	Value  string
}

// promClient queries instant vectors from a Prometheus endpoint.
type promClient struct {
	endpoint   string
	httpClient *http.Client
}

func newPromClient(endpoint string) *promClient {
	return &promClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

// queryGauge runs an instant query for gauge{series...} and returns the
// resulting vector samples.
func (c *promClient) queryGauge(ctx context.Context, gauge string, series map[string]string) ([]gaugeSample, error) {
	matchers := make([]string, 0, len(series))
	for k := range series {
		matchers = append(matchers, k)
	}
	sort.Strings(matchers)
	for i, k := range matchers {
		matchers[i] = fmt.Sprintf("%s=%q", k, series[k])
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf("%s{%s}", gauge, strings.Join(matchers, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"/api/v1/query?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prometheus query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("prometheus query: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			ResultType string `json:"resultType"`
			Result     []struct {
				Metric map[string]string `json:"metric"`
				Value  []json.RawMessage `json:"value"` // [unix time, string value]
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding prometheus response: %w", err)
	}

	if payload.Status != "success" {
		return nil, fmt.Errorf("expected status success, got %q", payload.Status)
	}
	if payload.Data.ResultType != "vector" {
		return nil, fmt.Errorf("expected vector result, got %q", payload.Data.ResultType)
	}

	samples := make([]gaugeSample, 0, len(payload.Data.Result))
	for _, item := range payload.Data.Result {
		if len(item.Value) != 2 {
			continue
		}
		var ts float64
		var value string
		if err := json.Unmarshal(item.Value[0], &ts); err != nil {
			continue
		}
		if err := json.Unmarshal(item.Value[1], &value); err != nil {
			continue
		}
		samples = append(samples, gaugeSample{
			Metric: item.Metric,
			Time:   int64(ts),
			Value:  value,
		})
	}
	return samples, nil
}
