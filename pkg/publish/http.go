package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"netsentinel/pkg/auth"
	"netsentinel/pkg/model"
)

// HTTPPublisher POSTs each envelope to a collector endpoint.
type HTTPPublisher struct {
	client  *http.Client
	url     string
	agentID string
	signer  *auth.Signer
}

func NewHTTPPublisher(client *http.Client, url, agentID string, signer *auth.Signer) *HTTPPublisher {
	return &HTTPPublisher{client: client, url: url, agentID: agentID, signer: signer}
}

func (p *HTTPPublisher) Publish(ctx context.Context, s model.Sample) error {
	body, err := encode(p.agentID, s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.signer != nil {
		token, err := p.signer.Generate(p.agentID)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

func (p *HTTPPublisher) Close() error { return nil }
