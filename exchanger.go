package pawtrail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pawtrail/pawtrail/credentials"
)

// httpExchanger is the default [TokenExchanger]: a POST to the refresh
// endpoint carrying the refresh token header, answered with a new
// access/refresh pair.
type httpExchanger struct {
	client        *http.Client
	url           string
	refreshHeader string
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func newHTTPExchanger(client *http.Client, cfg Config) *httpExchanger {
	return &httpExchanger{
		client:        client,
		url:           cfg.Refresh.URL,
		refreshHeader: cfg.Pipeline.RefreshHeader,
	}
}

func (e *httpExchanger) Exchange(ctx context.Context, refreshToken string) (credentials.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, nil)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set(e.refreshHeader, refreshToken)

	resp, err := e.client.Do(req)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("refresh transport: %w", err)
	}
	defer discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return credentials.Credential{}, &HTTPError{Status: resp.StatusCode}
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return credentials.Credential{}, fmt.Errorf("%w: refresh response: %w", ErrDecoding, err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return credentials.Credential{}, fmt.Errorf("%w: refresh response missing token fields", ErrDecoding)
	}

	return credentials.Credential{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}, nil
}
