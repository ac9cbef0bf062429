package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Params carries the tuning the render service expects on every request.
type Params struct {
	NumSteps int
	CFGScale float64
	RandSeed int
}

// Client talks to the remote video generation service. Rendering is
// asynchronous: a submission returns a request id, and the clip URL
// appears on the status endpoint once the render lands.
type Client struct {
	logger   zerolog.Logger
	http     *resty.Client
	params   Params
	interval time.Duration
	attempts int
}

type generateRequest struct {
	RefinedPrompt string  `json:"refined_prompt"`
	UserPrompt    string  `json:"user_prompt"`
	NumSteps      int     `json:"num_step"`
	CFGScale      float64 `json:"cfg_scale"`
	RandSeed      int     `json:"rand_seed"`
}

// apiResponse is the service's uniform envelope. Bodies are JSON even
// when the response content type says otherwise.
type apiResponse struct {
	Data string `json:"data"`
}

// New creates a client for the service at baseURL. The token rides along
// as a bearer credential on every call.
func New(logger zerolog.Logger, baseURL, token string, params Params, interval time.Duration, attempts int) *Client {
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		logger: logger.With().Str("component", "generation").Logger(),
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(token).
			SetTimeout(30 * time.Second),
		params:   params,
		interval: interval,
		attempts: attempts,
	}
}

// Generate submits a prompt pair for rendering and returns the request id.
// Chat terminator tokens that leak out of prompt refinement are stripped
// before submission.
func (c *Client) Generate(ctx context.Context, refinedPrompt, userPrompt string) (string, error) {
	refinedPrompt = strings.TrimSpace(strings.ReplaceAll(refinedPrompt, "<|im_end|>", ""))
	if refinedPrompt == "" {
		return "", fmt.Errorf("refined prompt is empty")
	}

	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{
			RefinedPrompt: refinedPrompt,
			UserPrompt:    userPrompt,
			NumSteps:      c.params.NumSteps,
			CFGScale:      c.params.CFGScale,
			RandSeed:      c.params.RandSeed,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/generateVideoSyn")
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generation request rejected: %s", resp.Status())
	}
	if out.Data == "" {
		return "", fmt.Errorf("generation service returned no request id")
	}

	c.logger.Info().Str("request_id", out.Data).Msg("generation submitted")
	return out.Data, nil
}

// Status asks the service where a render stands. An empty URL with a nil
// error means the clip is still in progress; every call hits the remote
// endpoint.
func (c *Client) Status(ctx context.Context, requestID string) (string, error) {
	if requestID == "" {
		return "", fmt.Errorf("request id is required")
	}

	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("requestId", requestID).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/videoQuery")
	if err != nil {
		return "", fmt.Errorf("status query failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("status query rejected: %s", resp.Status())
	}
	return out.Data, nil
}

// WaitForVideo polls the status endpoint until the clip URL appears or the
// attempt budget runs out.
func (c *Client) WaitForVideo(ctx context.Context, requestID string) (string, error) {
	for attempt := 1; attempt <= c.attempts; attempt++ {
		url, err := c.Status(ctx, requestID)
		if err != nil {
			return "", err
		}
		if url != "" {
			c.logger.Info().
				Str("request_id", requestID).
				Int("attempt", attempt).
				Msg("video ready")
			return url, nil
		}

		c.logger.Debug().
			Str("request_id", requestID).
			Int("attempt", attempt).
			Int("max_attempts", c.attempts).
			Msg("video still rendering")

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return "", fmt.Errorf("video %s not ready after %d attempts", requestID, c.attempts)
}
