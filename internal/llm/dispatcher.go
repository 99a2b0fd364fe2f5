// Package llm is the LLM Dispatcher (C3): a provider-variant-aware HTTP
// client that extracts response text and token usage behind one call
// signature, regardless of which vendor a Provider points at. Grounded on
// the teacher's internal/llm/client.go (OllamaClient.GenerateCompletion) and
// openai_client.go (OpenAIClient.GetEmbedding) — both share the same
// http.Client-with-timeout, json.Marshal-body, check-status-then-decode
// shape, generalized here into a table of per-variant callers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/vault"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// Kind tags a dispatch call for the Token Tracker.
type Kind string

const (
	KindDecision Kind = models.UsageKindDecision
	KindSummary  Kind = models.UsageKindSummary
	KindSandbox  Kind = models.UsageKindSandbox
)

// Usage is the token accounting extracted from (or estimated from) a
// provider response.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Estimated    bool
}

// Result is what Call always returns, even on a non-2xx response, so the
// caller can still record partial usage for billing (§4.3).
type Result struct {
	Text      string
	Usage     Usage
	LatencyMs int64
}

const defaultTimeout = 60 * time.Second

// Dispatcher holds the shared HTTP client and the vault used to decrypt
// provider API keys just-in-time (§5 "Provider api-keys are decrypted
// just-in-time inside the LLM Dispatcher and never stored decrypted").
type Dispatcher struct {
	client *http.Client
	vault  *vault.Vault
}

func New(v *vault.Vault) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: defaultTimeout},
		vault:  v,
	}
}

// Call dispatches prompt to provider's configured variant and returns text,
// usage, and latency. It never returns a nil *Result — even on error the
// caller gets a best-effort usage record.
func (d *Dispatcher) Call(ctx context.Context, provider *models.Provider, ownerSalt string, prompt string, kind Kind) (*Result, error) {
	apiKey, err := d.decryptKey(provider, ownerSalt)
	if err != nil {
		return &Result{Usage: estimate(prompt, "")}, err
	}

	start := time.Now()
	var text string
	var usage Usage
	var callErr error

	switch provider.Variant {
	case models.VariantOpenAI, models.VariantGrok:
		text, usage, callErr = d.callChatCompletions(ctx, provider, apiKey, prompt)
	case models.VariantAnthropic:
		text, usage, callErr = d.callAnthropic(ctx, provider, apiKey, prompt)
	case models.VariantGemini:
		text, usage, callErr = d.callGemini(ctx, provider, apiKey, prompt)
	case models.VariantLocal:
		text, usage, callErr = d.callLocal(ctx, provider, prompt)
	case models.VariantCustom:
		text, usage, callErr = d.callCustom(ctx, provider, apiKey, prompt)
	default:
		callErr = apierr.New(apierr.Internal, "unknown provider variant "+provider.Variant)
	}
	latency := time.Since(start).Milliseconds()

	if callErr != nil {
		if usage.InputTokens == 0 && usage.OutputTokens == 0 {
			usage = estimate(prompt, "")
		}
		return &Result{Usage: usage, LatencyMs: latency}, classify(callErr)
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage = estimate(prompt, text)
	}
	return &Result{Text: text, Usage: usage, LatencyMs: latency}, nil
}

func (d *Dispatcher) decryptKey(provider *models.Provider, ownerSalt string) (string, error) {
	if provider.Variant == models.VariantLocal || len(provider.EncryptedAPIKey) == 0 {
		return "", nil
	}
	plain, err := d.vault.Decrypt(provider.EncryptedAPIKey, ownerSalt)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// estimate implements the fallback rule: ceil(char_count / 4) over prompt
// and response when a provider doesn't report usage.
func estimate(prompt, response string) Usage {
	return Usage{
		InputTokens:  int(math.Ceil(float64(len(prompt)) / 4)),
		OutputTokens: int(math.Ceil(float64(len(response)) / 4)),
		Estimated:    true,
	}
}

// --- openai / grok: chat/completions-style -----------------------------

func (d *Dispatcher) callChatCompletions(ctx context.Context, p *models.Provider, apiKey, prompt string) (string, Usage, error) {
	reqBody := map[string]interface{}{
		"model": p.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.EndpointURL, bytes.NewBuffer(body))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", Usage{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := decodeOrStatusErr(resp, &parsed); err != nil {
		return "", Usage{}, err
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("malformed response: no choices")
	}
	usage := Usage{InputTokens: parsed.Usage.PromptTokens, OutputTokens: parsed.Usage.CompletionTokens}
	return parsed.Choices[0].Message.Content, usage, nil
}

// --- anthropic: messages-style ------------------------------------------

func (d *Dispatcher) callAnthropic(ctx context.Context, p *models.Provider, apiKey, prompt string) (string, Usage, error) {
	reqBody := map[string]interface{}{
		"model":      p.Model,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.EndpointURL, bytes.NewBuffer(body))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", Usage{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := decodeOrStatusErr(resp, &parsed); err != nil {
		return "", Usage{}, err
	}
	if len(parsed.Content) == 0 {
		return "", Usage{}, fmt.Errorf("malformed response: no content")
	}
	usage := Usage{InputTokens: parsed.Usage.InputTokens, OutputTokens: parsed.Usage.OutputTokens}
	return parsed.Content[0].Text, usage, nil
}

// --- gemini: generateContent with query-string key -----------------------

func (d *Dispatcher) callGemini(ctx context.Context, p *models.Provider, apiKey, prompt string) (string, Usage, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, err
	}
	url := p.EndpointURL + "?key=" + apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", Usage{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := decodeOrStatusErr(resp, &parsed); err != nil {
		return "", Usage{}, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", Usage{}, fmt.Errorf("malformed response: no candidates")
	}
	// Gemini often omits usage metadata entirely; zero values signal the
	// caller to fall back to estimate().
	usage := Usage{InputTokens: parsed.UsageMetadata.PromptTokenCount, OutputTokens: parsed.UsageMetadata.CandidatesTokenCount}
	return parsed.Candidates[0].Content.Parts[0].Text, usage, nil
}

// --- local: no auth, estimate always ------------------------------------

func (d *Dispatcher) callLocal(ctx context.Context, p *models.Provider, prompt string) (string, Usage, error) {
	reqBody := map[string]interface{}{"model": p.Model, "prompt": prompt}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.EndpointURL, bytes.NewBuffer(body))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", Usage{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Response string `json:"response"`
	}
	if err := decodeOrStatusErr(resp, &parsed); err != nil {
		return "", Usage{}, err
	}
	return parsed.Response, Usage{}, nil
}

// --- custom: a configurable map over one of the above shapes -------------

func (d *Dispatcher) callCustom(ctx context.Context, p *models.Provider, apiKey, prompt string) (string, Usage, error) {
	shape, _ := p.Config["response_shape"].(string)
	switch shape {
	case models.VariantAnthropic:
		return d.callAnthropic(ctx, p, apiKey, prompt)
	case models.VariantGemini:
		return d.callGemini(ctx, p, apiKey, prompt)
	default:
		return d.callChatCompletions(ctx, p, apiKey, prompt)
	}
}

func decodeOrStatusErr(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusErr{code: resp.StatusCode, body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

type statusErr struct {
	code int
	body string
}

func (e *statusErr) Error() string {
	return "provider returned status " + strconv.Itoa(e.code) + ": " + e.body
}

// classify maps a raw call error into the apierr taxonomy §4.3 specifies
// (Auth, RateLimit folded into ProviderCallFailed with a note, Timeout,
// MalformedResponse, Internal). The Decision Loop inspects the error text
// for "Timeout"/"RateLimit" to decide whether to retry (§4.7.3).
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *statusErr
	if e, ok := err.(*statusErr); ok {
		se = e
	}
	switch {
	case se != nil && se.code == 401 || se != nil && se.code == 403:
		return apierr.Wrap(apierr.Auth, "provider authentication failed", err)
	case se != nil && se.code == 429:
		return apierr.Wrap(apierr.ProviderCallFailed, "RateLimit", err)
	case isTimeout(err):
		return apierr.Wrap(apierr.ProviderCallFailed, "Timeout", err)
	case se != nil && se.code >= 500:
		return apierr.Wrap(apierr.ProviderCallFailed, "provider server error", err)
	default:
		return apierr.Wrap(apierr.ProviderCallFailed, "MalformedResponse", err)
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	return false
}

// IsRetryable reports whether the Decision Loop should retry once with
// backoff (§4.7.3: "On Timeout or RateLimit, the Decision Loop retries once").
func IsRetryable(err error) bool {
	ae, ok := err.(*apierr.Error)
	if !ok || ae.Kind != apierr.ProviderCallFailed {
		return false
	}
	return ae.Message == "Timeout" || ae.Message == "RateLimit"
}
