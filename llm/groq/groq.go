// Package groq implements the llm.Generator interface over the Groq
// OpenAI-compatible chat completions API.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/llm"
)

const (
	defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel    = "llama-3.1-8b-instant"
	defaultTimeout  = 90 * time.Second

	// keyEnv is read at open time so the API key is never baked into a
	// configuration file.
	keyEnv = "GROQ_API_KEY"
)

func init() {
	llm.Register("groq", openGenerator)
}

// Config is the configuration for the Groq generator.
type Config struct {
	Endpoint string
	Model    string
	Key      string
	Timeout  time.Duration
}

type generator struct {
	config Config
	client *http.Client
}

func openGenerator(registrableComponentConfig database.RegistrableComponentConfig) (llm.Generator, error) {
	config := Config{
		Endpoint: defaultEndpoint,
		Model:    defaultModel,
		Timeout:  defaultTimeout,
	}

	raw, err := yaml.Marshal(registrableComponentConfig.Options)
	if err != nil {
		return nil, fmt.Errorf("groq: could not load configuration: %v", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("groq: could not load configuration: %v", err)
	}

	if config.Key == "" {
		config.Key = os.Getenv(keyEnv)
	}
	if config.Key == "" {
		return nil, fmt.Errorf("groq: no API key specified (set %s)", keyEnv)
	}

	return &generator{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate asks the model for a test file and returns it ready to execute.
func (g *generator) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	prompt, preamble, err := buildPrompt(req)
	if err != nil {
		return llm.Result{}, err
	}

	body, err := json.Marshal(chatRequest{
		Model:    g.config.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return llm.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.config.Key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("could not reach the Groq API")
		return llm.Result{}, commonerr.ErrCouldNotDownload
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		log.WithError(err).WithField("status", resp.StatusCode).Error("could not decode the Groq response")
		return llm.Result{}, commonerr.ErrCouldNotParse
	}

	raw, err := extractContent(chatResp)
	if err != nil {
		return llm.Result{}, err
	}

	// The import line is prepended regardless of what the model returned,
	// so the test file resolves the submitted module even when the model
	// ignored the formatting rules.
	tests := preamble + "\n\n" + cleanCode(raw)

	return llm.Result{Raw: raw, Tests: tests}, nil
}

// extractContent pulls the model text out of an OpenAI-style response.
// Both the 'message' and the legacy 'text' choice formats are handled, and
// API-level errors are surfaced instead of being treated as empty output.
func extractContent(resp chatResponse) (string, error) {
	if resp.Error != nil {
		return "", fmt.Errorf("groq: API error (%s): %s", resp.Error.Type, resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", commonerr.ErrCouldNotParse
	}

	choice := resp.Choices[0]
	if choice.Message != nil && choice.Message.Content != "" {
		return choice.Message.Content, nil
	}
	if choice.Text != "" {
		return choice.Text, nil
	}

	return "", commonerr.ErrCouldNotParse
}

var fenceRegexp = regexp.MustCompile("```(?:[a-zA-Z0-9]+)?")

// cleanCode removes markdown fences and surrounding whitespace from model
// output, leaving only executable test code.
func cleanCode(text string) string {
	return strings.TrimSpace(fenceRegexp.ReplaceAllString(text, ""))
}

// buildPrompt renders the instruction block for the submitted language and
// returns it along with the preamble line that anchors the test file.
func buildPrompt(req llm.Request) (prompt, preamble string, err error) {
	lang, ok := promptLanguages[req.Language]
	if !ok {
		return "", "", commonerr.NewBadRequestError("groq: unsupported language " + req.Language)
	}

	preamble = lang.preamble(req.Function)
	prompt = fmt.Sprintf(`You are a %s testing assistant.

Generate several **independent** %s test functions to test the following %s function.

Please follow these strict formatting rules:
-  Each test must be a separate function starting with: %s
-  Do NOT include any markdown, comments, explanations, or separators.
-  Do NOT use triple backticks or code fences.
-  Do NOT repeat the original function.

Start your output with:
%s

Function to test:
%s`,
		lang.name, lang.framework, lang.name, lang.testPrefix, preamble, req.Source)

	return prompt, preamble, nil
}

type promptLanguage struct {
	name       string
	framework  string
	testPrefix string
	preamble   func(function string) string
}

var promptLanguages = map[string]promptLanguage{
	"python": {
		name:       "Python",
		framework:  "PyTest",
		testPrefix: "def test_...",
		preamble: func(function string) string {
			return fmt.Sprintf("from user_code import %s", function)
		},
	},
	"go": {
		name:       "Go",
		framework:  "standard library testing",
		testPrefix: "func Test...(t *testing.T)",
		preamble: func(function string) string {
			return "package usercode\n\nimport \"testing\""
		},
	},
}
