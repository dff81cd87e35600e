// Package cli implements the mistral command: it loads configuration,
// builds a client, runs one operation and prints the result.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/themobileprof/mistral-go/internal/config"
	"github.com/themobileprof/mistral-go/pkg/mistral"
)

// ErrUsage is returned when the command line cannot be interpreted
var ErrUsage = errors.New("usage error")

const usage = `Usage: mistral [flags] <command> [args]

Commands:
  models              list available models
  embed <text>...     embed each argument
  chat <prompt>       send a unary chat request
  stream <prompt>     stream a chat response (default when only a prompt is given)

Flags:
`

// App runs the CLI against the given writers
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// NewClient builds the API client. Default: mistral.NewHTTPClient.
	NewClient func(mistral.Config) mistral.Client
}

// New creates an App with the default client factory
func New(stdout, stderr io.Writer) *App {
	return &App{
		Stdout: stdout,
		Stderr: stderr,
		NewClient: func(cfg mistral.Config) mistral.Client {
			return mistral.NewHTTPClient(cfg)
		},
	}
}

type options struct {
	configPath  string
	model       string
	endpoint    string
	system      string
	temperature *float64
	maxTokens   *int
	topP        *float64
	seed        *int
	safePrompt  bool
}

func (a *App) parseFlags(args []string) (*options, []string, error) {
	opts := &options{}

	fs := flag.NewFlagSet("mistral", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&opts.model, "model", "", "chat model (default from config)")
	fs.StringVar(&opts.endpoint, "endpoint", "", "API base URL (default from config)")
	fs.StringVar(&opts.system, "system", "", "system prompt sent before the user prompt")
	fs.BoolVar(&opts.safePrompt, "safe-prompt", false, "ask the API to prepend its safety prompt")
	fs.Func("temperature", "sampling temperature", floatFlag(&opts.temperature))
	fs.Func("top-p", "nucleus sampling probability mass", floatFlag(&opts.topP))
	fs.Func("max-tokens", "maximum tokens to generate", intFlag(&opts.maxTokens))
	fs.Func("seed", "random seed for sampling", intFlag(&opts.seed))

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

func floatFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

func intFlag(dst **int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

// Run parses args and executes one command
func (a *App) Run(ctx context.Context, args []string) error {
	opts, rest, err := a.parseFlags(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		fmt.Fprint(a.Stderr, usage)
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.endpoint != "" {
		cfg.Endpoint = opts.endpoint
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	logger := log.New(a.Stderr, "", log.LstdFlags)
	if cfg.APIKey == "" {
		logger.Printf("[WARN] %s is not set", config.EnvAPIKey)
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = logger
	client := a.NewClient(clientCfg)

	command, params := rest[0], rest[1:]
	switch command {
	case "models":
		list, err := client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		return a.printJSON(list)

	case "embed":
		if len(params) == 0 {
			return fmt.Errorf("%w: embed needs at least one input", ErrUsage)
		}
		resp, err := client.Embeddings(ctx, mistral.EmbeddingsRequest{
			Model: cfg.EmbedModel,
			Input: params,
		})
		if err != nil {
			return fmt.Errorf("embeddings: %w", err)
		}
		return a.printJSON(resp)

	case "chat":
		req, err := buildChatRequest(cfg.Model, opts, params)
		if err != nil {
			return err
		}
		resp, err := client.Chat(ctx, req)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		return a.printJSON(resp)

	case "stream":
		return a.stream(ctx, client, cfg.Model, opts, params)

	default:
		// a bare prompt streams
		return a.stream(ctx, client, cfg.Model, opts, rest)
	}
}

func (a *App) stream(ctx context.Context, client mistral.Client, model string, opts *options, params []string) error {
	req, err := buildChatRequest(model, opts, params)
	if err != nil {
		return err
	}

	stream, err := client.ChatStream(ctx, req)
	if err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	if err := PrintStream(a.Stdout, stream); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}

func buildChatRequest(model string, opts *options, params []string) (mistral.ChatRequest, error) {
	prompt := strings.TrimSpace(strings.Join(params, " "))
	if prompt == "" {
		return mistral.ChatRequest{}, fmt.Errorf("%w: a prompt is required", ErrUsage)
	}

	var messages []mistral.ChatMessage
	if opts.system != "" {
		messages = append(messages, mistral.ChatMessage{Role: mistral.RoleSystem, Content: opts.system})
	}
	messages = append(messages, mistral.ChatMessage{Role: mistral.RoleUser, Content: prompt})

	req := mistral.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.temperature,
		MaxTokens:   opts.maxTokens,
		TopP:        opts.topP,
		RandomSeed:  opts.seed,
	}
	if opts.safePrompt {
		safe := true
		req.SafePrompt = &safe
	}
	return req, nil
}

func (a *App) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(a.Stdout, string(out))
	return err
}

// PrintStream writes each fragment's first-choice delta as it arrives.
// A change of choice index starts a new line. The stream is closed on
// return.
func PrintStream(w io.Writer, stream *mistral.Stream[mistral.ChatResponse]) error {
	defer stream.Close()

	currentIndex := 0
	for stream.Next() {
		fragment := stream.Current()
		if len(fragment.Choices) == 0 {
			continue
		}

		choice := fragment.Choices[0]
		if choice.Index != currentIndex {
			fmt.Fprintln(w)
			currentIndex = choice.Index
		}
		if choice.Delta != nil {
			io.WriteString(w, choice.Delta.Content)
		}
	}
	fmt.Fprintln(w)

	return stream.Err()
}
