package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/documentloaders"
	"github.com/effective-security/llmkit/pkg/encoding"
	"github.com/effective-security/llmkit/pkg/llmfactory"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llmutils"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/retrievers/tavily"
	"github.com/effective-security/llmkit/pkg/retry"
	"github.com/effective-security/llmkit/pkg/store"
	"github.com/effective-security/llmkit/pkg/webapp"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

// session is the configuration shared by the commands.
type session struct {
	cfg     *llmfactory.Config
	env     provider.Env
	factory llmfactory.Factory
	stats   *callbacks.Stats
	out     *printer
	errw    io.Writer
	verbose bool
	retries int
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := llmfactory.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	stats := callbacks.NewStats()
	handlers := callbacks.NewFanout(stats, callbacks.NewPackageLogger(logger))
	if c.Bool("verbose") {
		handlers.Add(callbacks.NewPrinter(c.App.ErrWriter, callbacks.ModeVerbose))
	}

	env := provider.Environ()
	return &session{
		cfg:     cfg,
		env:     env,
		factory: llmfactory.New(cfg, llmfactory.WithEnv(env), llmfactory.WithCallbacks(handlers)),
		stats:   stats,
		out:     newPrinter(c.App.Writer, c.String("output")),
		errw:    c.App.ErrWriter,
		verbose: c.Bool("verbose"),
		retries: c.Int("retries"),
	}, nil
}

// report prints the invocation counters in verbose mode.
func (s *session) report() {
	if !s.verbose {
		return
	}
	st := s.stats.Snapshot()
	fmt.Fprintf(s.errw, "invocations: %d, failed: %d, rate limited: %d, tokens in/out: %d/%d, duration: %s\n",
		st.Invocations, st.Failed, st.RateLimited, st.LLMInputTokens, st.LLMOutputTokens, st.TotalDuration)
}

// reportUsage prints the token counts of the response in verbose mode.
func (s *session) reportUsage(resp *llms.ContentResponse) {
	if !s.verbose || resp == nil {
		return
	}
	in, out, total := llmutils.CountTokens(resp)
	fmt.Fprintf(s.errw, "tokens: %d in, %d out, %d total\n", in, out, total)
}

// policy returns the retry policy of the --retries flag,
// retries are only made when asked for.
func (s *session) policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = s.retries + 1
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.KV(xlog.WARNING,
			"status", "retry",
			"attempt", attempt,
			"wait", wait.String(),
			"err", err.Error(),
		)
	}
	return p
}

// handle configures the first provider of the type.
func (s *session) handle(typ llms.ProviderType) (*provider.Handle, error) {
	for _, p := range s.cfg.Providers {
		if p.ProviderType() == typ {
			return llmfactory.Handle(p, s.env)
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", typ)
}

func (s *session) model(req *webapp.GenerateRequest) (llms.Model, error) {
	if req.Model != "" {
		return s.factory.ModelByName(req.Model)
	}
	route := req.Route
	if route == "" {
		route = llmfactory.RouteGenerate
	}
	return s.factory.RouteModel(route)
}

func (s *session) generate(ctx context.Context, model llms.Model, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.retries <= 0 {
		return model.GenerateContent(ctx, msgs, opts...)
	}
	return retry.GenerateContent(ctx, s.policy(), model, msgs, opts...)
}

// request returns the generate request of the flags.
// The prompt is the --prompt flag, the arguments, or standard input.
func request(c *cli.Context) (*webapp.GenerateRequest, error) {
	values, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return nil, err
	}
	prompt, err := readPrompt(c)
	if err != nil {
		return nil, err
	}
	req := &webapp.GenerateRequest{
		Model:     c.String("model"),
		Route:     c.String("route"),
		System:    c.String("system"),
		Prompt:    prompt,
		Values:    values,
		Format:    c.String("format"),
		MaxTokens: c.Int("max-tokens"),
		Stop:      c.StringSlice("stop"),
	}
	if c.IsSet("temperature") {
		t := c.Float64("temperature")
		req.Temperature = &t
	}
	return req, nil
}

func readPrompt(c *cli.Context) (string, error) {
	prompt := c.String("prompt")
	if prompt == "" {
		prompt = strings.Join(c.Args().Slice(), " ")
	}
	if file, ok := strings.CutPrefix(prompt, "@"); ok {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrapf(err, "unable to read prompt")
		}
		return string(b), nil
	}
	if prompt == "" && c.App.Reader != nil && c.Command.Name != "chat" {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return "", errors.Wrapf(err, "unable to read prompt")
		}
		prompt = strings.TrimSpace(string(b))
	}
	return prompt, nil
}

// parseVars parses key=value pairs.
func parseVars(vars []string) (map[string]any, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	res := make(map[string]any, len(vars))
	for _, v := range vars {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid --var %q: expected key=value", v)
		}
		res[key] = value
	}
	return res, nil
}

func providersCommand(c *cli.Context) error {
	type providerInfo struct {
		Type     llms.ProviderType `json:"type" yaml:"type"`
		EnvVars  []string          `json:"env_vars,omitempty" yaml:"env_vars,omitempty"`
		Endpoint string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
		Model    string            `json:"model,omitempty" yaml:"model,omitempty"`
	}

	var list []providerInfo
	for _, typ := range provider.Registered() {
		spec, _ := provider.Lookup(typ)
		list = append(list, providerInfo{
			Type:     typ,
			EnvVars:  spec.EnvVars,
			Endpoint: spec.DefaultEndpoint,
			Model:    spec.DefaultModel,
		})
	}

	p := newPrinter(c.App.Writer, c.String("output"))
	if !p.text() {
		return p.value(list)
	}
	for _, info := range list {
		p.printf("%-14s %s\n", info.Type, strings.Join(info.EnvVars, ","))
	}
	return nil
}

func generateCommand(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	req, err := request(c)
	if err != nil {
		return err
	}
	msgs, err := req.ChatMessages()
	if err != nil {
		return err
	}
	model, err := s.model(req)
	if err != nil {
		return err
	}

	resp, err := s.generate(c.Context, model, msgs, req.CallOptions()...)
	s.report()
	if err != nil {
		return err
	}

	s.reportUsage(resp)
	res := generateResponse(model, resp.Text(), resp.Usage())
	if len(resp.Choices) > 0 {
		res.StopReason = resp.Choices[0].StopReason
	}
	if s.out.text() {
		s.out.reply(res.Text)
		return nil
	}
	return s.out.value(res)
}

func streamCommand(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	req, err := request(c)
	if err != nil {
		return err
	}
	msgs, err := req.ChatMessages()
	if err != nil {
		return err
	}
	model, err := s.model(req)
	if err != nil {
		return err
	}
	streamer, ok := model.(llms.Streamer)
	if !ok {
		return &llms.UnsupportedInputError{
			Provider: model.GetProviderType(),
			Input:    "stream",
			Reason:   "model " + model.GetName() + " does not stream",
		}
	}

	defer s.report()

	var text strings.Builder
	res := generateResponse(model, "", llms.Usage{})
	for chunk, err := range streamer.StreamContent(c.Context, msgs, req.CallOptions()...) {
		if err != nil {
			return err
		}
		if chunk.StopReason != "" {
			res.StopReason = chunk.StopReason
		}
		if chunk.Usage != nil {
			res.Usage = *chunk.Usage
		}
		text.WriteString(chunk.Text)
		if s.out.text() {
			s.out.printf("%s", chunk.Text)
		}
	}

	if s.out.text() {
		s.out.println("")
		return nil
	}
	res.Text = text.String()
	return s.out.value(res)
}

func chatCommand(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	req, err := request(c)
	if err != nil {
		return err
	}
	model, err := s.model(req)
	if err != nil {
		return err
	}
	ms, err := messageStore(c.String("redis"))
	if err != nil {
		return err
	}

	chatID := c.String("chat-id")
	if chatID == "" {
		chatID = uuid.NewString()
	}
	ctx := c.Context
	fmt.Fprintf(c.App.ErrWriter, "chat %s with %s, /reset clears the history, /exit quits\n", chatID, model.GetName())

	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(c.App.ErrWriter, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := ms.Reset(ctx, chatID); err != nil {
				return err
			}
			continue
		}

		history, err := ms.Messages(ctx, chatID)
		if err != nil {
			return errors.WithMessage(err, "failed to load chat")
		}

		turn := *req
		turn.Prompt = line
		// the system prompt is stored with the first turn
		if len(history) > 0 {
			turn.System = ""
		}
		msgs, err := turn.ChatMessages()
		if err != nil {
			return err
		}

		resp, err := s.generate(ctx, model, append(history, msgs...), req.CallOptions()...)
		if err != nil {
			// the turn is not saved, the user can try again
			fmt.Fprintln(c.App.ErrWriter, "ERROR:", err.Error())
			continue
		}
		s.reportUsage(resp)
		reply := resp.Text()
		s.out.reply(reply)

		if err := ms.Add(ctx, chatID, append(msgs, llms.MessageFromTextParts(llms.RoleAI, reply))...); err != nil {
			return err
		}
	}
	return errors.WithStack(scanner.Err())
}

func messageStore(redisURL string) (store.MessageStore, error) {
	if redisURL == "" {
		return store.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}
	return store.NewRedisStore(redis.NewClient(opts), "llmkit"), nil
}

// Summary is the structured result of the extract command.
type Summary struct {
	Title    string   `json:"title" yaml:"title" toml:"title" jsonschema:"description=Short title of the text" validate:"required"`
	Summary  string   `json:"summary" yaml:"summary" toml:"summary" jsonschema:"description=One paragraph summary" validate:"required"`
	Keywords []string `json:"keywords" yaml:"keywords" toml:"keywords" jsonschema:"description=Up to five keywords"`
}

func extractCommand(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	req, err := request(c)
	if err != nil {
		return err
	}
	if req.System == "" {
		req.System = "Summarize the text provided by the user."
	}
	msgs, err := req.ChatMessages()
	if err != nil {
		return err
	}
	model, err := s.model(req)
	if err != nil {
		return err
	}

	var summary *Summary
	resp, err := retry.Do(c.Context, s.policy(), func(ctx context.Context) (*llms.ContentResponse, error) {
		var resp *llms.ContentResponse
		var err error
		summary, resp, err = encoding.Generate[Summary](ctx, model, msgs, c.String("mode"), req.CallOptions()...)
		return resp, err
	})
	s.report()
	if err != nil {
		return err
	}
	s.reportUsage(resp)

	if !s.out.text() {
		return s.out.value(summary)
	}
	s.out.println(summary.Title)
	s.out.println("")
	s.out.println(summary.Summary)
	if len(summary.Keywords) > 0 {
		s.out.println("")
		s.out.println("Keywords: " + strings.Join(summary.Keywords, ", "))
	}
	return nil
}

func embedCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one text is required")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}

	var embedder llms.Embedder
	if name := c.String("model"); name != "" {
		model, err := s.factory.ModelByName(name)
		if err != nil {
			return err
		}
		var ok bool
		if embedder, ok = model.(llms.Embedder); !ok {
			return &llms.UnsupportedInputError{
				Provider: model.GetProviderType(),
				Input:    "embeddings",
				Reason:   "model " + model.GetName() + " does not create embeddings",
			}
		}
	} else if embedder, err = s.factory.Embedder(); err != nil {
		return err
	}

	texts := c.Args().Slice()
	var vectors [][]float32
	if s.retries > 0 {
		vectors, err = retry.CreateEmbedding(c.Context, s.policy(), embedder, texts)
	} else {
		vectors, err = embedder.CreateEmbedding(c.Context, texts)
	}
	if err != nil {
		return err
	}

	if !s.out.text() {
		return s.out.value(webapp.EmbeddingsResponse{Embeddings: vectors})
	}
	for i, v := range vectors {
		s.out.printf("%d\t%d\t%s\n", i, len(v), ellipsis(texts[i], 40))
	}
	return nil
}

func loadCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one path is required")
	}

	var loader llms.DocumentLoader
	if c.Bool("unstructured") {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		h, err := s.handle(llms.ProviderUnstructured)
		if err != nil {
			return err
		}
		if loader, err = documentloaders.NewUnstructured(h, documentloaders.WithStrategy(c.String("strategy"))); err != nil {
			return err
		}
	} else {
		loader = documentloaders.NewText(documentloaders.WithRecursive(c.Bool("recursive")))
	}

	var docs []llms.Document
	for _, path := range c.Args().Slice() {
		loaded, err := loader.Load(c.Context, path)
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
	}

	if size := c.Int("chunk-size"); size > 0 {
		splitter, err := documentloaders.NewSplitter(size, c.Int("chunk-overlap"))
		if err != nil {
			return err
		}
		if docs, err = splitter.SplitDocuments(docs); err != nil {
			return err
		}
	}

	p := newPrinter(c.App.Writer, c.String("output"))
	if !p.text() {
		return p.value(docs)
	}
	for i, doc := range docs {
		if i > 0 {
			p.println("---")
		}
		p.println(doc.PageContent)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return errors.New("query is required")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	h, err := s.handle(llms.ProviderTavily)
	if err != nil {
		return err
	}
	r, err := tavily.New(h,
		tavily.WithSearchDepth(c.String("depth")),
		tavily.WithAnswer(c.Bool("answer")),
	)
	if err != nil {
		return err
	}
	res, err := r.Search(c.Context, query)
	if err != nil {
		return err
	}

	if s.out.text() {
		s.out.println(res.String())
		return nil
	}
	return s.out.value(res)
}

func serveCommand(c *cli.Context) error {
	cfg, err := llmfactory.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	ms, err := messageStore(c.String("redis"))
	if err != nil {
		return err
	}

	handlers := callbacks.NewFanout(callbacks.NewPackageLogger(logger))
	f := llmfactory.New(cfg,
		llmfactory.WithEnv(provider.Environ()),
		llmfactory.WithCallbacks(handlers),
	)
	srv := webapp.New(f,
		webapp.WithStore(ms),
		webapp.WithMaxBodySize(c.Int64("max-body")),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.KV(xlog.INFO,
		"status", "serving",
		"listen", c.String("listen"),
		"providers", len(cfg.Providers),
	)
	return srv.ListenAndServe(ctx, c.String("listen"))
}

func generateResponse(model llms.Model, text string, usage llms.Usage) webapp.GenerateResponse {
	return webapp.GenerateResponse{
		Text:     text,
		Model:    model.GetName(),
		Provider: strings.ToLower(string(model.GetProviderType())),
		Usage:    usage,
	}
}

func ellipsis(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
