package webapp

import (
	"net/http"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llmfactory"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/prompts"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

// MessageRequest is a chat message of a request.
type MessageRequest struct {
	// Role is human, ai or system; user and assistant are accepted as well.
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is the body of POST /v1/generate and /v1/stream.
type GenerateRequest struct {
	// Model is the preferred model, the route model is used if not set.
	Model string `json:"model,omitempty"`
	// Route selects the configured model for a use, "generate" by default.
	Route    string           `json:"route,omitempty"`
	Messages []MessageRequest `json:"messages,omitempty"`
	// Prompt is a human message template, rendered with Values.
	Prompt string `json:"prompt,omitempty"`
	// System is a system message template, rendered with Values.
	System string         `json:"system,omitempty"`
	Values map[string]any `json:"values,omitempty"`
	// Format is the template format: go-template, jinja2 or f-string.
	Format string `json:"format,omitempty"`
	// ChatID loads and saves the conversation, if the server has a store.
	ChatID      string   `json:"chat_id,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// GenerateResponse is the response of POST /v1/generate.
type GenerateResponse struct {
	Text       string     `json:"text"`
	Model      string     `json:"model"`
	Provider   string     `json:"provider"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      llms.Usage `json:"usage"`
}

// EmbeddingsRequest is the body of POST /v1/embeddings.
type EmbeddingsRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

// EmbeddingsResponse is the response of POST /v1/embeddings.
type EmbeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ChatMessages returns the chat messages of the request: the rendered system
// prompt, the history, then the rendered prompt.
func (r *GenerateRequest) ChatMessages() ([]llms.Message, error) {
	var msgs []llms.Message
	for i, m := range r.Messages {
		role, ok := llms.ParseRole(m.Role)
		if !ok {
			return nil, badRequest(errors.Errorf("messages[%d]: unsupported role %q", i, m.Role))
		}
		msgs = append(msgs, llms.MessageFromTextParts(role, m.Content))
	}

	if r.Prompt == "" && r.System == "" {
		if len(msgs) == 0 {
			return nil, badRequest(errors.New("messages or prompt is required"))
		}
		return msgs, nil
	}

	format, err := prompts.ParseFormat(r.Format)
	if err != nil {
		return nil, badRequest(err)
	}
	var vars []string
	for k := range r.Values {
		vars = append(vars, k)
	}
	slices.Sort(vars)

	var templates []prompts.MessageTemplate
	if r.System != "" {
		templates = append(templates, prompts.System(r.System, vars...).WithFormat(format))
	}
	if r.Prompt != "" {
		templates = append(templates, prompts.Human(r.Prompt, vars...).WithFormat(format))
	}
	value, err := prompts.NewChatTemplate(templates...).FormatPrompt(r.Values)
	if err != nil {
		return nil, badRequest(err)
	}

	// system prompt goes first, the rendered prompt is the last turn
	rendered := value.Messages()
	if len(rendered) > 0 && rendered[0].Role == llms.RoleSystem {
		msgs = append(rendered[:1:1], msgs...)
		rendered = rendered[1:]
	}
	return append(msgs, rendered...), nil
}

// CallOptions returns the call options of the request.
func (r *GenerateRequest) CallOptions() []llms.CallOption {
	var opts []llms.CallOption
	if r.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(r.MaxTokens))
	}
	if r.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*r.Temperature))
	}
	if len(r.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(r.Stop))
	}
	return opts
}

func (s *Server) model(req *GenerateRequest, route string) (llms.Model, error) {
	if req.Model != "" {
		return s.factory.ModelByName(req.Model)
	}
	if req.Route != "" {
		route = req.Route
	}
	return s.factory.RouteModel(route)
}

// call is a prepared generate request.
type call struct {
	req   *GenerateRequest
	model llms.Model
	// history is the stored conversation, turns are the new messages.
	history []llms.Message
	turns   []llms.Message
}

func (c *call) messages() []llms.Message {
	return append(slices.Clone(c.history), c.turns...)
}

// prepare binds the request and loads the model and the chat history.
func (s *Server) prepare(c *gin.Context, route string) (*call, error) {
	req := new(GenerateRequest)
	if err := c.ShouldBindJSON(req); err != nil {
		return nil, badRequest(errors.Wrap(err, "invalid request body"))
	}
	turns, err := req.ChatMessages()
	if err != nil {
		return nil, err
	}
	model, err := s.model(req, route)
	if err != nil {
		return nil, err
	}

	res := &call{req: req, model: model, turns: turns}
	if s.store != nil && req.ChatID != "" {
		res.history, err = s.store.Messages(c.Request.Context(), req.ChatID)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load chat")
		}
	}
	return res, nil
}

// save adds the new turns and the reply to the chat history.
func (s *Server) save(c *gin.Context, cl *call, reply string) {
	if s.store == nil || cl.req.ChatID == "" {
		return
	}
	turns := append(slices.Clone(cl.turns), llms.MessageFromTextParts(llms.RoleAI, reply))
	if err := s.store.Add(c.Request.Context(), cl.req.ChatID, turns...); err != nil {
		logger.ContextKV(c.Request.Context(), xlog.ERROR,
			"reason", "save_chat",
			"chat_id", cl.req.ChatID,
			"err", err.Error(),
		)
	}
}

func (s *Server) generate(c *gin.Context) {
	cl, err := s.prepare(c, llmfactory.RouteGenerate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp, err := cl.model.GenerateContent(c.Request.Context(), cl.messages(), cl.req.CallOptions()...)
	if err != nil {
		respondWithError(c, err)
		return
	}

	res := GenerateResponse{
		Text:     resp.Text(),
		Model:    cl.model.GetName(),
		Provider: strings.ToLower(string(cl.model.GetProviderType())),
		Usage:    resp.Usage(),
	}
	if len(resp.Choices) > 0 {
		res.StopReason = resp.Choices[0].StopReason
	}
	s.save(c, cl, res.Text)
	c.JSON(http.StatusOK, res)
}

func (s *Server) embeddings(c *gin.Context) {
	req := new(EmbeddingsRequest)
	if err := c.ShouldBindJSON(req); err != nil {
		respondWithError(c, badRequest(errors.Wrap(err, "invalid request body")))
		return
	}
	if len(req.Input) == 0 {
		respondWithError(c, badRequest(errors.New("input is required")))
		return
	}

	embedder, err := s.embedder(req.Model)
	if err != nil {
		respondWithError(c, err)
		return
	}
	vectors, err := embedder.CreateEmbedding(c.Request.Context(), req.Input)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, EmbeddingsResponse{Embeddings: vectors})
}

func (s *Server) embedder(name string) (llms.Embedder, error) {
	if name == "" {
		return s.factory.Embedder()
	}
	model, err := s.factory.ModelByName(name)
	if err != nil {
		return nil, err
	}
	e, ok := model.(llms.Embedder)
	if !ok {
		return nil, &llms.UnsupportedInputError{
			Provider: model.GetProviderType(),
			Input:    "embeddings",
			Reason:   "model " + model.GetName() + " does not create embeddings",
		}
	}
	return e, nil
}
