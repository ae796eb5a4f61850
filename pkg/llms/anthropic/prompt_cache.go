package anthropic

import (
	"fmt"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
)

// maxCacheBreakpoints is the number of cache_control markers a request may carry.
const maxCacheBreakpoints = 4

// partRef addresses a part in the caller's messages.
type partRef struct {
	msg  int
	part int
}

// blockRef is where a part landed in the request: a system block, or a
// content block of a chat message.
type blockRef struct {
	system bool
	// index is the system block, or the chat message
	index int
	block int
}

// convertMessages splits messages into system blocks and chat messages.
// Every system part becomes its own block, so each can be a cache
// breakpoint. The returned refs map caller parts to request blocks.
func convertMessages(messages []llms.Message) ([]sdkanthropic.MessageParam, []sdkanthropic.TextBlockParam, map[partRef]blockRef, error) {
	var (
		chat   = make([]sdkanthropic.MessageParam, 0, len(messages))
		system []sdkanthropic.TextBlockParam
		refs   = make(map[partRef]blockRef)
	)

	for i, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}

		if msg.Role == llms.RoleSystem {
			for j, part := range msg.Parts {
				text, err := HandleSystemMessage(llms.Message{Parts: []llms.ContentPart{part}})
				if err != nil {
					return nil, nil, nil, err
				}
				refs[partRef{msg: i, part: j}] = blockRef{system: true, index: len(system)}
				system = append(system, sdkanthropic.TextBlockParam{Text: text})
			}
			continue
		}

		param, err := convertChatMessage(msg)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(param.Content) != len(msg.Parts) {
			return nil, nil, nil, errors.Errorf("anthropic: %s message has %d parts, converted to %d blocks", msg.Role, len(msg.Parts), len(param.Content))
		}
		for j := range msg.Parts {
			refs[partRef{msg: i, part: j}] = blockRef{index: len(chat), block: j}
		}
		chat = append(chat, param)
	}

	return chat, system, refs, nil
}

func convertChatMessage(msg llms.Message) (sdkanthropic.MessageParam, error) {
	switch msg.Role {
	case llms.RoleHuman:
		return HandleHumanMessage(msg)
	case llms.RoleAI, llms.RoleGeneric:
		return HandleAIMessage(msg)
	case llms.RoleTool:
		return HandleToolMessage(msg)
	default:
		return sdkanthropic.MessageParam{}, unsupported(string(msg.Role), "unsupported message role")
	}
}

// applyCachePolicy sets cache_control on every breakpoint of the policy.
// It returns the request options the breakpoints need, which is the
// extended TTL beta header when a breakpoint asks for one hour.
func applyCachePolicy(betaHeader string, params *sdkanthropic.MessageNewParams, policy *llms.PromptCachePolicy, refs map[partRef]blockRef) ([]option.RequestOption, error) {
	if policy == nil || len(policy.Breakpoints) == 0 {
		return nil, nil
	}
	if n := len(policy.Breakpoints); n > maxCacheBreakpoints {
		return nil, policyError("too many prompt cache breakpoints: %d (max %d)", n, maxCacheBreakpoints)
	}

	seen := make(map[llms.PromptCacheTarget]bool, len(policy.Breakpoints))
	extended := false
	for _, bp := range policy.Breakpoints {
		cc, err := cacheControl(bp.TTL)
		if err != nil {
			return nil, err
		}

		key := targetKey(bp.Target)
		if seen[key] {
			return nil, policyError("duplicate prompt cache breakpoint for %s", describeTarget(bp.Target))
		}
		seen[key] = true

		dst, err := cacheTarget(params, bp.Target, refs)
		if err != nil {
			return nil, err
		}
		*dst = cc
		extended = extended || bp.TTL == llms.PromptCacheTTL1h
	}

	if !extended {
		return nil, nil
	}
	return extendedTTLOptions(betaHeader), nil
}

// cacheTarget returns the cache_control field the target addresses.
func cacheTarget(params *sdkanthropic.MessageNewParams, t llms.PromptCacheTarget, refs map[partRef]blockRef) (*sdkanthropic.CacheControlEphemeralParam, error) {
	switch t.Kind {
	case llms.PromptCacheTargetMessagePart:
		ref, ok := refs[partRef{msg: t.MessageIndex, part: t.PartIndex}]
		if !ok {
			return nil, policyError("prompt cache target not found for %s", describeTarget(t))
		}
		if ref.system {
			return &params.System[ref.index].CacheControl, nil
		}
		if cc := params.Messages[ref.index].Content[ref.block].GetCacheControl(); cc != nil {
			return cc, nil
		}
	case llms.PromptCacheTargetTool:
		if t.ToolIndex < 0 || t.ToolIndex >= len(params.Tools) {
			return nil, policyError("prompt cache tool target out of range: %s", describeTarget(t))
		}
		if cc := params.Tools[t.ToolIndex].GetCacheControl(); cc != nil {
			return cc, nil
		}
	default:
		return nil, policyError("unsupported prompt cache target kind: %q", t.Kind)
	}
	return nil, policyError("prompt cache unsupported for %s", describeTarget(t))
}

// targetKey drops the indexes the target kind does not use.
func targetKey(t llms.PromptCacheTarget) llms.PromptCacheTarget {
	if t.Kind == llms.PromptCacheTargetTool {
		return llms.PromptCacheTarget{Kind: t.Kind, ToolIndex: t.ToolIndex}
	}
	return llms.PromptCacheTarget{Kind: t.Kind, MessageIndex: t.MessageIndex, PartIndex: t.PartIndex}
}

func describeTarget(t llms.PromptCacheTarget) string {
	if t.Kind == llms.PromptCacheTargetTool {
		return fmt.Sprintf("tool[%d]", t.ToolIndex)
	}
	return fmt.Sprintf("message[%d].part[%d]", t.MessageIndex, t.PartIndex)
}

func cacheControl(ttl llms.PromptCacheTTL) (sdkanthropic.CacheControlEphemeralParam, error) {
	cc := sdkanthropic.NewCacheControlEphemeralParam()
	switch ttl {
	case "":
	case llms.PromptCacheTTL5m:
		cc.TTL = sdkanthropic.CacheControlEphemeralTTLTTL5m
	case llms.PromptCacheTTL1h:
		cc.TTL = sdkanthropic.CacheControlEphemeralTTLTTL1h
	default:
		return cc, policyError("unsupported prompt cache TTL: %q", ttl)
	}
	return cc, nil
}

// extendedTTLOptions adds the extended cache TTL beta to the anthropic-beta
// header of one request, unless the client header already lists it.
func extendedTTLOptions(betaHeader string) []option.RequestOption {
	beta := string(sdkanthropic.AnthropicBetaExtendedCacheTTL2025_04_11)

	var tokens []string
	for _, tok := range strings.Split(betaHeader, ",") {
		tok = strings.TrimSpace(tok)
		if tok == beta {
			return nil
		}
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return []option.RequestOption{
		option.WithHeader("anthropic-beta", strings.Join(append(tokens, beta), ",")),
	}
}

func policyError(format string, args ...any) error {
	return &llms.InvalidOptionError{
		Provider: llms.ProviderAnthropic,
		Option:   "prompt_cache_policy",
		Reason:   fmt.Sprintf(format, args...),
	}
}
