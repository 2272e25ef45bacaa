package main

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const narratorSystemPrompt = `You are a dramatic narrator for a medieval werewolf game. When players die, you tell a short atmospheric story about their fate. Keep it to 2-3 sentences. Be gothic and dramatic, fitting for a village plagued by werewolves.`

// Narrator generates flavor text after deaths. It is optional: a nil Narrator
// disables the feature, and a failed generation is logged and dropped, never
// surfaced to the game flow.
type Narrator struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (n *Narrator) Tell(ctx context.Context, history []string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, n.systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman,
			"Game history so far:\n"+strings.Join(history, "\n")+
				"\n\nTell a short dramatic story (2-3 sentences) about what just happened to the victim."),
	}
	resp, err := n.llm.GenerateContent(ctx, messages, n.callOpts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.NarratorTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.NarratorTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Narrator: temperature=%.2f", f)
		} else {
			log.Printf("Narrator: invalid temperature %q: %v", cfg.NarratorTemperature, err)
		}
	}
	return opts
}

// newNarrator sets up the narrator from config, or returns nil when no
// provider is configured.
func newNarrator(cfg AppConfig) *Narrator {
	provider := cfg.NarratorProvider
	model := cfg.NarratorModel
	callOpts := buildCallOpts(cfg)

	var llm llms.Model
	var err error
	switch provider {
	case "":
		return nil
	case "ollama":
		llm, err = ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.NarratorOllamaURL))
	case "openai":
		llm, err = openai.New(openai.WithModel(model))
	case "claude":
		llm, err = anthropic.New(anthropic.WithModel(model))
	case "gemini":
		llm, err = googleai.New(context.Background(), googleai.WithDefaultModel(model))
	case "groq":
		llm, err = openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
		)
	case "openai-compatible":
		if cfg.NarratorURL == "" {
			log.Printf("Narrator: narrator_url is required for openai-compatible provider")
			return nil
		}
		opts := []openai.Option{openai.WithModel(model), openai.WithBaseURL(cfg.NarratorURL)}
		if cfg.NarratorAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.NarratorAPIKey))
		}
		llm, err = openai.New(opts...)
	default:
		log.Printf("Narrator: unknown provider %q", provider)
		return nil
	}
	if err != nil {
		log.Printf("Narrator: failed to init %s (%s): %v", provider, model, err)
		return nil
	}
	log.Printf("Narrator: provider=%s model=%s", provider, model)
	return &Narrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
}

// maybeNarrate runs after a committed mutation that killed somebody. It reads
// the public ledger trail, asks the narrator for flavor text, and publishes
// it as a narration event. Runs in its own goroutine; failures are logged
// and swallowed.
func (m *Manager) maybeNarrate(gameKey string) {
	if m.narrator == nil {
		return
	}
	history, err := m.store.publicHistory(gameKey)
	if err != nil {
		logError("narrator history "+gameKey, err)
		return
	}
	if len(history) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	story, err := m.narrator.Tell(ctx, history)
	if err != nil {
		logError("narrator "+gameKey, err)
		return
	}
	if story != "" {
		m.notifier.Publish(gameKey, Event{Type: EventNarration, GameKey: gameKey, Message: story})
	}
}
