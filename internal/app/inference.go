package app

import "github.com/orbitgw/orbit/internal/inference/openaicompat"

// registerInferenceFactories binds every provider kind this build ships to
// a.Inference. OpenAI, Groq, DeepSeek, Mistral, and local engines (vLLM,
// Ollama, llama.cpp server) all speak the same /chat/completions wire
// format in practice (spec §4.4 "local engines" + "remote APIs" both
// enumerate backends that are OpenAI-compatible at the transport level),
// so every kind name the spec lists resolves to the one concrete Client.
// Anthropic/Gemini/Cohere/Bedrock/Azure/Watson/Vertex need a provider-native
// wire format this build does not implement; registering them here would
// silently accept a config that can never actually stream.
func (a *App) registerInferenceFactories() {
	for _, kind := range []string{
		"openai", "openai-compatible", "groq", "deepseek", "mistral",
		"ollama", "llamacpp", "vllm",
	} {
		a.Inference.Register(kind, openaicompat.Factory)
	}
}
