package llm

// Conversation roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// UserMessage builds a [RoleUser] message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// JSONInstruction is appended to the system prompt by backends without a
// native JSON output switch.
const JSONInstruction = "Respond with a single valid JSON object only. Do not wrap it in Markdown and do not add any text before or after it."

// SystemPromptFor returns the system prompt a backend should send for req.
// In JSON mode [JSONInstruction] is appended.
func SystemPromptFor(req CompletionRequest) string {
	switch {
	case !req.JSONMode:
		return req.SystemPrompt
	case req.SystemPrompt == "":
		return JSONInstruction
	default:
		return req.SystemPrompt + "\n\n" + JSONInstruction
	}
}

// ModelCapabilities is static metadata about the model behind a provider.
type ModelCapabilities struct {
	ContextWindow    int
	MaxOutputTokens  int
	SupportsJSONMode bool
}

// Usage is the token accounting a backend reported for one completion.
// Units are backend specific.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
