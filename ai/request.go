package ai

type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewCompletionRequest(content, model string) *CompletionRequest {
	return &CompletionRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: content}},
		Temperature: 0.7,
		MaxTokens:   50,
	}
}

type ChatCompletion struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Error   *Error   `json:"error"`
}

type Choice struct {
	Message Message `json:"message"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
