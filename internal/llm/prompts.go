package llm

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"strings"
)

var (
	//go:embed prompts/contract_risk_system.txt
	systemPrompt string
	//go:embed prompts/contract_risk_user.txt
	userPromptTemplate string
)

const contractPlaceholder = "{{CONTRACT_TEXT}}"

// Prompt is a single analysis request: a system instruction plus the user turn
// carrying the output contract and the document.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the contract-risk analysis request for extracted text.
// The output is a pure function of text.
func BuildPrompt(text string) (Prompt, error) {
	if strings.TrimSpace(text) == "" {
		return Prompt{}, ErrEmptyDocument
	}
	return Prompt{
		System: strings.TrimSpace(systemPrompt),
		User:   strings.Replace(strings.TrimSpace(userPromptTemplate), contractPlaceholder, text, 1),
	}, nil
}

// String joins the prompt parts the way single-message providers receive them.
func (p Prompt) String() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// Hash returns the SHA-256 of the rendered prompt.
func (p Prompt) Hash() string {
	sum := sha256.Sum256([]byte("system: " + p.System + "\n\nuser: " + p.User))
	return hex.EncodeToString(sum[:])
}
