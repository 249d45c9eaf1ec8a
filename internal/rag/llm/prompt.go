package llm

import (
	"fmt"
	"strings"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/rag/assembler"
)

func buildUserPrompt(question string, rc commonModels.RetrievedContext, messageHistory []string) string {
	var b strings.Builder

	if len(messageHistory) > 0 {
		b.WriteString("Message History (question is what the user asked, answer is what you replied, sources are what the answer used):\n")
		b.WriteString(strings.Join(messageHistory, "\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Context:\n%s\n\nQuestion: %s\n\nAnswer: ", assembler.Format(rc), question)
	return b.String()
}
