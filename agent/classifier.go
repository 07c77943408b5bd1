package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/llm"
)

// ErrorKind is the classifier's verdict on a free-text error.
type ErrorKind string

const (
	KindSync    ErrorKind = "SYNC"
	KindBuild   ErrorKind = "BUILD"
	KindUnknown ErrorKind = "UNKNOWN"
)

// UnknownErrorMessage is shown when the classifier cannot decide.
const UnknownErrorMessage = "Could not determine error type."

// Classifier labels error output with a single model call. It never retries.
type Classifier struct {
	provider llm.Provider
}

// NewClassifier creates a classifier backed by provider.
func NewClassifier(provider llm.Provider) *Classifier {
	return &Classifier{provider: provider}
}

// Classify returns the kind of errorText. Any answer other than one of the
// three labels is logged and treated as KindUnknown.
func (c *Classifier) Classify(ctx context.Context, errorText string) (ErrorKind, error) {
	system, err := execute("classify.system", nil)
	if err != nil {
		return KindUnknown, err
	}
	user, err := execute("classify.user", errorText)
	if err != nil {
		return KindUnknown, err
	}

	resp, err := c.provider.Chat(ctx, []llm.ChatMessage{
		llm.SystemMessage(system),
		llm.UserMessage(user),
	})
	if err != nil {
		return KindUnknown, fmt.Errorf("classification failed: %w", err)
	}

	kind := ParseErrorKind(resp.Content)
	if kind == KindUnknown && normalizeLabel(resp.Content) != string(KindUnknown) {
		logging.Warn("unexpected classifier answer, treating as unknown", "answer", resp.Content)
	}
	return kind, nil
}

// ParseErrorKind maps a model answer to an ErrorKind.
func ParseErrorKind(answer string) ErrorKind {
	switch ErrorKind(normalizeLabel(answer)) {
	case KindSync:
		return KindSync
	case KindBuild:
		return KindBuild
	default:
		return KindUnknown
	}
}

func normalizeLabel(answer string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(answer), "`*.\"' \n"))
}
