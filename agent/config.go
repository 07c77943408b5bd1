// Driver configuration types.
//
// Information Hiding:
// - Default values hidden
// - Zero-value handling hidden

package agent

// DefaultMaxRounds bounds a conversation when nothing else is configured.
const DefaultMaxRounds = 25

// Config holds driver configuration.
type Config struct {
	// MaxRounds is the number of model turns after which the run ends as
	// inconclusive.
	MaxRounds int

	// PromptTokenBudget caps the estimated prompt size. When exceeded, the
	// oldest tool results are elided. Zero disables the cap.
	PromptTokenBudget int

	// PageSize is the commit-log page size used when a flow does not set one.
	PageSize int
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:         DefaultMaxRounds,
		PromptTokenBudget: 0,
		PageSize:          25,
	}
}

func (c Config) maxRounds() int {
	if c.MaxRounds <= 0 {
		return DefaultMaxRounds
	}
	return c.MaxRounds
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 {
		return 25
	}
	return c.PageSize
}
