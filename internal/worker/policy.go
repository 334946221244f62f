package worker

import (
	"strconv"
	"strings"
	"time"

	"fragmenter/internal/config"
)

const (
	placeholderInput    = "{input}"
	placeholderOutput   = "{output}"
	placeholderMemoryMB = "{memory_mb}"
)

// Policy is the resource budget applied to one worker invocation. It is a pure
// function of the input size and the configured tiers.
type Policy struct {
	Tier     string
	Timeout  time.Duration
	MemoryMB int
	// Flags precede the worker arguments (runtime options such as heap size).
	Flags []string
}

// PolicyFor derives the policy for an input of sizeBytes.
func PolicyFor(cfg config.Worker, sizeBytes int64) Policy {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	tier := cfg.TierFor(sizeBytes)
	policy := Policy{
		Tier:     tier.Name,
		Timeout:  time.Duration(tier.TimeoutSeconds) * time.Second,
		MemoryMB: tier.MemoryMB,
	}
	if tier.MemoryMB > 0 && strings.TrimSpace(cfg.MemoryFlag) != "" {
		policy.Flags = append(policy.Flags, renderPlaceholders(cfg.MemoryFlag, "", "", tier.MemoryMB))
	}
	for _, flag := range tier.ExtraFlags {
		if trimmed := strings.TrimSpace(flag); trimmed != "" {
			policy.Flags = append(policy.Flags, trimmed)
		}
	}
	return policy
}

// Argv assembles the worker arguments: policy flags first, then the
// configured arguments with placeholders substituted.
func (p Policy) Argv(args []string, inputPath, outputPath string) []string {
	argv := make([]string, 0, len(p.Flags)+len(args))
	argv = append(argv, p.Flags...)
	for _, arg := range args {
		argv = append(argv, renderPlaceholders(arg, inputPath, outputPath, p.MemoryMB))
	}
	return argv
}

func renderPlaceholders(value, inputPath, outputPath string, memoryMB int) string {
	replacer := strings.NewReplacer(
		placeholderInput, inputPath,
		placeholderOutput, outputPath,
		placeholderMemoryMB, strconv.Itoa(memoryMB),
	)
	return replacer.Replace(value)
}
