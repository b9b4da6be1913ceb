// Package notify matches incoming messages against registered trigger words
// and delivers context-bundled notifications to the watchers who own them.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Fyssion/GlaDOS/internal/highlight"
	"github.com/Fyssion/GlaDOS/internal/msgcache"
)

const (
	defaultBeforeCount = 3
	defaultAfterCount  = 2
	defaultWaitTimeout = 5 * time.Second
	defaultTruncateAt  = 50
)

// AssemblerConfig tunes the context window. Zero values fall back to the
// defaults above.
type AssemblerConfig struct {
	BeforeCount int
	AfterCount  int
	WaitTimeout time.Duration
	TruncateAt  int
}

// Assembler builds a chronological transcript around a triggering message:
// up to three leading lines, the marked triggering line, and up to two
// trailing lines, waiting briefly for trailing messages that have not arrived
// yet.
type Assembler struct {
	cache       *msgcache.Cache
	beforeCount int
	afterCount  int
	waitTimeout time.Duration
	truncateAt  int
}

func NewAssembler(cache *msgcache.Cache, cfg AssemblerConfig) *Assembler {
	if cfg.BeforeCount <= 0 {
		cfg.BeforeCount = defaultBeforeCount
	}
	if cfg.AfterCount <= 0 {
		cfg.AfterCount = defaultAfterCount
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	if cfg.TruncateAt <= 0 {
		cfg.TruncateAt = defaultTruncateAt
	}
	return &Assembler{
		cache:       cache,
		beforeCount: cfg.BeforeCount,
		afterCount:  cfg.AfterCount,
		waitTimeout: cfg.WaitTimeout,
		truncateAt:  cfg.TruncateAt,
	}
}

// Assemble returns the formatted transcript lines in chronological order.
// Each call performs its own independent trailing-message waits; concurrent
// calls for different watchers do not share a wait.
func (a *Assembler) Assemble(ctx context.Context, trigger msgcache.Message, word string) []string {
	lines := make([]string, 0, a.beforeCount+1+a.afterCount)

	previous := a.cache.Before(trigger.ChannelID, trigger.CreatedAt, trigger.ID, a.beforeCount)
	for i := len(previous) - 1; i >= 0; i-- {
		lines = append(lines, a.formatLine(previous[i]))
	}

	lines = append(lines, a.formatTriggerLine(trigger, word))

	next := a.cache.After(trigger.ChannelID, trigger.CreatedAt, trigger.ID)
	if len(next) >= a.afterCount {
		next = next[:a.afterCount]
	} else {
		// One single-shot wait per unfilled slot. A timed-out wait
		// contributes nothing and is not retried.
		remaining := a.afterCount - len(next)
		for i := 0; i < remaining; i++ {
			msg, ok := a.cache.WaitNext(ctx, trigger.ChannelID, trigger.CreatedAt, trigger.ID, a.waitTimeout)
			if ok {
				next = append(next, msg)
			}
		}
	}

	for _, msg := range next {
		lines = append(lines, a.formatLine(msg))
	}
	return lines
}

func (a *Assembler) formatLine(msg msgcache.Message) string {
	content := msg.Content
	if runes := []rune(content); len(runes) > a.truncateAt {
		content = string(runes[:a.truncateAt]) + "..."
	}
	return fmt.Sprintf("`%s` %s: %s", timestamp(msg.CreatedAt), msg.Author, content)
}

// formatTriggerLine marks the triggering line and bolds the matched word.
// The triggering content is never truncated.
func (a *Assembler) formatTriggerLine(msg msgcache.Message, word string) string {
	content := highlight.Emphasize(msg.Content, word)
	return fmt.Sprintf("> `%s` %s: %s", timestamp(msg.CreatedAt), msg.Author, content)
}

func timestamp(at time.Time) string {
	return at.UTC().Format("15:04") + " UTC"
}
