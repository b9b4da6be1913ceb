package stats

import (
	"context"
	"sort"

	"github.com/Fyssion/GlaDOS/internal/storage"
)

// Service records and reports per-guild trigger activity.
type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

func (s *Service) RecordTrigger(ctx context.Context, guildID, word string) error {
	return s.store.IncrementTriggerCount(ctx, guildID, word)
}

type WordCount struct {
	Word  string
	Count int
}

type Report struct {
	Total  int
	ByWord []WordCount
}

// Report summarizes fired triggers for a guild, busiest words first.
func (s *Service) Report(ctx context.Context, guildID string) (Report, error) {
	counts, err := s.store.TriggerCounts(ctx, guildID)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByWord: make([]WordCount, 0, len(counts))}
	for word, count := range counts {
		report.Total += count
		report.ByWord = append(report.ByWord, WordCount{Word: word, Count: count})
	}
	sort.Slice(report.ByWord, func(i, j int) bool {
		if report.ByWord[i].Count != report.ByWord[j].Count {
			return report.ByWord[i].Count > report.ByWord[j].Count
		}
		return report.ByWord[i].Word < report.ByWord[j].Word
	})
	return report, nil
}
