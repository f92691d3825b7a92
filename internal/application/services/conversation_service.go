package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/conversation"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
)

const (
	summaryHeader    = "=== Conversation history ==="
	summaryNoHistory = "(no history)"
)

type sessionHistory struct {
	mu         sync.Mutex
	utterances []conversation.Utterance
}

// ConversationService keeps a bounded, insertion-ordered log of utterances per session.
// Each session's history has its own mutex; the index map is only locked to
// find or create a history, so sessions never block each other.
type ConversationService struct {
	mu         sync.RWMutex
	histories  map[string]*sessionHistory
	maxHistory int
	logger     *logging.ChanneledLogger
	now        Clock
}

// NewConversationService creates the memory with a per-session cap
func NewConversationService(maxHistory int, logger *logging.ChanneledLogger) *ConversationService {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &ConversationService{
		histories:  make(map[string]*sessionHistory),
		maxHistory: maxHistory,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ConversationService) history(sessionID string, create bool) *sessionHistory {
	s.mu.RLock()
	h, ok := s.histories[sessionID]
	s.mu.RUnlock()
	if ok || !create {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.histories[sessionID]; !ok {
		h = &sessionHistory{}
		s.histories[sessionID] = h
	}
	return h
}

// Append stores an utterance and evicts the oldest entries beyond the cap.
// A zero timestamp is replaced by the current UTC time.
func (s *ConversationService) Append(sessionID string, speaker conversation.Speaker, text string, emotionCtx *conversation.EmotionContext, timestamp time.Time) conversation.Utterance {
	if timestamp.IsZero() {
		timestamp = s.now().UTC()
	}

	utterance := conversation.Utterance{
		ID:             security.GenerateULID(),
		Speaker:        speaker,
		Text:           text,
		Timestamp:      timestamp,
		EmotionContext: copyEmotionContext(emotionCtx),
	}

	h := s.history(sessionID, true)
	h.mu.Lock()
	h.utterances = append(h.utterances, utterance)
	removed := 0
	if over := len(h.utterances) - s.maxHistory; over > 0 {
		removed = over
		kept := make([]conversation.Utterance, s.maxHistory)
		copy(kept, h.utterances[over:])
		h.utterances = kept
	}
	h.mu.Unlock()

	if removed > 0 {
		s.logger.WithSession(logging.ChannelSession, sessionID).Info("Evicted old utterances",
			"removed", removed, "limit", s.maxHistory)
	}

	return utterance
}

// Recent returns at most maxTurns utterances, oldest first. Unknown sessions yield an empty slice.
func (s *ConversationService) Recent(sessionID string, maxTurns int) []conversation.Utterance {
	h := s.history(sessionID, false)
	if h == nil || maxTurns <= 0 {
		return []conversation.Utterance{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	start := len(h.utterances) - maxTurns
	if start < 0 {
		start = 0
	}
	out := make([]conversation.Utterance, len(h.utterances)-start)
	copy(out, h.utterances[start:])
	return out
}

// LastBy returns the most recent utterance, optionally restricted to one speaker
func (s *ConversationService) LastBy(sessionID string, speaker *conversation.Speaker) (conversation.Utterance, bool) {
	h := s.history(sessionID, false)
	if h == nil {
		return conversation.Utterance{}, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.utterances) - 1; i >= 0; i-- {
		if speaker == nil || h.utterances[i].Speaker == *speaker {
			return h.utterances[i], true
		}
	}
	return conversation.Utterance{}, false
}

// Clear forgets a session's history
func (s *ConversationService) Clear(sessionID string) {
	s.mu.Lock()
	_, ok := s.histories[sessionID]
	delete(s.histories, sessionID)
	s.mu.Unlock()

	if ok {
		s.logger.WithSession(logging.ChannelSession, sessionID).Info("History cleared")
	}
}

// Len returns the number of stored utterances for a session
func (s *ConversationService) Len(sessionID string) int {
	h := s.history(sessionID, false)
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.utterances)
}

// Sessions lists session ids that currently hold history, sorted
func (s *ConversationService) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SummaryText renders the full history as a transcript, one line per utterance.
// Partner lines carry their emotion label when one was recorded.
func (s *ConversationService) SummaryText(sessionID string) string {
	var b strings.Builder
	b.WriteString(summaryHeader)

	h := s.history(sessionID, false)
	if h == nil {
		b.WriteString("\n" + summaryNoHistory)
		return b.String()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.utterances) == 0 {
		b.WriteString("\n" + summaryNoHistory)
		return b.String()
	}

	for _, u := range h.utterances {
		b.WriteString("\n[")
		b.WriteString(strings.ToUpper(string(u.Speaker)))
		b.WriteString("] ")
		if u.Speaker == conversation.SpeakerPartner && u.EmotionContext != nil {
			b.WriteString("(" + u.EmotionContext.PrimaryEmotion + ") ")
		}
		b.WriteString(u.Text)
	}
	return b.String()
}

func copyEmotionContext(ec *conversation.EmotionContext) *conversation.EmotionContext {
	if ec == nil {
		return nil
	}
	scores := make(map[string]float64, len(ec.EmotionScores))
	for k, v := range ec.EmotionScores {
		scores[k] = v
	}
	return &conversation.EmotionContext{PrimaryEmotion: ec.PrimaryEmotion, EmotionScores: scores}
}
