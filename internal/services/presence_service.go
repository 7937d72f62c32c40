package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/presence"
	vahub_redis "vahub-messaging/internal/redis"
	"vahub-messaging/internal/repository"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
	"vahub-messaging/pkg/metrics"
)

// CustomStatus is the optional emoji/text status a user can pin.
type CustomStatus struct {
	Emoji     string     `json:"emoji"`
	Text      string     `json:"text"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PresenceService owns the presence state machine:
//
//	offline --connect--> online
//	online --inactivity--> away
//	away --activity--> online
//	{online,away,busy} --manual--> busy
//	any --all sockets closed--> offline
//
// The hub reports connect/disconnect only on the first/last socket of a
// user, which keeps multi-device transitions single-broadcast.
type PresenceService struct {
	repo          repository.PresenceRepository
	conversations repository.ConversationRepository
	typing        *vahub_redis.TypingStore
	broadcaster   Broadcaster
	log           *logger.Logger

	typingTimers map[uuid.UUID]*time.Timer
	timerMu      sync.Mutex
	typingTTL    time.Duration
}

func NewPresenceService(
	repo repository.PresenceRepository,
	conversations repository.ConversationRepository,
	typing *vahub_redis.TypingStore,
	broadcaster Broadcaster,
	log *logger.Logger,
) *PresenceService {
	ttl := 3 * time.Second
	if typing != nil {
		ttl = typing.TTL()
	}
	return &PresenceService{
		repo:          repo,
		conversations: conversations,
		typing:        typing,
		broadcaster:   broadcaster,
		log:           log,
		typingTimers:  make(map[uuid.UUID]*time.Timer),
		typingTTL:     ttl,
	}
}

// SetBroadcaster breaks the construction cycle between the hub and the
// service; called once during wiring, before any traffic.
func (s *PresenceService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Connect marks a user online. The caller invokes this only for the
// first socket of a user, so a second device never re-broadcasts
// "came online".
func (s *PresenceService) Connect(ctx context.Context, userID uuid.UUID, socketID string) (presence.Record, error) {
	rec, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return presence.Record{}, err
	}

	now := time.Now()
	wasOffline := rec.Status == presence.StatusOffline
	rec.Status = presence.StatusOnline
	rec.LastSeen = now
	rec.ActiveSocketID = sql.NullString{String: socketID, Valid: true}
	rec.ConnectedAt = sql.NullTime{Time: now, Valid: true}
	rec.DisconnectedAt = sql.NullTime{}

	if err := s.repo.Update(ctx, rec); err != nil {
		return presence.Record{}, err
	}
	if s.typing != nil {
		if err := s.typing.SetOnline(ctx, userID, true); err != nil && s.log != nil {
			s.log.Warnf("redis online set update failed: %v", err)
		}
	}

	metrics.PresenceTransitionsTotal.WithLabelValues(string(presence.StatusOnline)).Inc()
	if wasOffline {
		s.broadcastStatus(ctx, userID, presence.StatusOnline, now)
	}
	return rec, nil
}

// Disconnect marks a user offline once their last socket closed.
func (s *PresenceService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	rec, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.Status = presence.StatusOffline
	rec.LastSeen = now
	rec.DisconnectedAt = sql.NullTime{Time: now, Valid: true}
	rec.ActiveSocketID = sql.NullString{}
	rec.IsTyping = false
	rec.TypingIn = uuid.NullUUID{}

	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	if s.typing != nil {
		if err := s.typing.SetOnline(ctx, userID, false); err != nil && s.log != nil {
			s.log.Warnf("redis online set update failed: %v", err)
		}
	}
	s.cancelTypingTimer(userID)

	metrics.PresenceTransitionsTotal.WithLabelValues(string(presence.StatusOffline)).Inc()
	s.broadcastStatus(ctx, userID, presence.StatusOffline, now)
	return nil
}

// Heartbeat refreshes lastSeen; an away user snaps back to online.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	rec, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.LastSeen = now
	cameBack := rec.Status == presence.StatusAway
	if cameBack {
		rec.Status = presence.StatusOnline
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	if cameBack {
		metrics.PresenceTransitionsTotal.WithLabelValues(string(presence.StatusOnline)).Inc()
		s.broadcastStatus(ctx, userID, presence.StatusOnline, now)
	}
	return nil
}

// SetStatus applies a manual status change (online, away, busy) with an
// optional custom status.
func (s *PresenceService) SetStatus(ctx context.Context, userID uuid.UUID, status presence.Status, custom *CustomStatus) error {
	if !status.Valid() {
		return vahub_errors.Validation("INVALID_STATUS", "unknown presence status")
	}

	rec, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	changed := rec.Status != status
	rec.Status = status
	rec.LastSeen = now
	if status == presence.StatusOffline {
		rec.IsTyping = false
		rec.TypingIn = uuid.NullUUID{}
	}
	if custom != nil {
		rec.CustomStatusEmoji = sql.NullString{String: custom.Emoji, Valid: custom.Emoji != ""}
		rec.CustomStatusText = sql.NullString{String: custom.Text, Valid: custom.Text != ""}
		if custom.ExpiresAt != nil {
			rec.CustomStatusExpires = sql.NullTime{Time: *custom.ExpiresAt, Valid: true}
		} else {
			rec.CustomStatusExpires = sql.NullTime{}
		}
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	if s.typing != nil {
		if err := s.typing.SetOnline(ctx, userID, status != presence.StatusOffline); err != nil && s.log != nil {
			s.log.Warnf("redis online set update failed: %v", err)
		}
	}

	if changed {
		metrics.PresenceTransitionsTotal.WithLabelValues(string(status)).Inc()
		s.broadcastStatus(ctx, userID, status, now)
	}
	return nil
}

// Get returns a user's presence, lazily creating the record.
func (s *PresenceService) Get(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// GetMany returns presence for a set of users (missing records read as
// offline and are not materialized).
func (s *PresenceService) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]presence.Record, error) {
	return s.repo.GetMany(ctx, userIDs)
}

// StartTyping flags the user as typing in a conversation and schedules
// the sender-side auto-expiry. Refreshing resets the timer.
func (s *PresenceService) StartTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return vahub_errors.ErrNotParticipant
	}

	rec, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	rec.IsTyping = true
	rec.TypingIn = uuid.NullUUID{UUID: conversationID, Valid: true}
	if rec.Status == presence.StatusOffline {
		// typing implies a live socket; repair stale state
		rec.Status = presence.StatusOnline
	}
	rec.LastSeen = time.Now()
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}

	if s.typing != nil {
		if err := s.typing.SetTyping(ctx, conversationID, userID, true); err != nil && s.log != nil {
			s.log.Warnf("typing store update failed: %v", err)
		}
	}

	s.scheduleTypingExpiry(conversationID, userID)
	s.broadcastTyping(ctx, conversationID, userID, true)
	return nil
}

// StopTyping clears the flag and cancels the pending expiry.
func (s *PresenceService) StopTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	s.cancelTypingTimer(userID)

	rec, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	rec.IsTyping = false
	rec.TypingIn = uuid.NullUUID{}
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}

	if s.typing != nil {
		if err := s.typing.SetTyping(ctx, conversationID, userID, false); err != nil && s.log != nil {
			s.log.Warnf("typing store update failed: %v", err)
		}
	}

	s.broadcastTyping(ctx, conversationID, userID, false)
	return nil
}

// Sweep force-expires records whose lastSeen predates the stale
// threshold and demotes idle online users to away. Recovers sockets
// that vanished without a clean disconnect.
func (s *PresenceService) Sweep(ctx context.Context, staleThreshold, awayTimeout time.Duration) (int, error) {
	now := time.Now()

	staleIDs, err := s.repo.SweepStale(ctx, now.Add(-staleThreshold))
	if err != nil {
		return 0, err
	}
	for _, userID := range staleIDs {
		if s.typing != nil {
			_ = s.typing.SetOnline(ctx, userID, false)
		}
		metrics.PresenceTransitionsTotal.WithLabelValues(string(presence.StatusOffline)).Inc()
		s.broadcastStatus(ctx, userID, presence.StatusOffline, now)
	}

	awayIDs, err := s.repo.MarkAway(ctx, now.Add(-awayTimeout))
	if err != nil {
		return len(staleIDs), err
	}
	for _, userID := range awayIDs {
		metrics.PresenceTransitionsTotal.WithLabelValues(string(presence.StatusAway)).Inc()
		s.broadcastStatus(ctx, userID, presence.StatusAway, now)
	}

	return len(staleIDs) + len(awayIDs), nil
}

// RunSweeper loops Sweep until the context is cancelled.
func (s *PresenceService) RunSweeper(ctx context.Context, interval, staleThreshold, awayTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := s.Sweep(ctx, staleThreshold, awayTimeout); err != nil {
				if s.log != nil {
					s.log.Errorf("presence sweep failed: %v", err)
				}
			} else if n > 0 && s.log != nil {
				s.log.Infof("presence sweep transitioned %d users", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *PresenceService) scheduleTypingExpiry(conversationID, userID uuid.UUID) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if t, ok := s.typingTimers[userID]; ok {
		t.Stop()
	}
	s.typingTimers[userID] = time.AfterFunc(s.typingTTL, func() {
		// Background context: the originating request is long finished.
		if err := s.StopTyping(context.Background(), conversationID, userID); err != nil && s.log != nil {
			s.log.Warnf("typing auto-expiry failed: %v", err)
		}
	})
}

func (s *PresenceService) cancelTypingTimer(userID uuid.UUID) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if t, ok := s.typingTimers[userID]; ok {
		t.Stop()
		delete(s.typingTimers, userID)
	}
}

// broadcastStatus notifies the contact set: every user sharing a
// conversation with the subject.
func (s *PresenceService) broadcastStatus(ctx context.Context, userID uuid.UUID, status presence.Status, at time.Time) {
	if s.broadcaster == nil {
		return
	}
	contacts, err := s.conversations.GetContactIDs(ctx, userID)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("contact set lookup failed for %s: %v", userID, err)
		}
		return
	}
	event := NewEvent(EventContactStatusChanged, map[string]interface{}{
		"user_id":   userID,
		"status":    status,
		"last_seen": at,
	})
	s.broadcaster.ToUsers(contacts, event)
	s.broadcaster.ToUser(userID, NewEvent(EventUserStatusChanged, map[string]interface{}{
		"status": status,
	}))
}

func (s *PresenceService) broadcastTyping(ctx context.Context, conversationID, userID uuid.UUID, isTyping bool) {
	if s.broadcaster == nil {
		return
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return
	}
	event := NewEvent(EventTypingStatus, map[string]interface{}{
		"conversation_id": conversationID,
		"user_id":         userID,
		"is_typing":       isTyping,
	})

	// intercepted threads must stay invisible to the VA, so typing
	// from the business side terminates at the admin room
	targets := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.UserID == userID {
			continue
		}
		if conv.IsIntercepted && p.Role == domain.RoleVA {
			continue
		}
		targets = append(targets, p.UserID)
	}
	s.broadcaster.ToUsers(targets, event)
	if conv.IsIntercepted {
		s.broadcaster.ToAdmins(event)
	}
}
