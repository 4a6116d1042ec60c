// Package scheduler manages the background goroutines that run the card-round
// lifecycle:
//  1. tickLoop      – activates, completes, and creates rounds once a second.
//  2. alarmLoop     – fires settlement the moment a round's end time passes.
//  3. sweepLoop     – settles missed rounds and releases stuck settlement gates.
//  4. countdownLoop – pushes the live countdown to WS clients every second.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/taasclub/cardbet/internal/config"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
	"github.com/taasclub/cardbet/internal/ws"
)

// WsHub defines the broadcast operations the Scheduler needs from the
// WebSocket hub. Declared here so the scheduler package does not depend on
// the hub implementation.
type WsHub interface {
	BroadcastNewRound(msg ws.NewRoundMessage)
	BroadcastCountdown(msg ws.CountdownMessage)
	BroadcastRoundClosed(msg ws.RoundClosedMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement alarm heap
// ──────────────────────────────────────────────────────────────────────────────

type alarm struct {
	roundID string
	at      time.Time
}

// alarmHeap is a min-heap ordered by firing time.
type alarmHeap []alarm

func (h alarmHeap) Len() int            { return len(h) }
func (h alarmHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h alarmHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *alarmHeap) Push(x interface{}) { *h = append(*h, x.(alarm)) }
func (h *alarmHeap) Pop() interface{} {
	old := *h
	n := len(old)
	a := old[n-1]
	*h = old[:n-1]
	return a
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler drives the round lifecycle. Call Start(ctx) once from main();
// cancel the context to shut it down gracefully.
type Scheduler struct {
	gameSvc       *service.GameService
	settlementSvc *service.SettlementService
	settings      *service.SettingsService
	hub           WsHub
	cfg           *config.Config
	logger        *slog.Logger

	alarmMu sync.Mutex
	alarms  alarmHeap
	wake    chan struct{} // nudges alarmLoop when a nearer alarm arrives
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	gameSvc *service.GameService,
	settlementSvc *service.SettlementService,
	settings *service.SettingsService,
	hub WsHub,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		gameSvc:       gameSvc,
		settlementSvc: settlementSvc,
		settings:      settings,
		hub:           hub,
		cfg:           cfg,
		logger:        logger,
		wake:          make(chan struct{}, 1),
	}
}

// Start recovers persisted state and launches the background goroutines. It
// returns immediately; all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.recoverStartup(ctx)

	go s.tickLoop(ctx)
	go s.alarmLoop(ctx)
	go s.sweepLoop(ctx)
	go s.countdownLoop(ctx)
	s.logger.Info("scheduler started",
		"tick", s.cfg.Scheduler.TickInterval,
		"sweep", s.cfg.Scheduler.SweepInterval)
}

// recoverStartup repairs round state left over from a previous process:
// overdue rounds are completed, due rounds activated, stuck settlement gates
// released, and pending settlements re-armed.
func (s *Scheduler) recoverStartup(ctx context.Context) {
	if err := s.gameSvc.RecoverStartup(ctx); err != nil {
		s.logger.Error("startup recovery failed", "error", err)
	}
	s.settlementSvc.RecoverStuck(ctx, s.cfg.Scheduler.StuckThreshold)
	// The first sweep pass settles anything that completed while we were down.
	s.settlementSvc.SweepUnsettled(ctx, 0)
}

// ──────────────────────────────────────────────────────────────────────────────
// tickLoop
// ──────────────────────────────────────────────────────────────────────────────

// tickLoop runs the lifecycle state machine once per TickInterval. Each tick
// is bounded by TickDeadline; an overrunning tick yields to the next one.
func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.recoverAndLog("tickLoop")

	ticker := time.NewTicker(s.cfg.Scheduler.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tickLoop: shutting down")
			return
		case <-ticker.C:
			tctx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TickDeadline)
			s.tick(tctx)
			cancel()
		}
	}
}

// tick advances the round state machine one step.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	activated, err := s.gameSvc.ActivateDue(ctx, now)
	if err != nil {
		s.logger.Error("tick: activate due", "error", err)
	}
	for _, id := range activated {
		s.logger.Info("round activated", "round_id", id)
	}

	completed, err := s.gameSvc.CompleteDue(ctx, now)
	if err != nil {
		s.logger.Error("tick: complete due", "error", err)
	}
	for _, id := range completed {
		s.logger.Info("round completed", "round_id", id)
		if s.hub != nil {
			s.hub.BroadcastRoundClosed(ws.RoundClosedMessage{
				Type:      ws.MsgTypeRoundClosed,
				RoundID:   id,
				Timestamp: now,
			})
		}
		s.armAlarm(id, now)
	}

	s.ensureNextRound(ctx, now)
}

// ensureNextRound creates the upcoming round when none exists, aligned to the
// next duration boundary, but only inside the operating window.
func (s *Scheduler) ensureNextRound(ctx context.Context, now time.Time) {
	start, end := s.settings.OperatingWindow(ctx)
	open, err := domain.WithinOperatingWindow(now, start, end)
	if err != nil {
		s.logger.Error("tick: bad operating window", "start", start, "end", end, "error", err)
		open = true
	}
	if !open {
		return
	}

	exists, err := s.gameSvc.HasUpcoming(ctx)
	if err != nil {
		s.logger.Error("tick: has upcoming", "error", err)
		return
	}
	if exists {
		return
	}

	duration := s.settings.RoundDuration(ctx)
	next := now.Truncate(duration).Add(duration)

	round, err := s.gameSvc.CreateRound(ctx, next)
	if err != nil {
		s.logger.Error("tick: create round", "start", next, "error", err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastNewRound(ws.NewRoundMessage{
			Type:       ws.MsgTypeNewRound,
			RoundID:    round.ID,
			StartTime:  round.StartTime,
			EndTime:    round.EndTime,
			Multiplier: round.Multiplier,
			CardCount:  s.settings.CardCount(ctx),
			Timestamp:  time.Now().UTC(),
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// alarmLoop
// ──────────────────────────────────────────────────────────────────────────────

// armAlarm schedules a settlement attempt for a completed round.
func (s *Scheduler) armAlarm(roundID string, at time.Time) {
	s.alarmMu.Lock()
	heap.Push(&s.alarms, alarm{roundID: roundID, at: at})
	s.alarmMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// alarmLoop sleeps until the earliest armed alarm and fires settlement for
// it. Rounds awaiting a manual result are handed off to the backoffice; the
// sweep loop retries everything else.
func (s *Scheduler) alarmLoop(ctx context.Context) {
	defer s.recoverAndLog("alarmLoop")

	for {
		next, ok := s.peekAlarm()
		var wait time.Duration
		if ok {
			wait = time.Until(next.at)
			if wait < 0 {
				wait = 0
			}
		} else {
			wait = time.Hour
		}

		select {
		case <-ctx.Done():
			s.logger.Info("alarmLoop: shutting down")
			return
		case <-s.wake:
			continue
		case <-time.After(wait):
		}

		a, ok := s.popDueAlarm(time.Now().UTC())
		if !ok {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TickDeadline)
		_, err := s.settlementSvc.SettleRound(tctx, a.roundID, service.SettleOptions{
			Initiator: domain.InitiatorScheduler,
		})
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrAwaitingManual):
			s.logger.Info("round awaiting manual result", "round_id", a.roundID)
		case errors.Is(err, domain.ErrSettlementInProgress):
		default:
			s.logger.Error("alarm settlement failed", "round_id", a.roundID, "error", err)
		}
	}
}

func (s *Scheduler) peekAlarm() (alarm, bool) {
	s.alarmMu.Lock()
	defer s.alarmMu.Unlock()
	if len(s.alarms) == 0 {
		return alarm{}, false
	}
	return s.alarms[0], true
}

func (s *Scheduler) popDueAlarm(now time.Time) (alarm, bool) {
	s.alarmMu.Lock()
	defer s.alarmMu.Unlock()
	if len(s.alarms) == 0 || s.alarms[0].at.After(now) {
		return alarm{}, false
	}
	return heap.Pop(&s.alarms).(alarm), true
}

// ──────────────────────────────────────────────────────────────────────────────
// sweepLoop
// ──────────────────────────────────────────────────────────────────────────────

// sweepLoop is the safety net behind the alarms: every SweepInterval it
// settles completed rounds older than SweepGrace and releases settlement
// gates stuck longer than StuckThreshold.
func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.recoverAndLog("sweepLoop")

	ticker := time.NewTicker(s.cfg.Scheduler.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweepLoop: shutting down")
			return
		case <-ticker.C:
			tctx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TickDeadline)
			s.settlementSvc.SweepUnsettled(tctx, s.cfg.Scheduler.SweepGrace)
			s.settlementSvc.RecoverStuck(tctx, s.cfg.Scheduler.StuckThreshold)
			cancel()
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// countdownLoop
// ──────────────────────────────────────────────────────────────────────────────

// countdownLoop broadcasts the active round's remaining time every second.
func (s *Scheduler) countdownLoop(ctx context.Context) {
	defer s.recoverAndLog("countdownLoop")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("countdownLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastCountdown(ctx)
		}
	}
}

func (s *Scheduler) broadcastCountdown(ctx context.Context) {
	if s.hub == nil {
		return
	}
	round, err := s.gameSvc.GetCurrentRound(ctx)
	if err != nil {
		// No active round between boundaries is normal; stay quiet.
		return
	}
	s.hub.BroadcastCountdown(ws.CountdownMessage{
		Type:            ws.MsgTypeCountdown,
		RoundID:         round.ID,
		TimeLeftSeconds: int64(round.TimeLeft().Seconds()),
		Timestamp:       time.Now().UTC(),
	})
}

// recoverAndLog keeps a panicking loop from taking the process down.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("scheduler loop panicked", "loop", loop, "panic", r)
	}
}
