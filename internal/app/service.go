package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quarrelgame-framework/server/internal/combat"
	"github.com/quarrelgame-framework/server/internal/domain"
	"github.com/quarrelgame-framework/server/internal/ports"
)

// Catalog resolves the characters participants may play.
type Catalog interface {
	Character(id string) (*domain.Character, bool)
	DefaultCharacterID() string
	DefaultSettings() domain.Settings
}

// Options wires a Service. Loader, Catalog and Logger are required.
type Options struct {
	Loader   ports.Loader
	Spawner  ports.Spawner
	Executor combat.Executor
	Catalog  Catalog
	Logger   runtime.Logger

	LoadTimeout  time.Duration
	HitstopTicks int
	TickDuration time.Duration
	Now          func() time.Time
}

// Service contains the session and combat use-cases exposed to transports.
// Every state change is published on the Bus once the session lock is released.
type Service struct {
	logger   runtime.Logger
	catalog  Catalog
	spawner  ports.Spawner
	barrier  *LoadBarrier
	bus      *Bus
	dir      *Directory
	registry *Registry

	table    *combat.StateTable
	resolver *combat.Resolver
	cancel   *combat.CancelPolicy
	pipeline *combat.Pipeline
	reports  *combat.HitReports

	// spawned maps a combatant id to the character it was spawned as.
	spawned sync.Map
}

// NewService constructs a Service from opts.
func NewService(opts Options) (*Service, error) {
	if opts.Loader == nil {
		return nil, errors.New("loader is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Spawner == nil {
		opts.Spawner = LocalSpawner{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dir := NewDirectory()
	s := &Service{
		logger:   opts.Logger,
		catalog:  opts.Catalog,
		spawner:  opts.Spawner,
		barrier:  NewLoadBarrier(opts.Loader, opts.LoadTimeout),
		bus:      NewBus(),
		dir:      dir,
		registry: NewRegistry(dir, opts.Now),
		table:    combat.NewStateTable(),
		resolver: combat.NewResolver(),
		cancel:   combat.NewCancelPolicy(),
		reports:  combat.NewHitReports(),
	}

	executor := opts.Executor
	if executor == nil {
		executor = combat.NewFrameExecutor(s.reports, opts.TickDuration)
	}
	s.pipeline = combat.NewPipeline(s.table, executor, s, opts.Logger, combat.PipelineConfig{
		HitstopTicks: opts.HitstopTicks,
		TickDuration: opts.TickDuration,
		Now:          opts.Now,
		OnResult:     s.actionResolved,
	})
	return s, nil
}

// Bus returns the event bus transports subscribe to.
func (s *Service) Bus() *Bus {
	return s.bus
}

// Close stops pending recovery waits and blocks until every action has finished.
func (s *Service) Close() {
	s.pipeline.Close()
}

// Connect registers a participant with the process.
func (s *Service) Connect(ctx context.Context, participantID string) error {
	_, err := s.dir.Connect(participantID)
	return err
}

// Disconnect removes a participant from its session, if any, and forgets it.
func (s *Service) Disconnect(ctx context.Context, participantID string) {
	if err := s.LeaveSession(ctx, participantID); err != nil &&
		!errors.Is(err, ErrNotInSession) && !errors.Is(err, ErrUnknownParticipant) {
		s.logger.Warn("Disconnect: leaving session for %s failed: %v", participantID, err)
	}
	s.dir.Disconnect(participantID)
}

// CreateSession opens a session hosted by participantID. Zero settings fall
// back to the catalog defaults.
func (s *Service) CreateSession(ctx context.Context, participantID string, settings domain.Settings) (string, error) {
	if _, ok := s.dir.Get(participantID); !ok {
		return "", ErrUnknownParticipant
	}
	if settings == (domain.Settings{}) {
		settings = s.catalog.DefaultSettings()
	}

	sess, events, err := s.registry.Create([]string{participantID}, settings)
	if err != nil {
		return "", err
	}
	s.bus.Publish(events...)
	s.logger.Info("CreateSession: %s created session %s on map %s", participantID, sess.ID, sess.Settings().Map)
	return sess.ID, nil
}

// JoinSession adds participantID to a waiting session.
func (s *Service) JoinSession(ctx context.Context, participantID, sessionID string) error {
	if _, ok := s.dir.Get(participantID); !ok {
		return ErrUnknownParticipant
	}
	sess, ok := s.registry.Lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	events, err := sess.AddParticipant(participantID)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)
	return nil
}

// LeaveSession removes participantID from its session. An empty waiting
// session is dropped from the registry and an empty running one is ended.
func (s *Service) LeaveSession(ctx context.Context, participantID string) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	events, err := sess.RemoveParticipant(participantID)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)

	if !sess.empty() {
		return nil
	}
	switch sess.Phase() {
	case domain.PhaseWaiting:
		s.registry.Remove(sess.ID)
		s.logger.Debug("LeaveSession: session %s is empty, removed", sess.ID)
	case domain.PhaseInProgress:
		// Nobody is left to end it.
		if err := s.EndMatch(ctx, sess.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			s.logger.Warn("LeaveSession: ending abandoned session %s failed: %v", sess.ID, err)
		}
	}
	return nil
}

// Ready marks participantID as ready in its session.
func (s *Service) Ready(ctx context.Context, participantID string) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	events, err := sess.Ready(participantID)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)
	return nil
}

// Unready clears participantID's ready flag.
func (s *Service) Unready(ctx context.Context, participantID string) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	events, err := sess.Unready(participantID)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)
	return nil
}

// ClearParticipants removes everyone but the host from the host's session.
func (s *Service) ClearParticipants(ctx context.Context, participantID string) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	events, err := sess.ClearParticipants(participantID)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)
	return nil
}

// SetSettings replaces the session settings; host only.
func (s *Service) SetSettings(ctx context.Context, participantID string, settings domain.Settings) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	events, err := sess.SetSettings(participantID, settings)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)
	return nil
}

// SelectCharacter records the character participantID spawns as next.
func (s *Service) SelectCharacter(ctx context.Context, participantID, characterID string) error {
	if _, ok := s.catalog.Character(characterID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}
	return s.dir.SelectCharacter(participantID, characterID)
}

// StartSession runs the load barrier for the ready set and, when every
// participant loads in time, spawns them and moves the session in progress.
// On failure the session returns to waiting and nobody is told it started.
func (s *Service) StartSession(ctx context.Context, participantID string) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	ready, settings, events, err := sess.beginStart(participantID)
	if err != nil {
		return err
	}
	s.bus.Publish(events...)
	s.logger.Info("StartSession: session %s loading %s on %d participants", sess.ID, settings.Map, len(ready))

	if err := s.barrier.Wait(ctx, ready, settings.Map); err != nil {
		s.logger.Warn("StartSession: session %s failed to load: %v", sess.ID, err)
		s.bus.Publish(sess.abortStart(err)...)
		return fmt.Errorf("start session %s: %w", sess.ID, err)
	}

	members, arena, mode, err := sess.commitStart()
	if err != nil {
		return fmt.Errorf("start session %s: %w", sess.ID, err)
	}

	for _, id := range members {
		if err := s.spawn(ctx, sess, id, arena, mode); err != nil {
			s.logger.Error("StartSession: spawning %s in session %s failed: %v", id, sess.ID, err)
		}
	}
	for _, id := range members {
		s.bus.Publish(sess.event(EventSessionStarted, SessionStartedPayload{Snapshot: sess.snapshot(id, s.table)}, id))
	}
	s.logger.Info("StartSession: session %s in progress", sess.ID)
	return nil
}

// RespawnParticipant places a fresh combatant for participantID in the
// session's starting arena.
func (s *Service) RespawnParticipant(ctx context.Context, participantID string) error {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return err
	}
	if phase := sess.Phase(); phase != domain.PhaseInProgress {
		return fmt.Errorf("%w: session %s is %s", ErrInvalidPhase, sess.ID, phase)
	}
	arena, mode, ok := sess.startingArena()
	if !ok {
		return fmt.Errorf("%w: session %s has no arena", ErrInvalidPhase, sess.ID)
	}
	return s.spawn(ctx, sess, participantID, arena, mode)
}

func (s *Service) spawn(ctx context.Context, sess *Session, participantID string, arena domain.ArenaRef, mode domain.CombatMode) error {
	p, ok := s.dir.Get(participantID)
	if !ok {
		return ErrUnknownParticipant
	}
	characterID := p.SelectedCharacter
	if characterID == "" {
		characterID = s.catalog.DefaultCharacterID()
	}

	combatantID, err := s.spawner.Spawn(ctx, ports.SpawnRequest{
		SessionID:     sess.ID,
		ParticipantID: participantID,
		CharacterID:   characterID,
		Arena:         arena,
	})
	if err != nil {
		return fmt.Errorf("spawn %s: %w", participantID, err)
	}
	s.spawned.Store(combatantID, characterID)
	s.dir.setCombatant(participantID, combatantID)
	s.table.SetState(combatantID, domain.StateNeutral)

	s.bus.Publish(
		sess.event(EventParticipantRespawned, RespawnedPayload{
			ParticipantID: participantID,
			CombatantID:   combatantID,
			CharacterID:   characterID,
			Arena:         arena,
		}),
		sess.event(EventCombatModeSet, CombatModePayload{ParticipantID: participantID, Mode: mode}, participantID),
	)
	return nil
}

// SubmitInput resolves input against the participant's character and, when
// the cancel policy allows it, starts the move. A rejected or unmatched
// input returns false with no error.
func (s *Service) SubmitInput(ctx context.Context, participantID string, input domain.Input) (bool, error) {
	if err := input.Validate(); err != nil {
		return false, err
	}
	combatantID, character, err := s.combatant(participantID)
	if err != nil {
		return false, err
	}

	rt := s.table.Get(combatantID)
	move := s.resolver.Resolve(character, rt.Airborne, input)
	if move == nil {
		s.logger.Debug("SubmitInput: no move matches input from %s", participantID)
		return false, nil
	}

	// The cancel check sees the same state the move is recorded over.
	var blocked domain.CombatState
	_, accepted := s.pipeline.StartIf(ctx, combatantID, move, func(rt combat.Runtime) bool {
		var previous *domain.Move
		if rt.PreviousAction != "" {
			previous, _ = character.Move(rt.PreviousAction)
		}
		blocked = rt.State
		return s.cancel.Allow(rt, previous, move)
	})
	if !accepted {
		s.logger.Debug("SubmitInput: %s cannot cancel %s into %s", participantID, blocked, move.ID)
	}
	return accepted, nil
}

// ReportHit delivers a client-confirmed hit for the participant's move in its active window.
func (s *Service) ReportHit(ctx context.Context, participantID string, outcome domain.Outcome) error {
	combatantID, _, err := s.combatant(participantID)
	if err != nil {
		return err
	}
	if outcome.Defender != "" {
		defender, ok := s.dir.ByCombatant(outcome.Defender)
		attacker, _ := s.dir.Get(participantID)
		if !ok || defender.SessionID != attacker.SessionID {
			return fmt.Errorf("%w: defender %s", ErrNotSpawned, outcome.Defender)
		}
	}
	outcome.Attacker = combatantID
	if !s.reports.Report(outcome) {
		return ErrNoActiveMove
	}
	return nil
}

// UpdatePhysicalState records whether the participant's combatant is airborne.
func (s *Service) UpdatePhysicalState(ctx context.Context, participantID string, airborne bool) error {
	combatantID, _, err := s.combatant(participantID)
	if err != nil {
		return err
	}
	s.table.SetAirborne(combatantID, airborne)
	return nil
}

// GetCurrentSession returns the snapshot of participantID's session.
func (s *Service) GetCurrentSession(ctx context.Context, participantID string) (*Snapshot, error) {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return nil, err
	}
	return sess.snapshot(participantID, s.table), nil
}

// SessionSnapshot returns the view of sessionID without a perspective.
func (s *Service) SessionSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	sess, ok := s.registry.Lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.snapshot("", s.table), nil
}

// ListSessions returns a snapshot of every active session, oldest first.
func (s *Service) ListSessions(ctx context.Context) []*Snapshot {
	active := s.registry.ListActive()
	out := make([]*Snapshot, 0, len(active))
	for _, sess := range active {
		out = append(out, sess.snapshot("", s.table))
	}
	return out
}

// EndMatch handles the match-ended signal: the session passes through
// ending to ended, releases its participants and leaves the registry.
func (s *Service) EndMatch(ctx context.Context, sessionID string) error {
	sess, ok := s.registry.Lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	events, err := sess.beginEnd()
	if err != nil {
		return err
	}
	s.bus.Publish(events...)

	events, err = sess.finish()
	if err != nil {
		return err
	}
	s.registry.Remove(sess.ID)
	s.bus.Publish(events...)
	s.logger.Info("EndMatch: session %s ended", sess.ID)
	return nil
}

// ApplyHitstop implements ports.Effects by announcing the freeze to the session.
func (s *Service) ApplyHitstop(ctx context.Context, combatantID string, ticks int) {
	if p, ok := s.dir.ByCombatant(combatantID); ok && p.SessionID != "" {
		s.bus.Publish(Event{Kind: EventHitstop, SessionID: p.SessionID, Payload: HitstopPayload{CombatantID: combatantID, Ticks: ticks}})
	}
}

// ResetState implements ports.Effects.
func (s *Service) ResetState(ctx context.Context, combatantID string) {
	if p, ok := s.dir.ByCombatant(combatantID); ok && p.SessionID != "" {
		s.bus.Publish(Event{Kind: EventStateReset, SessionID: p.SessionID, Payload: CombatantPayload{CombatantID: combatantID}})
	}
}

func (s *Service) actionResolved(ctx context.Context, combatantID string, res combat.Result) {
	p, ok := s.dir.ByCombatant(combatantID)
	if !ok || p.SessionID == "" {
		return
	}
	s.bus.Publish(Event{
		Kind:      EventActionResolved,
		SessionID: p.SessionID,
		Payload: ActionResolvedPayload{
			ParticipantID: p.ID,
			CombatantID:   combatantID,
			MoveID:        res.Move.ID,
			Outcome:       res.Outcome,
			Settled:       res.Settled,
		},
	})
}

func (s *Service) sessionOf(participantID string) (*Session, error) {
	p, ok := s.dir.Get(participantID)
	if !ok {
		return nil, ErrUnknownParticipant
	}
	if p.SessionID == "" {
		return nil, ErrNotInSession
	}
	sess, ok := s.registry.Lookup(p.SessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// combatant returns the participant's spawned combatant and its character,
// requiring the session to be in progress.
func (s *Service) combatant(participantID string) (string, *domain.Character, error) {
	sess, err := s.sessionOf(participantID)
	if err != nil {
		return "", nil, err
	}
	if phase := sess.Phase(); phase != domain.PhaseInProgress {
		return "", nil, fmt.Errorf("%w: session %s is %s", ErrInvalidPhase, sess.ID, phase)
	}
	p, _ := s.dir.Get(participantID)
	if p.CombatantID == "" {
		return "", nil, ErrNotSpawned
	}
	characterID, _ := s.spawned.Load(p.CombatantID)
	id, _ := characterID.(string)
	character, ok := s.catalog.Character(id)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}
	return p.CombatantID, character, nil
}
