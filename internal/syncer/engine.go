package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ms-ticketsync/internal/config"
	"ms-ticketsync/internal/logger"
	"ms-ticketsync/internal/models"
	"ms-ticketsync/internal/provider"
)

// StoreLayer is the storage surface the engine writes through. Implemented
// by the bun layer in internal/syncer/db; mocked in tests.
type StoreLayer interface {
	GetEventInfo(id string) (*models.EventInfo, error)
	InsertEventInfo(info models.EventInfo) error
	UpdateEventInfoName(id, name string) error

	GetItemInfosByEvent(eventInfoID string) ([]models.ItemInfo, error)
	GetActiveItemInfosByEvent(eventInfoID string) ([]models.ItemInfo, error)
	InsertItemInfo(item models.ItemInfo) error
	UpdateItemInfo(item models.ItemInfo) error
	SoftDeleteItemInfo(id string) error

	GetTicketsByEvent(eventInfoID string) ([]models.Ticket, error)
	InsertTicket(ticket models.Ticket) error
	UpdateTicket(ticket models.Ticket) error
	SoftDeleteTicket(positionID string) error
}

// Publisher is the outbound event surface (Kafka in production).
type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

// Locker guards the manual trigger across replicas. Acquire returns false
// without error when another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Topics the engine publishes to.
type Topics struct {
	MembershipReload string
	SyncCompleted    string
}

// SyncResult is the per-event write summary, logged and published as
// telemetry after each event's sync.
type SyncResult struct {
	Organizer      string `json:"organizer"`
	Event          string `json:"event"`
	ItemsCreated   int    `json:"items_created"`
	ItemsUpdated   int    `json:"items_updated"`
	ItemsDeleted   int    `json:"items_deleted"`
	TicketsCreated int    `json:"tickets_created"`
	TicketsUpdated int    `json:"tickets_updated"`
	TicketsDeleted int    `json:"tickets_deleted"`
}

// Engine owns the periodic reconciliation loop: pull the full provider
// state for every configured organizer, validate it, and apply a
// three-level diff against the store. One engine instance owns one timer;
// there is no ambient global state.
type Engine struct {
	Store    StoreLayer
	Source   config.Source
	Producer Publisher // optional
	Lock     Locker    // optional, manual-trigger guard across replicas
	Logger   *logger.Logger
	Topics   Topics

	interval time.Duration

	mu       sync.Mutex
	api      provider.API
	timer    *time.Timer
	running  bool
	inFlight bool
	ready    bool
}

func NewEngine(api provider.API, store StoreLayer, source config.Source, log *logger.Logger, interval time.Duration) *Engine {
	return &Engine{
		Store:    store,
		Source:   source,
		Logger:   log,
		api:      api,
		interval: interval,
	}
}

// Start runs the first pass immediately and then reschedules itself. The
// next run is timed from pass completion, not pass start, so slow passes
// self-throttle instead of overlapping.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	go e.runPass()
}

func (e *Engine) runPass() {
	e.TrySync()

	e.mu.Lock()
	defer e.mu.Unlock()
	// A restart via ReplaceAPI while this pass was in flight arms its own
	// timer; stop it so only one chain survives and Stop can cancel it.
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.running {
		e.timer = time.AfterFunc(e.interval, e.runPass)
	}
}

// Stop cancels the pending next-run timer only. An in-flight pass runs to
// completion.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Ready reports whether at least one full pass has completed since start.
// Health checks poll this.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// ReplaceAPI hot-swaps the provider client (credential rotation), resets
// the readiness flag, and restarts the loop if it was running.
func (e *Engine) ReplaceAPI(api provider.API) {
	e.mu.Lock()
	e.api = api
	e.ready = false
	wasRunning := e.running
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()

	if wasRunning {
		go e.runPass()
	}
}

func (e *Engine) currentAPI() provider.API {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.api
}

func (e *Engine) setReady() {
	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
}

// beginPass claims the single-flight guard: the local in-flight flag, plus
// the distributed lock when one is configured. Returns false if a pass is
// already running.
func (e *Engine) beginPass() bool {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return false
	}
	e.inFlight = true
	e.mu.Unlock()

	if e.Lock != nil {
		ok, err := e.Lock.Acquire(context.Background())
		if err != nil {
			e.Logger.Error("SYNC", fmt.Sprintf("failed to acquire sync lock: %v", err))
		}
		if err != nil || !ok {
			e.mu.Lock()
			e.inFlight = false
			e.mu.Unlock()
			return false
		}
	}
	return true
}

func (e *Engine) endPass() {
	if e.Lock != nil {
		if err := e.Lock.Release(context.Background()); err != nil {
			e.Logger.Error("SYNC", fmt.Sprintf("failed to release sync lock: %v", err))
		}
	}
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

// TrySync runs one full pass. Every failure is caught and reported here;
// nothing propagates to the caller and the process keeps running on the
// timer. A no-op when a pass is already in flight.
func (e *Engine) TrySync() {
	if !e.beginPass() {
		e.Logger.LogSync("pass", "sync already in flight, skipping")
		return
	}
	defer e.endPass()

	e.pass(context.Background())
}

// ForceSync is the manual trigger. Returns false without doing anything
// when a pass is already in flight; otherwise kicks off a pass in the
// background and returns true.
func (e *Engine) ForceSync() bool {
	if !e.beginPass() {
		return false
	}
	go func() {
		defer e.endPass()
		e.pass(context.Background())
	}()
	return true
}

func (e *Engine) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("SYNC", fmt.Sprintf("sync pass panicked: %v", r))
		}
	}()

	start := time.Now()
	e.Logger.LogSync("pass", "starting sync pass")

	organizers, err := e.Source.Load()
	if err != nil {
		// Store untouched; prior state stays valid until the next pass.
		e.Logger.LogSyncError("pass", fmt.Errorf("failed to load organizer config: %w", err))
		return
	}

	e.syncAll(ctx, organizers)
	e.publishMembershipReload()
	e.setReady()

	e.Logger.LogSync("pass", fmt.Sprintf("sync pass completed in %s (%d organizers)", time.Since(start).Round(time.Millisecond), len(organizers)))
}

// syncAll fans out one task per organizer and waits for all to settle.
// Each child catches its own failures, so one bad organizer never blocks
// or cancels the others.
func (e *Engine) syncAll(ctx context.Context, organizers []models.OrganizerConfig) {
	var wg sync.WaitGroup
	for _, org := range organizers {
		wg.Add(1)
		go func(org models.OrganizerConfig) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.Logger.Error("SYNC", fmt.Sprintf("[%s] organizer sync panicked: %v", org.ID, r))
				}
			}()
			e.syncOrganizer(ctx, org)
		}(org)
	}
	wg.Wait()
}

// eventData is the full provider snapshot for one event. All four fetches
// must have succeeded for the event to be usable this pass.
type eventData struct {
	cfg      models.EventConfig
	settings *provider.Settings
	items    []provider.Item
	meta     *provider.EventMeta
	orders   []provider.Order
	err      error
}

// syncOrganizer fetches every configured event concurrently, validates all
// fetched events, and only then applies per-event syncs. Any validation
// violation anywhere under the organizer aborts the organizer's whole pass
// with no writes: syncing against known-bad provider configuration risks
// ticket-id collisions and missing-owner rows.
func (e *Engine) syncOrganizer(ctx context.Context, org models.OrganizerConfig) {
	api := e.currentAPI()

	data := make([]eventData, len(org.Events))
	var wg sync.WaitGroup
	for i, cfg := range org.Events {
		wg.Add(1)
		go func(i int, cfg models.EventConfig) {
			defer wg.Done()
			data[i] = e.fetchEvent(ctx, api, org, cfg)
		}(i, cfg)
	}
	wg.Wait()

	var violations []string
	usable := make([]*eventData, 0, len(data))
	for i := range data {
		d := &data[i]
		if d.err != nil {
			// Fetch failure is event-scoped: this event keeps its prior
			// store rows and is retried naturally next pass.
			e.Logger.LogSyncError(org.ID+"/"+d.cfg.EventID, d.err)
			continue
		}
		violations = append(violations, ValidateEvent(d.cfg, d.settings, d.items)...)
		usable = append(usable, d)
	}

	if len(violations) > 0 {
		for _, v := range violations {
			e.Logger.Error("VALIDATE", fmt.Sprintf("[%s] %s", org.ID, v))
		}
		e.Logger.LogSyncError(org.ID, fmt.Errorf("aborting organizer sync: %d validation violation(s)", len(violations)))
		return
	}

	var applyWg sync.WaitGroup
	for _, d := range usable {
		applyWg.Add(1)
		go func(d *eventData) {
			defer applyWg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.Logger.Error("SYNC", fmt.Sprintf("[%s/%s] event sync panicked: %v", org.ID, d.cfg.EventID, r))
				}
			}()
			if err := e.syncEvent(org, d); err != nil {
				e.Logger.LogSyncError(org.ID+"/"+d.cfg.EventID, err)
			}
		}(d)
	}
	applyWg.Wait()
}

func (e *Engine) fetchEvent(ctx context.Context, api provider.API, org models.OrganizerConfig, cfg models.EventConfig) eventData {
	d := eventData{cfg: cfg}

	d.settings, d.err = api.FetchEventSettings(ctx, org.OrgURL, org.Token, cfg.EventID)
	if d.err != nil {
		d.err = fmt.Errorf("failed to fetch settings: %w", d.err)
		return d
	}
	d.items, d.err = api.FetchItems(ctx, org.OrgURL, org.Token, cfg.EventID)
	if d.err != nil {
		d.err = fmt.Errorf("failed to fetch items: %w", d.err)
		return d
	}
	d.meta, d.err = api.FetchEvent(ctx, org.OrgURL, org.Token, cfg.EventID)
	if d.err != nil {
		d.err = fmt.Errorf("failed to fetch event: %w", d.err)
		return d
	}
	d.orders, d.err = api.FetchOrders(ctx, org.OrgURL, org.Token, cfg.EventID)
	if d.err != nil {
		d.err = fmt.Errorf("failed to fetch orders: %w", d.err)
		return d
	}
	return d
}

// syncEvent applies the three phases strictly in order. A phase failure
// aborts the remaining phases of this event only; earlier phases' writes
// stand. Each phase is an idempotent set of per-row upserts, so a later
// pass retries from whichever phase last failed.
func (e *Engine) syncEvent(org models.OrganizerConfig, d *eventData) error {
	result := SyncResult{Organizer: org.ID, Event: d.cfg.EventID}

	if err := e.syncEventInfo(d); err != nil {
		return fmt.Errorf("event-info phase failed: %w", err)
	}

	if err := e.syncItemInfos(d, &result); err != nil {
		return fmt.Errorf("item-info phase failed: %w", err)
	}

	if err := e.syncTickets(d, &result); err != nil {
		return fmt.Errorf("ticket phase failed: %w", err)
	}

	e.Logger.LogSync(org.ID+"/"+d.cfg.EventID, fmt.Sprintf(
		"synced: items +%d ~%d -%d, tickets +%d ~%d -%d",
		result.ItemsCreated, result.ItemsUpdated, result.ItemsDeleted,
		result.TicketsCreated, result.TicketsUpdated, result.TicketsDeleted))
	e.publishSyncResult(result)
	return nil
}

// Phase 1: upsert the EventInfo row by EventConfig identity.
func (e *Engine) syncEventInfo(d *eventData) error {
	existing, err := e.Store.GetEventInfo(d.cfg.ID)
	if err != nil {
		return err
	}
	name := d.meta.Name.Value()
	if existing == nil {
		return e.Store.InsertEventInfo(models.EventInfo{ID: d.cfg.ID, Name: name})
	}
	if existing.Name != name {
		return e.Store.UpdateEventInfoName(d.cfg.ID, name)
	}
	return nil
}

// Phase 2: reconcile ItemInfo rows against the active-item allow-list.
// All three sub-steps run even when earlier ones had no rows; they are
// independent set operations.
func (e *Engine) syncItemInfos(d *eventData, result *SyncResult) error {
	info, err := e.Store.GetEventInfo(d.cfg.ID)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("event info row missing for %s", d.cfg.ID)
	}

	existing, err := e.Store.GetItemInfosByEvent(d.cfg.ID)
	if err != nil {
		return err
	}

	diff, err := DiffItems(d.cfg.ID, existing, d.items, d.cfg.ActiveItemSet())
	if err != nil {
		return err
	}

	for _, item := range diff.ToInsert {
		if err := e.Store.InsertItemInfo(item); err != nil {
			return err
		}
		result.ItemsCreated++
	}
	for _, item := range diff.ToUpdate {
		if err := e.Store.UpdateItemInfo(item); err != nil {
			return err
		}
		result.ItemsUpdated++
	}
	for _, item := range diff.ToDelete {
		if err := e.Store.SoftDeleteItemInfo(item.ID); err != nil {
			return err
		}
		result.ItemsDeleted++
	}
	return nil
}

// Phase 3: convert paid order positions to tickets and reconcile by
// position id. Ownership resolves against the ItemInfo rows as refreshed
// by phase 2.
func (e *Engine) syncTickets(d *eventData, result *SyncResult) error {
	activeItems, err := e.Store.GetActiveItemInfosByEvent(d.cfg.ID)
	if err != nil {
		return err
	}
	itemsByProviderID := make(map[string]models.ItemInfo, len(activeItems))
	for _, item := range activeItems {
		itemsByProviderID[item.ItemID] = item
	}

	incoming := TicketsFromOrders(d.cfg.EventID, d.orders, itemsByProviderID, e.Logger)

	existing, err := e.Store.GetTicketsByEvent(d.cfg.ID)
	if err != nil {
		return err
	}

	diff := DiffTickets(existing, incoming)

	for _, ticket := range diff.ToInsert {
		if err := e.Store.InsertTicket(ticket); err != nil {
			return err
		}
		result.TicketsCreated++
	}
	for _, ticket := range diff.ToUpdate {
		if err := e.Store.UpdateTicket(ticket); err != nil {
			return err
		}
		result.TicketsUpdated++
	}
	for _, ticket := range diff.ToDelete {
		if err := e.Store.SoftDeleteTicket(ticket.PositionID); err != nil {
			return err
		}
		result.TicketsDeleted++
	}
	return nil
}

// publishMembershipReload tells downstream group-membership consumers to
// reload after a completed pass.
func (e *Engine) publishMembershipReload() {
	if e.Producer == nil || e.Topics.MembershipReload == "" {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"reason":       "sync_completed",
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err := e.Producer.Publish(e.Topics.MembershipReload, "sync", payload); err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("failed to publish membership reload: %v", err))
	}
}

func (e *Engine) publishSyncResult(result SyncResult) {
	if e.Producer == nil || e.Topics.SyncCompleted == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.Producer.Publish(e.Topics.SyncCompleted, result.Organizer+"/"+result.Event, payload); err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("failed to publish sync result: %v", err))
	}
}
