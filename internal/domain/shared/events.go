package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the engine; the notifier and the leaderboard cache subscribe
// to a subset of them.
const (
	// Simulation events
	EventSimulationStarted   EventType = "simulation.started"
	EventChoiceApplied       EventType = "simulation.choice_applied"
	EventSimulationCompleted EventType = "simulation.completed"

	// Reward events
	EventPointsAwarded       EventType = "reward.points_awarded"
	EventLevelUp             EventType = "reward.level_up"
	EventStreakUpdated       EventType = "reward.streak_updated"
	EventAchievementUnlocked EventType = "reward.achievement_unlocked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// SimulationCompletedEvent is emitted when a user reaches a terminal choice.
type SimulationCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	SimulationID string `json:"simulation_id"`
	Title        string `json:"title"`
	FinalScore   int    `json:"final_score"`
	PointsEarned int    `json:"points_earned"`
}

// Payload implements Event interface.
func (e SimulationCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"simulation_id": e.SimulationID,
		"title":         e.Title,
		"final_score":   e.FinalScore,
		"points_earned": e.PointsEarned,
	}
}

// NewSimulationCompletedEvent creates a new SimulationCompletedEvent.
func NewSimulationCompletedEvent(userID, simulationID, title string, finalScore, pointsEarned int) SimulationCompletedEvent {
	return SimulationCompletedEvent{
		BaseEvent:    NewBaseEvent(EventSimulationCompleted, userID),
		UserID:       userID,
		SimulationID: simulationID,
		Title:        title,
		FinalScore:   finalScore,
		PointsEarned: pointsEarned,
	}
}

// SimulationStartedEvent is emitted when a user starts (or restarts) a walk.
type SimulationStartedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	SimulationID string `json:"simulation_id"`
}

// Payload implements Event interface.
func (e SimulationStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"simulation_id": e.SimulationID,
	}
}

// NewSimulationStartedEvent creates a new SimulationStartedEvent.
func NewSimulationStartedEvent(userID, simulationID string) SimulationStartedEvent {
	return SimulationStartedEvent{
		BaseEvent:    NewBaseEvent(EventSimulationStarted, userID),
		UserID:       userID,
		SimulationID: simulationID,
	}
}

// AchievementUnlockedEvent is emitted when the reward ledger awards an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Points        int    `json:"points"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"points":         e.Points,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID string, points int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Points:        points,
	}
}

// PointsAwardedEvent is emitted after the reward ledger applies points.
type PointsAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Points      int    `json:"points"`
	TotalPoints int    `json:"total_points"`
	Level       int    `json:"level"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"points":       e.Points,
		"total_points": e.TotalPoints,
		"level":        e.Level,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID string, points, totalPoints, level int) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   NewBaseEvent(EventPointsAwarded, userID),
		UserID:      userID,
		Points:      points,
		TotalPoints: totalPoints,
		Level:       level,
	}
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber registers handlers for event types.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler)
}
