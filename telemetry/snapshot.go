package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
)

// SnapshotVersion is bumped on incompatible format changes.
const SnapshotVersion = 1

// AgentSnapshot is the persisted state of one agent.
type AgentSnapshot struct {
	ID      uint32  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VelX    float64 `json:"vx"`
	VelY    float64 `json:"vy"`
	Heading float64 `json:"heading"`
	Haze    float64 `json:"haze"`
	GoalX   float64 `json:"goal_x,omitempty"`
	GoalY   float64 `json:"goal_y,omitempty"`
	HasGoal bool    `json:"has_goal,omitempty"`
}

// ObstacleSnapshot is the persisted state of one static obstacle.
type ObstacleSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Snapshot captures the replayable world state at one tick.
type Snapshot struct {
	Version   int                `json:"version"`
	Seed      int64              `json:"seed"`
	Tick      int32              `json:"tick"`
	WorldW    float64            `json:"world_w"`
	WorldH    float64            `json:"world_h"`
	Agents    []AgentSnapshot    `json:"agents"`
	Obstacles []ObstacleSnapshot `json:"obstacles,omitempty"`
}

// Save writes the snapshot as indented JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads and validates a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	return &s, nil
}
