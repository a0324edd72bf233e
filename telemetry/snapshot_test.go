package telemetry

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := &Snapshot{
		Version: SnapshotVersion,
		Seed:    42,
		Tick:    1234,
		WorldW:  800,
		WorldH:  600,
		Agents: []AgentSnapshot{
			{ID: 0, X: 100, Y: 200, VelX: 10, VelY: -5, Heading: 0.5, Haze: 0.8},
			{ID: 1, X: 300, Y: 400, GoalX: 50, GoalY: 60, HasGoal: true},
		},
		Obstacles: []ObstacleSnapshot{{X: 500, Y: 100, Radius: 30}},
	}

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if loaded.Tick != s.Tick || loaded.Seed != s.Seed {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if len(loaded.Agents) != 2 || len(loaded.Obstacles) != 1 {
		t.Fatalf("entity counts wrong: %d agents, %d obstacles", len(loaded.Agents), len(loaded.Obstacles))
	}
	if loaded.Agents[1].HasGoal != true || loaded.Agents[1].GoalX != 50 {
		t.Errorf("goal state lost: %+v", loaded.Agents[1])
	}
	if loaded.Agents[0].Haze != 0.8 {
		t.Errorf("haze lost: %g", loaded.Agents[0].Haze)
	}
}

func TestSnapshotVersionMismatch(t *testing.T) {
	s := &Snapshot{Version: SnapshotVersion + 1}
	path := filepath.Join(t.TempDir(), "snap.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected version mismatch error")
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPerfCollector(t *testing.T) {
	p := NewPerfCollector(10)

	for i := 0; i < 3; i++ {
		p.StartTick()
		p.StartPhase(PhaseSnapshot)
		time.Sleep(time.Millisecond)
		p.StartPhase(PhaseDecide)
		time.Sleep(time.Millisecond)
		p.EndTick()
	}

	stats := p.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("average tick duration should be positive")
	}
	if stats.MinTickDuration > stats.MaxTickDuration {
		t.Errorf("min %v > max %v", stats.MinTickDuration, stats.MaxTickDuration)
	}
	if _, ok := stats.PhaseAvg[PhaseSnapshot]; !ok {
		t.Error("snapshot phase missing from breakdown")
	}
	if _, ok := stats.PhaseAvg[PhaseDecide]; !ok {
		t.Error("decide phase missing from breakdown")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("throughput should be positive")
	}

	csvRow := stats.ToCSV(50)
	if csvRow.WindowEnd != 50 || csvRow.AvgTickUS <= 0 {
		t.Errorf("CSV conversion wrong: %+v", csvRow)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	p := NewPerfCollector(10)
	stats := p.Stats()
	if stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("empty collector stats = %+v", stats)
	}
}
