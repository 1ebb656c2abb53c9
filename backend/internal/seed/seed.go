// Package seed inserts the demo graph an empty store starts with. It goes
// through the public graph operations only, so seeded ids and rows look
// exactly like ones created by any other caller.
package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"memgraph/backend/internal/graph"
	"memgraph/backend/pkg/logger"
)

// Demo ids
const (
	AgentID    = "char_agent_demo"
	UserID     = "char_user_demo"
	TerminalID = "loc_terminal"

	ServesRelation = "SERVES"
	FirstChapter   = "first_run"

	initTask = "System Initialization"
)

// GraphWriter is the part of the graph client seeding needs
type GraphWriter interface {
	CreateEntity(ctx context.Context, in graph.NewEntity) (*graph.Entity, error)
	CreateDirectEdge(ctx context.Context, in graph.NewDirectEdge) (*graph.DirectEdge, error)
	CreateRelayEdge(ctx context.Context, in graph.NewRelayEdge) (*graph.RelayEdge, error)
	LinkParent(ctx context.Context, childID, parentID string) error
}

// Graph adds the emptiness check used by SeedIfEmpty
type Graph interface {
	GraphWriter
	IsEmpty(ctx context.Context) (bool, error)
}

// StepError reports which seeding step failed. Steps before it stay
// committed; the step itself left nothing behind.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("seed step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Summary lists what InsertDemoData created
type Summary struct {
	EntityIDs    []string `json:"entity_ids"`
	DirectEdgeID string   `json:"direct_edge_id"`
	ChapterID    string   `json:"chapter_id"`
}

// InsertDemoData creates two characters, a SERVES relation between them with
// one chapter, and a location belonging to the agent. The first failing step
// aborts the sequence.
func InsertDemoData(ctx context.Context, g GraphWriter) (*Summary, error) {
	log := logger.Named("seed")
	sum := &Summary{}

	steps := []struct {
		name string
		run  func() error
	}{
		{"create agent", func() error {
			e, err := g.CreateEntity(ctx, graph.NewEntity{
				EntityID: AgentID,
				NodeType: "character",
				Name:     "Agent (Demo)",
				Content: "# Agent (Demo)\n\nA sample character standing for the AI side of the system.\n\n" +
					"This node was generated by the initialization routine for demonstration.",
				TaskDescription: initTask,
			})
			if err == nil {
				sum.EntityIDs = append(sum.EntityIDs, e.EntityID)
			}
			return err
		}},
		{"create user", func() error {
			e, err := g.CreateEntity(ctx, graph.NewEntity{
				EntityID:        UserID,
				NodeType:        "character",
				Name:            "User (Demo)",
				Content:         "# User (Demo)\n\nA sample character standing for the human using the system.",
				TaskDescription: initTask,
			})
			if err == nil {
				sum.EntityIDs = append(sum.EntityIDs, e.EntityID)
			}
			return err
		}},
		{"create SERVES edge", func() error {
			d, err := g.CreateDirectEdge(ctx, graph.NewDirectEdge{
				FromEntityID: AgentID,
				ToEntityID:   UserID,
				Relation:     ServesRelation,
				Content:      "A sample relation: the agent serves the user. One sample chapter hangs off it.",
				Inheritable:  true,
			})
			if err == nil {
				sum.DirectEdgeID = d.EdgeID
			}
			return err
		}},
		{"create first_run chapter", func() error {
			r, err := g.CreateRelayEdge(ctx, graph.NewRelayEdge{
				FromEntityID: AgentID,
				ToEntityID:   UserID,
				Relation:     FirstChapter,
				Content: "# The First Run\n\nThe first time the system ran, \"Hello World\" appeared on the screen. " +
					"That is where it all began.\n\nA sample chapter showing how a discrete event is stored.",
				Inheritable:        true,
				ParentDirectEdgeID: sum.DirectEdgeID,
			})
			if err == nil {
				sum.ChapterID = r.EdgeID
			}
			return err
		}},
		{"create terminal", func() error {
			e, err := g.CreateEntity(ctx, graph.NewEntity{
				EntityID: TerminalID,
				NodeType: "location",
				Name:     "The Terminal",
				Content: "# The Terminal\n\nThe terminal window where the agent was born and runs.\n\n" +
					"A sample child entity showing the hierarchy.",
				TaskDescription: initTask,
			})
			if err == nil {
				sum.EntityIDs = append(sum.EntityIDs, e.EntityID)
			}
			return err
		}},
		{"link terminal to agent", func() error {
			return g.LinkParent(ctx, TerminalID, AgentID)
		}},
	}

	for i, step := range steps {
		log.Info(fmt.Sprintf("Step %d: %s", i+1, step.name))
		if err := step.run(); err != nil {
			log.Error("Seed step failed", zap.String("step", step.name), zap.Error(err))
			return sum, &StepError{Step: step.name, Err: err}
		}
	}

	log.Info("Demo data inserted",
		zap.Strings("entities", sum.EntityIDs),
		zap.String("direct_edge_id", sum.DirectEdgeID),
		zap.String("chapter_id", sum.ChapterID),
	)
	return sum, nil
}

// SeedIfEmpty inserts the demo data only into an empty graph. It reports
// whether seeding ran.
func SeedIfEmpty(ctx context.Context, g Graph) (bool, error) {
	empty, err := g.IsEmpty(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check graph: %w", err)
	}
	if !empty {
		logger.Named("seed").Info("Graph not empty, skipping demo data")
		return false, nil
	}
	if _, err := InsertDemoData(ctx, g); err != nil {
		return false, err
	}
	return true, nil
}
