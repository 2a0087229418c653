// Agent spawning: creates the initial population with personality-sampled
// starting capital.
package agents

import "github.com/talgya/mini-economy/internal/entropy"

// Spawner creates agents for the simulation.
type Spawner struct {
	rng entropy.Source
}

// NewSpawner creates an agent spawner drawing from rng.
func NewSpawner(rng entropy.Source) *Spawner {
	return &Spawner{rng: rng}
}

// SpawnPopulation creates one agent per entry of dist, IDs starting at 0.
func (s *Spawner) SpawnPopulation(dist []Personality) []*Agent {
	list := make([]*Agent, 0, len(dist))
	for i, p := range dist {
		list = append(list, s.spawnOne(AgentID(i), p))
	}
	return list
}

func (s *Spawner) spawnOne(id AgentID, p Personality) *Agent {
	funds := float64(s.startingFunds(p))
	return &Agent{
		ID:            id,
		Personality:   p,
		LvMON:         funds,
		InitialLvMON:  funds,
		LastActionLog: "Initialized",
	}
}

// startingFunds draws uniformly from the archetype's capital range.
func (s *Spawner) startingFunds(p Personality) int {
	tmpl := TemplateFor(p)
	return entropy.IntBetween(s.rng, tmpl.MinStart, tmpl.MaxStart)
}
