package routes

import (
	"io"

	"github.com/pkg/errors"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/heap"
	"github.com/zond/ticktrace/structs"

	goccy "github.com/goccy/go-json"
)

// Graph is the part of the world map that has been observed: zones and the
// exits between them, each with a travel cost.
type Graph struct {
	exits map[string]map[string]structs.Distance
}

func NewGraph() *Graph {
	return &Graph{
		exits: map[string]map[string]structs.Distance{},
	}
}

// LoadGraph reads a JSON object mapping each zone to the zones its exits
// lead to. Exits are one way unless listed in both directions.
func LoadGraph(r io.Reader) (*Graph, error) {
	exits := map[string][]string{}
	if err := goccy.NewDecoder(r).Decode(&exits); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	g := NewGraph()
	for from, tos := range exits {
		g.Add(from)
		for _, to := range tos {
			g.Link(from, to, 1)
		}
	}
	return g, nil
}

func (g *Graph) Add(zone string) {
	if _, found := g.exits[zone]; !found {
		g.exits[zone] = map[string]structs.Distance{}
	}
}

func (g *Graph) Known(zone string) bool {
	_, found := g.exits[zone]
	return found
}

// Link adds a one way exit.
func (g *Graph) Link(from, to string, cost structs.Distance) {
	g.Add(from)
	g.Add(to)
	g.exits[from][to] = cost
}

// Connect adds exits both ways with a cost of one.
func (g *Graph) Connect(a, b string) {
	g.Link(a, b, 1)
	g.Link(b, a, 1)
}

type step struct {
	zone string
	cost structs.Distance
}

// Resolve finds the cheapest path cost with Dijkstra's algorithm. It
// returns ErrUnknownZone if either zone has never been observed, and
// Unreachable if both are known but no known path connects them.
func (g *Graph) Resolve(from, to string) (structs.Distance, error) {
	if !g.Known(from) {
		return 0, errors.Wrapf(ErrUnknownZone, "%q", from)
	}
	if !g.Known(to) {
		return 0, errors.Wrapf(ErrUnknownZone, "%q", to)
	}
	best := map[string]structs.Distance{from: 0}
	h := heap.New(func(a, b step) bool {
		return a.cost < b.cost
	})
	h.Push(step{zone: from})
	for current := range h.Drain() {
		if current.zone == to {
			return current.cost, nil
		}
		if current.cost > best[current.zone] {
			continue
		}
		for next, cost := range g.exits[current.zone] {
			total := current.cost + cost
			if prev, seen := best[next]; !seen || total < prev {
				best[next] = total
				h.Push(step{zone: next, cost: total})
			}
		}
	}
	return structs.Unreachable, nil
}

// Fallback resolves with primary, and with secondary when primary does not
// know the origin zone.
func Fallback(primary, secondary Resolver) Resolver {
	return func(from, to string) (structs.Distance, error) {
		d, err := primary(from, to)
		if errors.Is(err, ErrUnknownZone) {
			return secondary(from, to)
		}
		return d, err
	}
}
