package sim

import (
	"math/rand"
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/haze/components"
	"github.com/pthm-cable/haze/control"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
)

// parallelThreshold is the minimum agent count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// agentSnapshot captures read-only state for parallel processing.
type agentSnapshot struct {
	Entity      ecs.Entity
	ID          uint32
	Pos         geom.Vec
	Vel         geom.Vec
	Heading     float64
	Body        components.Body
	Goal        components.Goal
	WanderAngle float64

	// Prev is last tick's tensor; workers read it, never write it.
	Prev perception.Tensor
}

// intent captures computed outputs to apply after the parallel phase.
type intent struct {
	Action    geom.Vec
	Tensor    perception.Tensor
	Precision perception.Field
	Haze      float64
	EnvHaze   float64
	Visible   []uint32
	Trace     control.Trace
}

// workerScratch holds per-worker reusable buffers and the worker's own
// random stream.
type workerScratch struct {
	hits      []Neighbor
	neighbors []perception.AgentState
	rng       *rand.Rand
}

// workChunk represents a range of agents for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds resources for parallel decision computation.
type parallelState struct {
	snapshots  []agentSnapshot
	intents    []intent
	scratches  []workerScratch
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(seed int64) *parallelState {
	numWorkers := runtime.GOMAXPROCS(0)
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		scratches[i].hits = make([]Neighbor, 0, 64)
		scratches[i].neighbors = make([]perception.AgentState, 0, 64)
	}
	p := &parallelState{
		numWorkers: numWorkers,
		scratches:  scratches,
		snapshots:  make([]agentSnapshot, 0, 256),
		intents:    make([]intent, 0, 256),
	}
	p.reseed(seed)
	return p
}

// reseed resets every worker's random stream. Restoring a snapshot calls
// this so a replayed run draws the same per-worker sequences as the
// recorded one.
func (p *parallelState) reseed(seed int64) {
	for i := range p.scratches {
		p.scratches[i].rng = rand.New(rand.NewSource(seed*31 + int64(i) + 1))
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(w *World) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(w, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(w *World, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			w.computeChunk(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// computeParallel dispatches work to the worker pool.
func (w *World) computeParallel(n int) {
	if !w.parallel.running {
		w.parallel.startWorkers(w)
	}

	numWorkers := w.parallel.numWorkers
	chunkSize := (n + numWorkers - 1) / numWorkers

	chunksDispatched := 0
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		w.parallel.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-w.parallel.doneChan
	}
}
