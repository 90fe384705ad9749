package vectorindex

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
)

// opKind names the message-protocol operations of spec §4.2/§9: the
// vector index runs isolated behind a single goroutine reading a
// request channel, so every call below is FIFO with respect to every
// other call on the same Worker — satisfying the "single writer"
// requirement without a second OS process.
type opKind int

const (
	opInit opKind = iota
	opLoadIndex
	opAddVector
	opAddVectors
	opSearch
	opSetEf
	opResizeIndex
	opSaveIndex
	opGetCurrentCount
	opReset
	opReinit
	opCleanup
)

type request struct {
	op     opKind
	args   interface{}
	result chan response
}

type response struct {
	value interface{}
	err   error
}

type addVectorArgs struct {
	label  uint64
	vector []float32
}

type addVectorsArgs struct {
	labels  []uint64
	vectors [][]float32
}

type searchArgs struct {
	query []float32
	k     int
}

type searchResult struct {
	labels    []uint64
	distances []float32
}

type reinitArgs struct{ cfg Config }
type loadIndexArgs struct{ path string }
type saveIndexArgs struct{ path string }
type resizeArgs struct{ maxElements int }
type setEfArgs struct{ ef int }

// Worker is the concurrency-safe boundary between the host and a
// Graph. All operations funnel through a single goroutine's request
// channel, giving the FIFO-per-worker ordering and the
// terminate-to-reclaim-memory lifecycle spec §4.2/§9 requires.
type Worker struct {
	reqCh    chan request
	done     chan struct{}
	stopped  atomic.Bool
	dims     atomic.Int64
	graph    *Graph
	log      logging.Logger
	stopOnce sync.Once
}

// NewWorker starts a worker goroutine wrapping a freshly constructed
// Graph for cfg. The worker runs until Cleanup is called.
func NewWorker(cfg Config, log logging.Logger) *Worker {
	if log == nil {
		log = logging.Nop()
	}
	w := &Worker{
		reqCh: make(chan request),
		done:  make(chan struct{}),
		graph: NewGraph(cfg),
		log:   log,
	}
	w.dims.Store(int64(cfg.Dimensions))
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for req := range w.reqCh {
		resp := w.handle(req)
		req.result <- resp
	}
}

func (w *Worker) handle(req request) response {
	switch req.op {
	case opInit:
		return response{}
	case opLoadIndex:
		args := req.args.(loadIndexArgs)
		f, err := os.Open(args.path)
		if err != nil {
			return response{err: ragerr.WrapItem("load_index", args.path, ragerr.KindIndex, err)}
		}
		defer f.Close()
		if err := w.graph.Load(f); err != nil {
			return response{err: ragerr.WrapItem("load_index", args.path, ragerr.KindIndex, err)}
		}
		return response{}
	case opAddVector:
		args := req.args.(addVectorArgs)
		if err := w.graph.Add(args.label, args.vector); err != nil {
			return response{err: ragerr.Wrap("add_vector", ragerr.KindIndex, err)}
		}
		return response{}
	case opAddVectors:
		args := req.args.(addVectorsArgs)
		if err := w.graph.AddBatch(args.labels, args.vectors); err != nil {
			return response{err: ragerr.Wrap("add_vectors", ragerr.KindIndex, err)}
		}
		return response{}
	case opSearch:
		args := req.args.(searchArgs)
		labels, distances, err := w.graph.Search(args.query, args.k)
		if err != nil {
			return response{err: ragerr.Wrap("search", ragerr.KindIndex, err)}
		}
		return response{value: searchResult{labels: labels, distances: distances}}
	case opSetEf:
		args := req.args.(setEfArgs)
		w.graph.SetEf(args.ef)
		return response{}
	case opResizeIndex:
		args := req.args.(resizeArgs)
		w.graph.cfg.MaxElements = args.maxElements
		return response{}
	case opSaveIndex:
		args := req.args.(saveIndexArgs)
		f, err := os.Create(args.path)
		if err != nil {
			return response{err: ragerr.WrapItem("save_index", args.path, ragerr.KindIndex, err)}
		}
		defer f.Close()
		if err := w.graph.Save(f); err != nil {
			return response{err: ragerr.WrapItem("save_index", args.path, ragerr.KindIndex, err)}
		}
		return response{}
	case opGetCurrentCount:
		return response{value: w.graph.Size()}
	case opReset:
		w.graph.Reset()
		return response{}
	case opReinit:
		args := req.args.(reinitArgs)
		w.graph = NewGraph(args.cfg)
		w.dims.Store(int64(args.cfg.Dimensions))
		return response{}
	case opCleanup:
		return response{}
	default:
		return response{err: fmt.Errorf("vectorindex: unknown op %d", req.op)}
	}
}

func (w *Worker) call(ctx context.Context, op opKind, args interface{}) (interface{}, error) {
	if w.stopped.Load() {
		return nil, ragerr.Wrap("vectorindex_call", ragerr.KindIndex, ragerr.ErrIndexUnavailable)
	}
	req := request{op: op, args: args, result: make(chan response, 1)}
	select {
	case w.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ragerr.Wrap("vectorindex_call", ragerr.KindIndex, ragerr.ErrIndexUnavailable)
	}
	select {
	case resp := <-req.result:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LoadIndex replaces the worker's graph with the image at path.
func (w *Worker) LoadIndex(ctx context.Context, path string) error {
	_, err := w.call(ctx, opLoadIndex, loadIndexArgs{path: path})
	return err
}

// AddVector inserts a single labeled vector.
func (w *Worker) AddVector(ctx context.Context, label uint64, vector []float32) error {
	_, err := w.call(ctx, opAddVector, addVectorArgs{label: label, vector: vector})
	return err
}

// AddVectors inserts a batch of labeled vectors in order.
func (w *Worker) AddVectors(ctx context.Context, labels []uint64, vectors [][]float32) error {
	_, err := w.call(ctx, opAddVectors, addVectorsArgs{labels: labels, vectors: vectors})
	return err
}

// Search returns up to k nearest labels and their cosine distances.
func (w *Worker) Search(ctx context.Context, query []float32, k int) ([]uint64, []float32, error) {
	v, err := w.call(ctx, opSearch, searchArgs{query: query, k: k})
	if err != nil {
		return nil, nil, err
	}
	sr := v.(searchResult)
	return sr.labels, sr.distances, nil
}

// SetEf adjusts query-time recall/speed tradeoff.
func (w *Worker) SetEf(ctx context.Context, ef int) error {
	_, err := w.call(ctx, opSetEf, setEfArgs{ef: ef})
	return err
}

// ResizeIndex raises the maximum element count the graph will accept.
func (w *Worker) ResizeIndex(ctx context.Context, maxElements int) error {
	_, err := w.call(ctx, opResizeIndex, resizeArgs{maxElements: maxElements})
	return err
}

// SaveIndex persists the current graph to path.
func (w *Worker) SaveIndex(ctx context.Context, path string) error {
	_, err := w.call(ctx, opSaveIndex, saveIndexArgs{path: path})
	return err
}

// GetCurrentCount reports how many vectors are currently indexed.
func (w *Worker) GetCurrentCount(ctx context.Context) (int, error) {
	v, err := w.call(ctx, opGetCurrentCount, nil)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Reset clears the graph in place without touching any file on disk.
func (w *Worker) Reset(ctx context.Context) error {
	_, err := w.call(ctx, opReset, nil)
	return err
}

// Reinit discards the current graph and replaces it with a freshly
// constructed one for cfg, used when the index must change
// dimensionality rather than merely clear its contents.
func (w *Worker) Reinit(ctx context.Context, cfg Config) error {
	_, err := w.call(ctx, opReinit, reinitArgs{cfg: cfg})
	return err
}

// Cleanup terminates the worker goroutine, reclaiming the graph's
// memory. A stopped Worker rejects all further calls with
// ErrIndexUnavailable; it is not reusable.
func (w *Worker) Cleanup(ctx context.Context) error {
	_, err := w.call(ctx, opCleanup, nil)
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		close(w.reqCh)
	})
	<-w.done
	return err
}

// Dimensions reports the vector width this worker's graph currently
// validates against. Backed by an atomic rather than routed through
// the request channel, since Reinit can change it from another
// goroutine's call to call.
func (w *Worker) Dimensions() int { return int(w.dims.Load()) }
