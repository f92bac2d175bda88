package server

import (
	"context"
	"math"
	"sync"
	"time"

	"rootfind/internal/optimizer"
	"rootfind/internal/store"
)

// параметры запуска метода
type RunParams struct {
	Func    string  `json:"func"`
	A       float64 `json:"a"`
	B       float64 `json:"b"`
	MaxIter int     `json:"maxIter"`
	Trace   bool    `json:"trace"`
}

// состояние одного запуска
type RunState struct {
	ID        string
	Params    RunParams
	CreatedAt time.Time
	Cancel    context.CancelFunc

	mu         sync.Mutex
	status     string
	iters      []optimizer.Iter
	root       float64
	fx         float64
	errKind    string
	err        string
	finishedAt time.Time
}

// RunView — снимок запуска для JSON-ответа
type RunView struct {
	ID         string    `json:"id"`
	Params     RunParams `json:"params"`
	Status     string    `json:"status"`
	Root       *float64  `json:"root,omitempty"`
	FX         *float64  `json:"fx,omitempty"`
	Iterations int       `json:"iterations"`
	ErrKind    string    `json:"errKind,omitempty"`
	Err        string    `json:"err,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newRunState(id string, p RunParams, cancel context.CancelFunc) *RunState {
	return &RunState{
		ID:        id,
		Params:    p,
		CreatedAt: time.Now().UTC(),
		Cancel:    cancel,
		status:    store.StatusRunning,
	}
}

func (rs *RunState) addIter(it optimizer.Iter) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.iters = append(rs.iters, it)
}

func (rs *RunState) finish(status string, last optimizer.Iter, kind, msg string, at time.Time) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.finishedAt = at
	rs.status = status
	rs.errKind = kind
	rs.err = msg
	if status == store.StatusDone {
		rs.root = last.XMid
		rs.fx = last.FXMid
	}
}

// Iters возвращает копию накопленных итераций
func (rs *RunState) Iters() []optimizer.Iter {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]optimizer.Iter(nil), rs.iters...)
}

func (rs *RunState) View() RunView {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	v := RunView{
		ID:         rs.ID,
		Params:     rs.Params,
		Status:     rs.status,
		Iterations: len(rs.iters),
		ErrKind:    rs.errKind,
		Err:        rs.err,
		CreatedAt:  rs.CreatedAt,
	}
	if rs.status == store.StatusDone {
		v.Root, v.FX = finite(rs.root), finite(rs.fx)
	}
	return v
}

// record — итог запуска в формате хранилища
func (rs *RunState) record() store.Run {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return store.Run{
		ID:         rs.ID,
		Status:     rs.status,
		Root:       rs.root,
		FX:         rs.fx,
		Iterations: len(rs.iters),
		ErrKind:    rs.errKind,
		Err:        rs.err,
	}
}

func viewFromStore(r store.Run) RunView {
	v := RunView{
		ID:         r.ID,
		Params:     RunParams{Func: r.Func, A: r.A, B: r.B, MaxIter: r.MaxIter},
		Status:     r.Status,
		Iterations: r.Iterations,
		ErrKind:    r.ErrKind,
		Err:        r.Err,
		CreatedAt:  r.CreatedAt,
	}
	if r.Status == store.StatusDone {
		v.Root, v.FX = finite(r.Root), finite(r.FX)
	}
	return v
}

// finite — nil для NaN и ±Inf, которые не кодируются в JSON
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// expired — запуск завершён раньше, чем now-retention
func (rs *RunState) expired(now time.Time, retention time.Duration) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.status != store.StatusRunning && now.Sub(rs.finishedAt) > retention
}

// saveRun регистрирует запуск и вытесняет из памяти давно завершённые;
// они остаются доступны через хранилище, если оно настроено
func (s *Server) saveRun(rs *RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, old := range s.runs {
		if old.expired(now, s.retention) {
			delete(s.runs, id)
		}
	}
	s.runs[rs.ID] = rs
}

func (s *Server) getRun(id string) *RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

func (s *Server) listRuns() []RunView {
	s.mu.Lock()
	list := make([]*RunState, 0, len(s.runs))
	for _, rs := range s.runs {
		list = append(list, rs)
	}
	s.mu.Unlock()

	views := make([]RunView, 0, len(list))
	for _, rs := range list {
		views = append(views, rs.View())
	}
	return views
}
