package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"rootfind/internal/optimizer"
	"rootfind/internal/store"
)

const defaultMaxIter = 100

// startRequest — тело /start; maxIter без значения означает defaultMaxIter
type startRequest struct {
	Func    string  `json:"func"`
	A       float64 `json:"a"`
	B       float64 `json:"b"`
	MaxIter *int    `json:"maxIter"`
	Trace   bool    `json:"trace"`
}

// StartRun запускает новый поиск корня
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "ошибка JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	p := RunParams{Func: req.Func, A: req.A, B: req.B, MaxIter: defaultMaxIter, Trace: req.Trace}
	if req.MaxIter != nil {
		p.MaxIter = *req.MaxIter
	}
	if p.MaxIter < 0 || p.MaxIter > optimizer.MaxIterLimit {
		http.Error(w, fmt.Sprintf("maxIter должен быть в пределах [0, %d]", optimizer.MaxIterLimit), http.StatusBadRequest)
		return
	}
	if math.IsNaN(p.A) || math.IsNaN(p.B) || math.IsInf(p.A, 0) || math.IsInf(p.B, 0) {
		http.Error(w, "границы должны быть конечными", http.StatusBadRequest)
		return
	}
	if !(p.A < p.B) {
		http.Error(w, fmt.Sprintf("требуется a < b, a = %v, b = %v", p.A, p.B), http.StatusBadRequest)
		return
	}

	f, err := s.compile(p.Func)
	if err != nil {
		http.Error(w, "ошибка в выражении функции: "+err.Error(), http.StatusBadRequest)
		return
	}

	// предварительно считаем значения функции для графика
	const n = 400
	xs := make([]float64, n)
	ys := make([]*float64, n)
	h := (p.B - p.A) / float64(n-1)
	for i := 0; i < n; i++ {
		x := p.A + float64(i)*h
		xs[i] = x
		if y, err := f.Eval(x); err == nil {
			ys[i] = finite(y)
		}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	rs := newRunState(id, p, cancel)
	s.saveRun(rs)

	if s.store != nil {
		err := s.store.SaveRun(store.Run{
			ID: id, Func: p.Func, A: p.A, B: p.B, MaxIter: p.MaxIter, CreatedAt: rs.CreatedAt,
		})
		if err != nil {
			log.Printf("запуск %s: %v", id, err)
		}
	}

	// асинхронный запуск
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.solve(ctx, rs, f)
	}()

	resp := map[string]any{
		"id": id,
		"xs": xs,
		"ys": ys,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) solve(ctx context.Context, rs *RunState, f optimizer.Func) {
	id, p := rs.ID, rs.Params
	defer s.hub.Close(id)

	s.publish(id, map[string]any{
		"type": "start",
		"id":   id,
	})

	onIter := func(it optimizer.Iter) error {
		select {
		case <-ctx.Done():
			return optimizer.ErrStopped
		default:
		}

		rs.addIter(it)
		if p.Trace {
			s.publish(id, map[string]any{
				"type": "iter",
				"iter": iterPayload(it),
			})
		}
		return nil
	}

	last, err := optimizer.Bisection(f, p.A, p.B, p.MaxIter, onIter)

	switch {
	case err == nil:
		rs.finish(store.StatusDone, last, "", "", s.now())
		s.publish(id, map[string]any{
			"type":       "done",
			"x":          finite(last.XMid),
			"fx":         finite(last.FXMid),
			"iterations": last.K + 1,
		})
	case errors.Is(err, optimizer.ErrStopped):
		rs.finish(store.StatusStopped, last, optimizer.Kind(err), err.Error(), s.now())
		s.publish(id, map[string]any{
			"type": "stopped",
		})
	default:
		rs.finish(store.StatusError, last, optimizer.Kind(err), err.Error(), s.now())
		s.publish(id, map[string]any{
			"type": "error",
			"kind": optimizer.Kind(err),
			"err":  err.Error(),
		})
	}

	s.persist(rs)
}

// persist сохраняет итог запуска и его итерации
func (s *Server) persist(rs *RunState) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendIterations(rs.ID, rs.Iters()); err != nil {
		log.Printf("запуск %s: %v", rs.ID, err)
	}
	if err := s.store.FinishRun(rs.record()); err != nil {
		log.Printf("запуск %s: %v", rs.ID, err)
	}
}

func (s *Server) publish(id string, payload map[string]any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Printf("запуск %s: кодирование события: %v", id, err)
		return
	}
	s.hub.Publish(id, string(msg))
}

func iterPayload(it optimizer.Iter) map[string]any {
	return map[string]any{
		"k":     it.K,
		"a":     it.A,
		"b":     it.B,
		"xmid":  it.XMid,
		"fxmid": finite(it.FXMid),
		"len":   it.Len,
	}
}

// StopRun — прерывание поиска
func (s *Server) StopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	rs := s.getRun(id)
	if rs == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	if rs.Cancel != nil {
		rs.Cancel()
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRun — текущее состояние запуска
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	var view RunView
	if rs := s.getRun(id); rs != nil {
		view = rs.View()
	} else if s.store != nil {
		rec, err := s.store.GetRun(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "неизвестный id", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		view = viewFromStore(rec)
	} else {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

// ListRuns — последние запуски
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var views []RunView
	if s.store != nil {
		recs, err := s.store.ListRuns(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, rec := range recs {
			if rs := s.getRun(rec.ID); rs != nil {
				views = append(views, rs.View())
				continue
			}
			views = append(views, viewFromStore(rec))
		}
	} else {
		views = s.listRuns()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"runs": views})
}

// ExportCSV — экспорт итераций в CSV
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	var iters []optimizer.Iter
	if rs := s.getRun(id); rs != nil {
		iters = rs.Iters()
	} else if s.store != nil {
		if _, err := s.store.GetRun(id); err != nil {
			http.Error(w, "неизвестный id", http.StatusNotFound)
			return
		}
		var err error
		if iters, err = s.store.Iterations(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=iterations_"+id+".csv")

	cw := csv.NewWriter(w)
	defer cw.Flush()

	_ = cw.Write([]string{"k", "a", "b", "mid", "f(mid)", "b-a"})

	for _, it := range iters {
		_ = cw.Write([]string{
			strconv.Itoa(it.K),
			fmtFloat(it.A),
			fmtFloat(it.B),
			fmtFloat(it.XMid),
			fmtFloat(it.FXMid),
			fmtFloat(it.Len),
		})
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 16, 64)
}

// Stream — SSE-стрим событий запуска. Клиент получает все события
// с начала запуска, даже если подключился после его завершения.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}
	if s.getRun(id) == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.hub.Subscribe(id)
	defer cancel()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: msg\n")
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
