package server

import (
	"net/http"
	"sync"
	"time"

	"rootfind/internal/optimizer"
	"rootfind/internal/sse"
	"rootfind/internal/store"
)

// RunRetention — сколько завершённый запуск держится в памяти и в SSE-hub
const RunRetention = time.Hour

// Server — HTTP-интерфейс к решателю: запуски, SSE-поток итераций, экспорт
type Server struct {
	hub   *sse.Hub
	store *store.Store

	mu        sync.Mutex
	runs      map[string]*RunState
	wg        sync.WaitGroup
	retention time.Duration
	now       func() time.Time

	// compile разбирает выражение f(x) из запроса
	compile func(string) (optimizer.Func, error)
}

// New создаёт сервер; st может быть nil — тогда история хранится только в памяти
func New(st *store.Store) *Server {
	return &Server{
		hub:       sse.NewHub(RunRetention),
		store:     st,
		runs:      map[string]*RunState{},
		retention: RunRetention,
		now:       time.Now,
		compile:   optimizer.NewEvalFunc,
	}
}

// Wait дожидается завершения всех запущенных вычислений
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// API эндпоинты
	mux.HandleFunc("/start", s.StartRun)
	mux.HandleFunc("/stop", s.StopRun)
	mux.HandleFunc("/stream", s.Stream)
	mux.HandleFunc("/run", s.GetRun)
	mux.HandleFunc("/runs", s.ListRuns)
	mux.HandleFunc("/export", s.ExportCSV)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
