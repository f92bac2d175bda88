package main

import (
	"log"
	"net"
	"net/http"
	"os"

	"google.golang.org/grpc"

	"rootfind/internal/rpc"
	"rootfind/internal/server"
	"rootfind/internal/store"
)

func main() {
	httpAddr := envOr("ROOTFIND_HTTP_ADDR", ":8080")
	grpcAddr := envOr("ROOTFIND_GRPC_ADDR", ":50051")
	dbPath := envOr("ROOTFIND_DB", "rootfind.db")

	var st *store.Store
	if dbPath != "" {
		var err error
		st, err = store.NewStore(dbPath)
		if err != nil {
			log.Fatalf("не удалось открыть хранилище: %v", err)
		}
		defer st.Close()
		log.Println("История запусков:", dbPath)
	}

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("gRPC: не удалось слушать %s: %v", grpcAddr, err)
	}
	gs := grpc.NewServer()
	rpc.Register(gs, rpc.Solver{})
	go func() {
		log.Println("gRPC rootfind.Solver на", grpcAddr)
		if err := gs.Serve(lis); err != nil {
			log.Printf("gRPC: %v", err)
		}
	}()
	defer gs.GracefulStop()

	srv := server.New(st)
	log.Println("Сервер запущен на", httpAddr)
	if err := http.ListenAndServe(httpAddr, srv.Router()); err != nil {
		log.Printf("HTTP: %v", err)
	}
	srv.Wait()
}

// envOr — значение переменной окружения или def, если она не задана.
// Пустое значение считается заданным: ROOTFIND_DB= отключает историю.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
