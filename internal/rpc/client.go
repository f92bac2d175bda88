package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Result — ответ Solve
type Result struct {
	Root       float64
	FX         float64
	Iterations int
}

// Client — обёртка над gRPC-соединением с сервисом rootfind.Solver
type Client struct {
	conn *grpc.ClientConn
}

// NewClient подключается к серверу по адресу addr
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Solve отправляет задачу на сервер; MaxIter передаётся как есть (0 — ни одной итерации).
// Ошибки решателя приходят как gRPC status
func (c *Client) Solve(ctx context.Context, req Request) (Result, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"func":    req.Func,
		"a":       req.A,
		"b":       req.B,
		"maxIter": float64(req.MaxIter),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, solveMethod, in, out); err != nil {
		return Result{}, err
	}

	fields := out.GetFields()
	return Result{
		Root:       fields["root"].GetNumberValue(),
		FX:         fields["fx"].GetNumberValue(),
		Iterations: int(fields["iterations"].GetNumberValue()),
	}, nil
}
