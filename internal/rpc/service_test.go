package rpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"rootfind/internal/rpc"
)

const polyExpr = "x^5 + x^4 - 4*x^3 + 3*x^2 - 5"

func newClient(t *testing.T) *rpc.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	rpc.Register(srv, rpc.Solver{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := rpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) },
	))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSolve_Converges(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Solve(ctx, rpc.Request{Func: polyExpr, A: -2, B: 0, MaxIter: 100})
	require.NoError(t, err)
	assert.InDelta(t, -0.8714771153754555, res.Root, 1e-9)
	assert.Greater(t, res.Iterations, 30)
}

func TestSolve_StatusCodes(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cases := []struct {
		name string
		req  rpc.Request
		code codes.Code
	}{
		{"reversed", rpc.Request{Func: polyExpr, A: 2, B: 0, MaxIter: 100}, codes.InvalidArgument},
		{"reversed negative", rpc.Request{Func: polyExpr, A: 2, B: -1, MaxIter: 100}, codes.InvalidArgument},
		{"budget", rpc.Request{Func: polyExpr, A: -2, B: 0, MaxIter: 30}, codes.ResourceExhausted},
		{"same sign", rpc.Request{Func: "x*x + 1", A: -1, B: 1, MaxIter: 100}, codes.FailedPrecondition},
		{"bad expr", rpc.Request{Func: "x +", A: -1, B: 1, MaxIter: 100}, codes.InvalidArgument},
		{"eval", rpc.Request{Func: "x + y", A: -1, B: 1, MaxIter: 100}, codes.Internal},
		{"no func", rpc.Request{A: -1, B: 1, MaxIter: 100}, codes.InvalidArgument},
		{"zero budget", rpc.Request{Func: "x - 0.3", A: 0, B: 1, MaxIter: 0}, codes.ResourceExhausted},
		{"negative budget", rpc.Request{Func: "x - 0.3", A: 0, B: 1, MaxIter: -1}, codes.InvalidArgument},
		{"budget over limit", rpc.Request{Func: "x - 0.3", A: 0, B: 1, MaxIter: 10001}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		_, err := c.Solve(ctx, tc.req)
		require.Error(t, err, tc.name)
		assert.Equal(t, tc.code, status.Code(err), tc.name)
	}
}

func TestSolver_DecodeErrors(t *testing.T) {
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]interface{}{"func": "x", "a": "zero", "b": 1.0})
	require.NoError(t, err)
	_, err = rpc.Solver{}.Solve(ctx, req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "a должно быть числом", status.Convert(err).Message())

	req, err = structpb.NewStruct(map[string]interface{}{"func": "x", "a": -1.0})
	require.NoError(t, err)
	_, err = rpc.Solver{}.Solve(ctx, req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	for _, maxIter := range []interface{}{2.5, 1e12, 1e300, "ten"} {
		req, err = structpb.NewStruct(map[string]interface{}{"func": "x", "a": -1.0, "b": 1.0, "maxIter": maxIter})
		require.NoError(t, err)
		_, err = rpc.Solver{}.Solve(ctx, req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "maxIter=%v", maxIter)
	}
}

func TestSolver_DefaultBudget(t *testing.T) {
	// without maxIter the default budget is enough for this bracket
	req, err := structpb.NewStruct(map[string]interface{}{"func": "x^5 + x^4 - 4*x^3 + 3*x^2 - 5", "a": -2.0, "b": 0.0})
	require.NoError(t, err)
	resp, err := rpc.Solver{}.Solve(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, -0.8714771153754555, resp.GetFields()["root"].GetNumberValue(), 1e-9)
}

func TestSolver_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := structpb.NewStruct(map[string]interface{}{"func": "x - 0.3", "a": 0.0, "b": 1.0})
	require.NoError(t, err)
	_, err = rpc.Solver{}.Solve(ctx, req)
	assert.Equal(t, codes.Canceled, status.Code(err))
}
