package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"rootfind/internal/optimizer"
)

const (
	serviceName = "rootfind.Solver"
	solveMethod = "/" + serviceName + "/Solve"
)

// SolverServer — серверная часть сервиса rootfind.Solver.
// Сообщения — structpb.Struct, сгенерированный код не нужен.
type SolverServer interface {
	Solve(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func solveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SolverServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: solveMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SolverServer).Solve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Solve", Handler: solveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rootfind/solver",
}

// Register регистрирует сервис на gRPC-сервере
func Register(s grpc.ServiceRegistrar, srv SolverServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Solver — реализация SolverServer поверх optimizer.Bisection
type Solver struct{}

// Solve ожидает поля func, a, b, maxIter; отвечает root, fx, iterations
func (Solver) Solve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	f, err := optimizer.NewEvalFunc(p.Func)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "ошибка в выражении функции: %v", err)
	}

	onIter := func(optimizer.Iter) error {
		if ctx.Err() != nil {
			return optimizer.ErrStopped
		}
		return nil
	}

	last, err := optimizer.Bisection(f, p.A, p.B, p.MaxIter, onIter)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	resp, err := structpb.NewStruct(map[string]interface{}{
		"root":       last.XMid,
		"fx":         last.FXMid,
		"iterations": float64(last.K + 1),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// Request — параметры одного решения
type Request struct {
	Func    string
	A, B    float64
	MaxIter int
}

const defaultMaxIter = 100

func decodeRequest(req *structpb.Struct) (Request, error) {
	fields := req.GetFields()
	var p Request

	fn, ok := fields["func"]
	if !ok || fn.GetStringValue() == "" {
		return p, errors.New("требуется func")
	}
	p.Func = fn.GetStringValue()

	for name, dst := range map[string]*float64{"a": &p.A, "b": &p.B} {
		v, ok := fields[name]
		if !ok {
			return p, fmt.Errorf("требуется %s", name)
		}
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return p, fmt.Errorf("%s должно быть числом", name)
		}
		*dst = v.GetNumberValue()
	}

	// без maxIter берётся значение по умолчанию; явный 0 допустим
	p.MaxIter = defaultMaxIter
	if v, ok := fields["maxIter"]; ok {
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return p, errors.New("maxIter должно быть числом")
		}
		n := v.GetNumberValue()
		if n != math.Trunc(n) || n < 0 || n > optimizer.MaxIterLimit {
			return p, fmt.Errorf("maxIter должен быть целым в пределах [0, %d]", optimizer.MaxIterLimit)
		}
		p.MaxIter = int(n)
	}
	return p, nil
}

// toStatus отображает ошибки решателя в коды gRPC
func toStatus(ctx context.Context, err error) error {
	code := codes.Unknown
	switch {
	case errors.Is(err, optimizer.ErrInvalidInterval):
		code = codes.InvalidArgument
	case errors.Is(err, optimizer.ErrNoSignChange):
		code = codes.FailedPrecondition
	case errors.Is(err, optimizer.ErrNotConverged):
		code = codes.ResourceExhausted
	case errors.Is(err, optimizer.ErrEval):
		code = codes.Internal
	case errors.Is(err, optimizer.ErrStopped):
		return status.FromContextError(ctx.Err()).Err()
	}
	return status.Error(code, err.Error())
}

