package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	LedgerServiceName = "stockledger.v1.LedgerService"
	errorDomain       = "stockledger"

	recordInflowMethod  = "/" + LedgerServiceName + "/RecordInflow"
	recordOutflowMethod = "/" + LedgerServiceName + "/RecordOutflow"
	currentStockMethod  = "/" + LedgerServiceName + "/CurrentStock"
)

// LedgerServer is the server side of stockledger.v1.LedgerService.
type LedgerServer interface {
	RecordInflow(context.Context, *RecordInflowRequest) (*RecordInflowResponse, error)
	RecordOutflow(context.Context, *RecordOutflowRequest) (*RecordOutflowResponse, error)
	CurrentStock(context.Context, *CurrentStockRequest) (*CurrentStockResponse, error)
}

// LedgerServiceDesc describes the service for grpc.Server.RegisterService.
// Messages travel as JSON; see JSONCodecName.
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordInflow", Handler: recordInflowHandler},
		{MethodName: "RecordOutflow", Handler: recordOutflowHandler},
		{MethodName: "CurrentStock", Handler: currentStockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockledger/v1/ledger.proto",
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

func recordInflowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecordInflowRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).RecordInflow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recordInflowMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServer).RecordInflow(ctx, req.(*RecordInflowRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func recordOutflowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecordOutflowRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).RecordOutflow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recordOutflowMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServer).RecordOutflow(ctx, req.(*RecordOutflowRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func currentStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CurrentStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).CurrentStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: currentStockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServer).CurrentStock(ctx, req.(*CurrentStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	ledger *service.LedgerService
}

var _ LedgerServer = (*GRPCHandler)(nil)

func NewGRPCHandler(ledger *service.LedgerService) *GRPCHandler {
	return &GRPCHandler{ledger: ledger}
}

func (h *GRPCHandler) RecordInflow(ctx context.Context, req *RecordInflowRequest) (*RecordInflowResponse, error) {
	id, err := h.ledger.RecordInflow(ctx, req.MaterialID, req.Quantity, req.Timestamp)
	if err != nil {
		return nil, grpcError(err)
	}
	return &RecordInflowResponse{ID: id}, nil
}

func (h *GRPCHandler) RecordOutflow(ctx context.Context, req *RecordOutflowRequest) (*RecordOutflowResponse, error) {
	if err := h.ledger.RecordOutflow(ctx, req.MaterialID, req.PersonID, req.Quantity, req.Timestamp); err != nil {
		return nil, grpcError(err)
	}
	return &RecordOutflowResponse{Success: true}, nil
}

func (h *GRPCHandler) CurrentStock(ctx context.Context, _ *CurrentStockRequest) (*CurrentStockResponse, error) {
	records, err := h.ledger.CurrentStock(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return &CurrentStockResponse{Records: toStockRecords(records)}, nil
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrMaterialNotFound),
		errors.Is(err, domain.ErrPersonNotFound),
		errors.Is(err, domain.ErrStockRecordNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidName):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientStock):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrDuplicateName):
		return codes.AlreadyExists
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, domain.ErrStorageFailure):
		return codes.Unavailable
	}
	return codes.Internal
}

// grpcError converts a ledger error into a status carrying an ErrorInfo whose
// reason is the stable domain code.
func grpcError(err error) error {
	code := grpcCode(err)
	message := err.Error()
	switch code {
	case codes.Unavailable:
		message = "storage unavailable"
	case codes.Internal:
		message = "internal error"
	}

	st := status.New(code, message)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: domain.ErrorCode(err),
		Domain: errorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorReason extracts the domain code from an error returned by the ledger
// service, or "" when the status carries none.
func ErrorReason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info.GetReason()
		}
	}
	return ""
}

// UnaryLoggingInterceptor logs each call with its status code. A request id
// sent as x-request-id metadata is carried into the log line.
func UnaryLoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()

	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			requestID = ids[0]
		}
	}
	if requestID != "" {
		ctx = withRequestID(ctx, requestID)
	}

	resp, err := handler(ctx, req)

	code := status.Code(err)
	level := slog.LevelInfo
	switch code {
	case codes.OK:
	case codes.Internal, codes.Unavailable, codes.Unknown:
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	slog.LogAttrs(ctx, level, "gRPC request",
		slog.String("method", info.FullMethod),
		slog.String("code", code.String()),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", requestID),
	)
	return resp, err
}

// LedgerClient calls stockledger.v1.LedgerService over a connection using
// the JSON codec.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) RecordInflow(ctx context.Context, in *RecordInflowRequest, opts ...grpc.CallOption) (*RecordInflowResponse, error) {
	out := new(RecordInflowResponse)
	if err := c.cc.Invoke(ctx, recordInflowMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) RecordOutflow(ctx context.Context, in *RecordOutflowRequest, opts ...grpc.CallOption) (*RecordOutflowResponse, error) {
	out := new(RecordOutflowResponse)
	if err := c.cc.Invoke(ctx, recordOutflowMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) CurrentStock(ctx context.Context, in *CurrentStockRequest, opts ...grpc.CallOption) (*CurrentStockResponse, error) {
	out := new(CurrentStockResponse)
	if err := c.cc.Invoke(ctx, currentStockMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
}
