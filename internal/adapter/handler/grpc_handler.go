package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/jersey-pos/internal/core/broadcast"
	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/service"
	"github.com/rl1809/jersey-pos/internal/logger"
)

const (
	terminalServiceName = "jerseypos.v1.Terminal"
	codecName           = "json"

	methodProcessSale = "/" + terminalServiceName + "/ProcessSale"
	methodSnapshot    = "/" + terminalServiceName + "/Snapshot"
	methodSubscribe   = "/" + terminalServiceName + "/Subscribe"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets terminals speak gRPC with the same JSON shapes the HTTP API uses.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

type ProcessSaleRequest struct {
	RequestID      string       `json:"request_id"`
	SKU            string       `json:"sku"`
	Quantity       int          `json:"quantity"`
	DiscountAmount domain.Money `json:"discount_amount"`
	CustomerName   string       `json:"customer_name"`
	Notes          string       `json:"notes"`
}

type SnapshotRequest struct {
	JerseyID uint `json:"jersey_id"` // 0 for every jersey
}

type SnapshotResponse struct {
	Variants []domain.Variant `json:"variants"`
	TakenAt  time.Time        `json:"taken_at"`
}

type SubscribeRequest struct {
	Topics []domain.Topic `json:"topics"`
}

type EventBatch struct {
	Events []domain.Event `json:"events"`
}

type TerminalServer interface {
	ProcessSale(context.Context, *ProcessSaleRequest) (*domain.Sale, error)
	Snapshot(context.Context, *SnapshotRequest) (*SnapshotResponse, error)
	Subscribe(*SubscribeRequest, grpc.ServerStream) error
}

var terminalServiceDesc = grpc.ServiceDesc{
	ServiceName: terminalServiceName,
	HandlerType: (*TerminalServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessSale", Handler: processSaleHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "jerseypos/v1/terminal",
}

func RegisterTerminalServer(s grpc.ServiceRegistrar, srv TerminalServer) {
	s.RegisterService(&terminalServiceDesc, srv)
}

func processSaleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProcessSaleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TerminalServer).ProcessSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodProcessSale}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TerminalServer).ProcessSale(ctx, req.(*ProcessSaleRequest))
	})
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TerminalServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSnapshot}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TerminalServer).Snapshot(ctx, req.(*SnapshotRequest))
	})
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TerminalServer).Subscribe(in, stream)
}

// GRPCHandler serves the terminal API used by the scanner and monitor clients.
type GRPCHandler struct {
	sales     *service.SaleService
	inventory *service.InventoryService
	hub       *broadcast.Hub
}

func NewGRPCHandler(sales *service.SaleService, inventory *service.InventoryService, hub *broadcast.Hub) *GRPCHandler {
	return &GRPCHandler{sales: sales, inventory: inventory, hub: hub}
}

func (h *GRPCHandler) ProcessSale(ctx context.Context, req *ProcessSaleRequest) (*domain.Sale, error) {
	sale, err := h.sales.ProcessSale(ctx, service.SaleInput{
		RequestID:      req.RequestID,
		SKU:            req.SKU,
		Quantity:       req.Quantity,
		DiscountAmount: req.DiscountAmount,
		CustomerName:   req.CustomerName,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return sale, nil
}

func (h *GRPCHandler) Snapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotResponse, error) {
	variants, err := h.inventory.Snapshot(ctx, req.JerseyID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &SnapshotResponse{Variants: nonNil(variants), TakenAt: time.Now().UTC()}, nil
}

func (h *GRPCHandler) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	for _, t := range req.Topics {
		if _, ok := knownTopics[t]; !ok {
			return status.Errorf(codes.InvalidArgument, "unknown topic %q", t)
		}
	}

	sub := h.hub.Subscribe(req.Topics...)
	defer sub.Close()

	// An empty first batch tells the client it is registered and may take its snapshot.
	if err := stream.SendMsg(&EventBatch{Events: []domain.Event{}}); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-sub.C():
			if !ok {
				if errors.Is(sub.Err(), broadcast.ErrSlowSubscriber) {
					logger.Warnw("grpc_subscriber_evicted", "subscription", sub.ID)
					return status.Error(codes.ResourceExhausted, sub.Err().Error())
				}
				return status.Error(codes.Unavailable, "event stream closed")
			}
			if err := stream.SendMsg(&EventBatch{Events: batch}); err != nil {
				return err
			}
		}
	}
}

// UnaryLoggingInterceptor logs every unary call with its outcome.
func UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logger.Infow("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// TerminalClient is the client side of the terminal API.
type TerminalClient struct {
	cc grpc.ClientConnInterface
}

func NewTerminalClient(cc grpc.ClientConnInterface) *TerminalClient {
	return &TerminalClient{cc: cc}
}

func (c *TerminalClient) ProcessSale(ctx context.Context, req *ProcessSaleRequest, opts ...grpc.CallOption) (*domain.Sale, error) {
	out := new(domain.Sale)
	if err := c.cc.Invoke(ctx, methodProcessSale, req, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TerminalClient) Snapshot(ctx context.Context, req *SnapshotRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	out := new(SnapshotResponse)
	if err := c.cc.Invoke(ctx, methodSnapshot, req, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// EventStream yields batches from a Subscribe call.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next batch. io.EOF means the server ended the stream cleanly.
func (s *EventStream) Recv() (*EventBatch, error) {
	out := new(EventBatch)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe returns once the server has registered the subscription, so a
// Snapshot taken afterwards cannot miss events.
func (c *TerminalClient) Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &terminalServiceDesc.Streams[0], methodSubscribe, withJSON(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("send subscribe: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close send: %w", err)
	}
	es := &EventStream{stream: stream}
	if _, err := es.Recv(); err != nil {
		return nil, fmt.Errorf("await subscription: %w", err)
	}
	return es, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}
