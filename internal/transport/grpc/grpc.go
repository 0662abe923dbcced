// Package grpc implements the gRPC transport for polyvoice.
//
// This transport exposes the polyvoice.v1.Speech service: unary Speak,
// Spell, Cancel, Pause, GetSettings and UpdateSettings calls and a server-streaming
// Events call. Messages are the JSON forms of the message package types,
// carried with a JSON codec, so no generated stubs are needed. It is the
// preferred transport for long-lived clients such as screen readers.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/polyvoice/internal/message"
	"github.com/nadzzz/polyvoice/internal/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming calls to the service.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.serve(ctx, lis, svc)
}

func (t *Transport) serve(ctx context.Context, lis net.Listener, svc transport.Service) error {
	t.server = grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	t.server.RegisterService(&serviceDesc, &server{svc: svc})

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// speechServer is the handler type of the service description.
type speechServer interface {
	speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error)
	spell(ctx context.Context, req *message.SpellRequest) (*message.SpeakResult, error)
	cancel(ctx context.Context) error
	pause(ctx context.Context, req *message.PauseRequest) error
	settings(ctx context.Context) (*message.Settings, error)
	updateSettings(ctx context.Context, patch *message.SettingsPatch) (*message.Settings, error)
	events(stream grpc.ServerStream) error
}

// server adapts transport.Service to gRPC status errors.
type server struct {
	svc transport.Service
}

func (s *server) speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	res, err := s.svc.Speak(ctx, req)
	return res, toStatus(err)
}

func (s *server) spell(ctx context.Context, req *message.SpellRequest) (*message.SpeakResult, error) {
	res, err := s.svc.Spell(ctx, req)
	return res, toStatus(err)
}

func (s *server) cancel(ctx context.Context) error {
	return toStatus(s.svc.Cancel(ctx))
}

func (s *server) pause(ctx context.Context, req *message.PauseRequest) error {
	return toStatus(s.svc.Pause(ctx, req.Paused))
}

func (s *server) settings(ctx context.Context) (*message.Settings, error) {
	res, err := s.svc.Settings(ctx)
	return res, toStatus(err)
}

func (s *server) updateSettings(ctx context.Context, patch *message.SettingsPatch) (*message.Settings, error) {
	res, err := s.svc.UpdateSettings(ctx, *patch)
	return res, toStatus(err)
}

func (s *server) events(stream grpc.ServerStream) error {
	if err := stream.RecvMsg(&empty{}); err != nil {
		return err
	}
	for e := range s.svc.Subscribe(stream.Context()) {
		if err := stream.SendMsg(&e); err != nil {
			return err
		}
	}
	return nil
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		slog.Error("grpc call failed", "error", err)
		return status.Error(codes.Internal, err.Error())
	}
}
