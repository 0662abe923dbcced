package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/nadzzz/polyvoice/internal/message"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "polyvoice.v1.Speech"

// jsonCodec carries messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// empty is the request or response of calls that carry no data.
type empty struct{}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*speechServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Speak", Handler: speakHandler},
		{MethodName: "Spell", Handler: spellHandler},
		{MethodName: "Cancel", Handler: cancelHandler},
		{MethodName: "Pause", Handler: pauseHandler},
		{MethodName: "GetSettings", Handler: settingsHandler},
		{MethodName: "UpdateSettings", Handler: updateSettingsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Events", Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "polyvoice/v1/speech.proto",
}

// unary decodes the request into in and runs call through the interceptor.
func unary[Req any](
	ctx context.Context,
	method string,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
	srv any,
	call func(ctx context.Context, s speechServer, req *Req) (any, error),
) (any, error) {
	in := new(Req)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(speechServer)
	if interceptor == nil {
		return call(ctx, s, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return call(ctx, s, req.(*Req))
	})
}

func speakHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(ctx, "Speak", dec, interceptor, srv, func(ctx context.Context, s speechServer, req *message.SpeakRequest) (any, error) {
		return s.speak(ctx, req)
	})
}

func spellHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(ctx, "Spell", dec, interceptor, srv, func(ctx context.Context, s speechServer, req *message.SpellRequest) (any, error) {
		return s.spell(ctx, req)
	})
}

func cancelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(ctx, "Cancel", dec, interceptor, srv, func(ctx context.Context, s speechServer, _ *empty) (any, error) {
		return &empty{}, s.cancel(ctx)
	})
}

func pauseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(ctx, "Pause", dec, interceptor, srv, func(ctx context.Context, s speechServer, req *message.PauseRequest) (any, error) {
		return &empty{}, s.pause(ctx, req)
	})
}

func settingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(ctx, "GetSettings", dec, interceptor, srv, func(ctx context.Context, s speechServer, _ *empty) (any, error) {
		return s.settings(ctx)
	})
}

func updateSettingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(ctx, "UpdateSettings", dec, interceptor, srv, func(ctx context.Context, s speechServer, req *message.SettingsPatch) (any, error) {
		return s.updateSettings(ctx, req)
	})
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(speechServer).events(stream)
}

// Client calls a polyvoice gRPC server.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps a connection. The connection must not force a codec of
// its own; every call uses the JSON codec.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.ForceCodec(jsonCodec{}))
}

// Speak sends a speak request.
func (c *Client) Speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	out := new(message.SpeakResult)
	if err := c.invoke(ctx, "Speak", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Spell sends a spell request.
func (c *Client) Spell(ctx context.Context, req *message.SpellRequest) (*message.SpeakResult, error) {
	out := new(message.SpeakResult)
	if err := c.invoke(ctx, "Spell", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel stops all speech.
func (c *Client) Cancel(ctx context.Context) error {
	return c.invoke(ctx, "Cancel", &empty{}, &empty{})
}

// Pause pauses or resumes speech.
func (c *Client) Pause(ctx context.Context, paused bool) error {
	return c.invoke(ctx, "Pause", &message.PauseRequest{Paused: paused}, &empty{})
}

// Settings returns the server's current settings.
func (c *Client) Settings(ctx context.Context) (*message.Settings, error) {
	out := new(message.Settings)
	if err := c.invoke(ctx, "GetSettings", &empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSettings applies a patch and returns the resulting settings.
func (c *Client) UpdateSettings(ctx context.Context, patch message.SettingsPatch) (*message.Settings, error) {
	out := new(message.Settings)
	if err := c.invoke(ctx, "UpdateSettings", &patch, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventStream receives engine progress notifications.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the server ends
// the stream.
func (s *EventStream) Recv() (message.Event, error) {
	var e message.Event
	err := s.stream.RecvMsg(&e)
	return e, err
}

// Events opens the progress stream. It ends when ctx is done.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], "/"+ServiceName+"/Events", grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
