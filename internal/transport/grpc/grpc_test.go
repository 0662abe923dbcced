package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/polyvoice/internal/message"
	"github.com/nadzzz/polyvoice/internal/speech"
	"github.com/nadzzz/polyvoice/internal/transport"
)

type fakeService struct {
	mu      sync.Mutex
	speaks  []*message.SpeakRequest
	spells  []*message.SpellRequest
	paused  []bool
	cancels int
	events  []message.Event
	err     error
}

func (f *fakeService) Speak(_ context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.speaks = append(f.speaks, req)
	return &message.SpeakResult{RequestID: req.ID, Commands: len(req.Commands())}, nil
}

func (f *fakeService) Spell(_ context.Context, req *message.SpellRequest) (*message.SpeakResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.spells = append(f.spells, req)
	return &message.SpeakResult{RequestID: req.ID}, nil
}

func (f *fakeService) Cancel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeService) Pause(_ context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, paused)
	return nil
}

func (f *fakeService) Settings(context.Context) (*message.Settings, error) {
	return &message.Settings{Voice: "ava", NumberMode: "number"}, nil
}

func (f *fakeService) UpdateSettings(_ context.Context, patch message.SettingsPatch) (*message.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &message.Settings{Voice: "ava"}
	if patch.Voice != nil {
		s.Voice = *patch.Voice
	}
	return s, nil
}

func (f *fakeService) Subscribe(context.Context) <-chan message.Event {
	ch := make(chan message.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

// dial serves svc over an in-memory listener and returns a client for it.
func dial(t *testing.T, svc transport.Service) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	tr := New(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.serve(ctx, lis, svc)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return NewClient(conn)
}

func TestSpeak(t *testing.T) {
	svc := &fakeService{}
	client := dial(t, svc)

	res, err := client.Speak(context.Background(), &message.SpeakRequest{
		ID:       "abc",
		Sequence: speech.Sequence{speech.Text("hello"), speech.Break(200)},
		Text:     "world",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.RequestID)
	assert.Equal(t, 3, res.Commands)

	require.Len(t, svc.speaks, 1)
	assert.Equal(t, speech.Sequence{speech.Text("hello"), speech.Break(200), speech.Text("world")}, svc.speaks[0].Commands())
}

func TestSpell(t *testing.T) {
	svc := &fakeService{}
	client := dial(t, svc)

	res, err := client.Spell(context.Background(), &message.SpellRequest{ID: "sp-1", Text: "ab中文", Locale: "en-US"})
	require.NoError(t, err)
	assert.Equal(t, "sp-1", res.RequestID)

	require.Len(t, svc.spells, 1)
	assert.Equal(t, "ab中文", svc.spells[0].Text)
	assert.Equal(t, "en-US", svc.spells[0].Locale)
}

func TestCancelPauseSettings(t *testing.T) {
	svc := &fakeService{}
	client := dial(t, svc)
	ctx := context.Background()

	require.NoError(t, client.Cancel(ctx))
	require.NoError(t, client.Pause(ctx, true))
	require.NoError(t, client.Pause(ctx, false))
	assert.Equal(t, 1, svc.cancels)
	assert.Equal(t, []bool{true, false}, svc.paused)

	s, err := client.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "number", s.NumberMode)

	name := "amelie"
	s, err = client.UpdateSettings(ctx, message.SettingsPatch{Voice: &name})
	require.NoError(t, err)
	assert.Equal(t, "amelie", s.Voice)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid", fmt.Errorf("%w: unknown voice", transport.ErrInvalidRequest), codes.InvalidArgument},
		{"internal", errors.New("engine gone"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := dial(t, &fakeService{err: tt.err})
			_, err := client.UpdateSettings(context.Background(), message.SettingsPatch{})
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestEvents(t *testing.T) {
	svc := &fakeService{events: []message.Event{
		{Type: message.EventIndex, Index: 7},
		{Type: message.EventDone},
	}}
	client := dial(t, svc)

	stream, err := client.Events(context.Background())
	require.NoError(t, err)

	var got []message.Event
	for {
		e, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, message.EventIndex, got[0].Type)
	assert.Equal(t, 7, got[0].Index)
	assert.Equal(t, message.EventDone, got[1].Type)
}
