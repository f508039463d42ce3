// Package google provides a Google Cloud Speech-to-Text recognition
// capability.
package google

import (
	"context"
	"errors"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-qa-session/internal/service/recognizer"
)

// Config holds streaming recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// Adapter implements recognizer.Capability using Google Cloud
// Speech-to-Text streaming recognition. Audio frames are pulled from the
// provided source for the lifetime of each pass.
type Adapter struct {
	mu     sync.Mutex
	client *speech.Client
	cfg    Config
	source io.Reader
	cancel context.CancelFunc
}

// New creates a new Google recognition capability. Requires
// GOOGLE_APPLICATION_CREDENTIALS to be set; a client construction failure
// is reported as recognizer.ErrUnavailable so callers can disable
// dependent controls without attempting a pass.
func New(ctx context.Context, cfg Config, source io.Reader) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, errors.Join(recognizer.ErrUnavailable, err)
	}
	return &Adapter{client: c, cfg: cfg, source: source}, nil
}

// Available reports whether the underlying client was constructed.
func (a *Adapter) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client != nil
}

// Start begins a streaming recognition pass and delivers results to ev
// until the stream ends.
func (a *Adapter) Start(ctx context.Context, ev recognizer.Events) error {
	a.mu.Lock()
	if a.client == nil {
		a.mu.Unlock()
		return recognizer.ErrUnavailable
	}
	if a.cancel != nil {
		a.mu.Unlock()
		return errors.New("google: recognition pass already active")
	}
	passCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	client := a.client
	a.mu.Unlock()

	stream, err := client.StreamingRecognize(passCtx)
	if err != nil {
		a.clearPass()
		return classify(err)
	}

	// Streaming config is the first message on the wire.
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(a.cfg.SampleRateHz),
					LanguageCode:    a.cfg.LanguageCode,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		a.clearPass()
		return classify(err)
	}

	go a.pump(passCtx, stream)
	go a.recv(stream, ev)
	return nil
}

// Abort force-stops the active pass.
func (a *Adapter) Abort() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (a *Adapter) clearPass() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
}

// pump forwards audio frames from the source to the stream until the pass
// context is cancelled or the source drains.
func (a *Adapter) pump(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient) {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			_ = stream.CloseSend()
			return
		}
		n, err := a.source.Read(buf)
		if n > 0 {
			sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: buf[:n],
				},
			})
			if sendErr != nil {
				return
			}
		}
		if err != nil {
			_ = stream.CloseSend()
			return
		}
	}
}

// recv receives transcript responses and invokes the event sink.
func (a *Adapter) recv(stream speechpb.Speech_StreamingRecognizeClient, ev recognizer.Events) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			a.clearPass()
			if errors.Is(err, io.EOF) {
				ev.OnEnd()
			} else {
				ev.OnError(classify(err))
			}
			return
		}
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			ev.OnResult(r.Alternatives[0].Transcript, r.IsFinal)
		}
	}
}

// classify maps gRPC stream errors onto the capability error contract so
// the capture engine never branches on provider specifics.
func classify(err error) error {
	switch status.Code(err) {
	case codes.Canceled, codes.Aborted:
		return recognizer.ErrAborted
	case codes.OutOfRange, codes.DeadlineExceeded:
		// Google ends long silent streams with OUT_OF_RANGE.
		return recognizer.ErrNoSpeech
	case codes.PermissionDenied, codes.Unauthenticated:
		return recognizer.ErrPermissionDenied
	default:
		return err
	}
}
