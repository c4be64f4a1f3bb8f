package transcription

import (
	"context"
	"time"
)

// Responses are the canned sentences the mock returns.
var Responses = []string{
	"I'd like the grilled salmon with a side salad, please.",
	"Can I get the chicken soup and a glass of water?",
	"The vegetarian pasta with extra parmesan, no mushrooms.",
	"One cheeseburger medium rare with fries.",
	"I'll have the beef stew and a dinner roll.",
	"Oatmeal with blueberries and a cup of decaf coffee.",
}

// Mock picks a canned sentence from the size of the audio. The result depends
// only on len(Data), never on the audio content.
type Mock struct {
	Responses []string
	Delay     time.Duration
}

// NewMock returns a mock over the default sentences.
func NewMock() *Mock {
	return &Mock{Responses: Responses}
}

func (m *Mock) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, wrap(ctx.Err())
		}
	}
	if len(m.Responses) == 0 {
		return nil, wrap(ErrUnintelligible)
	}
	return &Result{Text: m.Responses[len(a.Data)%len(m.Responses)]}, nil
}
