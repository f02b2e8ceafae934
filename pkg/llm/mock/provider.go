package mock

import (
	"ai-tutoring-be/pkg/llm"
	"context"
	"sync"
	"time"
)

// Reply is a canned answer. A non-zero Delay blocks until it elapses or the
// context is done, whichever comes first.
type Reply struct {
	Content string
	Err     error
	Delay   time.Duration
}

// Call records one Chat invocation.
type Call struct {
	History []llm.Message
	Options llm.Options
}

// Provider is a deterministic LLMProvider for tests. It answers in FIFO
// order; when the queue is empty it falls back to Handler, and without a
// Handler it reports the provider as unavailable.
type Provider struct {
	mu      sync.Mutex
	replies []Reply
	Handler func(history []llm.Message) Reply
	Calls   []Call
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{
		History: append([]llm.Message(nil), history...),
		Options: llm.ApplyOptions(llm.Options{}, options...),
	})

	var reply Reply
	switch {
	case len(p.replies) > 0:
		reply = p.replies[0]
		p.replies = p.replies[1:]
	case p.Handler != nil:
		handler := p.Handler
		p.mu.Unlock()
		reply = handler(history)
		p.mu.Lock()
	default:
		reply = Reply{Err: &llm.ErrProviderUnavailable{Provider: p.Name()}}
	}
	p.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(reply.Delay):
		}
	}
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

// Enqueue appends canned replies.
func (p *Provider) Enqueue(replies ...Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replies...)
}

func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastCall returns the most recent call, or the zero Call.
func (p *Provider) LastCall() Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return Call{}
	}
	return p.Calls[len(p.Calls)-1]
}
