package approval

import (
	"context"
	"fmt"
	"sync"
)

// Prompt records one Request or Notify call.
type Prompt struct {
	ChannelID string
	Text      string
	Options   []string
}

// Scripted answers requests from a fixed list in order and records every
// call. Once the answers run out it returns ErrUnavailable.
type Scripted struct {
	mu            sync.Mutex
	answers       []string
	errs          map[int]error
	requests      []Prompt
	notifications []Prompt
	notifyErr     error
}

// NewScripted returns a gateway that replies with answers in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers, errs: make(map[int]error)}
}

// FailRequest makes the n-th (0-based) Request return err instead of an answer.
func (s *Scripted) FailRequest(n int, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[n] = err
	return s
}

// FailNotify makes every Notify return err.
func (s *Scripted) FailNotify(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyErr = err
	return s
}

func (s *Scripted) Request(ctx context.Context, channelID, prompt string, options []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.requests)
	s.requests = append(s.requests, Prompt{ChannelID: channelID, Text: prompt, Options: append([]string(nil), options...)})
	if err, ok := s.errs[n]; ok {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answerIdx := n - s.failedBefore(n)
	if answerIdx >= len(s.answers) {
		return "", fmt.Errorf("%w: no scripted answer for request %d", ErrUnavailable, n+1)
	}
	return s.answers[answerIdx], nil
}

func (s *Scripted) failedBefore(n int) int {
	count := 0
	for idx := range s.errs {
		if idx < n {
			count++
		}
	}
	return count
}

func (s *Scripted) Notify(_ context.Context, channelID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, Prompt{ChannelID: channelID, Text: message})
	return s.notifyErr
}

// Requests returns the recorded requests.
func (s *Scripted) Requests() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.requests...)
}

// Notifications returns the recorded notifications.
func (s *Scripted) Notifications() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.notifications...)
}
