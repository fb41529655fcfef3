// Package mentor answers operator questions through a remote language-model proxy, falling back to
// built-in lessons and a diagnosis of the live plant state when the proxy is unavailable.
package mentor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when questions arrive faster than the proxy allowance
var ErrRateLimited = errors.New("mentor request rate exceeded")

// Answer is the mentor's reply
type Answer struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Options configure an Advisor
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	// RequestsPerMinute caps proxy calls; 0 means 10
	RequestsPerMinute int
	Lessons           []Lesson
	Logger            *zap.Logger
}

// Advisor answers questions. Without a proxy URL every answer is a fallback.
type Advisor struct {
	proxy   *ProxyClient
	limiter *rate.Limiter
	lessons []Lesson
	log     *zap.Logger
}

// NewAdvisor creates an advisor. Lessons default to the built-in catalogue.
func NewAdvisor(opts Options) (*Advisor, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 10
	}
	if opts.Lessons == nil {
		lessons, err := DefaultLessons()
		if err != nil {
			return nil, err
		}
		opts.Lessons = lessons
	}

	a := &Advisor{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute),
		lessons: opts.Lessons,
		log:     opts.Logger,
	}
	if opts.ProxyURL != "" {
		a.proxy = NewProxyClient(opts.ProxyURL, opts.Timeout)
	}
	return a, nil
}

// Lessons returns the catalogue used for fallback answers
func (a *Advisor) Lessons() []Lesson {
	return a.lessons
}

func (a *Advisor) generate(ctx context.Context, prompt string, images []Image) (string, error) {
	if a.proxy == nil {
		return "", errors.New("no mentor proxy configured")
	}
	if !a.limiter.Allow() {
		return "", ErrRateLimited
	}
	return a.proxy.Generate(ctx, prompt, images)
}

// Ask answers an operator question. In learning mode the model interviews the operator instead.
func (a *Advisor) Ask(ctx context.Context, question string, c Context, learning bool) Answer {
	prompt := SystemPrompt(c)
	if learning {
		prompt = LearningPrompt(c)
	}

	text, err := a.generate(ctx, prompt+"\n\n"+question, nil)
	if err == nil {
		return Answer{Text: text}
	}

	if a.proxy != nil {
		a.log.Warn("Mentor proxy unavailable, answering from lessons", zap.Error(err))
	}
	return Answer{Text: FallbackMarker + FallbackAnswer(a.lessons, question, c), Fallback: true}
}

// AnalyzeImages asks the model to read supervision screenshots
func (a *Advisor) AnalyzeImages(ctx context.Context, images []Image) Answer {
	if len(images) == 0 {
		return Answer{Text: FallbackMarker + "No image was provided.", Fallback: true}
	}

	text, err := a.generate(ctx, SupervisionPrompt(len(images)), images)
	if err == nil {
		return Answer{Text: text}
	}

	a.log.Warn("Image analysis unavailable", zap.Error(err), zap.Int("images", len(images)))
	return Answer{
		Text: FallbackMarker + "Image analysis needs the remote mentor, which could not be reached (" + err.Error() + "). " +
			"Describe the values you see and ask again.",
		Fallback: true,
	}
}
