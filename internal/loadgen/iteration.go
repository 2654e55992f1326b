package loadgen

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/loadcheck/internal/auth"
	"github.com/wesleyorama2/loadcheck/internal/classifier"
	"github.com/wesleyorama2/loadcheck/internal/config"
	lchttp "github.com/wesleyorama2/loadcheck/internal/http"
	"github.com/wesleyorama2/loadcheck/internal/metrics"
)

// Doer executes requests.
type Doer interface {
	Do(ctx context.Context, req *lchttp.Request) (*lchttp.Response, error)
}

// LoginFunc obtains a fresh identity.
type LoginFunc func(ctx context.Context) (auth.Identity, error)

// HTTPIterationConfig describes the request sent by every iteration.
type HTTPIterationConfig struct {
	// Client resolves Endpoint against its base URL, normally the
	// environment's APIBase.
	Client      Doer
	Classifier  *classifier.Classifier
	Registry    *metrics.Registry
	Environment config.Environment
	Endpoint    string
	Method      string
	Body        config.Body

	// Identity is the setup login result. It is ignored when Login is set.
	Identity auth.Identity

	// Login, when set, runs at the start of every iteration. A failed
	// login skips the iteration.
	Login LoginFunc

	Logger *zap.Logger
	Clock  func() time.Time
}

// HTTPIteration sends one request to the endpoint under test and feeds
// the outcome to the classifier.
type HTTPIteration struct {
	cfg HTTPIterationConfig

	reqs     *metrics.Counter
	duration *metrics.Trend
	failed   *metrics.Rate
}

// NewHTTPIteration creates an iteration from cfg.
func NewHTTPIteration(cfg HTTPIterationConfig) *HTTPIteration {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}

	return &HTTPIteration{
		cfg:      cfg,
		reqs:     cfg.Registry.Counter(metrics.HTTPReqs),
		duration: cfg.Registry.Trend(metrics.HTTPReqDuration),
		failed:   cfg.Registry.Rate(metrics.HTTPReqFailed),
	}
}

// Run executes one iteration for vu.
func (h *HTTPIteration) Run(ctx context.Context, vu int) {
	h.cfg.Classifier.BeginIteration(vu)
	queuedAt := h.cfg.Clock()

	identity := h.cfg.Identity
	if h.cfg.Login != nil {
		id, err := h.cfg.Login(ctx)
		if err != nil {
			h.cfg.Logger.Debug("iteration skipped after failed login", zap.Int("vu", vu), zap.Error(err))
			return
		}
		identity = id
	}

	req := h.request(identity)

	sentAt := h.cfg.Clock()
	resp, err := h.cfg.Client.Do(ctx, req)
	if err != nil && ctx.Err() != nil {
		// Interrupted by the end of the run; not a server outcome.
		return
	}

	outcome := classifier.Outcome{
		QueuedAt: queuedAt,
		SentAt:   sentAt,
		VU:       vu,
	}

	if err != nil {
		h.cfg.Logger.Debug("request failed", zap.Int("vu", vu), zap.Error(err))
		outcome.DurationMs = float64(h.cfg.Clock().Sub(sentAt)) / float64(time.Millisecond)
	} else {
		outcome.Status = resp.StatusCode
		outcome.BodyNonEmpty = len(resp.Body) > 0
		outcome.DurationMs = resp.DurationMs()
	}
	outcome.Timestamp = h.cfg.Clock()

	h.reqs.Inc()
	h.duration.Add(outcome.DurationMs)
	h.failed.Add(outcome.Status == 0 || outcome.Status >= 400)

	h.cfg.Classifier.Observe(outcome)
}

func (h *HTTPIteration) request(identity auth.Identity) *lchttp.Request {
	env := h.cfg.Environment

	userID := identity.UserID
	if userID == "" {
		userID = env.UserID
	}

	req := lchttp.NewRequest(h.cfg.Method, h.cfg.Endpoint).
		WithQueryParam("app_id", strconv.Itoa(env.AppID)).
		WithQueryParam("user_id", userID).
		WithQueryParam("language", env.Language)

	for k, v := range env.Headers {
		req.WithHeader(k, v)
	}
	req.WithHeader("Content-Type", h.cfg.Body.ContentType)
	req.WithHeader("Accept", "application/json")
	if identity.Token != "" {
		req.WithHeader("Authorization", "Bearer "+identity.Token)
	}

	if h.cfg.Method == http.MethodPost && h.cfg.Body.Data != "" {
		req.WithBody(h.cfg.Body.Data)
	}

	return req
}
