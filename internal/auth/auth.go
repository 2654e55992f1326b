// Package auth performs the form login that yields the bearer token used
// by load test requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadcheck/internal/config"
	lchttp "github.com/wesleyorama2/loadcheck/internal/http"
)

// ErrLoginFailed is returned when no attempt produced a token.
var ErrLoginFailed = errors.New("login failed")

const (
	defaultAttempts = 2
	defaultDelay    = 500 * time.Millisecond
)

// Identity is the result of a successful login.
type Identity struct {
	Token  string
	UserID string
}

// Doer executes requests. *http.Client from internal/http satisfies it.
type Doer interface {
	Do(ctx context.Context, req *lchttp.Request) (*lchttp.Response, error)
}

// Authenticator logs in against one environment.
type Authenticator struct {
	client   Doer
	env      config.Environment
	email    string
	password string
	attempts uint64
	delay    time.Duration
	logger   *zap.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithAttempts sets the total number of login attempts.
func WithAttempts(n uint64) Option {
	return func(a *Authenticator) {
		a.attempts = max(n, 1)
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Authenticator) {
		a.delay = d
	}
}

// New creates an Authenticator.
func New(client Doer, env config.Environment, email, password string, logger *zap.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		client:   client,
		env:      env,
		email:    email,
		password: password,
		attempts: defaultAttempts,
		delay:    defaultDelay,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login posts the credentials and returns the token and user id from the
// response. It retries until the attempt budget is spent.
func (a *Authenticator) Login(ctx context.Context) (Identity, error) {
	var (
		identity Identity
		attempt  int
	)

	operation := func() error {
		attempt++
		id, err := a.loginOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		identity = id
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.delay), a.attempts-1),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		a.logger.Warn("login attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		a.logger.Error("login failed",
			zap.Int("attempts", attempt),
			zap.String("url", a.env.LoginURL()),
			zap.Error(err))
		return Identity{}, fmt.Errorf("%w after %d attempt(s): %v", ErrLoginFailed, attempt, err)
	}

	a.logger.Info("login successful", zap.String("user_id", identity.UserID))
	return identity, nil
}

func (a *Authenticator) loginOnce(ctx context.Context) (Identity, error) {
	form := url.Values{}
	form.Set("email", a.email)
	form.Set("password", a.password)

	req := lchttp.NewRequest(http.MethodPost, a.env.LoginURL()).
		WithHeader("Content-Type", config.PayloadForm).
		WithHeader("Accept", "application/json").
		WithQueryParam("app_id", strconv.Itoa(a.env.AppID)).
		WithQueryParam("language", a.env.Language).
		WithBody(form.Encode())

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return Identity{}, err
	}

	if resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
		return Identity{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body := resp.JSON()
	return Identity{
		Token:  body.Get("access_token").String(),
		UserID: body.Get("data.id").String(),
	}, nil
}
