package app

import (
	"context"
	"io"

	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/infra/config"
	"github.com/kkdl-dev/kkdl/internal/infra/logger"
	"github.com/kkdl-dev/kkdl/internal/platform"
)

// Selector chooses a subset of courses, however the user is asked.
type Selector interface {
	Select(ctx context.Context, courses []domain.CourseSummary) ([]domain.CourseSummary, error)
}

// Context holds the configuration and shared resources of one invocation.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Selector Selector
	// Progress receives the live download line; nil when disabled.
	Progress io.Writer
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger, sel Selector) *Context {
	return &Context{
		Config:   cfg,
		Logger:   log,
		Selector: sel,
	}
}

// Credentials returns the configured authentication material.
func (c *Context) Credentials() platform.Credentials {
	return platform.Credentials{CookieFile: c.Config.Auth.Cookie, Token: c.Config.Auth.Token}
}

// Client builds a platform client. Empty credentials yield an anonymous session.
func (c *Context) Client(creds platform.Credentials) (*platform.Client, error) {
	api := c.Config.API

	session := platform.AnonymousSession(api.UserAgent, api.Referer)
	if creds != (platform.Credentials{}) {
		var err error
		if session, err = platform.NewSession(creds, api.UserAgent, api.Referer); err != nil {
			return nil, err
		}
	}

	return platform.New(session, platform.Options{
		BaseURL:         api.BaseURL,
		QuizURL:         api.QuizURL,
		PageSize:        api.PageSize,
		Timeout:         c.Config.HTTP.Timeout,
		DownloadTimeout: c.Config.Download.Timeout,
	}, c.Logger), nil
}

// Close releases the log file, if any.
func (c *Context) Close() error {
	return c.Logger.Close()
}
