// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpplugin accepts messages over HTTP and answers each request with
// the agent's response.
package httpplugin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

const (
	ID = plugin.IDPrefix + "http"

	ActionReceive = "receive_message"
	ActionRespond = "send_response"

	DefaultAddr    = ":8080"
	DefaultTimeout = 60 * time.Second
)

// Plugin runs an HTTP server as its trigger. POST /message creates an event
// and holds the request open until send_response delivers the reply or the
// timeout expires.
type Plugin struct {
	plugin.Base

	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Plugin)

func WithAddr(addr string) Option {
	return func(p *Plugin) {
		if addr != "" {
			p.addr = addr
		}
	}
}

// WithTimeout bounds how long a request waits for its response.
func WithTimeout(d time.Duration) Option {
	return func(p *Plugin) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base:    plugin.NewBase(ID, "HTTP", "Receives messages over HTTP and replies to the waiting request"),
		addr:    DefaultAddr,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.AddExecutor(plugin.Executor{
		Name:        ActionRespond,
		Description: "Sends the most recent action result back to the waiting HTTP request",
		Fn:          p.respond,
	})
	p.AddTrigger(plugin.Trigger{ID: "server", Start: p.serve})
	return p
}

type messageRequest struct {
	User    string `json:"user" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Handler returns the routes served by the trigger.
func (p *Plugin) Handler(h plugin.Handle) http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.POST("/message", func(c *gin.Context) { p.handleMessage(c, h) })
	g.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return g
}

func (p *Plugin) serve(ctx context.Context, h plugin.Handle) error {
	srv := &http.Server{
		Addr:              p.addr,
		Handler:           p.Handler(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		p.logger.InfoContext(ctx, "plugin.http.listen", slog.String("addr", p.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (p *Plugin) handleMessage(c *gin.Context, h plugin.Handle) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	replies := make(chan any, 1)
	platform := &core.PlatformContext{
		Platform: ID,
		ResponseHandler: func(_ context.Context, response any) error {
			select {
			case replies <- response:
				return nil
			default:
				return errors.New("response already sent")
			}
		},
		Metadata: map[string]any{"remoteAddr": c.ClientIP()},
	}

	ctx := c.Request.Context()
	item := core.NewUserInput(ID, ActionReceive, req.User, req.Message)
	if err := h.CreateEvent(ctx, item, platform); err != nil {
		p.logger.WarnContext(ctx, "plugin.http.event.error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case reply := <-replies:
		c.JSON(http.StatusOK, gin.H{"message": reply})
	case <-timer.C:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "no response before timeout"})
	case <-ctx.Done():
	}
}

func (p *Plugin) respond(ctx context.Context, agentCtx *core.AgentContext) (plugin.Result, error) {
	if agentCtx.Platform == nil || agentCtx.Platform.ResponseHandler == nil {
		return plugin.Fail("platform %q cannot receive responses", agentCtx.PlatformName()), nil
	}
	chain := agentCtx.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Type != core.ItemTypeResult {
			continue
		}
		if err := agentCtx.Platform.ResponseHandler(ctx, chain[i].Content); err != nil {
			return plugin.Result{}, err
		}
		return plugin.OK(map[string]any{"sent": true, "message": chain[i].Content}), nil
	}
	return plugin.Fail("no result to send"), nil
}
