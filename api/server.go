// Package api is the slideshow control web server
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aouyang1/photoslideshow/api/models"
	"github.com/aouyang1/photoslideshow/api/web/templates"
	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/settings"
	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/aouyang1/photoslideshow/store"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type WebServer struct {
	router *gin.Engine
	db     *store.Database
	player *slideshow.Player
	power  display.Power

	started time.Time

	mu       sync.RWMutex
	settings *settings.Settings
}

func NewWebServer(db *store.Database, player *slideshow.Player, power display.Power, s *settings.Settings) *WebServer {
	router := gin.Default()

	ws := &WebServer{
		router:   router,
		db:       db,
		player:   player,
		power:    power,
		started:  time.Now(),
		settings: s,
	}

	ws.setupRoutes(s.Server.RateLimit)
	return ws
}

func (ws *WebServer) setupRoutes(ratePerSecond float64) {
	ws.router.GET("/", ws.handleIndex)
	ws.router.GET("/status", ws.handleStatus)
	ws.router.GET("/images", ws.handleListImages)
	ws.router.GET("/images/:index/image", ws.handleImage)
	ws.router.GET("/settings", ws.handleGetSettings)
	ws.router.GET("/display", ws.handleGetDisplay)

	control := ws.router.Group("/", rateLimit(ratePerSecond))
	control.POST("/slideshow/:action", ws.handleAction)
	control.POST("/slideshow/play/:index", ws.handlePlay)
	control.PUT("/display/:state", ws.handleUpdateDisplay)
	control.PUT("/settings/caption/:state", ws.handleUpdateCaption)
}

// rateLimit rejects control requests beyond ratePerSecond with 429. Zero
// disables the limit.
func rateLimit(ratePerSecond float64) gin.HandlerFunc {
	if ratePerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(ratePerSecond), max(1, int(ratePerSecond)))
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

// SetSettings swaps the settings reported by the server after a reload.
func (ws *WebServer) SetSettings(s *settings.Settings) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.settings = s
}

func (ws *WebServer) currentSettings() *settings.Settings {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.settings
}

func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to start web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

func (ws *WebServer) handleIndex(c *gin.Context) {
	page := templates.StatusPage(ws.player.Status(), ws.currentSettings(), ws.started)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render status page", "error", err)
	}
}

func (ws *WebServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{
		Status: ws.player.Status(),
		Uptime: humanize.Time(ws.started),
	})
}

func (ws *WebServer) handleAction(c *gin.Context) {
	action, err := slideshow.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := ws.player.Do(action); err != nil {
		ws.controlError(c, err)
		return
	}
	slog.Info("slideshow action", "action", action, "remote", c.ClientIP())
	c.JSON(http.StatusOK, models.ActionResponse{Action: string(action), Status: ws.player.Status()})
}

func (ws *WebServer) handlePlay(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "index must be an integer"})
		return
	}

	if err := ws.player.Play(index); err != nil {
		ws.controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ActionResponse{Action: "play", Status: ws.player.Status()})
}

func (ws *WebServer) controlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, slideshow.ErrIndexOutOfRange):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, slideshow.ErrNotRunning), errors.Is(err, slideshow.ErrBusy), errors.Is(err, slideshow.ErrCaptionToggleUnavailable):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}
}

func (ws *WebServer) handleListImages(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid page parameter"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 || limit > maxPageLimit {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("limit must be within 1..%d", maxPageLimit)})
		return
	}

	images, err := ws.db.GetImages(limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to fetch images: %v", err)})
		return
	}
	total, err := ws.db.GetImageCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to count images: %v", err)})
		return
	}

	if images == nil {
		images = []store.Image{}
	}
	c.JSON(http.StatusOK, models.ImageListResponse{
		Images: images,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

func (ws *WebServer) handleImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "index must be an integer"})
		return
	}

	img, err := ws.db.GetImage(index)
	if errors.Is(err, store.ErrImageNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	if _, err := os.Stat(img.Path); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Image file not found: %s", img.Path)})
		return
	}
	c.File(img.Path)
}

func (ws *WebServer) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, ws.currentSettings())
}

func (ws *WebServer) handleGetDisplay(c *gin.Context) {
	enabled, err := ws.power.Enabled()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to get display state: %v", err)})
		return
	}

	c.JSON(http.StatusOK, models.DisplayStateResponse{Enabled: enabled})
}

func (ws *WebServer) handleUpdateDisplay(c *gin.Context) {
	state := c.Param("state")
	if state != "0" && state != "1" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "state must be 0 (off) or 1 (on)"})
		return
	}

	desiredEnabled := state == "1"
	if err := ws.power.SetEnabled(desiredEnabled); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update display state: %v", err)})
		return
	}

	// Re-read state to reflect actual output if possible.
	enabled, err := ws.power.Enabled()
	if err != nil {
		slog.Warn("failed to re-read display state after update", "error", err)
		enabled = desiredEnabled
	}

	c.JSON(http.StatusOK, models.DisplayStateResponse{Enabled: enabled})
}

// handleUpdateCaption persists show_caption to the active settings file. The
// settings watcher then restarts the slideshow with the new value.
func (ws *WebServer) handleUpdateCaption(c *gin.Context) {
	state := c.Param("state")
	if state != "0" && state != "1" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "state must be 0 (off) or 1 (on)"})
		return
	}

	path := ws.currentSettings().Source()
	if path == "" {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "settings were not loaded from a file"})
		return
	}

	show := state == "1"
	if err := settings.SetShowCaption(path, show); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update settings: %v", err)})
		return
	}
	slog.Info("caption setting changed", "show_caption", show, "path", path, "remote", c.ClientIP())
	c.JSON(http.StatusOK, models.CaptionStateResponse{ShowCaption: show, Path: path})
}
