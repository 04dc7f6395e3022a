package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ssl-expiry-checker/checker"
	"ssl-expiry-checker/utils"
)

type domainView struct {
	Domain   string     `json:"domain"`
	Expires  *time.Time `json:"expires,omitempty"`
	DaysLeft *int       `json:"days_left,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type criticalView struct {
	Domain   string `json:"domain"`
	DaysLeft int    `json:"days_left"`
}

type reportView struct {
	CheckedAt time.Time      `json:"checked_at"`
	Domains   []domainView   `json:"domains"`
	Critical  []criticalView `json:"critical"`
	Notified  bool           `json:"notified"`
}

// Server exposes the latest run over HTTP.
type Server struct {
	logger *logrus.Entry

	mu   sync.RWMutex
	last *checker.Report
}

func New(logger *logrus.Entry) *Server {
	return &Server{logger: logger}
}

// SetReport replaces the report served at "/".
func (s *Server) SetReport(r checker.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.showReport)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) showReport(c *gin.Context) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run completed yet"})
		return
	}

	view := reportView{
		CheckedAt: last.CheckedAt,
		Domains:   make([]domainView, 0, len(last.Results)),
		Critical:  make([]criticalView, 0, len(last.Critical)),
		Notified:  last.Sent,
	}
	for _, r := range last.Results {
		dv := domainView{Domain: r.Domain, Expires: r.Expiration, DaysLeft: r.DaysRemaining}
		if r.Err != nil {
			dv.Error = utils.Reason(r.Err)
		}
		view.Domains = append(view.Domains, dv)
	}
	for _, cd := range last.Critical {
		view.Critical = append(view.Critical, criticalView{Domain: cd.Domain, DaysLeft: cd.DaysRemaining})
	}
	c.JSON(http.StatusOK, view)
}

// Scrape calls run immediately and then on every tick of interval until ctx
// is done, publishing each report.
func (s *Server) Scrape(ctx context.Context, interval time.Duration, run func(context.Context) checker.Report) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.SetReport(run(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("starting exporter")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
