// Package server - HTTP-пульт агента: включение, остановка, статус,
// выученные ответы и вопросы без ответа.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"jobAgent/internal/agent"
	"jobAgent/internal/database"
	"jobAgent/internal/logger"
	"jobAgent/internal/profile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const recentLimit = 20

// Deps - хранилища, которыми управляет пульт. Applications может быть nil.
type Deps struct {
	Governor     *agent.Governor
	Learning     *agent.LearningStore
	Questions    *agent.QuestionLog
	Profiles     *profile.Store
	Applications *database.ApplicationRepository
}

type Server struct {
	addr string
	log  *logger.Zap
	deps Deps
	now  func() time.Time
}

func New(addr string, log *logger.Zap, deps Deps) *Server {
	return &Server{addr: addr, log: log, deps: deps, now: time.Now}
}

// Handler собирает маршруты. Вынесен отдельно для тестов.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Next()
		s.log.Debug("HTTP",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/agent/start", s.start)
	api.POST("/agent/stop", s.stop)
	api.GET("/agent/status", s.status)

	api.GET("/profile", s.getProfile)
	api.PUT("/profile", s.putProfile)

	api.GET("/learned", s.listLearned)
	api.PUT("/learned", s.setLearned)
	api.DELETE("/learned", s.forgetLearned)

	api.GET("/questions", s.listQuestions)
	return r
}

// Run слушает addr до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Пульт запущен", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("Пульт остановлен")
	return nil
}

func (s *Server) start(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := s.deps.Profiles.Load(ctx); err != nil {
		if errors.Is(err, profile.ErrNoProfile) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, "ошибка чтения профиля", err)
		return
	}
	if err := s.deps.Governor.SetActive(ctx, true); err != nil {
		s.internalError(c, "ошибка включения агента", err)
		return
	}
	s.log.Info("Агент включен через пульт")
	c.JSON(http.StatusOK, gin.H{"active": true})
}

func (s *Server) stop(c *gin.Context) {
	if err := s.deps.Governor.SetActive(c.Request.Context(), false); err != nil {
		s.internalError(c, "ошибка остановки агента", err)
		return
	}
	s.log.Info("Агент остановлен через пульт")
	c.JSON(http.StatusOK, gin.H{"active": false})
}

type applicationView struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type statusView struct {
	Active   bool              `json:"active"`
	Applied  int               `json:"applied_today"`
	MaxJobs  int               `json:"max_jobs"`
	Outcomes map[string]int64  `json:"outcomes_today"`
	Recent   []applicationView `json:"recent"`
}

func (s *Server) status(c *gin.Context) {
	ctx := c.Request.Context()
	var view statusView
	var err error

	if view.Active, err = s.deps.Governor.Active(ctx); err != nil {
		s.internalError(c, "ошибка чтения статуса", err)
		return
	}
	if view.Applied, err = s.deps.Governor.Count(ctx); err != nil {
		s.internalError(c, "ошибка чтения счетчика", err)
		return
	}
	if p, err := s.deps.Profiles.Load(ctx); err == nil {
		view.MaxJobs = p.MaxJobs()
	}

	view.Outcomes = map[string]int64{}
	view.Recent = []applicationView{}
	if s.deps.Applications != nil {
		now := s.now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if view.Outcomes, err = s.deps.Applications.OutcomeCounts(ctx, midnight); err != nil {
			s.internalError(c, "ошибка чтения журнала", err)
			return
		}
		apps, err := s.deps.Applications.Recent(ctx, recentLimit)
		if err != nil {
			s.internalError(c, "ошибка чтения журнала", err)
			return
		}
		for _, a := range apps {
			view.Recent = append(view.Recent, applicationView{
				JobID:     a.JobID,
				Title:     a.Title,
				Company:   a.Company,
				Outcome:   a.Outcome,
				Reason:    a.Reason,
				CreatedAt: a.CreatedAt,
			})
		}
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.deps.Profiles.Load(c.Request.Context())
	if errors.Is(err, profile.ErrNoProfile) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.internalError(c, "ошибка чтения профиля", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) putProfile(c *gin.Context) {
	var p profile.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := profile.Validate(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Profiles.Save(c.Request.Context(), &p); err != nil {
		s.internalError(c, "ошибка сохранения профиля", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (s *Server) listLearned(c *gin.Context) {
	all, err := s.deps.Learning.All(c.Request.Context())
	if err != nil {
		s.internalError(c, "ошибка чтения выученных ответов", err)
		return
	}
	c.JSON(http.StatusOK, all)
}

type learnedRequest struct {
	Label string `json:"label" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// setLearned сохраняет ответ оператора и снимает вопрос из списка без ответа.
func (s *Server) setLearned(c *gin.Context) {
	var req learnedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := s.deps.Learning.Set(ctx, req.Label, req.Value); err != nil {
		s.internalError(c, "ошибка сохранения ответа", err)
		return
	}
	if err := s.deps.Questions.Resolve(ctx, req.Label); err != nil {
		s.log.Warn("Вопрос не снят из списка", zap.String("label", req.Label), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"label": agent.NormalizeLabel(req.Label), "value": req.Value})
}

func (s *Server) forgetLearned(c *gin.Context) {
	label := c.Query("label")
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}
	removed, err := s.deps.Learning.Forget(c.Request.Context(), label)
	if err != nil {
		s.internalError(c, "ошибка удаления ответа", err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listQuestions(c *gin.Context) {
	qs, err := s.deps.Questions.List(c.Request.Context())
	if err != nil {
		s.internalError(c, "ошибка чтения вопросов", err)
		return
	}
	if qs == nil {
		qs = []agent.Question{}
	}
	c.JSON(http.StatusOK, qs)
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.log.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
