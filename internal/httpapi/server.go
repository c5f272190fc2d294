// Package httpapi exposes the catalog, the session and the simulation clock
// as a JSON API over gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/catalog"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/nbi"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
	"github.com/signalsfoundry/orbital-guard/internal/session"
	"github.com/signalsfoundry/orbital-guard/internal/storage"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
	"github.com/signalsfoundry/orbital-guard/timectrl"
)

// MaxPathSegments caps the orbit-path samples parameter.
const MaxPathSegments = 5000

// Predictor answers one-shot hazard queries.
type Predictor interface {
	Predict(ctx context.Context, req nbi.PredictRequest) ([]model.HazardRecord, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	session   *session.Session
	predictor Predictor
	collector *observability.APICollector
	metrics   http.Handler
	origins   []string
	log       logging.Logger
}

// Option customises Server construction.
type Option func(*Server)

// WithPredictor overrides the one-shot hazard predictor.
func WithPredictor(p Predictor) Option {
	return func(s *Server) {
		if p != nil {
			s.predictor = p
		}
	}
}

// WithCollector records request metrics.
func WithCollector(c *observability.APICollector) Option {
	return func(s *Server) { s.collector = c }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCORSOrigins sets the allowed browser origins. Empty allows all.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New constructs a Server over sess.
func New(sess *session.Session, opts ...Option) *Server {
	s := &Server{session: sess, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.predictor == nil {
		s.predictor = nbi.NewHazardService(sess.Catalog(), core.NewEvaluator(sess.Thresholds()), sess.Clock(), s.log)
	}
	s.log = logging.Component(s.log, "httpapi")
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.collector != nil {
		r.Use(s.collector.GinMiddleware())
	}
	r.Use(cors.New(s.corsConfig()))

	r.GET("/healthz", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/satellites", s.listKind(model.KindSatellite))
		api.GET("/debris", s.listKind(model.KindDebris))
		api.GET("/objects/:key", s.getObject)
		api.GET("/objects/:key/orbit-path", s.getOrbitPath)
		api.GET("/objects/:key/similar", s.getSimilar)
		api.GET("/objects/:key/maneuver", s.getManeuver)
		api.GET("/positions", s.getPositions)
		api.POST("/predict-hazard", s.predictHazard)

		api.PUT("/focus", s.putFocus)
		api.DELETE("/focus", s.deleteFocus)
		api.GET("/hazards", s.getHazards)
		api.GET("/conjunctions", s.getConjunctions)

		api.GET("/clock", s.getClock)
		api.POST("/clock/toggle", s.toggleClock)
		api.POST("/clock/play", s.playClock)
		api.POST("/clock/pause", s.pauseClock)
		api.PUT("/clock/time", s.putClockTime)
		api.PUT("/clock/scale", s.putClockScale)
	}
	return r
}

// HTTPServer wraps the router in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-Request-Id"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader("X-Request-Id"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, s.log)
		ctx = logging.ContextWithLogger(ctx, reqLog)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", logging.RequestIDFromContext(ctx))

		start := time.Now()
		c.Next()
		reqLog.Debug(ctx, "request handled",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"objects": s.session.Catalog().Snapshot().Len(),
		"clock":   s.session.Clock().State().String(),
	})
}

func (s *Server) listKind(kind model.ObjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.FromModels(s.session.Catalog().ByKind(kind)))
	}
}

func (s *Server) lookup(c *gin.Context) (model.TrackedObject, bool) {
	obj, err := s.session.Catalog().FindByName(c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return model.TrackedObject{}, false
	}
	return obj, true
}

func (s *Server) getObject(c *gin.Context) {
	obj, ok := s.lookup(c)
	if !ok {
		return
	}
	at, ok := s.timeParam(c)
	if !ok {
		return
	}
	info, err := core.DescribeObject(obj, at)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getOrbitPath(c *gin.Context) {
	obj, ok := s.lookup(c)
	if !ok {
		return
	}
	segments := core.DefaultPathSegments
	if raw := c.Query("samples"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxPathSegments {
			c.JSON(http.StatusBadRequest, gin.H{"error": "samples must be an integer in [1, " + strconv.Itoa(MaxPathSegments) + "]"})
			return
		}
		segments = n
	}
	at, ok := s.timeParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":    obj.Key(),
		"time":   at,
		"points": core.OrbitPath(obj, at, segments),
	})
}

func (s *Server) getSimilar(c *gin.Context) {
	similar, err := s.session.SimilarOrbits(c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, catalog.FromModels(similar))
}

func (s *Server) getManeuver(c *gin.Context) {
	m, err := s.session.ManeuverFor(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) getPositions(c *gin.Context) {
	category := model.ParseCategory(c.Query("category"))
	if raw := c.Query("time"); raw != "" {
		at, ok := s.timeParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"time": at, "positions": s.session.PositionsAt(at, category)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"time": s.session.Clock().Now(), "positions": s.session.Positions(category)})
}

func (s *Server) predictHazard(c *gin.Context) {
	var req nbi.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	hazards, err := s.predictor.Predict(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hazards)
}

type focusRequest struct {
	Key string `json:"key" binding:"required"`
}

func (s *Server) putFocus(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	obj, err := s.session.Select(req.Key)
	if err != nil {
		s.fail(c, err)
		return
	}
	// Publish hazards for the new focus without waiting for the next tick.
	_ = s.session.RefreshHazards(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"key": obj.Key(), "name": obj.DisplayName()})
}

func (s *Server) deleteFocus(c *gin.Context) {
	s.session.Deselect()
	c.Status(http.StatusNoContent)
}

func (s *Server) getHazards(c *gin.Context) {
	st, ok := s.session.HazardState()
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"focus":   nil,
			"hazards": []model.HazardRecord{},
			"summary": model.Summarize(nil),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"focus":   st.FocusKey,
		"simTime": st.SimTime,
		"hazards": st.Hazards,
		"summary": model.Summarize(st.Hazards),
	})
}

func (s *Server) getConjunctions(c *gin.Context) {
	q := storage.Query{FocusKey: c.Query("focus")}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		q.Limit = n
	}
	events, err := s.session.Conjunctions(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type clockView struct {
	Time       time.Time `json:"time"`
	State      string    `json:"state"`
	Scale      float64   `json:"scale"`
	Ticks      uint64    `json:"ticks"`
	Generation uint64    `json:"generation"`
	Horizon    string    `json:"horizon"`
}

func (s *Server) clockView() clockView {
	clock := s.session.Clock()
	horizon := "unbounded"
	if h := clock.Horizon(); h > 0 {
		horizon = h.String()
	}
	return clockView{
		Time:       clock.Now(),
		State:      clock.State().String(),
		Scale:      clock.Scale(),
		Ticks:      clock.Ticks(),
		Generation: clock.Generation(),
		Horizon:    horizon,
	}
}

func (s *Server) getClock(c *gin.Context) { c.JSON(http.StatusOK, s.clockView()) }

func (s *Server) toggleClock(c *gin.Context) {
	s.session.Clock().Toggle()
	c.JSON(http.StatusOK, s.clockView())
}

func (s *Server) playClock(c *gin.Context) {
	s.session.Clock().Play()
	c.JSON(http.StatusOK, s.clockView())
}

func (s *Server) pauseClock(c *gin.Context) {
	s.session.Clock().Pause()
	c.JSON(http.StatusOK, s.clockView())
}

func (s *Server) putClockTime(c *gin.Context) {
	var req struct {
		Time time.Time `json:"time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.session.Clock().SetTime(req.Time); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.clockView())
}

func (s *Server) putClockScale(c *gin.Context) {
	var req struct {
		Scale float64 `json:"scale" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.session.Clock().SetScale(req.Scale); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.clockView())
}

// timeParam reads the optional ?time= query parameter, defaulting to the
// current simulation time.
func (s *Server) timeParam(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("time"))
	if raw == "" {
		return s.session.Clock().Now(), true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time must be RFC 3339"})
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), s.log).Error(c.Request.Context(), "request failed", logging.Err(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, kb.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, nbi.ErrInvalidRequest),
		errors.Is(err, model.ErrInvalidElements),
		errors.Is(err, core.ErrNonFinite),
		errors.Is(err, timectrl.ErrOutsideHorizon),
		errors.Is(err, timectrl.ErrInvalidScale),
		errors.Is(err, session.ErrNoFocus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
