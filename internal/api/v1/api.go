// Package v1 implements the JSON API of APLOSE under /api/v1.
//
// Handlers translate HTTP requests into calls on the campaign, filerange,
// annotation, report and importer packages. Every mutation runs in the
// transaction of the service it calls; handlers only load the campaign
// context, bind input and render the outcome.
package v1

import (
	"io/fs"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/annotation"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/auth"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datasetimport"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/filerange"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/importer"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/report"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/tasks"
)

// Prefix is the mount point of the API.
const Prefix = "/api/v1"

// GetLogger returns the api/v1 module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api").Module("v1")
}

// Controller holds the dependencies of the API handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DB       *gorm.DB
	Settings *conf.Settings

	campaigns  *campaign.Service
	reconciler *filerange.Reconciler
	annotation *annotation.Service
	reports    *report.Aggregator
	importer   *importer.Importer
	datasets   *datasetimport.Importer

	authService    *auth.Service
	authMiddleware *auth.Middleware

	files       *campaign.FileCache
	datasetFS   fs.FS
	recorder    metrics.Recorder
	httpMetrics *metrics.HTTPMetrics
	publisher   events.Publisher
	logger      logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder sets the domain metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithHTTPMetrics sets the HTTP metrics used for authentication counters.
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) {
		c.httpMetrics = m
	}
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithFileCache shares a sorted file cache with other components.
func WithFileCache(fc *campaign.FileCache) Option {
	return func(c *Controller) {
		c.files = fc
	}
}

// WithDatasetFS sets the dataset bootstrap folder. It defaults to
// datasets.root of the settings.
func WithDatasetFS(fsys fs.FS) Option {
	return func(c *Controller) {
		c.datasetFS = fsys
	}
}

// WithAuthService replaces the auth service built from the settings.
func WithAuthService(svc *auth.Service) Option {
	return func(c *Controller) {
		c.authService = svc
	}
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, db *gorm.DB, settings *conf.Settings, opts ...Option) (*Controller, error) {
	if db == nil {
		return nil, errors.Newf("api: database is required").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		settings = &conf.Settings{}
	}

	c := &Controller{
		Echo:     e,
		DB:       db,
		Settings: settings,
		logger:   GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.files == nil {
		c.files = campaign.NewFileCache(settings.Cache.FileListTTL)
	}
	if c.datasetFS == nil && settings.Datasets.Root != "" {
		c.datasetFS = os.DirFS(settings.Datasets.Root)
	}
	if c.authService == nil {
		if settings.Security.JWTSecret == "" {
			return nil, errors.Newf("api: security.jwtsecret is required").
				Category(errors.CategoryConfiguration).
				Build()
		}
		var recorder auth.Recorder
		if c.httpMetrics != nil {
			recorder = c.httpMetrics
		}
		c.authService = auth.NewService(db,
			auth.NewTokenService(settings.Security.JWTSecret, settings.Security.TokenTTL),
			auth.NewLoginLimiter(settings.Security.LoginRateLimit),
			recorder)
	}
	c.authMiddleware = auth.NewMiddleware(c.authService)

	taskManager := tasks.NewManager(c.recorder)
	c.campaigns = campaign.NewService(db, c.files, c.publisher)
	c.reconciler = filerange.NewReconciler(taskManager, c.recorder, c.publisher)
	c.annotation = annotation.NewService(taskManager, c.recorder, c.publisher)
	c.reports = report.NewAggregator(db, c.recorder)
	c.importer = importer.NewImporter(taskManager, c.recorder, c.publisher)
	c.datasets = datasetimport.NewImporter(db, c.files, c.recorder)

	c.Group = e.Group(Prefix)
	c.initRoutes()

	return c, nil
}

// initRoutes registers every endpoint.
func (c *Controller) initRoutes() {
	authn := c.authMiddleware.Authenticate
	staff := auth.RequireStaff

	c.Group.POST("/auth/login", c.Login)

	c.Group.GET("/users", c.ListUsers, authn)
	c.Group.GET("/users/me", c.CurrentUser, authn)
	c.Group.POST("/users", c.CreateUser, authn, staff)

	c.Group.GET("/datasets", c.ListDatasets, authn)
	c.Group.POST("/datasets", c.ImportDatasets, authn, staff)
	c.Group.GET("/datasets/available", c.AvailableDatasets, authn, staff)
	c.Group.GET("/datasets/:id/files", c.ListDatasetFiles, authn)

	c.Group.GET("/label-sets", c.ListLabelSets, authn)
	c.Group.POST("/label-sets", c.CreateLabelSet, authn, staff)
	c.Group.GET("/confidence-sets", c.ListConfidenceSets, authn)
	c.Group.POST("/confidence-sets", c.CreateConfidenceSet, authn, staff)
	c.Group.GET("/detectors", c.ListDetectors, authn)

	c.Group.GET("/campaigns", c.ListCampaigns, authn)
	c.Group.POST("/campaigns", c.CreateCampaign, authn)
	c.Group.GET("/campaigns/:id", c.GetCampaign, authn)
	c.Group.POST("/campaigns/:id/archive", c.ArchiveCampaign, authn)
	c.Group.POST("/campaigns/:id/phases", c.CreatePhase, authn)
	c.Group.GET("/campaigns/:id/report", c.DownloadCampaignReport, authn)
	c.Group.GET("/campaigns/:id/report-status", c.DownloadCampaignReportStatus, authn)

	phase := c.Group.Group("/campaigns/:id/phases/:phase", authn)
	phase.POST("/end", c.EndPhase)
	phase.GET("/progress", c.PhaseProgress)
	phase.GET("/file-ranges", c.ListFileRanges)
	phase.POST("/file-ranges", c.ReconcileFileRanges)
	phase.PUT("/annotators/:uid/file-ranges", c.ReplaceAnnotatorFileRanges)
	phase.GET("/tasks", c.ListTasks)
	phase.GET("/files/:fid/results", c.GetFileResults)
	phase.PUT("/files/:fid/results", c.SubmitFileResults)
	phase.GET("/report", c.DownloadReport)
	phase.GET("/report-status", c.DownloadReportStatus)
	phase.POST("/import", c.ImportResults)
}

// currentUser returns the authenticated user of the request.
func currentUser(ctx echo.Context) *entities.User {
	return auth.UserFrom(ctx)
}

// pathID parses a numeric path parameter. Malformed IDs are not found.
func pathID(ctx echo.Context, name, resource string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 0)
	if err != nil || id == 0 {
		return 0, errors.NotFoundError(resource)
	}
	return uint(id), nil
}

// loadCampaign loads the campaign of the :id parameter and, when withPhase
// is set, the phase of the :phase parameter. Campaigns the user cannot see
// are not found.
func (c *Controller) loadCampaign(ctx echo.Context, withPhase bool) (*campaign.Context, error) {
	id, err := pathID(ctx, "id", "campaign")
	if err != nil {
		return nil, err
	}

	var phaseType entities.PhaseType
	if withPhase {
		var ok bool
		if phaseType, ok = entities.ParsePhaseType(ctx.Param("phase")); !ok {
			return nil, errors.NotFoundError("phase")
		}
	}

	reqCtx := ctx.Request().Context()
	cc, err := c.campaigns.Load(reqCtx, id, phaseType, currentUser(ctx))
	if err != nil {
		return nil, err
	}
	if err := c.campaigns.CheckView(reqCtx, cc); err != nil {
		return nil, err
	}
	return cc, nil
}

// bind decodes the request body into v.
func bind(ctx echo.Context, v any) error {
	if err := ctx.Bind(v); err != nil {
		return errors.Fields(errors.NonFieldKey, errors.CodeInvalid, "Malformed request body.")
	}
	return nil
}
