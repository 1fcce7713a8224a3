// Package pagespub is an admin panel that publishes posts to a static site
// hosted on GitHub Pages. The operator fills in a form, attaches a thumbnail
// and inline images, and the panel writes the post, its media and an updated
// homepage straight to the site's repository through the contents API.
//
// The GitHub token is held only in the operator's browser-session cookie and
// sent nowhere but to the API. Each publish attempt is recorded in a local
// SQLite journal so a partial failure can be inspected afterwards.
package pagespub

import (
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pagespub/contents"
	"github.com/eringen/pagespub/publish"
	"github.com/eringen/pagespub/views"
)

// ViewFuncs holds the templ components the panel renders. DefaultViews
// returns the built-in set; WithViews replaces it.
type ViewFuncs struct {
	Dashboard   func(d views.Dashboard) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// DefaultViews returns the built-in admin views.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Dashboard:   views.DashboardPage,
		NotFound:    views.NotFoundPage,
		ServerError: views.ServerErrorPage,
	}
}

// App wires together the config, journal, handlers and middleware.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Journal *Journal
	Views   ViewFuncs

	tokenLimiter *TokenLimiter
	publishing   sync.Mutex
	template     string
	customRoutes []func(*App)
	initialized  bool
}

// Option configures additional App behavior.
type Option func(*App)

// WithViews replaces the built-in views.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// WithJournal uses an already opened journal instead of Config.JournalPath.
func WithJournal(j *Journal) Option {
	return func(a *App) {
		a.Journal = j
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// New creates an App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  DefaultViews(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the journal, loads the post template and installs middleware
// and routes. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if err := a.Config.ValidateServe(); err != nil {
		return fmt.Errorf("pagespub: invalid config: %w", err)
	}

	tpl, err := a.Config.LoadTemplate()
	if err != nil {
		return fmt.Errorf("pagespub: %w", err)
	}
	a.template = tpl

	if a.Journal == nil && a.Config.JournalEnabled() {
		j, err := OpenJournal(a.Config.JournalPath)
		if err != nil {
			return fmt.Errorf("pagespub: init journal: %w", err)
		}
		a.Journal = j
	}

	a.tokenLimiter = NewTokenLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

// Start initializes the app and serves until the server stops.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Echo.Logger.Infof("admin panel on %s (repository %s/%s, branch %s)", a.Config.Addr, a.Config.Owner, a.Config.Repo, a.Config.Branch)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/admin/assets/*", echo.WrapHandler(http.StripPrefix("/admin/assets/", http.FileServer(http.FS(assets)))))

	e.GET("/", handleRootRedirect)
	e.GET("/admin/", a.handleDashboard)
	e.POST("/admin/token/", a.handleToken)
	e.POST("/admin/logout/", handleLogout)
	e.POST("/admin/format/", handleFormat)
	e.POST("/admin/preview/", a.handlePreview)
	e.POST("/admin/publish/", a.handlePublish)
	e.GET("/admin/history/:id/", a.handleHistoryEntry)
}

// Close releases the journal and stops the limiter.
func (a *App) Close() error {
	if a.tokenLimiter != nil {
		a.tokenLimiter.Stop()
	}
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

// pipeline builds a publish pipeline for one request.
func (a *App) pipeline(c echo.Context, form publishForm, token string) *publish.Pipeline {
	client := contents.New(form.Owner, form.Repo, contents.NewSession(token),
		contents.WithBaseURL(a.Config.APIBaseURL),
		contents.WithHTTPClient(a.Config.HTTPClient()),
	)
	logger := c.Logger()
	opts := []publish.Option{
		publish.WithBranch(form.Branch),
		publish.WithTemplate(a.template),
		publish.WithLogger(logger),
		publish.WithThumbnailMaxWidth(a.Config.ThumbnailMaxWidth),
		publish.WithProgress(func(p publish.Progress) {
			logger.Infof("publish %s/%s: %s %s", form.Owner, form.Repo, p.Step, p.Path)
		}),
	}
	if a.Journal != nil {
		opts = append(opts, publish.WithJournal(a.Journal.For(form.Owner, form.Repo)))
	}
	return publish.New(client, opts...)
}
