package pagespub

import (
	"crypto/sha256"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const sessionName = "pagespub_session"

// Session keys.
const (
	keyToken    = "token"
	keyOwner    = "owner"
	keyRepo     = "repo"
	keyBranch   = "branch"
	keyAuthor   = "author"
	keyCategory = "category"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:; connect-src 'self'; frame-src 'self' blob:",
		HSTSMaxAge:            31536000,
	}))

	e.Use(middleware.BodyLimit(bodyLimit(a.Config)))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteStrictMode,
		CookieSecure:   a.Config.CookieSecure,
		CookieHTTPOnly: true,
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(noStoreMiddleware)
}

// bodyLimit allows a thumbnail plus a handful of images at the per-file limit.
func bodyLimit(cfg Config) string {
	return strconv.Itoa(cfg.MaxUploadMB*(maxImagesPerPost+2)) + "M"
}

// noStoreMiddleware keeps the panel, which renders the token state and form
// values, out of every cache.
func noStoreMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.HasPrefix(c.Request().URL.Path, "/admin/assets/") {
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		} else {
			c.Response().Header().Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

// newSessionStore derives separate signing and encryption keys from the
// session secret, so the token is never readable in the cookie.
// MaxAge 0 makes it a browser-session cookie.
func (a *App) newSessionStore() *sessions.CookieStore {
	hashKey := sha256.Sum256([]byte("pagespub-hash:" + a.Config.SessionSecret))
	blockKey := sha256.Sum256([]byte("pagespub-block:" + a.Config.SessionSecret))
	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   0,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

func getSession(c echo.Context) (*sessions.Session, error) {
	return session.Get(sessionName, c)
}

// SessionToken returns the GitHub token stored in the current session.
func SessionToken(c echo.Context) string {
	sess, err := getSession(c)
	if err != nil {
		return ""
	}
	tok, _ := sess.Values[keyToken].(string)
	return tok
}

// HasToken reports whether the current session holds a token.
func HasToken(c echo.Context) bool {
	return SessionToken(c) != ""
}

func setSessionToken(c echo.Context, token string) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.Values[keyToken] = token
	return sess.Save(c.Request(), c.Response())
}

// saveFormValues remembers the non-secret form fields for the next visit.
func saveFormValues(c echo.Context, f publishForm) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.Values[keyOwner] = f.Owner
	sess.Values[keyRepo] = f.Repo
	sess.Values[keyBranch] = f.Branch
	sess.Values[keyAuthor] = f.Author
	sess.Values[keyCategory] = f.Category
	return sess.Save(c.Request(), c.Response())
}

// loadFormValues returns the remembered form fields, falling back to cfg.
func loadFormValues(c echo.Context, cfg Config) publishForm {
	f := publishForm{Owner: cfg.Owner, Repo: cfg.Repo, Branch: cfg.Branch}
	sess, err := getSession(c)
	if err != nil {
		return f
	}
	str := func(key string) string {
		v, _ := sess.Values[key].(string)
		return v
	}
	f.Owner = firstNonEmpty(str(keyOwner), f.Owner)
	f.Repo = firstNonEmpty(str(keyRepo), f.Repo)
	f.Branch = firstNonEmpty(str(keyBranch), f.Branch)
	f.Author = str(keyAuthor)
	f.Category = str(keyCategory)
	return f
}

func clearSession(c echo.Context) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
