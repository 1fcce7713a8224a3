package pagespub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagespub/contents"
	"github.com/eringen/pagespub/format"
	"github.com/eringen/pagespub/publish"
	"github.com/eringen/pagespub/views"
)

const historySize = 20

// Operator-facing messages.
const (
	msgTokenStored   = "Token stored for this session."
	msgTokenEmpty    = "Please enter a GitHub token."
	msgTokenCleared  = "Token cleared."
	msgTokenRequired = "Please enter your GitHub token."
	msgBusy          = "a publish is already in progress"
)

func (a *App) handleDashboard(c echo.Context) error {
	return a.renderDashboard(c, http.StatusOK, views.Message{Text: c.QueryParam("msg")})
}

func (a *App) handleToken(c echo.Context) error {
	if !a.tokenLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many token attempts. Try again later.")
	}
	token := strings.TrimSpace(c.FormValue("token"))
	if token == "" {
		return redirectWithMessage(c, msgTokenEmpty)
	}
	if err := setSessionToken(c, token); err != nil {
		return err
	}
	return redirectWithMessage(c, msgTokenStored)
}

func handleLogout(c echo.Context) error {
	if err := clearSession(c); err != nil {
		return err
	}
	return redirectWithMessage(c, msgTokenCleared)
}

// handleFormat converts the posted plain text into editor HTML.
func handleFormat(c echo.Context) error {
	text := c.FormValue("text")
	if strings.TrimSpace(text) == "" {
		return c.String(http.StatusBadRequest, "Nothing to format.")
	}
	return c.HTML(http.StatusOK, format.PlainTextToHTML(text))
}

// handlePreview renders the post page locally from the form's content.
func (a *App) handlePreview(c echo.Context) error {
	form := bindPublishForm(c, a.Config)
	p := publish.New(nil, publish.WithTemplate(a.template))
	return c.HTML(http.StatusOK, p.Preview(form.request()))
}

func (a *App) handlePublish(c echo.Context) error {
	if !a.publishing.TryLock() {
		return a.renderDashboard(c, http.StatusConflict, failure(msgBusy))
	}
	defer a.publishing.Unlock()

	form := bindPublishForm(c, a.Config)
	if err := saveFormValues(c, form); err != nil {
		c.Logger().Errorf("session save: %v", err)
	}

	token := SessionToken(c)
	if token == "" {
		return a.renderDashboard(c, http.StatusUnauthorized, failure(msgTokenRequired))
	}
	if err := form.Validate(); err != nil {
		return a.renderDashboard(c, http.StatusBadRequest, failure(err.Error()))
	}

	thumb, images, err := readAssets(c, a.Config.MaxUploadBytes())
	if err != nil {
		return a.renderDashboard(c, http.StatusBadRequest, failure(err.Error()))
	}
	req := form.request()
	req.Thumbnail = thumb
	req.Images = images

	// A started publish runs to completion even if the browser goes away.
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := a.pipeline(c, form, token).Publish(ctx, req)
	if err != nil {
		return a.renderDashboard(c, publishStatus(err), failure(err.Error()))
	}
	return a.renderDashboard(c, http.StatusOK, views.Message{Text: "✅ Published " + res.PostPath})
}

// handleHistoryEntry returns one journal entry as JSON.
func (a *App) handleHistoryEntry(c echo.Context) error {
	if a.Journal == nil {
		return echo.ErrNotFound
	}
	e, err := a.Journal.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	return c.JSON(http.StatusOK, historyJSON(e))
}

type historyEntry struct {
	ID         string   `json:"id"`
	Owner      string   `json:"owner"`
	Repo       string   `json:"repo"`
	Branch     string   `json:"branch"`
	Number     int      `json:"number,omitempty"`
	PostPath   string   `json:"post_path,omitempty"`
	Status     string   `json:"status"`
	FailedStep string   `json:"failed_step,omitempty"`
	Error      string   `json:"error,omitempty"`
	Files      []string `json:"files"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at"`
}

func historyJSON(e JournalEntry) historyEntry {
	files := e.Files
	if files == nil {
		files = []string{}
	}
	return historyEntry{
		ID:         e.ID,
		Owner:      e.Owner,
		Repo:       e.Repo,
		Branch:     e.Branch,
		Number:     e.Number,
		PostPath:   e.PostPath,
		Status:     e.Status,
		FailedStep: string(e.FailedStep),
		Error:      e.Error,
		Files:      files,
		StartedAt:  e.StartedAt.Format(time.RFC3339),
		FinishedAt: e.FinishedAt.Format(time.RFC3339),
	}
}

func (a *App) renderDashboard(c echo.Context, code int, msg views.Message) error {
	d := views.Dashboard{
		CSRF:     CsrfToken(c),
		HasToken: HasToken(c),
		Form:     toFormValues(loadFormValues(c, a.Config)),
		Message:  msg,
	}
	if a.Journal != nil {
		entries, err := a.Journal.Recent(c.Request().Context(), historySize)
		if err != nil {
			c.Logger().Errorf("journal: %v", err)
		}
		d.History = toHistory(entries)
	}
	return RenderStatus(c, code, a.Views.Dashboard(d))
}

func bindPublishForm(c echo.Context, cfg Config) publishForm {
	return publishForm{
		Owner:    firstNonEmpty(c.FormValue("owner"), cfg.Owner),
		Repo:     firstNonEmpty(c.FormValue("repo"), cfg.Repo),
		Branch:   firstNonEmpty(c.FormValue("branch"), cfg.Branch),
		Title:    c.FormValue("title"),
		Author:   c.FormValue("author"),
		Date:     c.FormValue("date"),
		Category: c.FormValue("category"),
		HTML:     c.FormValue("content_html"),
		Text:     c.FormValue("content_text"),
	}
}

// publishStatus maps a publish failure to the HTTP status of the response.
func publishStatus(err error) int {
	var se *publish.StepError
	switch {
	case errors.As(err, &se) && se.Step == publish.StepValidate:
		return http.StatusBadRequest
	case errors.Is(err, contents.ErrMissingCredential), errors.Is(err, contents.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, contents.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func failure(text string) views.Message {
	return views.Message{Text: "❌ " + text, Error: true}
}

func redirectWithMessage(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

func toFormValues(f publishForm) views.FormValues {
	return views.FormValues{
		Owner:    f.Owner,
		Repo:     f.Repo,
		Branch:   f.Branch,
		Author:   f.Author,
		Category: f.Category,
	}
}

func toHistory(entries []JournalEntry) []views.HistoryItem {
	items := make([]views.HistoryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, views.HistoryItem{
			ID:         e.ID,
			Repository: fmt.Sprintf("%s/%s@%s", e.Owner, e.Repo, e.Branch),
			PostPath:   e.PostPath,
			Status:     e.Status,
			FailedStep: string(e.FailedStep),
			Error:      e.Error,
			Files:      len(e.Files),
			StartedAt:  e.StartedAt,
		})
	}
	return items
}
