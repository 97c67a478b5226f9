package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/mosaic/pkg/mosaic/observability"
	"github.com/randalmurphal/mosaic/pkg/mosaic/router"
	"github.com/randalmurphal/mosaic/pkg/mosaic/template"
)

// ErrInvalidSettings indicates settings that failed validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings configures a mosaic application.
type Settings struct {
	// Root is the component rendered into Mount.
	Root string
	// Mount is the selector of the element the root renders into.
	Mount string
	// Listen is the address the HTTP server binds.
	Listen string
	// StartHalted keeps the bus halted until the first render completes.
	StartHalted bool

	Views   ViewSettings
	Journal JournalSettings
	Log     observability.LogOptions
	Router  RouterSettings
}

// ViewSettings configures how component definitions are loaded.
type ViewSettings struct {
	// Dir is a directory of fragment files. Empty disables it.
	Dir string
	// BaseURL serves fragments over HTTP. Empty disables it.
	BaseURL string
	Ext     string
	Timeout time.Duration
	Retries int
	// Watch redefines components when files in Dir change.
	Watch bool
	// Missing is how fragments treat undefined ${var} references.
	Missing template.MissingAction
	// Preload names components loaded before the first render.
	Preload []string
}

// JournalSettings configures the notification journal.
type JournalSettings struct {
	// Path of the SQLite database. Empty keeps the journal in memory;
	// "off" disables it.
	Path string
	// Restore replays the journal into the bus at startup.
	Restore bool
}

// Enabled reports whether a journal should be recorded.
func (j JournalSettings) Enabled() bool {
	return j.Path != "off"
}

// RouterSettings configures the router component.
type RouterSettings struct {
	Topic  string
	Start  string
	Routes []router.Route
}

// Default returns the settings used for keys a file leaves out.
func Default() Settings {
	return Settings{
		Root:        "app",
		Mount:       "#app",
		Listen:      ":8080",
		StartHalted: true,
		Views: ViewSettings{
			Ext:     ".html",
			Timeout: 5 * time.Second,
			Retries: 3,
			Missing: template.MissingKeep,
		},
		Log: observability.LogOptions{
			Level:  "info",
			Format: "text",
		},
		Router: RouterSettings{
			Topic: router.DefaultTopic,
			Start: "/",
		},
	}
}

// Decode builds Settings from c, starting from Default.
//
//	root: app
//	mount: "#app"
//	bus: {halted: true}
//	views: {dir: views, timeout: 5s, retries: 3, watch: true, missing: keep}
//	journal: {path: journal.db, restore: true}
//	log: {level: debug, format: json}
//	router:
//	  start: /
//	  routes:
//	    - {pattern: /, component: home}
//	    - {pattern: /old, redirect: /}
//
// routes may also be a table mapping patterns to components.
func Decode(c Config) (Settings, error) {
	s := Default()
	s.Root = c.String("root", s.Root)
	s.Mount = c.String("mount", s.Mount)
	s.Listen = c.String("listen", s.Listen)
	s.StartHalted = c.Sub("bus").Bool("halted", s.StartHalted)

	views := c.Sub("views")
	s.Views.Dir = views.String("dir", s.Views.Dir)
	s.Views.BaseURL = views.String("base_url", s.Views.BaseURL)
	s.Views.Ext = views.String("ext", s.Views.Ext)
	s.Views.Timeout = views.Duration("timeout", s.Views.Timeout)
	s.Views.Retries = views.Int("retries", s.Views.Retries)
	s.Views.Watch = views.Bool("watch", s.Views.Watch)
	s.Views.Preload = views.StringSlice("preload", s.Views.Preload)
	if views.Has("missing") {
		action, ok := template.ParseMissingAction(views.String("missing", ""))
		if !ok {
			return Settings{}, fmt.Errorf("%w: views.missing must be keep, empty or error", ErrInvalidSettings)
		}
		s.Views.Missing = action
	}

	journal := c.Sub("journal")
	s.Journal.Path = journal.String("path", s.Journal.Path)
	s.Journal.Restore = journal.Bool("restore", s.Journal.Restore)

	log := c.Sub("log")
	s.Log.Level = log.String("level", s.Log.Level)
	s.Log.Format = log.String("format", s.Log.Format)

	r := c.Sub("router")
	s.Router.Topic = r.String("topic", s.Router.Topic)
	s.Router.Start = r.String("start", s.Router.Start)
	routes, err := decodeRoutes(r)
	if err != nil {
		return Settings{}, err
	}
	s.Router.Routes = routes
	return s, nil
}

func decodeRoutes(r Config) ([]router.Route, error) {
	if !r.Has("routes") {
		return nil, nil
	}
	if table := r.Sub("routes"); len(table.Raw()) > 0 {
		routes := make([]router.Route, 0, len(table.Raw()))
		for _, pattern := range table.Keys() {
			comp := table.String(pattern, "")
			if comp == "" {
				return nil, fmt.Errorf("%w: route %q must name a component", ErrInvalidSettings, pattern)
			}
			routes = append(routes, router.Route{Pattern: pattern, Component: comp})
		}
		return routes, nil
	}

	var routes []router.Route
	for i, item := range r.List("routes") {
		route := router.Route{
			Pattern:   item.String("pattern", ""),
			Component: item.String("component", ""),
			Redirect:  item.String("redirect", ""),
		}
		if route.Pattern == "" {
			return nil, fmt.Errorf("%w: router.routes[%d] has no pattern", ErrInvalidSettings, i)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// Validate reports every problem with s, joined.
func (s Settings) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidSettings}, args...)...))
	}

	if s.Root == "" {
		fail("root is required")
	}
	if s.Mount == "" {
		fail("mount is required")
	}
	if s.Views.Timeout <= 0 {
		fail("views.timeout must be positive")
	}
	if s.Views.Retries < 1 {
		fail("views.retries must be at least 1")
	}
	if s.Views.Watch && s.Views.Dir == "" {
		fail("views.watch requires views.dir")
	}
	if s.Views.BaseURL != "" && !strings.Contains(s.Views.BaseURL, "://") {
		fail("views.base_url must be absolute")
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		fail("log.format must be text or json")
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("unknown log.level %q", s.Log.Level)
	}
	if s.Router.Start != "" && !strings.HasPrefix(s.Router.Start, "/") {
		fail("router.start must begin with /")
	}
	if len(s.Router.Routes) > 0 {
		if _, err := router.NewTable(s.Router.Routes); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidSettings, err))
		}
	}
	return errors.Join(errs...)
}
