package http

import (
	"net/http"
	"strings"
)

// RouterConfig collects the handlers and middleware composing the API surface.
// Actor wraps every route except the calendar feed, which authenticates with
// the token embedded in its path.
type RouterConfig struct {
	Users       *UserHandler
	Rosters     *RosterHandler
	Assignments *AssignmentHandler
	Feeds       *FeedHandler
	Actor       func(http.Handler) http.Handler
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/users/")
			parts := splitPath(rest)
			if len(parts) == 0 {
				http.NotFound(w, r)
				return
			}

			ctx := ContextWithUserID(r.Context(), parts[0])
			r = r.WithContext(ctx)

			switch {
			case len(parts) == 1:
				switch r.Method {
				case http.MethodPut:
					cfg.Users.Update(w, r)
				case http.MethodDelete:
					cfg.Users.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodPut, http.MethodDelete)
				}
			case len(parts) == 2 && parts[1] == "calendar_token":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Users.CalendarToken(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Rosters != nil {
		mux.HandleFunc("/rosters", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Rosters.List(w, r)
			case http.MethodPost:
				cfg.Rosters.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/rosters/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/rosters/")
			parts := splitPath(rest)
			if len(parts) == 0 {
				http.NotFound(w, r)
				return
			}

			ctx := ContextWithRosterID(r.Context(), parts[0])
			r = r.WithContext(ctx)

			switch {
			case len(parts) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Rosters.Get(w, r)
				case http.MethodPut:
					cfg.Rosters.Update(w, r)
				case http.MethodDelete:
					cfg.Rosters.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case parts[1] == "members" && len(parts) == 2:
				switch r.Method {
				case http.MethodGet:
					cfg.Rosters.ListMembers(w, r)
				case http.MethodPost:
					cfg.Rosters.AddMember(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost)
				}
			case parts[1] == "members" && len(parts) == 3:
				r = r.WithContext(ContextWithUserID(r.Context(), parts[2]))
				switch r.Method {
				case http.MethodPut:
					cfg.Rosters.UpdateMember(w, r)
				case http.MethodDelete:
					cfg.Rosters.RemoveMember(w, r)
				default:
					methodNotAllowed(w, http.MethodPut, http.MethodDelete)
				}
			case parts[1] == "assignments" && len(parts) == 2 && cfg.Assignments != nil:
				switch r.Method {
				case http.MethodGet:
					cfg.Assignments.ListForRoster(w, r)
				case http.MethodPost:
					cfg.Assignments.CreateForRoster(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost)
				}
			case parts[1] == "rotation" && len(parts) == 2 && cfg.Assignments != nil:
				switch r.Method {
				case http.MethodGet:
					cfg.Assignments.RotationPlan(w, r)
				case http.MethodPost:
					cfg.Assignments.GenerateRotation(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Assignments != nil {
		mux.HandleFunc("/assignments/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/assignments/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithAssignmentID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Assignments.Get(w, r)
			case http.MethodPut:
				cfg.Assignments.Update(w, r)
			case http.MethodDelete:
				cfg.Assignments.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	var protected http.Handler = mux
	if cfg.Actor != nil {
		protected = cfg.Actor(mux)
	}

	outer := http.NewServeMux()
	if cfg.Feeds != nil {
		outer.HandleFunc("/feeds/", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Feeds.Serve(w, r)
		})
	}
	outer.Handle("/", protected)

	var handler http.Handler = outer
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func splitPath(rest string) []string {
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
