package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/veldt/feedgest/config"
	"github.com/veldt/feedgest/lib"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("feedgest", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/users", func(r chi.Router) {
			r.Post("/", ctrl.onboardUser)
			r.Post("/{user_id}/feeds", ctrl.createFeed)
			r.Get("/{user_id}/feeds/{feed_id}/entries", ctrl.listEntries)
			r.Delete("/{user_id}/feeds/{feed_id}", ctrl.deleteFeed)
		})
		r.Post("/preview", ctrl.previewDescription)
	})
	r.Get("/verify/{nonce}", ctrl.verifyNotifier)

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Error("Request failed", "error", err)
		return
	} else {
		w.WriteHeader(status)
		if b != nil {
			w.Write(b)
		}
	}
}

func (ctrl *controller) onboardUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" {
		ctrl.reject(w, 400, errors.New("Email is required"))
		return
	}
	if password == "" {
		ctrl.reject(w, 400, errors.New("Password is required"))
		return
	}

	user, err := ctrl.svc.OnboardUser(ctx, email, password)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, http.StatusAccepted, user)
}

func (ctrl *controller) createFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	params := lib.NewFeedParams{
		URL:         r.FormValue("url"),
		FeedType:    r.FormValue("feed_type"),
		Verbosity:   r.FormValue("verbosity"),
		HeaderMatch: r.FormValue("header_match"),
		BodyMatch:   r.FormValue("body_match"),
		ContextType: r.FormValue("context_type"),
		ContextID:   parseInt(r.FormValue("context_id")),
	}

	feed, err := ctrl.svc.CreateFeed(ctx, parseInt(userID), params)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FeedView{}.From(feed))
}

func (ctrl *controller) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")
	feedID := chi.URLParam(r, "feed_id")

	entries, err := ctrl.svc.ListEntries(ctx, parseInt(userID), parseInt(feedID))
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, EntryView{}.From(entry))
	}
	ctrl.resolve(w, 200, views)
}

func (ctrl *controller) deleteFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")
	feedID := chi.URLParam(r, "feed_id")

	if err := ctrl.svc.DeleteFeed(ctx, parseInt(userID), parseInt(feedID)); err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *controller) previewDescription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verbosity := r.FormValue("verbosity")
	text := r.FormValue("text")

	rendered := ctrl.svc.PreviewDescription(ctx, verbosity, text)
	ctrl.resolve(w, 200, map[string]any{"rendered": rendered})
}

func (ctrl *controller) verifyNotifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nonce := chi.URLParam(r, "nonce")

	ok, err := ctrl.svc.VerifyNotifier(ctx, nonce)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"verified": ok})
}

func parseInt(s string) uint {
	u, _ := strconv.ParseUint(s, 10, 64)
	return uint(u)
}
