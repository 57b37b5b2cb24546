package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"manege-service/api"
	"manege-service/internal/http-server/middleware/apikey"
	"manege-service/pkg/response"
	"manege-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type LeskaartGetter interface {
	Leskaarten(ctx context.Context, memberID uuid.UUID) (*api.LeskaartOverview, error)
}

type Response struct {
	response.Response
	Overview api.LeskaartOverview `json:"overview"`
}

func New(log *slog.Logger, getter LeskaartGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.leskaarten.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		memberID, ok := apikey.MemberID(r.Context())
		if !ok {
			log.Error("no member on request context")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(string(response.NOT_AUTHENTICATED), "not authenticated"))
			return
		}

		overview, err := getter.Leskaarten(r.Context(), memberID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("no leskaarten for member")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "no leskaarten found"))
			return
		}

		if err != nil {
			log.Error("Failed to get leskaarten", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.DATA_UNAVAILABLE), "failed to get leskaarten"))
			return
		}

		render.JSON(w, r, Response{Overview: *overview})
	}
}
