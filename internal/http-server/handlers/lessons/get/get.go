package get

import (
	"context"
	"log/slog"
	"net/http"

	"manege-service/api"
	"manege-service/pkg/response"
	"manege-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type LessonLister interface {
	Lessons(ctx context.Context) ([]*api.Lesson, error)
}

type Response struct {
	response.Response
	Lessons []api.Lesson `json:"lessons"`
}

func New(log *slog.Logger, lister LessonLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.lessons.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		lessons, err := lister.Lessons(r.Context())
		if err != nil {
			log.Error("Failed to list lessons", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.DATA_UNAVAILABLE), "failed to list lessons"))
			return
		}

		lessonsResponse := make([]api.Lesson, len(lessons))
		for i, lesson := range lessons {
			lessonsResponse[i] = *lesson
		}

		render.JSON(w, r, Response{Lessons: lessonsResponse})
	}
}
