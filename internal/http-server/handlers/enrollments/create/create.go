package create

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

type Enroller interface {
	Enroll(ctx context.Context, memberID uuid.UUID, req *api.EnrollRequest) (*api.EnrollResponse, error)
}

type Request struct {
	api.EnrollRequest
}

type Response struct {
	response.Response
	Enrollment api.EnrollResponse `json:"enrollment"`
}

func New(log *slog.Logger, enroller Enroller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.enrollments.create.New"

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

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if req.LessonID == "" {
			log.Error("lesson_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "lesson_id is required"))
			return
		}

		enrollment, err := enroller.Enroll(r.Context(), memberID, &req.EnrollRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Enrollment rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("participation is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "another request for this enrollment is in flight"))
			return
		}

		if errors.Is(err, response.ErrWriteFailed) {
			log.Error("Failed to write enrollment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.WRITE_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to enroll", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to enroll"))
			return
		}

		log.Info("Enrollment recorded", slog.Any("enrollment", enrollment))

		if !enrollment.AlreadyEnrolled {
			w.WriteHeader(http.StatusCreated)
		}
		render.JSON(w, r, Response{Enrollment: *enrollment})
	}
}
