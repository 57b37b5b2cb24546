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

type Canceller interface {
	RequestCancellation(ctx context.Context, memberID uuid.UUID, req *api.CancellationRequest) (*api.CancellationResponse, error)
}

type Request struct {
	api.CancellationRequest
}

type Response struct {
	response.Response
	Cancellation api.CancellationResponse `json:"cancellation"`
}

func New(log *slog.Logger, canceller Canceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.cancellations.create.New"

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

		if req.Date == "" {
			log.Error("date is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date is required"))
			return
		}

		cancellation, err := canceller.RequestCancellation(r.Context(), memberID, &req.CancellationRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Cancellation rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("participation is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "another request for this cancellation is in flight"))
			return
		}

		if errors.Is(err, response.ErrWriteFailed) {
			log.Error("Failed to write cancellation", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.WRITE_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to cancel", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to cancel"))
			return
		}

		log.Info("Cancellation handled", slog.String("status", cancellation.Status))

		if cancellation.Status == api.CancellationCancelled {
			w.WriteHeader(http.StatusCreated)
		}
		render.JSON(w, r, Response{Cancellation: *cancellation})
	}
}
