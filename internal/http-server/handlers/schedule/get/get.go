package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"manege-service/api"
	"manege-service/internal/http-server/middleware/apikey"
	"manege-service/internal/schedule"
	"manege-service/pkg/response"
	"manege-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type ScheduleGetter interface {
	Schedule(ctx context.Context, memberID uuid.UUID, window int) ([]*api.ScheduleDay, error)
}

type Response struct {
	response.Response
	Window int               `json:"window"`
	Days   []api.ScheduleDay `json:"days"`
}

func New(log *slog.Logger, getter ScheduleGetter, defaultWindow int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedule.get.New"

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

		window := defaultWindow
		if window == 0 {
			window = schedule.WindowWeek
		}
		if raw := r.URL.Query().Get("window"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				log.Error("Failed to parse window", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), "window must be a number of days"))
				return
			}
			window = parsed
		}

		days, err := getter.Schedule(r.Context(), memberID, window)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Invalid window", slog.Int("window", window))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to resolve schedule", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.DATA_UNAVAILABLE), "failed to resolve schedule"))
			return
		}

		daysResponse := make([]api.ScheduleDay, len(days))
		for i, day := range days {
			daysResponse[i] = *day
		}

		render.JSON(w, r, Response{Window: window, Days: daysResponse})
	}
}
