package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/handlers/render"
	"github.com/nkiryanov/authservice/internal/handlers/userctx"
	"github.com/nkiryanov/authservice/internal/logger"
	"github.com/nkiryanov/authservice/internal/models"
)

func handleUserMe(s authService, l logger.Logger) http.Handler {
	type response struct {
		Data models.Profile `json:"data"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := userctx.FromContext(r.Context())

		profile, err := s.Profile(r.Context(), claims.UserID)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User not found", http.StatusNotFound)
			default:
				l.Error("Profile failed", "user_id", claims.UserID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{Data: profile})
	})
}

func handleProtected() http.Handler {
	type user struct {
		ID   uuid.UUID   `json:"id"`
		Role models.Role `json:"role"`
	}
	type response struct {
		Message string `json:"message"`
		User    user   `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{Message: "Access granted", User: user{ID: claims.UserID, Role: claims.Role}})
	})
}
