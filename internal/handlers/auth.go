package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/handlers/render"
	"github.com/nkiryanov/authservice/internal/logger"
)

const resetRequestedMessage = "If the email exists, a reset link will be sent"

func handleRegister(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required"`
	}
	type user struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}
	type response struct {
		Message string `json:"message"`
		User    user   `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		profile, err := s.Register(r.Context(), data.Email, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "Email already exists", http.StatusConflict)
			default:
				l.Error("Register failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSONStatus(w, response{
			Message: "User registered",
			User:    user{ID: profile.ID, Email: profile.Email},
		}, http.StatusCreated)
	})
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		Message      string `json:"message"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := s.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
			default:
				l.Error("Login failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{
			Message:      "Login success",
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleRefresh(s authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	type response struct {
		AccessToken string `json:"accessToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		access, err := s.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrMissingToken):
				render.ServiceError(w, "No refresh token provided", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrInvalidToken):
				render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
			default:
				l.Error("Refresh failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{AccessToken: access.Value})
	})
}

func handleLogout(s authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = s.Logout(r.Context(), data.RefreshToken)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrMissingToken):
				render.ServiceError(w, "No refresh token provided", http.StatusBadRequest)
			default:
				l.Error("Logout failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{Message: "Logged out"})
	})
}

func handleRequestReset(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = s.RequestReset(r.Context(), data.Email)
		if err != nil {
			switch {
			// Only registered emails reach the mailer, so this status tells them apart while mail is down
			// Accepted: the user has to know the link was not sent to retry
			case errors.Is(err, apperrors.ErrMailDelivery):
				render.ServiceError(w, "Reset link could not be sent, try again later", http.StatusServiceUnavailable)
			default:
				l.Error("Reset request failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{Message: resetRequestedMessage})
	})
}

func handleResetPassword(s authService, l logger.Logger) http.Handler {
	type request struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = s.ConfirmReset(r.Context(), data.Token, data.NewPassword)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrMissingFields):
				render.ServiceError(w, "Token and new password required", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrResetTokenNotFound):
				render.ServiceError(w, "Invalid or expired token", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrResetTokenUsed):
				render.ServiceError(w, "Token already used", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrResetTokenExpired):
				render.ServiceError(w, "Token expired", http.StatusBadRequest)
			default:
				l.Error("Password reset failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{Message: "Password has been reset"})
	})
}
